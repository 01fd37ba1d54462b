// Package imaging normalizes uploaded item photos into bounded JPEGs.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/erazemk/eatmefirst/internal/model"
)

// Defaults for a Processor.
const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 85
	DefaultMaxBytes     = 10 << 20
)

// OutputMIME is the type of every processed photo.
const OutputMIME = "image/jpeg"

var decoders = map[string]func(io.Reader) (image.Image, error){
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
	"image/webp": webp.Decode,
}

// Photo is a processed item photo.
type Photo struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Option configures a Processor.
type Option func(*Processor)

// WithMaxDimension bounds the longer side of the output.
func WithMaxDimension(px int) Option {
	return func(p *Processor) { p.maxDimension = px }
}

// WithQuality sets the JPEG quality.
func WithQuality(q int) Option {
	return func(p *Processor) { p.quality = q }
}

// WithMaxBytes bounds the accepted upload size.
func WithMaxBytes(n int64) Option {
	return func(p *Processor) { p.maxBytes = n }
}

// Processor turns camera uploads into photos fit for storage.
type Processor struct {
	maxDimension int
	quality      int
	maxBytes     int64
}

// NewProcessor creates a processor with the given options.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		maxDimension: DefaultMaxDimension,
		quality:      DefaultQuality,
		maxBytes:     DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process sniffs the upload (client headers are ignored), decodes JPEG, PNG
// or WebP, flattens transparency onto white, downscales to the maximum
// dimension and re-encodes as JPEG. Bad input is a validation error.
func (p *Processor) Process(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, model.NewValidationError("photo", fmt.Sprintf("must be at most %d bytes", p.maxBytes))
	}

	detected := http.DetectContentType(data)
	decode, ok := decoders[detected]
	if !ok {
		return nil, model.NewValidationError("photo", fmt.Sprintf("unsupported format %s (JPEG, PNG or WebP accepted)", detected))
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, model.NewValidationError("photo", "could not be decoded")
	}

	img = fit(img, p.maxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Photo{Data: buf.Bytes(), MIME: OutputMIME, Width: b.Dx(), Height: b.Dy()}, nil
}

// fit draws img onto an opaque white canvas no larger than maxDim on either
// side, preserving the aspect ratio. Images already within bounds keep their
// size.
func fit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	newW, newH := w, h
	if w > maxDim || h > maxDim {
		if w > h {
			newW = maxDim
			newH = max(1, h*maxDim/w)
		} else {
			newH = maxDim
			newW = max(1, w*maxDim/h)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if newW == w && newH == h {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
