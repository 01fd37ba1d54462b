// Package lookup prefills new items from the Open Food Facts product
// database.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/erazemk/eatmefirst/internal/model"
)

// DefaultBaseURL is the Open Food Facts v0 product API.
const DefaultBaseURL = "https://world.openfoodfacts.org/api/v0/product"

// Prefill holds the fields a barcode scan fills in on a new item. The
// caller supplies the expiry date.
type Prefill struct {
	Barcode   string           `json:"barcode"`
	Name      string           `json:"name"`
	Image     string           `json:"image,omitempty"`
	Quantity  string           `json:"quantity,omitempty"`
	Category  model.Category   `json:"category"`
	Nutrition *model.Nutrition `json:"nutrition,omitempty"`
}

// NewItem turns the prefill into an add request expiring on expiry.
func (p *Prefill) NewItem(expiry model.Date) model.NewItem {
	return model.NewItem{
		Name:       p.Name,
		Image:      p.Image,
		ExpiryDate: expiry.String(),
		Category:   p.Category,
		Quantity:   p.Quantity,
		Nutrition:  p.Nutrition,
	}
}

// Client queries the product API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a client for the public Open Food Facts API.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return NewClientWithURL(DefaultBaseURL, timeout, logger)
}

// NewClientWithURL creates a client for a custom base URL.
func NewClientWithURL(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With("component", "lookup"),
	}
}

type apiResponse struct {
	Status  int         `json:"status"`
	Product *apiProduct `json:"product"`
}

type apiProduct struct {
	ProductName string       `json:"product_name"`
	ImageURL    string       `json:"image_url"`
	Quantity    string       `json:"quantity"`
	Nutriments  apiNutriment `json:"nutriments"`
}

type apiNutriment struct {
	EnergyKcal100g    *float64 `json:"energy-kcal_100g"`
	EnergyKcalServing *float64 `json:"energy-kcal_serving"`
	Proteins100g      *float64 `json:"proteins_100g"`
	Carbohydrates100g *float64 `json:"carbohydrates_100g"`
	Fat100g           *float64 `json:"fat_100g"`
}

// Product looks up a barcode. It returns nil, nil when the product is
// unknown.
func (c *Client) Product(ctx context.Context, barcode string) (*Prefill, error) {
	if err := ValidateBarcode(barcode); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + "/" + url.PathEscape(barcode) + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("lookup: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.DebugContext(ctx, "product lookup", slog.String("barcode", barcode))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.ErrorContext(ctx, "product lookup failed", slog.String("barcode", barcode), slog.String("error", err.Error()))
		return nil, fmt.Errorf("lookup: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("lookup: read body: %w", err)
	}

	var ar apiResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, fmt.Errorf("lookup: decode json: %w", err)
	}
	if ar.Status != 1 || ar.Product == nil {
		return nil, nil
	}

	return mapProduct(barcode, ar.Product), nil
}

func mapProduct(barcode string, p *apiProduct) *Prefill {
	n := p.Nutriments
	calories := n.EnergyKcal100g
	if calories == nil || *calories == 0 {
		calories = n.EnergyKcalServing
	}

	nutrition := &model.Nutrition{
		Calories: calories,
		Protein:  n.Proteins100g,
		Carbs:    n.Carbohydrates100g,
		Fat:      n.Fat100g,
	}
	if nutrition.IsEmpty() {
		nutrition = nil
	}

	return &Prefill{
		Barcode:   barcode,
		Name:      p.ProductName,
		Image:     p.ImageURL,
		Quantity:  p.Quantity,
		Category:  model.CategoryFridge,
		Nutrition: nutrition,
	}
}

// ValidateBarcode accepts EAN-8 through GTIN-14 digit strings.
func ValidateBarcode(barcode string) error {
	if len(barcode) < 8 || len(barcode) > 14 {
		return model.NewValidationError("barcode", "must be 8 to 14 digits")
	}
	for _, r := range barcode {
		if r < '0' || r > '9' {
			return model.NewValidationError("barcode", "must contain only digits")
		}
	}
	return nil
}
