package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/eatmefirst/internal/imaging"
	"github.com/erazemk/eatmefirst/internal/lifecycle"
	"github.com/erazemk/eatmefirst/internal/model"
	"github.com/erazemk/eatmefirst/internal/pantry"
)

// ItemsHandler handles item commands and reads.
type ItemsHandler struct {
	Pantry *pantry.Service
	Photos *imaging.Processor
	Now    func() time.Time
}

// itemView is an item with its urgency at the time of the request.
type itemView struct {
	model.Item
	DaysRemaining int               `json:"days_remaining"`
	Urgency       lifecycle.Urgency `json:"urgency"`
}

func (h *ItemsHandler) view(item model.Item) itemView {
	days := lifecycle.DaysRemaining(item.ExpiryDate, h.Now())
	return itemView{Item: item, DaysRemaining: days, Urgency: lifecycle.Classify(days)}
}

func (h *ItemsHandler) views(items []model.Item) []itemView {
	out := make([]itemView, 0, len(items))
	for _, item := range items {
		out = append(out, h.view(item))
	}
	return out
}

// List handles GET /api/items?category=.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	var (
		items []model.Item
		err   error
	)
	if category == "" {
		items, err = h.Pantry.Active(r.Context())
	} else {
		items, err = h.Pantry.ActiveIn(r.Context(), model.Category(category))
	}
	if err != nil {
		writeError(w, r, err, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, h.views(items))
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.NewItem
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.Pantry.AddItem(r.Context(), req)
	if err != nil {
		writeError(w, r, err, "failed to create item")
		return
	}
	h.respondItem(w, r, id, http.StatusCreated)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	h.respondItem(w, r, id, http.StatusOK)
}

// Update handles PATCH /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req model.ItemUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Pantry.EditItem(r.Context(), id, req); err != nil {
		writeError(w, r, err, "failed to update item")
		return
	}
	h.respondItem(w, r, id, http.StatusOK)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := h.Pantry.DeleteItem(r.Context(), id); err != nil {
		writeError(w, r, err, "failed to delete item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Consume handles POST /api/items/{id}/consume.
func (h *ItemsHandler) Consume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Pantry.ConsumeItem)
}

// Waste handles POST /api/items/{id}/waste.
func (h *ItemsHandler) Waste(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Pantry.WasteItem)
}

func (h *ItemsHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64) error) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := apply(r.Context(), id); err != nil {
		writeError(w, r, err, "failed to update item status")
		return
	}
	h.respondItem(w, r, id, http.StatusOK)
}

func (h *ItemsHandler) respondItem(w http.ResponseWriter, r *http.Request, id int64, status int) {
	item, err := h.Pantry.Item(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "failed to get item")
		return
	}
	jsonResponse(w, status, h.view(*item))
}

// UploadPhoto handles PUT /api/items/{id}/photo. The body is the raw image.
func (h *ItemsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	defer r.Body.Close()

	photo, err := h.Photos.Process(r.Body)
	if err != nil {
		writeError(w, r, err, "failed to process photo")
		return
	}

	if err := h.Pantry.SetPhoto(r.Context(), id, photo.Data, photo.MIME); err != nil {
		writeError(w, r, err, "failed to store photo")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "photo stored",
		"width":   photo.Width,
		"height":  photo.Height,
		"size":    len(photo.Data),
	})
}

// GetPhoto handles GET /api/items/{id}/photo.
func (h *ItemsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := h.Pantry.Photo(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "failed to get photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
