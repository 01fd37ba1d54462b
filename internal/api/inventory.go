package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/eatmefirst/internal/lookup"
	"github.com/erazemk/eatmefirst/internal/model"
)

// InventoryHandler serves the dashboard views over the whole inventory.
type InventoryHandler struct {
	Items *ItemsHandler
}

type expiringResponse struct {
	ThresholdDays int        `json:"threshold_days,omitempty"`
	By            string     `json:"by,omitempty"`
	Items         []itemView `json:"items"`
}

// Expiring handles GET /api/expiring. With ?by=YYYY-MM-DD it reads the store
// for that date instead of the expiring-soon list.
func (h *InventoryHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		items, err := h.Items.Pantry.ExpiringSoon(r.Context())
		if err != nil {
			writeError(w, r, err, "failed to list expiring items")
			return
		}
		jsonResponse(w, http.StatusOK, expiringResponse{
			ThresholdDays: h.Items.Pantry.Threshold(),
			Items:         h.Items.views(items),
		})
		return
	}

	date, err := model.ParseDate(by)
	if err != nil {
		writeError(w, r, model.NewValidationError("by", "must be a YYYY-MM-DD date"), "")
		return
	}

	items, err := h.Items.Pantry.ExpiringBy(r.Context(), date)
	if err != nil {
		writeError(w, r, err, "failed to list expiring items")
		return
	}
	jsonResponse(w, http.StatusOK, expiringResponse{By: date.String(), Items: h.Items.views(items)})
}

// Stats handles GET /api/stats.
func (h *InventoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.Items.Pantry.RefreshStats(r.Context()))
}

// History handles GET /api/history?status=consumed|expired.
func (h *InventoryHandler) History(w http.ResponseWriter, r *http.Request) {
	status := model.Status(r.URL.Query().Get("status"))
	items, err := h.Items.Pantry.History(r.Context(), status)
	if err != nil {
		writeError(w, r, err, "failed to list history")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// ProductLookup resolves a barcode into new item fields.
type ProductLookup interface {
	Product(ctx context.Context, barcode string) (*lookup.Prefill, error)
}

// LookupHandler serves barcode prefill.
type LookupHandler struct {
	Products ProductLookup
}

// Product handles GET /api/lookup/{barcode}.
func (h *LookupHandler) Product(w http.ResponseWriter, r *http.Request) {
	if h.Products == nil {
		jsonError(w, http.StatusServiceUnavailable, "barcode lookup disabled")
		return
	}

	p, err := h.Products.Product(r.Context(), r.PathValue("barcode"))
	if errors.Is(err, model.ErrValidation) {
		writeError(w, r, err, "")
		return
	}
	if err != nil {
		slog.WarnContext(r.Context(), "product lookup failed", "error", err)
		jsonError(w, http.StatusBadGateway, "product lookup failed")
		return
	}
	if p == nil {
		jsonError(w, http.StatusNotFound, "product not found")
		return
	}
	jsonResponse(w, http.StatusOK, p)
}
