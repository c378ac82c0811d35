package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/grocery-field/card/internal/platform/httpx"
	"github.com/grocery-field/card/internal/platform/requestctx"
	"github.com/grocery-field/card/internal/product"
)

// ProductHandlers exposes catalogue lookups.
type ProductHandlers struct {
	looker product.Looker
}

// NewProductHandlers constructs the product handler set.
func NewProductHandlers(looker product.Looker) *ProductHandlers {
	return &ProductHandlers{looker: looker}
}

// Routes registers the lookup endpoint beneath /products.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{barcode}", h.lookup)
}

func (h *ProductHandlers) lookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.looker == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "product lookup not available", http.StatusServiceUnavailable))
		return
	}
	barcode := strings.TrimSpace(chi.URLParam(r, "barcode"))
	if barcode == "" || len(barcode) > 64 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_barcode", "barcode is required", http.StatusBadRequest))
		return
	}
	record, err := h.looker.Lookup(ctx, barcode)
	if err != nil {
		requestctx.Logger(ctx).Sugar().Warnw("product lookup failed", "barcode", barcode, "error", err)
		httpx.WriteError(ctx, w, httpx.NewError("lookup_failed", "product catalogue unavailable", http.StatusBadGateway))
		return
	}
	if record == nil {
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "no product for barcode", http.StatusNotFound))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"barcode": barcode, "product": record})
}
