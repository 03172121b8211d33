package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/catalog"
)

// productView is the JSON shape of a catalog product. Money is a fixed
// two-decimal string; the tax rate keeps its exact decimal form.
type productView struct {
	Barcode       string `json:"barcode"`
	Name          string `json:"name"`
	Brand         string `json:"brand,omitempty"`
	Category      string `json:"category,omitempty"`
	Price         string `json:"price"`
	TaxRate       string `json:"tax_rate"`
	StockQuantity int    `json:"stock_quantity"`
	Description   string `json:"description,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
}

func (h *Handler) toProductView(p catalog.Product) productView {
	v := productView{
		Barcode:       p.Barcode,
		Name:          p.Name,
		Brand:         p.Brand,
		Category:      p.Category,
		Price:         p.Price.StringFixed(2),
		TaxRate:       p.TaxRate.String(),
		StockQuantity: p.StockQuantity,
		Description:   p.Description,
	}
	if p.ImageURL != "" {
		v.ImageURL = h.imageBaseURL + p.ImageURL
	}
	return v
}

// listProducts returns every product in the catalog.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondInternal(w, r, errors.Wrap(err, "list products"))
		return
	}

	out := make([]productView, len(products))
	for i, p := range products {
		out[i] = h.toProductView(p)
	}
	respondJSON(w, http.StatusOK, out)
}

// getProduct is the scan lookup: one product by barcode.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")

	p, err := h.products.GetByBarcode(r.Context(), barcode)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(w, http.StatusNotFound, "product not found")
			return
		}
		respondInternal(w, r, errors.Wrap(err, "get product"))
		return
	}
	respondJSON(w, http.StatusOK, h.toProductView(*p))
}
