package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/cart"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/catalog"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/checkout"
)

// cartView is the session cart with a live totals preview priced against the
// current catalog.
type cartView struct {
	SessionID string     `json:"session_id"`
	Lines     []lineView `json:"lines"`
	Subtotal  string     `json:"subtotal"`
	Tax       string     `json:"tax"`
	Total     string     `json:"total"`
}

// sessionID returns the cart session for the request, minting one when the
// kiosk has not sent X-Session-ID yet. The ID is echoed on the response so
// the client can persist it.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(headerSessionID)
	if id == "" || len(id) > 128 {
		id = uuid.New().String()
	}
	w.Header().Set(headerSessionID, id)
	return id
}

type addItemRequest struct {
	Barcode string `json:"barcode"`
	// Quantity defaults to 1, matching a single scan.
	Quantity int `json:"quantity"`
}

// addCartItem handles a scan: validate the barcode against the catalog and
// union it into the session cart.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Barcode == "" {
		respondError(w, http.StatusBadRequest, "barcode required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if _, err := h.products.GetByBarcode(r.Context(), req.Barcode); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(w, http.StatusNotFound, "product not found")
			return
		}
		respondInternal(w, r, errors.Wrap(err, "get product"))
		return
	}

	if err := h.carts.Add(sid, req.Barcode, req.Quantity); err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondInternal(w, r, errors.Wrap(err, "add cart line"))
		return
	}

	h.respondCart(w, r, sid, http.StatusOK)
}

// getCart returns the session cart with totals.
func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r, sessionID(w, r), http.StatusOK)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// updateCartItem replaces a line's quantity. Quantities below 1 are rejected;
// removal has its own endpoint.
func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	barcode := chi.URLParam(r, "barcode")

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.carts.SetQuantity(sid, barcode, req.Quantity); err != nil {
		switch {
		case errors.Is(err, cart.ErrInvalidQuantity):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, cart.ErrLineNotFound):
			respondError(w, http.StatusNotFound, "not in cart")
		default:
			respondInternal(w, r, errors.Wrap(err, "update cart line"))
		}
		return
	}

	h.respondCart(w, r, sid, http.StatusOK)
}

// removeCartItem deletes one line from the session cart.
func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	barcode := chi.URLParam(r, "barcode")

	if err := h.carts.Remove(sid, barcode); err != nil {
		if errors.Is(err, cart.ErrLineNotFound) {
			respondError(w, http.StatusNotFound, "not in cart")
			return
		}
		respondInternal(w, r, errors.Wrap(err, "remove cart line"))
		return
	}

	h.respondCart(w, r, sid, http.StatusOK)
}

// clearCart empties the session cart.
func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.carts.Clear(sessionID(w, r))
	w.WriteHeader(http.StatusNoContent)
}

// respondCart prices the session cart and writes the view. An empty cart is a
// valid view with zero totals, not an error.
func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, sid string, status int) {
	view := cartView{
		SessionID: sid,
		Lines:     []lineView{},
		Subtotal:  "0.00",
		Tax:       "0.00",
		Total:     "0.00",
	}

	lines := h.carts.Lines(sid)
	if len(lines) > 0 {
		q, err := h.checkout.Quote(r.Context(), lines)
		if err != nil {
			// A product deleted from the catalog after it was scanned
			// surfaces here.
			var unknown *checkout.UnknownProductError
			if errors.As(err, &unknown) {
				respondError(w, http.StatusUnprocessableEntity, unknown.Error())
				return
			}
			respondInternal(w, r, errors.Wrap(err, "price cart"))
			return
		}

		view.Lines = make([]lineView, len(q.Lines))
		for i, l := range q.Lines {
			view.Lines[i] = toLineView(l)
		}
		view.Subtotal = q.Subtotal.StringFixed(2)
		view.Tax = q.Tax.StringFixed(2)
		view.Total = q.Total.StringFixed(2)
	}

	respondJSON(w, status, view)
}
