package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/checkout"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/exitpass"
)

// lineView is the JSON shape of one priced cart or transaction line.
type lineView struct {
	Barcode   string `json:"barcode"`
	Name      string `json:"name"`
	Brand     string `json:"brand,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	TaxRate   string `json:"tax_rate"`
	LineTotal string `json:"line_total"`
}

func toLineView(l checkout.Line) lineView {
	return lineView{
		Barcode:   l.Barcode,
		Name:      l.Name,
		Brand:     l.Brand,
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice.StringFixed(2),
		TaxRate:   l.TaxRate.String(),
		LineTotal: l.LineTotal.StringFixed(2),
	}
}

// transactionView is the JSON shape of a completed checkout.
type transactionView struct {
	ID           string     `json:"id"`
	CustomerName string     `json:"customer_name,omitempty"`
	Lines        []lineView `json:"lines"`
	Subtotal     string     `json:"subtotal"`
	Tax          string     `json:"tax"`
	Total        string     `json:"total"`
	PaymentRef   string     `json:"payment_ref"`
	ExitCode     string     `json:"exit_code"`
	ExitStatus   string     `json:"exit_status"`
	ExitedAt     *time.Time `json:"exited_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toTransactionView(t *checkout.Transaction) transactionView {
	lines := make([]lineView, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = toLineView(l)
	}
	return transactionView{
		ID:           t.ID,
		CustomerName: t.CustomerName,
		Lines:        lines,
		Subtotal:     t.Subtotal.StringFixed(2),
		Tax:          t.Tax.StringFixed(2),
		Total:        t.Total.StringFixed(2),
		PaymentRef:   t.PaymentRef,
		ExitCode:     t.ExitCode,
		ExitStatus:   string(t.ExitStatus),
		ExitedAt:     t.ExitedAt,
		CreatedAt:    t.CreatedAt,
	}
}

type checkoutRequest struct {
	CustomerName string `json:"customer_name"`
	// PaymentRef is the customer's UPI UTR; a reference is generated when
	// absent.
	PaymentRef string `json:"payment_ref"`
}

// checkoutResponse pairs the stored transaction with the QR payload the kiosk
// renders as the exit pass.
type checkoutResponse struct {
	Transaction transactionView `json:"transaction"`
	QRPayload   string          `json:"qr_payload"`
}

// checkoutCart consumes the session cart: validates, prices, persists the
// transaction, and returns it with the exit pass payload. The cart is cleared
// only after the transaction is stored.
func (h *Handler) checkoutCart(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)

	// Both request fields are optional, so an empty body is a valid request.
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.checkout.Checkout(r.Context(), checkout.Request{
		CustomerName: req.CustomerName,
		PaymentRef:   req.PaymentRef,
		Lines:        h.carts.Lines(sid),
	})
	if err != nil {
		h.mapCheckoutError(w, r, err)
		return
	}

	h.carts.Clear(sid)
	h.checkouts.Add(r.Context(), 1)

	respondJSON(w, http.StatusCreated, checkoutResponse{
		Transaction: toTransactionView(t),
		QRPayload:   exitpass.BuildPayload(t),
	})
}

// mapCheckoutError converts checkout domain errors to HTTP responses.
func (h *Handler) mapCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, checkout.ErrEmptyCart) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var iqErr *checkout.InvalidQuantityError
	if errors.As(err, &iqErr) {
		respondError(w, http.StatusUnprocessableEntity, iqErr.Error())
		return
	}

	var upErr *checkout.UnknownProductError
	if errors.As(err, &upErr) {
		respondError(w, http.StatusUnprocessableEntity, upErr.Error())
		return
	}

	if errors.Is(err, checkout.ErrDuplicatePaymentRef) {
		respondError(w, http.StatusConflict, "payment reference already used")
		return
	}

	respondInternal(w, r, errors.Wrap(err, "checkout"))
}

// getInvoice renders the stored transaction as a printable artifact.
func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.ledger.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, checkout.ErrNotFound) {
			respondError(w, http.StatusNotFound, "transaction not found")
			return
		}
		respondInternal(w, r, errors.Wrap(err, "get transaction"))
		return
	}

	body, err := h.invoices.Render(t)
	if err != nil {
		respondInternal(w, r, errors.Wrap(err, "render invoice"))
		return
	}
	if len(body) == 0 {
		respondError(w, http.StatusNotImplemented, "invoice rendering disabled")
		return
	}

	w.Header().Set("Content-Type", h.invoices.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
