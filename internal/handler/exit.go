package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/checkout"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/exitpass"
)

type verifyRequest struct {
	// Pass is the scanned QR payload or a bare exit code typed by staff.
	Pass string `json:"pass"`
}

// verifyResponse is the uniform envelope for every verification outcome.
type verifyResponse struct {
	Result      string           `json:"result"`
	Message     string           `json:"message"`
	Transaction *transactionView `json:"transaction,omitempty"`
	ExitedAt    *time.Time       `json:"exited_at,omitempty"`
}

// verifyExit checks a scanned pass at the door. APPROVED consumes the pass;
// ALREADY_USED and NOT_FOUND change nothing.
func (h *Handler) verifyExit(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := h.exits.Verify(r.Context(), req.Pass)
	if err != nil {
		respondInternal(w, r, errors.Wrap(err, "verify exit pass"))
		return
	}

	h.verifications.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("result", string(v.Result))))

	switch v.Result {
	case exitpass.ResultApproved:
		view := toTransactionView(v.Transaction)
		respondJSON(w, http.StatusOK, verifyResponse{
			Result:      string(v.Result),
			Message:     "exit approved",
			Transaction: &view,
		})
	case exitpass.ResultAlreadyUsed:
		respondJSON(w, http.StatusConflict, verifyResponse{
			Result:   string(v.Result),
			Message:  "exit pass already used",
			ExitedAt: v.ExitedAt,
		})
	default:
		respondJSON(w, http.StatusNotFound, verifyResponse{
			Result:  string(v.Result),
			Message: "exit pass not found",
		})
	}
}

// getExitPass renders the QR PNG for an exit code, for kiosks that print the
// pass instead of showing it on screen.
func (h *Handler) getExitPass(w http.ResponseWriter, r *http.Request) {
	if !h.passes.Enabled() {
		respondError(w, http.StatusNotImplemented, "exit pass rendering disabled")
		return
	}

	code := chi.URLParam(r, "code")
	t, err := h.ledger.GetByExitCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, checkout.ErrNotFound) {
			respondError(w, http.StatusNotFound, "exit pass not found")
			return
		}
		respondInternal(w, r, errors.Wrap(err, "get transaction"))
		return
	}

	png, err := h.passes.Encode(exitpass.BuildPayload(t))
	if err != nil {
		respondInternal(w, r, errors.Wrap(err, "encode exit pass"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
