package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/catalog"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/checkout"
)

const (
	defaultExportLimit = 100
	maxExportLimit     = 1000
	recentLimit        = 10
)

type skippedRowView struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type importResultView struct {
	Written int              `json:"written"`
	Skipped []skippedRowView `json:"skipped"`
}

// importCatalog ingests a product CSV, either as a raw body or as the "file"
// field of a multipart form. Bad rows are skipped and reported, never fatal.
func (h *Handler) importCatalog(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = r.Body
	if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "multipart file field required")
			return
		}
		defer f.Close()
		src = f
	}

	res, err := h.importer.Import(r.Context(), src)
	if err != nil {
		if errors.Is(err, catalog.ErrMissingHeader) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondInternal(w, r, errors.Wrap(err, "import catalog"))
		return
	}

	view := importResultView{
		Written: res.Written,
		Skipped: make([]skippedRowView, len(res.Skipped)),
	}
	for i, s := range res.Skipped {
		view.Skipped[i] = skippedRowView{Row: s.Row, Error: s.Err.Error()}
	}
	respondJSON(w, http.StatusOK, view)
}

// analyticsView is the admin dashboard snapshot.
type analyticsView struct {
	TotalSales         string            `json:"total_sales"`
	TransactionCount   int64             `json:"transaction_count"`
	PendingExits       int64             `json:"pending_exits"`
	ProductCount       int64             `json:"product_count"`
	RecentTransactions []transactionView `json:"recent_transactions"`
}

// getAnalytics returns store-wide sales aggregates plus the latest
// transactions.
func (h *Handler) getAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.ledger.SalesSummary(ctx)
	if err != nil {
		respondInternal(w, r, errors.Wrap(err, "sales summary"))
		return
	}
	productCount, err := h.products.Count(ctx)
	if err != nil {
		respondInternal(w, r, errors.Wrap(err, "count products"))
		return
	}
	recent, err := h.ledger.ListRecent(ctx, recentLimit)
	if err != nil {
		respondInternal(w, r, errors.Wrap(err, "list recent transactions"))
		return
	}

	view := analyticsView{
		TotalSales:         summary.TotalSales.StringFixed(2),
		TransactionCount:   summary.TransactionCount,
		PendingExits:       summary.PendingExits,
		ProductCount:       productCount,
		RecentTransactions: make([]transactionView, len(recent)),
	}
	for i := range recent {
		view.RecentTransactions[i] = toTransactionView(&recent[i])
	}
	respondJSON(w, http.StatusOK, view)
}

// exportTransactions streams the newest transactions as a JSON array without
// buffering the whole export in memory.
func (h *Handler) exportTransactions(w http.ResponseWriter, r *http.Request) {
	limit := defaultExportLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxExportLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	txns, err := h.ledger.ListRecent(r.Context(), limit)
	if err != nil {
		respondInternal(w, r, errors.Wrap(err, "list transactions"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	e := jx.NewStreamingEncoder(w, -1)
	e.ArrStart()
	for i := range txns {
		encodeTransaction(e, &txns[i])
	}
	e.ArrEnd()
	if err := e.Close(); err != nil {
		// Headers are out; all we can do is note the broken stream.
		zctx.From(r.Context()).Error("stream transactions", zap.Error(err))
	}
}

func encodeTransaction(e *jx.Encoder, t *checkout.Transaction) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(t.ID)
	if t.CustomerName != "" {
		e.FieldStart("customer_name")
		e.Str(t.CustomerName)
	}
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range t.Lines {
		e.ObjStart()
		e.FieldStart("barcode")
		e.Str(l.Barcode)
		e.FieldStart("name")
		e.Str(l.Name)
		if l.Brand != "" {
			e.FieldStart("brand")
			e.Str(l.Brand)
		}
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unit_price")
		e.Str(l.UnitPrice.StringFixed(2))
		e.FieldStart("tax_rate")
		e.Str(l.TaxRate.String())
		e.FieldStart("line_total")
		e.Str(l.LineTotal.StringFixed(2))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	e.Str(t.Subtotal.StringFixed(2))
	e.FieldStart("tax")
	e.Str(t.Tax.StringFixed(2))
	e.FieldStart("total")
	e.Str(t.Total.StringFixed(2))
	e.FieldStart("payment_ref")
	e.Str(t.PaymentRef)
	e.FieldStart("exit_code")
	e.Str(t.ExitCode)
	e.FieldStart("exit_status")
	e.Str(string(t.ExitStatus))
	if t.ExitedAt != nil {
		e.FieldStart("exited_at")
		e.Str(t.ExitedAt.Format(time.RFC3339Nano))
	}
	e.FieldStart("created_at")
	e.Str(t.CreatedAt.Format(time.RFC3339Nano))
	e.ObjEnd()
}
