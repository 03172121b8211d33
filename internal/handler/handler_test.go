package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/auth"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/cart"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/catalog"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/checkout"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/exitpass"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/invoice"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/qr"
)

// --- Mock implementations ---

type mockCatalogRepo struct {
	products  []catalog.Product
	byBarcode map[string]*catalog.Product
	listErr   error
	getErr    error
}

func (m *mockCatalogRepo) List(_ context.Context) ([]catalog.Product, error) {
	return m.products, m.listErr
}

func (m *mockCatalogRepo) GetByBarcode(_ context.Context, barcode string) (*catalog.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byBarcode[barcode]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func (m *mockCatalogRepo) GetByBarcodes(_ context.Context, barcodes []string) ([]catalog.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []catalog.Product
	for _, b := range barcodes {
		if p, ok := m.byBarcode[b]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockCatalogRepo) UpsertMany(_ context.Context, products []catalog.Product) (int, error) {
	for i := range products {
		p := products[i]
		if _, ok := m.byBarcode[p.Barcode]; ok {
			for j := range m.products {
				if m.products[j].Barcode == p.Barcode {
					m.products[j] = p
				}
			}
		} else {
			m.products = append(m.products, p)
		}
		m.byBarcode[p.Barcode] = &p
	}
	return len(products), nil
}

func (m *mockCatalogRepo) Count(_ context.Context) (int64, error) {
	return int64(len(m.byBarcode)), nil
}

// mockLedger keeps transactions in memory with the same PENDING to EXITED
// transition rules as the SQL implementation.
type mockLedger struct {
	byID       map[string]*checkout.Transaction
	byExitCode map[string]*checkout.Transaction
	refs       map[string]bool
	order      []string
	insertErr  error
}

func newLedger() *mockLedger {
	return &mockLedger{
		byID:       make(map[string]*checkout.Transaction),
		byExitCode: make(map[string]*checkout.Transaction),
		refs:       make(map[string]bool),
	}
}

func (m *mockLedger) Insert(_ context.Context, t *checkout.Transaction) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.refs[t.PaymentRef] {
		return checkout.ErrDuplicatePaymentRef
	}
	cp := *t
	m.byID[cp.ID] = &cp
	m.byExitCode[cp.ExitCode] = &cp
	m.refs[cp.PaymentRef] = true
	m.order = append(m.order, cp.ID)
	return nil
}

func (m *mockLedger) GetByID(_ context.Context, id string) (*checkout.Transaction, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, checkout.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockLedger) GetByExitCode(_ context.Context, code string) (*checkout.Transaction, error) {
	t, ok := m.byExitCode[code]
	if !ok {
		return nil, checkout.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockLedger) MarkExited(_ context.Context, code string, at time.Time) (*checkout.Transaction, error) {
	t, ok := m.byExitCode[code]
	if !ok {
		return nil, checkout.ErrNotFound
	}
	if t.ExitStatus == checkout.Exited {
		return nil, &checkout.AlreadyExitedError{ExitedAt: *t.ExitedAt}
	}
	t.ExitStatus = checkout.Exited
	t.ExitedAt = &at
	cp := *t
	return &cp, nil
}

func (m *mockLedger) ListRecent(_ context.Context, limit int) ([]checkout.Transaction, error) {
	var out []checkout.Transaction
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.byID[m.order[i]])
	}
	return out, nil
}

func (m *mockLedger) SalesSummary(_ context.Context) (*checkout.Summary, error) {
	s := &checkout.Summary{TotalSales: decimal.Zero}
	for _, id := range m.order {
		t := m.byID[id]
		s.TotalSales = s.TotalSales.Add(t.Total)
		s.TransactionCount++
		if t.ExitStatus == checkout.ExitPending {
			s.PendingExits++
		}
	}
	return s, nil
}

type mockStaffKeyRepo struct {
	info *auth.StaffKeyInfo
	err  error
}

func (m *mockStaffKeyRepo) FindByHash(_ context.Context, hash string) (*auth.StaffKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.info == nil || m.info.KeyHash != hash {
		return nil, errors.New("staff key not found")
	}
	return m.info, nil
}

// --- Helpers ---

var testPepper = []byte("test-pepper")

func newTestProduct(barcode, name, price, taxRate string) catalog.Product {
	return catalog.Product{
		Barcode:       barcode,
		Name:          name,
		Brand:         "TestBrand",
		Category:      "grocery",
		Price:         decimal.RequireFromString(price),
		TaxRate:       decimal.RequireFromString(taxRate),
		StockQuantity: 50,
	}
}

func newCatalogRepo(products ...catalog.Product) *mockCatalogRepo {
	byBarcode := make(map[string]*catalog.Product, len(products))
	for i := range products {
		byBarcode[products[i].Barcode] = &products[i]
	}
	return &mockCatalogRepo{
		products:  products,
		byBarcode: byBarcode,
	}
}

// newStaffRepo builds a repo holding one key hashed the same way the
// middleware hashes the header.
func newStaffRepo(key string, scopes ...string) *mockStaffKeyRepo {
	mac := hmac.New(sha256.New, testPepper)
	mac.Write([]byte(key))
	return &mockStaffKeyRepo{info: &auth.StaffKeyInfo{
		ID:      "key-1",
		KeyHash: hex.EncodeToString(mac.Sum(nil)),
		Name:    "test-key",
		Scopes:  scopes,
	}}
}

func newTestTransaction(id, exitCode string) *checkout.Transaction {
	return &checkout.Transaction{
		ID: id,
		Lines: []checkout.Line{{
			Barcode:   "8901262010016",
			Name:      "Toned Milk 500ml",
			Quantity:  1,
			UnitPrice: decimal.RequireFromString("25.00"),
			TaxRate:   decimal.RequireFromString("0.05"),
			LineTotal: decimal.RequireFromString("25.00"),
		}},
		Subtotal:   decimal.RequireFromString("25.00"),
		Tax:        decimal.RequireFromString("1.25"),
		Total:      decimal.RequireFromString("26.25"),
		PaymentRef: "PAY-" + id,
		ExitCode:   exitCode,
		ExitStatus: checkout.ExitPending,
		CreatedAt:  time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
}

func newTestHandler(t *testing.T, products *mockCatalogRepo, ledger *mockLedger, staff *mockStaffKeyRepo) *Handler {
	t.Helper()
	h, err := New(Config{StaffKeyPepper: testPepper}, Deps{
		Products:  products,
		Carts:     cart.NewStore(time.Hour),
		Checkout:  checkout.NewService(products, ledger),
		Exits:     exitpass.NewService(ledger),
		Importer:  catalog.NewImporter(products),
		Ledger:    ledger,
		StaffKeys: staff,
		Invoices:  invoice.NewTextRenderer(),
		Passes:    qr.NewGenerator(128),
	})
	require.NoError(t, err)
	return h
}

// doRequest serves one request against the full route tree. An empty session
// leaves the X-Session-ID header unset.
func doRequest(api http.Handler, method, target, session, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if session != "" {
		req.Header.Set(headerSessionID, session)
	}
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func doStaffRequest(api http.Handler, method, target, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if key != "" {
		req.Header.Set(headerStaffKey, key)
	}
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

// --- Products ---

func TestListProducts(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "95.00", "0.18")
	p2 := newTestProduct("8901719110018", "Parle-G Gold", "30.00", "0.05")
	h := newTestHandler(t, newCatalogRepo(p1, p2), newLedger(), nil)

	rec := doRequest(h.Routes(), http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []productView
	parseJSON(t, rec, &got)
	require.Len(t, got, 2)
	assert.Equal(t, "8901030865278", got[0].Barcode)
	assert.Equal(t, "Dairy Milk Silk", got[0].Name)
	assert.Equal(t, "95.00", got[0].Price)
	assert.Equal(t, "0.18", got[0].TaxRate)
	assert.Equal(t, "8901719110018", got[1].Barcode)
}

func TestListProducts_Error(t *testing.T) {
	repo := newCatalogRepo()
	repo.listErr = errors.New("db down")
	h := newTestHandler(t, repo, newLedger(), nil)

	rec := doRequest(h.Routes(), http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	parseJSON(t, rec, &body)
	assert.Equal(t, 500, body.Code)
	assert.Equal(t, "internal server error", body.Message)
}

func TestGetProduct(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		p := newTestProduct("8901030865278", "Dairy Milk Silk", "95.00", "0.18")
		h := newTestHandler(t, newCatalogRepo(p), newLedger(), nil)

		rec := doRequest(h.Routes(), http.MethodGet, "/api/products/8901030865278", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got productView
		parseJSON(t, rec, &got)
		assert.Equal(t, "8901030865278", got.Barcode)
		assert.Equal(t, "Dairy Milk Silk", got.Name)
		assert.Equal(t, 50, got.StockQuantity)
	})

	t.Run("not found returns 404", func(t *testing.T) {
		h := newTestHandler(t, newCatalogRepo(), newLedger(), nil)

		rec := doRequest(h.Routes(), http.MethodGet, "/api/products/0000000000000", "", "")
		require.Equal(t, http.StatusNotFound, rec.Code)

		var body errorBody
		parseJSON(t, rec, &body)
		assert.Equal(t, 404, body.Code)
		assert.Equal(t, "product not found", body.Message)
	})
}

func TestGetProduct_ImageBaseURL(t *testing.T) {
	p := newTestProduct("8901030865278", "Dairy Milk Silk", "95.00", "0.18")
	p.ImageURL = "/img/dairy-milk-silk.png"
	h := newTestHandler(t, newCatalogRepo(p), newLedger(), nil)
	h.imageBaseURL = "https://cdn.example.com"

	rec := doRequest(h.Routes(), http.MethodGet, "/api/products/8901030865278", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got productView
	parseJSON(t, rec, &got)
	assert.Equal(t, "https://cdn.example.com/img/dairy-milk-silk.png", got.ImageURL)
}

// --- Cart ---

func TestAddCartItem(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "95.00", "0.18")

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "unknown barcode returns 404",
			body:        `{"barcode":"0000000000000"}`,
			wantStatus:  http.StatusNotFound,
			wantMessage: "product not found",
		},
		{
			name:        "missing barcode returns 400",
			body:        `{"quantity":2}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "barcode required",
		},
		{
			name:        "invalid json returns 400",
			body:        `{"barcode":`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "invalid request body",
		},
		{
			name:       "negative quantity returns 422",
			body:       `{"barcode":"8901030865278","quantity":-1}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "quantity omitted counts as one scan",
			body:       `{"barcode":"8901030865278"}`,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)

			rec := doRequest(h.Routes(), http.MethodPost, "/api/cart/items", "kiosk-1", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusOK {
				var view cartView
				parseJSON(t, rec, &view)
				require.Len(t, view.Lines, 1)
				assert.Equal(t, 1, view.Lines[0].Quantity)
				return
			}
			var body errorBody
			parseJSON(t, rec, &body)
			assert.Equal(t, tt.wantStatus, body.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body.Message)
			}
		})
	}
}

func TestAddCartItem_MintsSession(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "95.00", "0.18")
	h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)

	rec := doRequest(h.Routes(), http.MethodPost, "/api/cart/items", "", `{"barcode":"8901030865278"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	sid := rec.Header().Get(headerSessionID)
	require.NotEmpty(t, sid)
	_, err := uuid.Parse(sid)
	assert.NoError(t, err, "minted session should be a UUID")

	var view cartView
	parseJSON(t, rec, &view)
	assert.Equal(t, sid, view.SessionID)
}

func TestCartTotals(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "10.00", "0.18")
	p2 := newTestProduct("8901719110018", "Parle-G Gold", "20.00", "0.05")
	h := newTestHandler(t, newCatalogRepo(p1, p2), newLedger(), nil)
	api := h.Routes()

	rec := doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901719110018"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var view cartView
	parseJSON(t, rec, &view)
	require.Len(t, view.Lines, 2)
	// 2 x 10.00 at 18% plus 1 x 20.00 at 5%.
	assert.Equal(t, "40.00", view.Subtotal)
	assert.Equal(t, "4.60", view.Tax)
	assert.Equal(t, "44.60", view.Total)
	assert.Equal(t, "20.00", view.Lines[0].LineTotal)
	assert.Equal(t, "0.18", view.Lines[0].TaxRate)
}

func TestCartTotals_ScanningSameItemAccumulates(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "10.00", "0.18")
	h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)
	api := h.Routes()

	for range 3 {
		rec := doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(api, http.MethodGet, "/api/cart", "kiosk-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view cartView
	parseJSON(t, rec, &view)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.Lines[0].Quantity)
	assert.Equal(t, "30.00", view.Subtotal)
}

func TestGetCart_Empty(t *testing.T) {
	h := newTestHandler(t, newCatalogRepo(), newLedger(), nil)

	rec := doRequest(h.Routes(), http.MethodGet, "/api/cart", "kiosk-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view cartView
	parseJSON(t, rec, &view)
	assert.Equal(t, "kiosk-1", view.SessionID)
	assert.Empty(t, view.Lines)
	assert.Equal(t, "0.00", view.Subtotal)
	assert.Equal(t, "0.00", view.Tax)
	assert.Equal(t, "0.00", view.Total)
}

func TestUpdateCartItem(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "10.00", "0.18")

	t.Run("replaces quantity", func(t *testing.T) {
		h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)
		api := h.Routes()
		doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278","quantity":2}`)

		rec := doRequest(api, http.MethodPut, "/api/cart/items/8901030865278", "kiosk-1", `{"quantity":5}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var view cartView
		parseJSON(t, rec, &view)
		require.Len(t, view.Lines, 1)
		assert.Equal(t, 5, view.Lines[0].Quantity)
		assert.Equal(t, "50.00", view.Subtotal)
	})

	t.Run("zero quantity returns 422", func(t *testing.T) {
		h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)
		api := h.Routes()
		doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278"}`)

		rec := doRequest(api, http.MethodPut, "/api/cart/items/8901030865278", "kiosk-1", `{"quantity":0}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("item not in cart returns 404", func(t *testing.T) {
		h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)

		rec := doRequest(h.Routes(), http.MethodPut, "/api/cart/items/8901030865278", "kiosk-1", `{"quantity":5}`)
		require.Equal(t, http.StatusNotFound, rec.Code)

		var body errorBody
		parseJSON(t, rec, &body)
		assert.Equal(t, "not in cart", body.Message)
	})
}

func TestRemoveCartItem(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "10.00", "0.18")

	t.Run("removes line", func(t *testing.T) {
		h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)
		api := h.Routes()
		doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278"}`)

		rec := doRequest(api, http.MethodDelete, "/api/cart/items/8901030865278", "kiosk-1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var view cartView
		parseJSON(t, rec, &view)
		assert.Empty(t, view.Lines)
		assert.Equal(t, "0.00", view.Total)
	})

	t.Run("item not in cart returns 404", func(t *testing.T) {
		h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)

		rec := doRequest(h.Routes(), http.MethodDelete, "/api/cart/items/8901030865278", "kiosk-1", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestClearCart(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "10.00", "0.18")
	h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)
	api := h.Routes()
	doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278"}`)

	rec := doRequest(api, http.MethodDelete, "/api/cart", "kiosk-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(api, http.MethodGet, "/api/cart", "kiosk-1", "")
	var view cartView
	parseJSON(t, rec, &view)
	assert.Empty(t, view.Lines)
}

func TestCartSessionsAreIsolated(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "10.00", "0.18")
	h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)
	api := h.Routes()

	doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278"}`)

	rec := doRequest(api, http.MethodGet, "/api/cart", "kiosk-2", "")
	var view cartView
	parseJSON(t, rec, &view)
	assert.Empty(t, view.Lines, "kiosk-2 should not see kiosk-1's cart")
}

// --- Checkout ---

func TestCheckout(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "10.00", "0.18")
	p2 := newTestProduct("8901719110018", "Parle-G Gold", "20.00", "0.05")

	h := newTestHandler(t, newCatalogRepo(p1, p2), newLedger(), nil)
	api := h.Routes()

	doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278","quantity":2}`)
	doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901719110018"}`)

	rec := doRequest(api, http.MethodPost, "/api/checkout", "kiosk-1",
		`{"customer_name":"Asha","payment_ref":"UTR4521776693"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp checkoutResponse
	parseJSON(t, rec, &resp)

	txn := resp.Transaction
	assert.True(t, strings.HasPrefix(txn.ID, "TXN-"), "id %q", txn.ID)
	assert.True(t, strings.HasPrefix(txn.ExitCode, "EXIT-"), "exit code %q", txn.ExitCode)
	assert.Equal(t, "PENDING", txn.ExitStatus)
	assert.Equal(t, "Asha", txn.CustomerName)
	assert.Equal(t, "UTR4521776693", txn.PaymentRef)
	assert.Equal(t, "40.00", txn.Subtotal)
	assert.Equal(t, "4.60", txn.Tax)
	assert.Equal(t, "44.60", txn.Total)
	require.Len(t, txn.Lines, 2)
	assert.Equal(t, "8901030865278", txn.Lines[0].Barcode)

	assert.True(t, strings.HasPrefix(resp.QRPayload, "EXIT:"+txn.ExitCode), "payload %q", resp.QRPayload)
	assert.Contains(t, resp.QRPayload, "|TOTAL:44.60|TXN:"+txn.ID)

	// Checkout consumes the cart.
	rec = doRequest(api, http.MethodGet, "/api/cart", "kiosk-1", "")
	var view cartView
	parseJSON(t, rec, &view)
	assert.Empty(t, view.Lines)
}

func TestCheckout_EmptyCartReturns400(t *testing.T) {
	h := newTestHandler(t, newCatalogRepo(), newLedger(), nil)

	rec := doRequest(h.Routes(), http.MethodPost, "/api/checkout", "kiosk-1", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	parseJSON(t, rec, &body)
	assert.Equal(t, "cart is empty", body.Message)
}

func TestCheckout_EmptyBodyIsAllowed(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "10.00", "0.18")
	h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)
	api := h.Routes()
	doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278"}`)

	rec := doRequest(api, http.MethodPost, "/api/checkout", "kiosk-1", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp checkoutResponse
	parseJSON(t, rec, &resp)
	assert.True(t, strings.HasPrefix(resp.Transaction.PaymentRef, "PAY-"),
		"generated payment ref %q", resp.Transaction.PaymentRef)
}

func TestCheckout_DuplicatePaymentRefReturns409(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "10.00", "0.18")
	h := newTestHandler(t, newCatalogRepo(p1), newLedger(), nil)
	api := h.Routes()

	doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278"}`)
	rec := doRequest(api, http.MethodPost, "/api/checkout", "kiosk-1", `{"payment_ref":"UTR1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278"}`)
	rec = doRequest(api, http.MethodPost, "/api/checkout", "kiosk-1", `{"payment_ref":"UTR1"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var body errorBody
	parseJSON(t, rec, &body)
	assert.Equal(t, "payment reference already used", body.Message)
}

func TestCheckout_ProductRemovedAfterScanReturns422(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "10.00", "0.18")
	repo := newCatalogRepo(p1)
	h := newTestHandler(t, repo, newLedger(), nil)
	api := h.Routes()

	doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278"}`)
	delete(repo.byBarcode, "8901030865278")

	rec := doRequest(api, http.MethodPost, "/api/checkout", "kiosk-1", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body errorBody
	parseJSON(t, rec, &body)
	assert.Contains(t, body.Message, "8901030865278")
}

// --- Invoice ---

func TestGetInvoice(t *testing.T) {
	t.Run("renders stored transaction", func(t *testing.T) {
		ledger := newLedger()
		txn := newTestTransaction("TXN-20260824120000-aaaa1111", "EXIT-20260824120000-aaaa1111")
		require.NoError(t, ledger.Insert(context.Background(), txn))
		h := newTestHandler(t, newCatalogRepo(), ledger, nil)

		rec := doRequest(h.Routes(), http.MethodGet, "/api/transactions/TXN-20260824120000-aaaa1111/invoice", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "RETAIL360 INVOICE")
		assert.Contains(t, rec.Body.String(), "TXN-20260824120000-aaaa1111")
		assert.Contains(t, rec.Body.String(), "26.25")
	})

	t.Run("unknown transaction returns 404", func(t *testing.T) {
		h := newTestHandler(t, newCatalogRepo(), newLedger(), nil)

		rec := doRequest(h.Routes(), http.MethodGet, "/api/transactions/TXN-missing/invoice", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("disabled renderer returns 501", func(t *testing.T) {
		ledger := newLedger()
		txn := newTestTransaction("TXN-20260824120000-aaaa1111", "EXIT-20260824120000-aaaa1111")
		require.NoError(t, ledger.Insert(context.Background(), txn))
		h := newTestHandler(t, newCatalogRepo(), ledger, nil)
		h.invoices = invoice.Noop{}

		rec := doRequest(h.Routes(), http.MethodGet, "/api/transactions/TXN-20260824120000-aaaa1111/invoice", "", "")
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})
}

// --- Exit verification ---

func TestVerifyExit(t *testing.T) {
	const exitCode = "EXIT-20260824120000-abcd1234"

	tests := []struct {
		name       string
		pass       string
		wantStatus int
		wantResult string
	}{
		{
			name:       "full payload approved",
			pass:       "EXIT:" + exitCode + "|TOTAL:26.25|TXN:TXN-1",
			wantStatus: http.StatusOK,
			wantResult: "APPROVED",
		},
		{
			name:       "bare code approved",
			pass:       exitCode,
			wantStatus: http.StatusOK,
			wantResult: "APPROVED",
		},
		{
			name:       "unknown code returns 404",
			pass:       "EXIT-20260101000000-deadbeef",
			wantStatus: http.StatusNotFound,
			wantResult: "NOT_FOUND",
		},
		{
			name:       "garbage payload returns 404",
			pass:       "not-a-pass",
			wantStatus: http.StatusNotFound,
			wantResult: "NOT_FOUND",
		},
		{
			name:       "empty pass returns 404",
			pass:       "",
			wantStatus: http.StatusNotFound,
			wantResult: "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newLedger()
			require.NoError(t, ledger.Insert(context.Background(),
				newTestTransaction("TXN-1", exitCode)))
			h := newTestHandler(t, newCatalogRepo(), ledger, nil)

			rec := doRequest(h.Routes(), http.MethodPost, "/api/exit/verify", "",
				`{"pass":"`+tt.pass+`"}`)
			require.Equal(t, tt.wantStatus, rec.Code)

			var resp verifyResponse
			parseJSON(t, rec, &resp)
			assert.Equal(t, tt.wantResult, resp.Result)
			if tt.wantResult == "APPROVED" {
				require.NotNil(t, resp.Transaction)
				assert.Equal(t, "EXITED", resp.Transaction.ExitStatus)
				assert.NotNil(t, resp.Transaction.ExitedAt)
			}
		})
	}
}

func TestVerifyExit_SecondScanReturns409(t *testing.T) {
	const exitCode = "EXIT-20260824120000-abcd1234"
	ledger := newLedger()
	require.NoError(t, ledger.Insert(context.Background(), newTestTransaction("TXN-1", exitCode)))
	h := newTestHandler(t, newCatalogRepo(), ledger, nil)
	api := h.Routes()

	rec := doRequest(api, http.MethodPost, "/api/exit/verify", "", `{"pass":"`+exitCode+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(api, http.MethodPost, "/api/exit/verify", "", `{"pass":"`+exitCode+`"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp verifyResponse
	parseJSON(t, rec, &resp)
	assert.Equal(t, "ALREADY_USED", resp.Result)
	assert.NotNil(t, resp.ExitedAt, "first consumption time should be reported")
	assert.Nil(t, resp.Transaction)
}

func TestVerifyExit_InvalidBodyReturns400(t *testing.T) {
	h := newTestHandler(t, newCatalogRepo(), newLedger(), nil)

	rec := doRequest(h.Routes(), http.MethodPost, "/api/exit/verify", "", `{"pass":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetExitPass(t *testing.T) {
	const exitCode = "EXIT-20260824120000-abcd1234"

	t.Run("renders png", func(t *testing.T) {
		ledger := newLedger()
		require.NoError(t, ledger.Insert(context.Background(), newTestTransaction("TXN-1", exitCode)))
		h := newTestHandler(t, newCatalogRepo(), ledger, nil)

		rec := doRequest(h.Routes(), http.MethodGet, "/api/exit-pass/"+exitCode+".png", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")), "body should be a PNG")
	})

	t.Run("unknown code returns 404", func(t *testing.T) {
		h := newTestHandler(t, newCatalogRepo(), newLedger(), nil)

		rec := doRequest(h.Routes(), http.MethodGet, "/api/exit-pass/"+exitCode+".png", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("disabled encoder returns 501", func(t *testing.T) {
		ledger := newLedger()
		require.NoError(t, ledger.Insert(context.Background(), newTestTransaction("TXN-1", exitCode)))
		h := newTestHandler(t, newCatalogRepo(), ledger, nil)
		h.passes = qr.Noop{}

		rec := doRequest(h.Routes(), http.MethodGet, "/api/exit-pass/"+exitCode+".png", "", "")
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})
}

// --- Admin ---

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		repo        *mockStaffKeyRepo
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "missing key returns 401",
			key:         "",
			repo:        newStaffRepo("secret", auth.ScopeAnalyticsRead),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "staff key required",
		},
		{
			name:        "unknown key returns 401",
			key:         "wrong",
			repo:        newStaffRepo("secret", auth.ScopeAnalyticsRead),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "unauthorized",
		},
		{
			name:        "missing scope returns 403",
			key:         "secret",
			repo:        newStaffRepo("secret", auth.ScopeCatalogWrite),
			wantStatus:  http.StatusForbidden,
			wantMessage: "missing scope analytics:read",
		},
		{
			name:       "valid key with scope passes",
			key:        "secret",
			repo:       newStaffRepo("secret", auth.ScopeAnalyticsRead),
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, newCatalogRepo(), newLedger(), tt.repo)

			rec := doStaffRequest(h.Routes(), http.MethodGet, "/api/admin/analytics", tt.key, "")
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantMessage != "" {
				var body errorBody
				parseJSON(t, rec, &body)
				assert.Equal(t, tt.wantMessage, body.Message)
			}
		})
	}
}

func TestImportCatalog(t *testing.T) {
	const csvBody = "barcode,product_name,brand,price,tax_rate,stock_quantity\n" +
		"8901030865278,Dairy Milk Silk,Cadbury,95.00,0.18,120\n" +
		"8901719110018,Parle-G Gold,Parle,30.00,0.05,200\n" +
		",Missing Barcode,,10.00,,\n"

	t.Run("raw csv body", func(t *testing.T) {
		repo := newCatalogRepo()
		h := newTestHandler(t, repo, newLedger(), newStaffRepo("secret", auth.ScopeCatalogWrite))

		rec := doStaffRequest(h.Routes(), http.MethodPost, "/api/admin/catalog/import", "secret", csvBody)
		require.Equal(t, http.StatusOK, rec.Code)

		var res importResultView
		parseJSON(t, rec, &res)
		assert.Equal(t, 2, res.Written)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, 4, res.Skipped[0].Row)
		assert.Contains(t, res.Skipped[0].Error, "barcode")

		// Imported products are immediately scannable.
		p, err := repo.GetByBarcode(context.Background(), "8901030865278")
		require.NoError(t, err)
		assert.Equal(t, "Dairy Milk Silk", p.Name)
		assert.Equal(t, "Cadbury", p.Brand)
	})

	t.Run("multipart file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "products.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(csvBody))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		repo := newCatalogRepo()
		h := newTestHandler(t, repo, newLedger(), newStaffRepo("secret", auth.ScopeCatalogWrite))

		req := httptest.NewRequest(http.MethodPost, "/api/admin/catalog/import", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set(headerStaffKey, "secret")
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var res importResultView
		parseJSON(t, rec, &res)
		assert.Equal(t, 2, res.Written)
	})

	t.Run("missing header returns 400", func(t *testing.T) {
		h := newTestHandler(t, newCatalogRepo(), newLedger(), newStaffRepo("secret", auth.ScopeCatalogWrite))

		rec := doStaffRequest(h.Routes(), http.MethodPost, "/api/admin/catalog/import", "secret",
			"one,two,three\n1,2,3\n")
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body errorBody
		parseJSON(t, rec, &body)
		assert.Contains(t, body.Message, "csv header")
	})
}

func TestGetAnalytics(t *testing.T) {
	ledger := newLedger()
	t1 := newTestTransaction("TXN-1", "EXIT-1-aaaa1111")
	require.NoError(t, ledger.Insert(context.Background(), t1))
	t2 := newTestTransaction("TXN-2", "EXIT-2-bbbb2222")
	t2.PaymentRef = "PAY-TXN-2"
	t2.Total = decimal.RequireFromString("10.00")
	require.NoError(t, ledger.Insert(context.Background(), t2))
	_, err := ledger.MarkExited(context.Background(), "EXIT-2-bbbb2222", time.Now())
	require.NoError(t, err)

	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "95.00", "0.18")
	h := newTestHandler(t, newCatalogRepo(p1), ledger, newStaffRepo("secret", auth.ScopeAnalyticsRead))

	rec := doStaffRequest(h.Routes(), http.MethodGet, "/api/admin/analytics", "secret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view analyticsView
	parseJSON(t, rec, &view)
	assert.Equal(t, "36.25", view.TotalSales)
	assert.Equal(t, int64(2), view.TransactionCount)
	assert.Equal(t, int64(1), view.PendingExits)
	assert.Equal(t, int64(1), view.ProductCount)
	require.Len(t, view.RecentTransactions, 2)
	assert.Equal(t, "TXN-2", view.RecentTransactions[0].ID, "newest first")
}

func TestExportTransactions(t *testing.T) {
	t.Run("streams json array", func(t *testing.T) {
		ledger := newLedger()
		require.NoError(t, ledger.Insert(context.Background(), newTestTransaction("TXN-1", "EXIT-1-aaaa1111")))
		t2 := newTestTransaction("TXN-2", "EXIT-2-bbbb2222")
		t2.PaymentRef = "PAY-TXN-2"
		t2.CustomerName = "Asha"
		require.NoError(t, ledger.Insert(context.Background(), t2))

		h := newTestHandler(t, newCatalogRepo(), ledger, newStaffRepo("secret", auth.ScopeAnalyticsRead))

		rec := doStaffRequest(h.Routes(), http.MethodGet, "/api/admin/transactions", "secret", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got []transactionView
		parseJSON(t, rec, &got)
		require.Len(t, got, 2)
		assert.Equal(t, "TXN-2", got[0].ID, "newest first")
		assert.Equal(t, "Asha", got[0].CustomerName)
		assert.Equal(t, "26.25", got[0].Total)
		require.Len(t, got[0].Lines, 1)
		assert.Equal(t, "25.00", got[0].Lines[0].UnitPrice)
		assert.Equal(t, "0.05", got[0].Lines[0].TaxRate)
	})

	t.Run("limit caps output", func(t *testing.T) {
		ledger := newLedger()
		require.NoError(t, ledger.Insert(context.Background(), newTestTransaction("TXN-1", "EXIT-1-aaaa1111")))
		t2 := newTestTransaction("TXN-2", "EXIT-2-bbbb2222")
		t2.PaymentRef = "PAY-TXN-2"
		require.NoError(t, ledger.Insert(context.Background(), t2))

		h := newTestHandler(t, newCatalogRepo(), ledger, newStaffRepo("secret", auth.ScopeAnalyticsRead))

		rec := doStaffRequest(h.Routes(), http.MethodGet, "/api/admin/transactions?limit=1", "secret", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got []transactionView
		parseJSON(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, "TXN-2", got[0].ID)
	})

	t.Run("invalid limit returns 400", func(t *testing.T) {
		h := newTestHandler(t, newCatalogRepo(), newLedger(), newStaffRepo("secret", auth.ScopeAnalyticsRead))

		for _, limit := range []string{"0", "1001", "abc"} {
			rec := doStaffRequest(h.Routes(), http.MethodGet, "/api/admin/transactions?limit="+limit, "secret", "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
		}
	})
}

// --- Full kiosk round trip ---

func TestSelfCheckoutFlow(t *testing.T) {
	p1 := newTestProduct("8901030865278", "Dairy Milk Silk", "10.00", "0.18")
	p2 := newTestProduct("8901719110018", "Parle-G Gold", "20.00", "0.05")
	h := newTestHandler(t, newCatalogRepo(p1, p2), newLedger(), nil)
	api := h.Routes()

	// Scan two products.
	rec := doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901030865278","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(api, http.MethodPost, "/api/cart/items", "kiosk-1", `{"barcode":"8901719110018"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Pay.
	rec = doRequest(api, http.MethodPost, "/api/checkout", "kiosk-1", `{"customer_name":"Asha"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp checkoutResponse
	parseJSON(t, rec, &resp)

	// The invoice is available immediately.
	rec = doRequest(api, http.MethodGet, "/api/transactions/"+resp.Transaction.ID+"/invoice", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "44.60")

	// Walk to the door and scan the pass.
	rec = doRequest(api, http.MethodPost, "/api/exit/verify", "", `{"pass":"`+resp.QRPayload+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var verify verifyResponse
	parseJSON(t, rec, &verify)
	assert.Equal(t, "APPROVED", verify.Result)
	require.NotNil(t, verify.Transaction)
	assert.Equal(t, resp.Transaction.ID, verify.Transaction.ID)

	// A second scan of the same pass is flagged.
	rec = doRequest(api, http.MethodPost, "/api/exit/verify", "", `{"pass":"`+resp.QRPayload+`"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	parseJSON(t, rec, &verify)
	assert.Equal(t, "ALREADY_USED", verify.Result)
}
