// Package handler exposes the self-checkout HTTP API: catalog lookups, cart
// sessions, checkout, exit pass verification, and the staff-key-protected
// admin surface.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/auth"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/cart"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/catalog"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/checkout"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/exitpass"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/invoice"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/qr"
)

// Header names used by the kiosk and admin frontends.
const (
	headerSessionID = "X-Session-ID"
	headerStaffKey  = "X-Staff-Key"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
	// StaffKeyPepper is the HMAC key for hashing staff keys before lookup.
	StaffKeyPepper []byte
	// Meter records the checkout and exit verification counters. Nil disables
	// metrics.
	Meter metric.Meter
}

// Deps are the domain dependencies behind the HTTP surface.
type Deps struct {
	Products  catalog.Repository
	Carts     *cart.Store
	Checkout  *checkout.Service
	Exits     *exitpass.Service
	Importer  *catalog.Importer
	Ledger    checkout.Ledger
	StaffKeys auth.Repository
	Invoices  invoice.Renderer
	Passes    qr.Encoder
}

// Handler implements the HTTP API, delegating business logic to the injected
// domain services and repositories.
type Handler struct {
	products  catalog.Repository
	carts     *cart.Store
	checkout  *checkout.Service
	exits     *exitpass.Service
	importer  *catalog.Importer
	ledger    checkout.Ledger
	staffkeys auth.Repository
	invoices  invoice.Renderer
	passes    qr.Encoder

	imageBaseURL string
	pepper       []byte

	checkouts     metric.Int64Counter
	verifications metric.Int64Counter
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, deps Deps) (*Handler, error) {
	meter := cfg.Meter
	if meter == nil {
		meter = noop.Meter{}
	}
	checkouts, err := meter.Int64Counter("retail360.checkouts",
		metric.WithDescription("Completed checkout transactions."))
	if err != nil {
		return nil, err
	}
	verifications, err := meter.Int64Counter("retail360.exit.verifications",
		metric.WithDescription("Exit pass verification attempts, by result."))
	if err != nil {
		return nil, err
	}

	return &Handler{
		products:      deps.Products,
		carts:         deps.Carts,
		checkout:      deps.Checkout,
		exits:         deps.Exits,
		importer:      deps.Importer,
		ledger:        deps.Ledger,
		staffkeys:     deps.StaffKeys,
		invoices:      deps.Invoices,
		passes:        deps.Passes,
		imageBaseURL:  cfg.ImageBaseURL,
		pepper:        cfg.StaffKeyPepper,
		checkouts:     checkouts,
		verifications: verifications,
	}, nil
}

// Routes builds the chi router for the API. The given middlewares are mounted
// on the router itself so they see the matched route pattern.
func (h *Handler) Routes(mw ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	for _, m := range mw {
		r.Use(m)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{barcode}", h.getProduct)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Put("/items/{barcode}", h.updateCartItem)
			r.Delete("/items/{barcode}", h.removeCartItem)
		})

		r.Post("/checkout", h.checkoutCart)
		r.Get("/transactions/{id}/invoice", h.getInvoice)
		r.Get("/exit-pass/{code}.png", h.getExitPass)
		r.Post("/exit/verify", h.verifyExit)

		r.Route("/admin", func(r chi.Router) {
			r.With(h.requireStaffKey(auth.ScopeCatalogWrite)).
				Post("/catalog/import", h.importCatalog)
			r.With(h.requireStaffKey(auth.ScopeAnalyticsRead)).
				Get("/analytics", h.getAnalytics)
			r.With(h.requireStaffKey(auth.ScopeAnalyticsRead)).
				Get("/transactions", h.exportTransactions)
		})
	})

	return r
}
