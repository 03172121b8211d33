package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/cart"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/catalog"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/checkout"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/exitpass"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/handler"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/invoice"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/qr"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/repository"
	"github.com/zenthicai/retail360-Self-checkout-system/pkg/health"
	"github.com/zenthicai/retail360-Self-checkout-system/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(100*time.Millisecond))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	catalogRepo := repository.NewCatalogRepository(pool)
	ledgerRepo := repository.NewLedgerRepository(pool)
	staffKeyRepo := repository.NewStaffKeyRepository(pool)

	// Domain services.
	carts := cart.NewStore(cfg.Cart.TTL)
	carts.StartCleanup(ctx)
	checkoutSvc := checkout.NewService(catalogRepo, ledgerRepo)
	exitSvc := exitpass.NewService(ledgerRepo)
	importer := catalog.NewImporter(catalogRepo)

	var invoices invoice.Renderer = invoice.NewTextRenderer()
	if cfg.Invoice.Disabled {
		invoices = invoice.Noop{}
	}
	var passes qr.Encoder = qr.NewGenerator(cfg.ExitPass.QRSize)
	if cfg.ExitPass.QRDisabled {
		passes = qr.Noop{}
	}

	// HTTP handlers.
	h, err := handler.New(
		handler.Config{
			ImageBaseURL:   cfg.ImageBaseURL,
			StaffKeyPepper: []byte(cfg.StaffKeyPepper),
			Meter:          m.MeterProvider().Meter("retail360"),
		},
		handler.Deps{
			Products:  catalogRepo,
			Carts:     carts,
			Checkout:  checkoutSvc,
			Exits:     exitSvc,
			Importer:  importer,
			Ledger:    ledgerRepo,
			StaffKeys: staffKeyRepo,
			Invoices:  invoices,
			Passes:    passes,
		},
	)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	// Route-aware middleware goes on the chi router so it can read the
	// matched pattern; everything else wraps the outer mux.
	api := h.Routes(
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("retail360-api", m),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
