package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bes-checkout/internal/domain/checkout"
	"github.com/xenking/bes-checkout/internal/domain/discount"
	"github.com/xenking/bes-checkout/internal/domain/order"
	"github.com/xenking/bes-checkout/internal/domain/payment"
	"github.com/xenking/bes-checkout/internal/domain/reconcile"
	"github.com/xenking/bes-checkout/internal/handler"
	"github.com/xenking/bes-checkout/internal/storefront"
	"github.com/xenking/bes-checkout/pkg/health"
	"github.com/xenking/bes-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storefront", cfg.Storefront.BaseURL),
	)

	// Storefront client shared by all sessions; tokens are bound per session.
	client, err := storefront.New(cfg.Storefront.BaseURL, storefront.Options{
		Timeout:        cfg.Storefront.Timeout,
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create storefront client")
	}

	builder := payment.NewBuilder(payment.BuilderOptions{
		PublicKey:      cfg.Payment.PublicKey,
		TxRefPrefix:    cfg.Payment.TxRefPrefix,
		PaymentOptions: cfg.Payment.Options,
		Title:          cfg.Payment.Title,
		Logo:           cfg.Payment.Logo,
	})
	bank := cfg.BankTransfer.details()
	store := handler.NewStore(cfg.Session.TTL)

	newController := func(orderID string, s checkout.Session, w payment.Widget) (*checkout.Controller, error) {
		shopper := client.WithToken(s.Token)
		rec, err := reconcile.NewReconciler(shopper,
			reconcile.WithMeterProvider(m.MeterProvider()),
			reconcile.WithTracerProvider(m.TracerProvider()),
		)
		if err != nil {
			return nil, errors.Wrap(err, "create reconciler")
		}
		return checkout.New(checkout.Config{
			OrderID:        orderID,
			Session:        s,
			Loader:         order.NewLoader(shopper),
			Redeemer:       shopper,
			Builder:        builder,
			Widget:         w,
			Reconciler:     rec,
			Scheduler:      discount.TimerScheduler{},
			ReloadDelay:    cfg.Discount.ReloadDelay,
			LoginPath:      cfg.LoginPath,
			BankTransfer:   &bank,
			Logger:         lg,
			TracerProvider: m.TracerProvider(),
		}), nil
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "storefront", 5*time.Second, health.PingCheck(client))
	healthSvc.Add(health.Readiness, "sessions", time.Second, health.SizeCheck(cfg.Session.MaxSessions, store.Len))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Routing: health endpoints + checkout API on one server.
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests())
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Route("/api", handler.New(store, newController).Routes)

	// Payment completion waits on storefront verification.
	writeTimeout := cfg.Storefront.Timeout + 10*time.Second
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Rate:  cfg.RateLimit.Rate,
				Burst: cfg.RateLimit.Burst,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("checkout-api", m.MeterProvider(), m.TracerProvider()),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		return store.Run(zctx.Base(gctx, lg), cfg.Session.SweepInterval)
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
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
		return nil
	})
	return g.Wait()
}
