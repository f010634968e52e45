package main

// GET    /catalog[?type=t]                 - list products
// PUT    /catalog                          - create a product
// GET    /catalog/{id}                     - fetch a product
// POST   /catalog/{id}                     - replace a product, cleaning carts
// DELETE /catalog/{id}                     - delete a product, cleaning carts
// GET    /platform                         - product count per platform
// GET    /cart, PUT /cart                  - list / create carts
// GET|POST|DELETE /cart/{id}               - fetch / replace / delete (restoring stock) a cart
// PUT    /cart/{id}/product                - reserve stock into a cart
// DELETE /cart/{id}/product/{product_id}   - release a reservation

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"shop-inventory/config"
	"shop-inventory/events"
	"shop-inventory/handler"
	"shop-inventory/observability"
	"shop-inventory/service"
	"shop-inventory/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetry := observability.Telemetry{Endpoint: cfg.OTelEndpoint, AuthHeader: cfg.OTelAuthHeader}
	otelLogShutdown, logErr := observability.SetupLoggingSDK(ctx, telemetry)
	tp, otelTraceShutdown, traceErr := observability.SetupTracingSDK(ctx, telemetry)
	logger := observability.NewLogger(cfg.LogLevel, telemetry.Enabled() && logErr == nil)
	defer func() { _ = logger.Sync() }()
	if logErr != nil {
		logger.Error("Failed to setup OpenTelemetry logging", zap.Error(logErr))
	}
	if traceErr != nil {
		logger.Error("Failed to setup OpenTelemetry tracing", zap.Error(traceErr))
	}
	logger.Info("service_starting", zap.String("backend", cfg.StoreBackend), zap.String("cascade_policy", cfg.CascadePolicy))

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}

	pub, err := openPublisher(cfg, tp, logger)
	if err != nil {
		logger.Fatal("Failed to create event publisher", zap.Error(err))
	}

	policy, err := service.ParseCascadePolicy(cfg.CascadePolicy)
	if err != nil {
		logger.Fatal("Invalid cascade policy", zap.Error(err))
	}
	svc := service.NewService(st,
		service.WithLogger(logger.Named("inventory")),
		service.WithTracer(tp.Tracer(observability.ServiceName)),
		service.WithPublisher(pub),
		service.WithCallTimeout(cfg.StoreCallTimeout),
		service.WithCascadePolicy(policy),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(svc, logger.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http_server_error", zap.Error(err))
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	logger.Info("shutdown_signal", zap.String("signal", s.String()))

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		logger.Error("http_shutdown_error", zap.Error(err))
	}
	if err := pub.Close(); err != nil {
		logger.Error("Failed to close event publisher", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}
	if err := observability.JoinShutdown(otelTraceShutdown, otelLogShutdown)(ctxSrv); err != nil {
		logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
	}
	logger.Info("service_stopped")
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		st, err := store.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		logger.Info("Database migrations executed successfully")
		return st, nil
	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.StoreCallTimeout*2)
		defer cancel()
		st, err := store.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	logger.Warn("Using the in-memory store, data is lost on exit")
	st, err := store.NewMemoryStore()
	if err != nil {
		return nil, err
	}
	return st, nil
}

func openPublisher(cfg config.Config, tp trace.TracerProvider, logger *zap.Logger) (events.Publisher, error) {
	if cfg.KafkaBroker == "" {
		return events.NopPublisher{}, nil
	}
	pub, err := events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic, tp, logger.Named("events"))
	if err != nil {
		return nil, err
	}
	return pub, nil
}
