// Sidecart proxy - headless cart service against the storefront GraphQL API.
// Designed for Cloud Run deployment.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"sidecart-proxy/internal/cart"
	"sidecart-proxy/internal/config"
	"sidecart-proxy/internal/handler"
	"sidecart-proxy/internal/identity"
	"sidecart-proxy/internal/middleware"
	"sidecart-proxy/internal/model"
	"sidecart-proxy/internal/sidecart"
	"sidecart-proxy/internal/storefront"
	"sidecart-proxy/internal/suggest"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("endpoint", cfg.Store.APIEndpoint),
		slog.String("identity_backend", cfg.IdentityBackend),
	)

	// Storefront API client with bounded retry
	client, err := storefront.New(storefront.Config{
		Endpoint:    cfg.Store.APIEndpoint,
		AccessToken: cfg.Store.AccessToken,
		Retry: storefront.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
		},
	})
	if err != nil {
		return fmt.Errorf("creating storefront client: %w", err)
	}

	// Cart identity persistence
	ids, err := createIdentityStore(cfg)
	if err != nil {
		return fmt.Errorf("creating identity store: %w", err)
	}

	repo := cart.NewRepository(client, ids)
	engine := suggest.New(client)

	controller := sidecart.New(repo, engine, snapshotLogger{logger}, cfg.Store.FreeShippingThreshold, logger)

	// Create handler over the controller
	h := handler.New(controller, buildWidgetConfig(cfg), logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → client gate → logging → handler
	// Recovery must be outermost to catch panics from the other middleware.
	// The client gate runs before logging so the widget identity it attaches
	// to the request context shows up in request logs.
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.ClientGate(cfg.Store.MinWidgetVersion, logger),
		middleware.Logging(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// createIdentityStore creates the cart identity backend from configuration.
func createIdentityStore(cfg *config.Config) (identity.Store, error) {
	switch cfg.IdentityBackend {
	case "memory":
		return identity.NewMemoryStore(), nil
	case "file":
		return identity.NewFileStore(cfg.IdentityFile), nil
	case "redis":
		cli := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return identity.NewRedisStore(cli, ""), nil
	default:
		return nil, fmt.Errorf("unsupported identity backend: %s", cfg.IdentityBackend)
	}
}

// buildWidgetConfig converts the store product registry into the bootstrap
// payload served at /widget/config.
func buildWidgetConfig(cfg *config.Config) handler.WidgetConfig {
	products := make([]handler.WidgetProduct, 0, len(cfg.Store.Products))
	for _, p := range cfg.Store.Products {
		wp := handler.WidgetProduct{
			ProductID:   p.ProductID,
			ContainerID: p.ContainerID,
		}
		if p.Promo != nil {
			wp.Promo = &handler.WidgetPromo{
				PromoProductID: p.Promo.PromoProductID,
				ImageURL:       p.Promo.ImageURL,
				Text:           p.Promo.Text,
				Disclaimer:     p.Promo.Disclaimer,
			}
		}
		products = append(products, wp)
	}
	return handler.WidgetConfig{
		FreeShippingThreshold: cfg.Store.FreeShippingThreshold,
		Products:              products,
	}
}

// snapshotLogger publishes cart changes to the debug log. The HTTP surface
// is pull-based, so the listener hook only needs to leave a trace.
type snapshotLogger struct {
	logger *slog.Logger
}

func (l snapshotLogger) OnCartChanged(snap *model.CartSnapshot) {
	l.logger.Debug("cart changed",
		slog.Int("item_count", snap.ItemCount),
		slog.Int64("subtotal", snap.Subtotal),
	)
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
