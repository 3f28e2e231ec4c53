package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bakehouse/cart-service/internal/api/handlers"
	"github.com/bakehouse/cart-service/internal/api/middleware"
	"github.com/bakehouse/cart-service/internal/cache"
	"github.com/bakehouse/cart-service/internal/config"
	"github.com/bakehouse/cart-service/internal/events"
	"github.com/bakehouse/cart-service/internal/health"
	"github.com/bakehouse/cart-service/internal/metrics"
	repository "github.com/bakehouse/cart-service/internal/repositories"
	service "github.com/bakehouse/cart-service/internal/services"
	"github.com/bakehouse/cart-service/internal/tracing"
	"github.com/bakehouse/cart-service/pkg/orderclient"
	"github.com/bakehouse/cart-service/pkg/productclient"
	"github.com/bakehouse/cart-service/pkg/sendgrid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load config
	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing setup
	shutdownTracing, err := tracing.Init(ctx, &cfg.Tracing)
	if err != nil {
		slog.Error("Failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Database setup
	repos, cartRepo, err := repository.New(cfg)
	if err != nil {
		slog.Error("Error accessing the database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("Error closing database connection", slog.String("error", err.Error()))
		}
	}()

	// Redis setup
	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		slog.Error("Error accessing the redis instance", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cartCache := cache.NewRedisCache(redisClient, &cfg.Cache)
	defer func() {
		if err := cartCache.Close(); err != nil {
			slog.Error("Error closing redis connection", slog.String("error", err.Error()))
		}
	}()

	// Event producer; a no-op stands in when Kafka is disabled.
	producer := events.NewProducer(&cfg.Kafka)
	defer func() {
		if err := producer.Close(); err != nil {
			slog.Error("Error closing event producer", slog.String("error", err.Error()))
		}
	}()

	// Downstream gateways
	productClient := productclient.NewClient(cfg.Gateways.ProductServiceURL, cfg.Gateways.Timeout)
	orderClient := orderclient.NewClient(cfg.Gateways.OrderServiceURL, cfg.Gateways.Timeout)
	emailService := sendgrid.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)

	// Services and handlers
	cartService := service.NewCartService(cartRepo, cartCache, productClient, orderClient, producer, cfg)
	cartHandler := handlers.NewCartHandler(cartService)
	maintenanceService := service.NewMaintenanceService(cartRepo, producer, emailService, cfg)
	authMiddleware := middleware.NewAuthMiddleware([]byte(cfg.Security.JWTKey))

	healthHandler, err := health.NewHealthHandler(cfg)
	if err != nil {
		slog.Error("Failed to create health handler", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("Service initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	// Setup router. Cart routes accept both authenticated users and guests;
	// ownership is enforced per cart inside the handlers.
	routerMux := http.NewServeMux()
	routerMux.HandleFunc("POST /api/v1/carts", authMiddleware.OptionalAuthenticate(cartHandler.CreateCart()))
	routerMux.HandleFunc("GET /api/v1/carts/{id}", authMiddleware.OptionalAuthenticate(cartHandler.GetCart()))
	routerMux.HandleFunc("PATCH /api/v1/carts/{id}", authMiddleware.OptionalAuthenticate(cartHandler.UpdateCart()))
	routerMux.HandleFunc("DELETE /api/v1/carts/{id}", authMiddleware.OptionalAuthenticate(cartHandler.DeleteCart()))
	routerMux.HandleFunc("GET /api/v1/carts/user/{userId}", authMiddleware.Authenticate(cartHandler.GetUserCart()))
	routerMux.HandleFunc("GET /api/v1/carts/user/{userId}/all", authMiddleware.Authenticate(cartHandler.ListUserCarts()))
	routerMux.HandleFunc("GET /api/v1/carts/session/{sessionId}", cartHandler.GetSessionCart())
	routerMux.HandleFunc("POST /api/v1/carts/merge", authMiddleware.OptionalAuthenticate(cartHandler.MergeCarts()))

	routerMux.HandleFunc("POST /api/v1/carts/{id}/items", authMiddleware.OptionalAuthenticate(cartHandler.AddItem()))
	routerMux.HandleFunc("GET /api/v1/carts/{id}/items", authMiddleware.OptionalAuthenticate(cartHandler.ListItems()))
	routerMux.HandleFunc("GET /api/v1/carts/{id}/items/saved", authMiddleware.OptionalAuthenticate(cartHandler.ListSavedItems()))
	routerMux.HandleFunc("PUT /api/v1/carts/{id}/items/{itemId}", authMiddleware.OptionalAuthenticate(cartHandler.UpdateItem()))
	routerMux.HandleFunc("DELETE /api/v1/carts/{id}/items/{itemId}", authMiddleware.OptionalAuthenticate(cartHandler.RemoveItem()))
	routerMux.HandleFunc("DELETE /api/v1/carts/{id}/items", authMiddleware.OptionalAuthenticate(cartHandler.ClearCart()))

	routerMux.HandleFunc("POST /api/v1/carts/{id}/save", authMiddleware.OptionalAuthenticate(cartHandler.SaveCart()))
	routerMux.HandleFunc("POST /api/v1/carts/{id}/reactivate", authMiddleware.OptionalAuthenticate(cartHandler.ReactivateCart()))
	routerMux.HandleFunc("POST /api/v1/carts/{id}/validate", authMiddleware.OptionalAuthenticate(cartHandler.ValidateCart()))
	routerMux.HandleFunc("POST /api/v1/carts/{id}/attach-user", authMiddleware.Authenticate(cartHandler.AttachUser()))
	routerMux.HandleFunc("POST /api/v1/carts/{id}/checkout", authMiddleware.OptionalAuthenticate(cartHandler.Checkout()))

	routerMux.HandleFunc("GET /api/v1/items/{itemId}", authMiddleware.OptionalAuthenticate(cartHandler.GetItem()))
	routerMux.HandleFunc("POST /api/v1/items/{itemId}/save-for-later", authMiddleware.OptionalAuthenticate(cartHandler.SaveItemForLater()))
	routerMux.HandleFunc("POST /api/v1/items/{itemId}/move-to-cart", authMiddleware.OptionalAuthenticate(cartHandler.MoveItemToCart()))

	routerMux.Handle("GET /health", healthHandler.Handler())
	routerMux.Handle("GET /metrics", metrics.Handler())

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = metrics.Middleware(handler)
	handler = middleware.Logging(handler)

	if cfg.Tracing.Enabled {
		handler = otelhttp.NewHandler(handler, "cart-service")
	}

	// Background maintenance sweeper
	go maintenanceService.Start(ctx)

	// Setup http server
	server := http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	slog.Info("Server is starting...", slog.String("address", cfg.Addr))

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("Failed to start server", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()

	slog.Warn("Shutdown signal received. Preparing to stop the server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("Server shut down gracefully. All connections closed.")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("Trace exporter shutdown encountered an issue", slog.String("error", err.Error()))
	}
}
