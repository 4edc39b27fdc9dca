package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pizza-nz/staff-ordering/internal/api/handler"
	"github.com/pizza-nz/staff-ordering/internal/config"
	"github.com/pizza-nz/staff-ordering/internal/db"
	"github.com/pizza-nz/staff-ordering/internal/db/repository"
	"github.com/pizza-nz/staff-ordering/internal/logging"
	"github.com/pizza-nz/staff-ordering/internal/router"
	"github.com/pizza-nz/staff-ordering/internal/service"
	"github.com/pizza-nz/staff-ordering/internal/websockets"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Initialize database
	database, err := db.NewPostgres(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	// Run database migrations
	if err := database.Migrate(cfg.Database); err != nil {
		return err
	}

	store := repository.NewStore(database)

	authService := service.NewAuthService(store, cfg.JWT, logger)
	accountService := service.NewAccountService(store, logger)
	orderService := service.NewOrderService(store, cfg.Orders, logger)
	productService := service.NewProductService(store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize WebSocket hub
	hub := websockets.NewHub(logger)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	r := router.New(router.Handlers{
		Users:    handler.NewUserHandler(authService, accountService),
		Orders:   handler.NewOrderHandler(orderService, hub),
		Products: handler.NewProductHandler(productService),
		WebSocket: handler.NewWebSocketHandler(hub, authService,
			websockets.NewUpgrader(cfg.Server.AllowedOrigins), logger),
	}, authService, database, logger)

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("address", cfg.Server.Address),
			zap.String("stock_policy", string(cfg.Orders.StockPolicy)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		<-hubDone
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-hubDone

	logger.Info("Server exited properly")
	return nil
}
