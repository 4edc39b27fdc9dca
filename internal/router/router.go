package router

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pizza-nz/staff-ordering/internal/api"
	"github.com/pizza-nz/staff-ordering/internal/api/handler"
	"github.com/pizza-nz/staff-ordering/internal/apperr"
	"github.com/pizza-nz/staff-ordering/internal/metrics"
	"github.com/pizza-nz/staff-ordering/internal/middleware"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handlers groups the request handlers mounted by the router.
type Handlers struct {
	Users     *handler.UserHandler
	Orders    *handler.OrderHandler
	Products  *handler.ProductHandler
	WebSocket http.Handler
}

// Router handles HTTP routing
type Router struct {
	mux      *http.ServeMux
	handlers Handlers
	auth     middleware.Authenticator
	health   HealthChecker
	logger   *zap.Logger
}

// New creates a new router
func New(handlers Handlers, auth middleware.Authenticator, health HealthChecker, logger *zap.Logger) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		handlers: handlers,
		auth:     auth,
		health:   health,
		logger:   logger,
	}

	r.setupRoutes()

	return r
}

// Handler returns the router wrapped in the request logging and recovery
// middleware.
func (r *Router) Handler() http.Handler {
	return middleware.Recover(r.logger)(middleware.Logger(r.logger)(r.mux))
}

// ServeHTTP implements the http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// setupRoutes sets up the routes for the router
func (r *Router) setupRoutes() {
	users, orders, products := r.handlers.Users, r.handlers.Orders, r.handlers.Products

	// Public routes
	r.mux.HandleFunc("POST /api/auth/login", users.Login)
	r.mux.HandleFunc("GET /healthz", r.handleHealth)
	r.mux.Handle("GET /metrics", metrics.Handler())
	r.mux.Handle("GET /ws", r.handlers.WebSocket)

	// Any authenticated account
	r.mux.Handle("GET /api/auth/check-status", r.authenticated(users.CheckStatus))
	r.mux.Handle("GET /api/products", r.authenticated(products.List))
	r.mux.Handle("POST /api/orders", r.authenticated(orders.PlaceOrder))
	r.mux.Handle("GET /api/orders", r.authenticated(orders.ListMine))
	r.mux.Handle("GET /api/orders/current", r.authenticated(orders.Current))

	// Administrators
	r.mux.Handle("POST /api/auth/register", r.admin(users.Register))
	r.mux.Handle("GET /api/auth/users", r.admin(users.ListUsers))
	r.mux.Handle("PATCH /api/auth/users/{id}/status", r.admin(users.UpdateStatus))
	r.mux.Handle("PATCH /api/auth/users/{id}/password", r.admin(users.UpdatePassword))
	r.mux.Handle("DELETE /api/auth/users/{id}", r.admin(users.Remove))
	r.mux.Handle("GET /api/orders/admin", r.admin(orders.ListAdmin))
	r.mux.Handle("PATCH /api/orders/{id}/status", r.admin(orders.UpdateStatus))

	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		api.Error(w, apperr.NotFound("no route for %s %s", req.Method, req.URL.Path))
	})
}

func (r *Router) authenticated(h http.HandlerFunc) http.Handler {
	return middleware.Auth(r.auth)(h)
}

func (r *Router) admin(h http.HandlerFunc) http.Handler {
	return middleware.Auth(r.auth)(middleware.RequireRole(models.RoleAdmin)(h))
}

// handleHealth reports database reachability
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	if err := r.health.HealthCheck(ctx); err != nil {
		r.logger.Warn("Health check failed", zap.Error(err))
		api.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
