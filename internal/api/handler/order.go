package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pizza-nz/staff-ordering/internal/api"
	"github.com/pizza-nz/staff-ordering/internal/models"
	"github.com/pizza-nz/staff-ordering/internal/websockets"
)

// OrderService is the order workflow used by OrderHandler.
type OrderService interface {
	PlaceOrder(ctx context.Context, principal models.Principal, req models.OrderRequest) (*models.OrderView, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, next string) (*models.OrderView, bool, error)
	ListForUser(ctx context.Context, principal models.Principal, page models.Page) (*models.OrderPage, error)
	CurrentForUser(ctx context.Context, principal models.Principal) (*models.OrderView, error)
	ListAdmin(ctx context.Context, query models.AdminOrderQuery) (*models.OrderPage, error)
}

// EventPublisher receives order events for live administrator feeds.
type EventPublisher interface {
	Publish(eventType websockets.MessageType, payload any)
}

// OrderHandler handles order-related requests
type OrderHandler struct {
	orderService OrderService
	events       EventPublisher
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService OrderService, events EventPublisher) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		events:       events,
	}
}

// PlaceOrder handles POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	var req models.OrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.Error(w, err)
		return
	}

	order, err := h.orderService.PlaceOrder(r.Context(), p, req)
	if err != nil {
		api.Error(w, err)
		return
	}

	h.events.Publish(websockets.TypeOrderPlaced, order)
	respondJSON(w, http.StatusCreated, order)
}

// ListMine handles GET /api/orders
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		api.Error(w, err)
		return
	}
	page, err := queryPage(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	orders, err := h.orderService.ListForUser(r.Context(), p, page)
	if err != nil {
		api.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// Current handles GET /api/orders/current
func (h *OrderHandler) Current(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	order, err := h.orderService.CurrentForUser(r.Context(), p)
	if err != nil {
		api.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// ListAdmin handles GET /api/orders/admin
func (h *OrderHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	q := r.URL.Query()
	orders, err := h.orderService.ListAdmin(r.Context(), models.AdminOrderQuery{
		Page:    page,
		Scope:   models.OrderScope(q.Get("scope")),
		User:    q.Get("user"),
		Product: q.Get("product"),
	})
	if err != nil {
		api.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// UpdateStatus handles PATCH /api/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	var req models.OrderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		api.Error(w, err)
		return
	}

	order, changed, err := h.orderService.TransitionStatus(r.Context(), id, req.Status)
	if err != nil {
		api.Error(w, err)
		return
	}

	if changed {
		h.events.Publish(websockets.TypeOrderStatus, order)
	}
	respondJSON(w, http.StatusOK, order)
}
