package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// IsTerminal reports whether the status has no outgoing transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Order is a placed order. TotalKg and TotalPrice are fixed at creation.
type Order struct {
	ID           uuid.UUID       `db:"id"`
	UserID       uuid.UUID       `db:"user_id"`
	TotalKg      int             `db:"total_kg"`
	TotalPrice   decimal.Decimal `db:"total_price"`
	Status       OrderStatus     `db:"status"`
	StockApplied bool            `db:"stock_applied"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`

	// Not stored directly in the orders table
	Items []OrderItem `db:"-"`
}

// OrderItem is one line of an order. UnitPrice is the product price at the
// time the order was placed.
type OrderItem struct {
	ID        uuid.UUID       `db:"id"`
	OrderID   uuid.UUID       `db:"order_id"`
	ProductID uuid.UUID       `db:"product_id"`
	Kg        int             `db:"kg"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal"`
}

// ProductIDs returns the product ids of the order's items in item order.
func (o *Order) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(o.Items))
	for i, item := range o.Items {
		ids[i] = item.ProductID
	}
	return ids
}

// OrderRequest is used for order placement
type OrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

// OrderItemRequest is one requested line
type OrderItemRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Kg        int       `json:"kg"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

// OrderView is the normalized order returned to callers.
type OrderView struct {
	ID         uuid.UUID       `json:"id"`
	TotalKg    int             `json:"totalKg"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     OrderStatus     `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	Items      []OrderItemView `json:"items"`
	User       *OrderUserView  `json:"user,omitempty"`
}

type OrderItemView struct {
	ID        uuid.UUID       `json:"id"`
	Kg        int             `json:"kg"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Product   *Product        `json:"product"`
}

// OrderUserView is the owner summary shown in admin views.
type OrderUserView struct {
	ID             uuid.UUID `json:"id"`
	FullName       string    `json:"fullName"`
	EmployeeNumber string    `json:"employeeNumber"`
	NationalID     string    `json:"nationalId"`
}

// Page holds limit/offset pagination parameters.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to limit >= 1 and offset >= 0, using
// defaultLimit when no limit was given.
func (p Page) Normalize(defaultLimit int) Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Pages returns the number of pages needed for count rows.
func (p Page) Pages(count int) int {
	if p.Limit <= 0 {
		return 0
	}
	return (count + p.Limit - 1) / p.Limit
}

// OrderScope selects orders relative to the start of the current week.
type OrderScope string

const (
	OrderScopeAll     OrderScope = "all"
	OrderScopeWeek    OrderScope = "week"
	OrderScopeHistory OrderScope = "history"
)

// AdminOrderQuery is the admin listing request.
type AdminOrderQuery struct {
	Page
	Scope   OrderScope
	User    string
	Product string
}

// OrderFilter is the resolved filter handed to the repository.
type OrderFilter struct {
	Page
	UserID        *uuid.UUID
	CreatedSince  *time.Time
	CreatedBefore *time.Time
	UserSearch    string
	ProductSearch string
}

// OrderPage is a page of order views.
type OrderPage struct {
	Count  int         `json:"count"`
	Pages  int         `json:"pages"`
	Orders []OrderView `json:"orders"`
}
