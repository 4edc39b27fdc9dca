package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pizza-nz/staff-ordering/internal/models"
)

const (
	orderColumns     = `id, user_id, total_kg, total_price, status, stock_applied, created_at, updated_at`
	orderItemColumns = `id, order_id, product_id, kg, unit_price, subtotal`
)

// OrderRepository handles order data access
type OrderRepository struct {
	db sqlx.ExtContext
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db sqlx.ExtContext) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and its items. It must run inside the caller's
// transaction so the insert commits or rolls back with the stock changes.
func (r *OrderRepository) Create(ctx context.Context, order models.Order) (*models.Order, error) {
	orderQuery := `
		INSERT INTO orders (user_id, total_kg, total_price, status, stock_applied)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + orderColumns

	var createdOrder models.Order
	err := sqlx.GetContext(
		ctx,
		r.db,
		&createdOrder,
		orderQuery,
		order.UserID,
		order.TotalKg,
		order.TotalPrice,
		order.Status,
		order.StockApplied,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	createdOrder.Items = make([]models.OrderItem, 0, len(order.Items))
	for i, item := range order.Items {
		var createdItem models.OrderItem
		err = sqlx.GetContext(
			ctx,
			r.db,
			&createdItem,
			`INSERT INTO order_items (order_id, product_id, kg, unit_price, subtotal, position)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+orderItemColumns,
			createdOrder.ID,
			item.ProductID,
			item.Kg,
			item.UnitPrice,
			item.Subtotal,
			i,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
		createdOrder.Items = append(createdOrder.Items, createdItem)
	}

	return &createdOrder, nil
}

// GetByID retrieves an order by ID with its items
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.getByID(ctx, id, false)
}

// GetByIDForUpdate retrieves an order with its items and locks the order row
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.getByID(ctx, id, true)
}

func (r *OrderRepository) getByID(ctx context.Context, id uuid.UUID, lock bool) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var order models.Order
	if err := sqlx.GetContext(ctx, r.db, &order, query, id); err != nil {
		return nil, fmt.Errorf("failed to get order: %w", notFound(err))
	}

	orders := []models.Order{order}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attachItems loads the items of every order with a single query
func (r *OrderRepository) attachItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	var items []models.OrderItem
	err := sqlx.SelectContext(ctx, r.db, &items, `
		SELECT `+orderItemColumns+`
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position ASC`,
		uuidArray(ids))
	if err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}

	byOrder := make(map[uuid.UUID][]models.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return nil
}

// UpdateStatus updates an order's status and stock flag
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, stockApplied bool) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, r.db, &order, `
		UPDATE orders
		SET status = $1, stock_applied = $2, updated_at = now()
		WHERE id = $3
		RETURNING `+orderColumns,
		status, stockApplied, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", notFound(err))
	}
	return &order, nil
}

// List retrieves a page of orders matching filter, newest first, and the
// total number of matching orders
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.UserID != nil {
		conds = append(conds, "o.user_id = "+arg(*filter.UserID))
	}
	if filter.CreatedSince != nil {
		conds = append(conds, "o.created_at >= "+arg(*filter.CreatedSince))
	}
	if filter.CreatedBefore != nil {
		conds = append(conds, "o.created_at < "+arg(*filter.CreatedBefore))
	}
	if filter.UserSearch != "" {
		p := arg(likePattern(filter.UserSearch))
		conds = append(conds, `EXISTS (
			SELECT 1 FROM users u
			WHERE u.id = o.user_id
			  AND (u.full_name ILIKE `+p+` OR u.employee_number ILIKE `+p+` OR u.national_id ILIKE `+p+`))`)
	}
	if filter.ProductSearch != "" {
		p := arg(likePattern(filter.ProductSearch))
		conds = append(conds, `EXISTS (
			SELECT 1 FROM order_items oi
			JOIN products pr ON pr.id = oi.product_id
			WHERE oi.order_id = o.id
			  AND (pr.title ILIKE `+p+` OR pr.slug ILIKE `+p+`))`)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM orders o`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `SELECT o.id, o.user_id, o.total_kg, o.total_price, o.status, o.stock_applied, o.created_at, o.updated_at
		FROM orders o` + where + `
		ORDER BY o.created_at DESC, o.id
		LIMIT ` + arg(filter.Limit) + ` OFFSET ` + arg(filter.Offset)

	var orders []models.Order
	if err := sqlx.SelectContext(ctx, r.db, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, count, nil
}

// CurrentForUser retrieves the user's most recent pending order
func (r *OrderRepository) CurrentForUser(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, r.db, &order, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		userID, models.OrderStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to get current order: %w", notFound(err))
	}

	orders := []models.Order{order}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}
