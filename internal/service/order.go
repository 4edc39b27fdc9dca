package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pizza-nz/staff-ordering/internal/apperr"
	"github.com/pizza-nz/staff-ordering/internal/config"
	"github.com/pizza-nz/staff-ordering/internal/db/repository"
	"github.com/pizza-nz/staff-ordering/internal/metrics"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

// Order placement limits.
const (
	MaxOrderItems   = 2
	MaxOrderTotalKg = 10

	DefaultOrderPageSize = 10
)

// OrderService places orders and moves them through their lifecycle.
type OrderService struct {
	store           repository.Store
	logger          *zap.Logger
	stockPolicy     config.StockPolicy
	restockOnCancel bool
	now             func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(store repository.Store, cfg config.Orders, logger *zap.Logger) *OrderService {
	policy := cfg.StockPolicy
	if policy == "" {
		policy = config.StockPolicyReserve
	}
	return &OrderService{
		store:           store,
		logger:          logger.Named("orders"),
		stockPolicy:     policy,
		restockOnCancel: cfg.RestockOnCancel,
		now:             time.Now,
	}
}

// PlaceOrder validates the requested items and creates a pending order for
// the principal. Under the reserve policy the ordered quantities leave stock
// in the same transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, principal models.Principal, req models.OrderRequest) (*models.OrderView, error) {
	if err := validateOrderItems(req.Items); err != nil {
		return nil, reject(s.logger, "place", err)
	}

	var view *models.OrderView
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		account, err := tx.Users().GetByID(ctx, principal.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Forbidden("account not found")
		}
		if err != nil {
			return err
		}
		if !account.IsActive {
			return apperr.Forbidden("your account is disabled for ordering, contact a supervisor")
		}

		ids := make([]uuid.UUID, len(req.Items))
		for i, item := range req.Items {
			ids[i] = item.ProductID
		}
		products, err := tx.Products().LockByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := indexProducts(products)
		if len(byID) != len(ids) {
			return apperr.NotFound("one or more products do not exist")
		}

		order := models.Order{
			UserID:     principal.ID,
			Status:     models.OrderStatusPending,
			TotalPrice: decimal.Zero,
			Items:      make([]models.OrderItem, 0, len(req.Items)),
		}
		for _, item := range req.Items {
			product := byID[item.ProductID]
			if !product.IsActive {
				return apperr.InvalidRequest("product %s is not available", product.Title)
			}
			if product.Stock < item.Kg {
				return apperr.InsufficientStock("insufficient stock for %s: %d kg available", product.Title, product.Stock)
			}

			subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Kg)))
			order.TotalKg += item.Kg
			order.TotalPrice = order.TotalPrice.Add(subtotal)
			order.Items = append(order.Items, models.OrderItem{
				ProductID: item.ProductID,
				Kg:        item.Kg,
				UnitPrice: product.Price,
				Subtotal:  subtotal,
			})
		}
		if order.TotalKg > MaxOrderTotalKg {
			return apperr.InvalidRequest("an order cannot exceed %d kg, requested %d kg", MaxOrderTotalKg, order.TotalKg)
		}

		if s.stockPolicy == config.StockPolicyReserve {
			for _, item := range order.Items {
				err := tx.Products().DecrementStockIfAvailable(ctx, item.ProductID, item.Kg)
				if errors.Is(err, repository.ErrInsufficientStock) {
					return apperr.InsufficientStock("insufficient stock for %s", byID[item.ProductID].Title)
				}
				if err != nil {
					return err
				}
				byID[item.ProductID].Stock -= item.Kg
			}
			order.StockApplied = true
		}

		created, err := tx.Orders().Create(ctx, order)
		if err != nil {
			return err
		}
		view = buildOrderView(created, byID, nil)
		return nil
	})
	if err != nil {
		return nil, reject(s.logger, "place", err)
	}

	metrics.OrdersPlaced.Inc()
	if s.stockPolicy == config.StockPolicyReserve {
		recordStockDelta(-view.TotalKg)
	}
	s.logger.Info("Order placed",
		zap.String("order_id", view.ID.String()),
		zap.String("user_id", principal.ID.String()),
		zap.Int("total_kg", view.TotalKg))
	return view, nil
}

func validateOrderItems(items []models.OrderItemRequest) error {
	if len(items) == 0 {
		return apperr.InvalidRequest("an order needs at least one item")
	}
	if len(items) > MaxOrderItems {
		return apperr.InvalidRequest("an order can contain at most %d products", MaxOrderItems)
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if item.Kg < 1 {
			return apperr.InvalidRequest("quantity must be at least 1 kg")
		}
		if _, dup := seen[item.ProductID]; dup {
			return apperr.InvalidRequest("product %s is listed more than once", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

// TransitionStatus moves an order to next and reports whether the status
// changed. Setting the current status again succeeds without writing
// anything; completed and cancelled orders never change again.
func (s *OrderService) TransitionStatus(ctx context.Context, orderID uuid.UUID, next string) (*models.OrderView, bool, error) {
	status, err := models.ParseOrderStatus(next)
	if err != nil {
		return nil, false, reject(s.logger, "transition", apperr.InvalidRequest("invalid order status %q", next))
	}

	var (
		view  *models.OrderView
		from  models.OrderStatus
		delta int
	)
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetByIDForUpdate(ctx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("order %s not found", orderID)
		}
		if err != nil {
			return err
		}
		from = order.Status

		if order.Status != status {
			if order.Status.IsTerminal() {
				return apperr.InvalidTransition("a %s order cannot be changed to %s", order.Status, status)
			}
			if order, delta, err = s.applyTransition(ctx, tx, order, status); err != nil {
				return err
			}
		}

		view, err = s.loadView(ctx, tx, order, true)
		return err
	})
	if err != nil {
		return nil, false, reject(s.logger, "transition", err)
	}

	if from == status {
		return view, false, nil
	}
	metrics.OrderTransitions.WithLabelValues(string(from), string(status)).Inc()
	recordStockDelta(delta)
	s.logger.Info("Order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(status)))
	return view, true, nil
}

// applyTransition performs the stock movements of a pending order leaving
// the pending state and persists the new status. It returns the change in
// stock, in kilograms, the transition caused.
func (s *OrderService) applyTransition(ctx context.Context, tx repository.Tx, order *models.Order, next models.OrderStatus) (*models.Order, int, error) {
	stockApplied := order.StockApplied
	delta := 0

	switch {
	case next == models.OrderStatusCompleted && !stockApplied:
		products, err := tx.Products().LockByIDs(ctx, order.ProductIDs())
		if err != nil {
			return nil, 0, err
		}
		byID := indexProducts(products)
		for _, item := range order.Items {
			product, ok := byID[item.ProductID]
			if !ok {
				return nil, 0, apperr.InvalidRequest("product %s of this order no longer exists", item.ProductID)
			}
			if product.Stock < item.Kg {
				return nil, 0, apperr.InsufficientStock("insufficient stock for %s: %d kg available, %d kg ordered",
					product.Title, product.Stock, item.Kg)
			}
		}
		for _, item := range order.Items {
			if err := tx.Products().DecrementStock(ctx, item.ProductID, item.Kg); err != nil {
				return nil, 0, err
			}
		}
		stockApplied = true
		delta = -order.TotalKg

	case next == models.OrderStatusCancelled && stockApplied && s.restockOnCancel:
		for _, item := range order.Items {
			if err := tx.Products().IncrementStock(ctx, item.ProductID, item.Kg); err != nil {
				return nil, 0, err
			}
		}
		stockApplied = false
		delta = order.TotalKg
	}

	updated, err := tx.Orders().UpdateStatus(ctx, order.ID, next, stockApplied)
	if err != nil {
		return nil, 0, err
	}
	updated.Items = order.Items
	return updated, delta, nil
}

// ListForUser returns the principal's orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, principal models.Principal, page models.Page) (*models.OrderPage, error) {
	page = page.Normalize(DefaultOrderPageSize)
	filter := models.OrderFilter{Page: page, UserID: &principal.ID}

	result, err := s.listPage(ctx, filter, false)
	if err != nil {
		return nil, classify(s.logger, "list orders", err)
	}
	return result, nil
}

// CurrentForUser returns the principal's most recent pending order.
func (s *OrderService) CurrentForUser(ctx context.Context, principal models.Principal) (*models.OrderView, error) {
	order, err := s.store.Orders().CurrentForUser(ctx, principal.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("you have no pending order")
	}
	if err != nil {
		return nil, classify(s.logger, "current order", err)
	}

	view, err := s.loadView(ctx, s.store, order, false)
	if err != nil {
		return nil, classify(s.logger, "current order", err)
	}
	return view, nil
}

// ListAdmin returns every order matching the query, with the owner of each
// order included.
func (s *OrderService) ListAdmin(ctx context.Context, query models.AdminOrderQuery) (*models.OrderPage, error) {
	if query.Limit < 0 || query.Offset < 0 {
		return nil, apperr.InvalidRequest("limit and offset must not be negative")
	}

	filter := models.OrderFilter{
		Page:          query.Page.Normalize(DefaultOrderPageSize),
		UserSearch:    query.User,
		ProductSearch: query.Product,
	}

	weekStart := startOfWeek(s.now())
	switch query.Scope {
	case "", models.OrderScopeAll:
	case models.OrderScopeWeek:
		filter.CreatedSince = &weekStart
	case models.OrderScopeHistory:
		filter.CreatedBefore = &weekStart
	default:
		return nil, apperr.InvalidRequest("invalid scope %q, expected all, week or history", query.Scope)
	}

	result, err := s.listPage(ctx, filter, true)
	if err != nil {
		return nil, classify(s.logger, "list admin orders", err)
	}
	return result, nil
}

func (s *OrderService) listPage(ctx context.Context, filter models.OrderFilter, withUser bool) (*models.OrderPage, error) {
	orders, count, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	views, err := s.loadViews(ctx, s.store, orders, withUser)
	if err != nil {
		return nil, err
	}
	return &models.OrderPage{
		Count:  count,
		Pages:  filter.Pages(count),
		Orders: views,
	}, nil
}

// startOfWeek returns Monday 00:00 of the week containing t, in t's location.
func startOfWeek(t time.Time) time.Time {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -daysSinceMonday).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *OrderService) loadView(ctx context.Context, stores repository.Tx, order *models.Order, withUser bool) (*models.OrderView, error) {
	views, err := s.loadViews(ctx, stores, []models.Order{*order}, withUser)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// loadViews resolves products and, for admin views, owners of orders with
// one batched query each.
func (s *OrderService) loadViews(ctx context.Context, stores repository.Tx, orders []models.Order, withUser bool) ([]models.OrderView, error) {
	views := make([]models.OrderView, 0, len(orders))
	if len(orders) == 0 {
		return views, nil
	}

	var productIDs, userIDs []uuid.UUID
	seenProduct := make(map[uuid.UUID]bool)
	seenUser := make(map[uuid.UUID]bool)
	for _, order := range orders {
		for _, id := range order.ProductIDs() {
			if !seenProduct[id] {
				seenProduct[id] = true
				productIDs = append(productIDs, id)
			}
		}
		if withUser && !seenUser[order.UserID] {
			seenUser[order.UserID] = true
			userIDs = append(userIDs, order.UserID)
		}
	}

	products, err := stores.Products().GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	byProduct := indexProducts(products)

	var byUser map[uuid.UUID]*models.User
	if withUser {
		users, err := stores.Users().GetByIDs(ctx, userIDs)
		if err != nil {
			return nil, err
		}
		byUser = make(map[uuid.UUID]*models.User, len(users))
		for i := range users {
			byUser[users[i].ID] = &users[i]
		}
	}

	for i := range orders {
		views = append(views, *buildOrderView(&orders[i], byProduct, byUser))
	}
	return views, nil
}

func recordStockDelta(kg int) {
	switch {
	case kg < 0:
		metrics.StockMovedKg.WithLabelValues("decrement").Add(float64(-kg))
	case kg > 0:
		metrics.StockMovedKg.WithLabelValues("increment").Add(float64(kg))
	}
}

func indexProducts(products []models.Product) map[uuid.UUID]*models.Product {
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return byID
}

// buildOrderView normalizes an order for callers. users is nil for views
// shown to the order's owner.
func buildOrderView(order *models.Order, products map[uuid.UUID]*models.Product, users map[uuid.UUID]*models.User) *models.OrderView {
	view := &models.OrderView{
		ID:         order.ID,
		TotalKg:    order.TotalKg,
		TotalPrice: order.TotalPrice,
		Status:     order.Status,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
		Items:      make([]models.OrderItemView, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		var product *models.Product
		if p, ok := products[item.ProductID]; ok {
			snapshot := *p
			product = &snapshot
		}
		view.Items = append(view.Items, models.OrderItemView{
			ID:        item.ID,
			Kg:        item.Kg,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
			Product:   product,
		})
	}
	if users != nil {
		if u, ok := users[order.UserID]; ok {
			view.User = &models.OrderUserView{
				ID:             u.ID,
				FullName:       u.FullName,
				EmployeeNumber: u.EmployeeNumber,
				NationalID:     u.NationalID,
			}
		}
	}
	return view
}
