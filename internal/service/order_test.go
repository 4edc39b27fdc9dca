package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pizza-nz/staff-ordering/internal/apperr"
	"github.com/pizza-nz/staff-ordering/internal/config"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

type orderFixture struct {
	store   *memStore
	svc     *OrderService
	staff   models.User
	admin   models.User
	beef    models.Product
	chicken models.Product
}

func newOrderFixture(t *testing.T, cfg config.Orders) *orderFixture {
	t.Helper()

	store := newMemStore()
	f := &orderFixture{
		store: store,
		svc:   NewOrderService(store, cfg, zap.NewNop()),
		staff: store.addUser(models.User{
			EmployeeNumber: "E-100",
			NationalID:     "1710000001",
			FullName:       "Ana Torres",
			IsActive:       true,
		}),
		admin: store.addUser(models.User{
			EmployeeNumber: "A-001",
			NationalID:     "1710000009",
			FullName:       "Luis Vera",
			IsActive:       true,
			Roles:          models.RoleSet{models.RoleAdmin},
		}),
		beef: store.addProduct(models.Product{
			Title:    "Beef Brisket",
			Price:    decimal.RequireFromString("12.50"),
			Stock:    20,
			IsActive: true,
			Images:   []string{"https://cdn.example.com/brisket.jpg"},
		}),
		chicken: store.addProduct(models.Product{
			Title:    "Chicken Thigh",
			Price:    decimal.RequireFromString("7.25"),
			Stock:    15,
			IsActive: true,
		}),
	}
	return f
}

func reserveConfig() config.Orders {
	return config.Orders{StockPolicy: config.StockPolicyReserve, RestockOnCancel: true}
}

func item(p models.Product, kg int) models.OrderItemRequest {
	return models.OrderItemRequest{ProductID: p.ID, Kg: kg}
}

func (f *orderFixture) place(t *testing.T, items ...models.OrderItemRequest) *models.OrderView {
	t.Helper()
	view, err := f.svc.PlaceOrder(context.Background(), f.staff.Principal(), models.OrderRequest{Items: items})
	require.NoError(t, err)
	return view
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestPlaceOrder(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())

	view := f.place(t, item(f.beef, 3), item(f.chicken, 2))

	assert.Equal(t, models.OrderStatusPending, view.Status)
	assert.Equal(t, 5, view.TotalKg)
	assertDecimal(t, "52", view.TotalPrice)
	assert.Nil(t, view.User)
	require.Len(t, view.Items, 2)

	assert.Equal(t, 3, view.Items[0].Kg)
	assertDecimal(t, "12.50", view.Items[0].UnitPrice)
	assertDecimal(t, "37.50", view.Items[0].Subtotal)
	require.NotNil(t, view.Items[0].Product)
	assert.Equal(t, f.beef.ID, view.Items[0].Product.ID)
	assert.Equal(t, 17, view.Items[0].Product.Stock)
	assert.Equal(t, []string{"https://cdn.example.com/brisket.jpg"}, view.Items[0].Product.Images)
	assertDecimal(t, "14.50", view.Items[1].Subtotal)

	assert.Equal(t, 17, f.store.product(f.beef.ID).Stock)
	assert.Equal(t, 13, f.store.product(f.chicken.ID).Stock)

	stored := f.store.order(view.ID)
	assert.True(t, stored.StockApplied)
	assert.Equal(t, f.staff.ID, stored.UserID)
}

func TestPlaceOrderRejectsInvalidItems(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	pork := f.store.addProduct(models.Product{Title: "Pork Loin", Price: decimal.NewFromInt(9), Stock: 1, IsActive: true})

	tests := []struct {
		name  string
		items []models.OrderItemRequest
	}{
		{"no items", nil},
		{"three products", []models.OrderItemRequest{item(f.beef, 1), item(f.chicken, 1), item(pork, 5)}},
		{"duplicate product", []models.OrderItemRequest{item(f.beef, 1), item(f.beef, 2)}},
		{"zero kg", []models.OrderItemRequest{item(f.beef, 0)}},
		{"negative kg", []models.OrderItemRequest{item(f.chicken, -2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PlaceOrder(context.Background(), f.staff.Principal(), models.OrderRequest{Items: tt.items})

			assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
			assert.Equal(t, 0, f.store.orderCount())
			assert.Equal(t, 20, f.store.product(f.beef.ID).Stock)
			assert.Equal(t, 1, f.store.product(pork.ID).Stock)
		})
	}
}

func TestPlaceOrderRejectsWeightOverCap(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())

	_, err := f.svc.PlaceOrder(context.Background(), f.staff.Principal(), models.OrderRequest{
		Items: []models.OrderItemRequest{item(f.beef, 6), item(f.chicken, 5)},
	})

	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	assert.NotErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 0, f.store.orderCount())
	assert.Equal(t, 20, f.store.product(f.beef.ID).Stock)
	assert.Equal(t, 15, f.store.product(f.chicken.ID).Stock)
}

func TestPlaceOrderAcceptsExactlyTenKg(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())

	view := f.place(t, item(f.beef, 6), item(f.chicken, 4))

	assert.Equal(t, MaxOrderTotalKg, view.TotalKg)
}

func TestPlaceOrderStockIsCheckedBeforeWeightCap(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	scarce := f.store.addProduct(models.Product{Title: "Lamb Rack", Price: decimal.NewFromInt(20), Stock: 2, IsActive: true})

	_, err := f.svc.PlaceOrder(context.Background(), f.staff.Principal(), models.OrderRequest{
		Items: []models.OrderItemRequest{item(scarce, 8), item(f.beef, 4)},
	})

	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
}

func TestPlaceOrderForbiddenForInactiveAccount(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	disabled := f.store.addUser(models.User{EmployeeNumber: "E-200", NationalID: "1710000002", FullName: "Rosa Mena"})

	_, err := f.svc.PlaceOrder(context.Background(), disabled.Principal(), models.OrderRequest{
		Items: []models.OrderItemRequest{item(f.beef, 1)},
	})

	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, 20, f.store.product(f.beef.ID).Stock)
}

func TestPlaceOrderRereadsAccountState(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	principal := f.staff.Principal()
	_, err := f.store.Users().SetActive(context.Background(), f.staff.ID, false)
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(context.Background(), principal, models.OrderRequest{
		Items: []models.OrderItemRequest{item(f.beef, 1)},
	})

	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())

	_, err := f.svc.PlaceOrder(context.Background(), f.staff.Principal(), models.OrderRequest{
		Items: []models.OrderItemRequest{item(f.beef, 1), {ProductID: uuid.New(), Kg: 1}},
	})

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 20, f.store.product(f.beef.ID).Stock)
}

func TestPlaceOrderInactiveProduct(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	retired := f.store.addProduct(models.Product{Title: "Veal", Price: decimal.NewFromInt(15), Stock: 9})

	_, err := f.svc.PlaceOrder(context.Background(), f.staff.Principal(), models.OrderRequest{
		Items: []models.OrderItemRequest{item(retired, 1)},
	})

	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	assert.Equal(t, 9, f.store.product(retired.ID).Stock)
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())

	_, err := f.svc.PlaceOrder(context.Background(), f.staff.Principal(), models.OrderRequest{
		Items: []models.OrderItemRequest{item(f.chicken, 2), item(f.beef, 21)},
	})

	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 15, f.store.product(f.chicken.ID).Stock)
	assert.Equal(t, 0, f.store.orderCount())
}

func TestPlaceOrderRollsBackOnFailure(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	f.store.failOn("orders.create", errors.New("connection reset by peer"))

	_, err := f.svc.PlaceOrder(context.Background(), f.staff.Principal(), models.OrderRequest{
		Items: []models.OrderItemRequest{item(f.beef, 4), item(f.chicken, 3)},
	})

	assert.ErrorIs(t, err, apperr.ErrUnexpected)
	assert.NotContains(t, apperr.MessageOf(err), "connection reset")
	assert.Equal(t, 20, f.store.product(f.beef.ID).Stock)
	assert.Equal(t, 15, f.store.product(f.chicken.ID).Stock)
	assert.Equal(t, 0, f.store.orderCount())
}

func TestPlaceOrderCanceledByCaller(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.PlaceOrder(ctx, f.staff.Principal(), models.OrderRequest{
		Items: []models.OrderItemRequest{item(f.beef, 4)},
	})

	assert.ErrorIs(t, err, apperr.ErrCanceled)
	assert.NotErrorIs(t, err, apperr.ErrUnexpected)
	assert.Equal(t, 20, f.store.product(f.beef.ID).Stock)
	assert.Equal(t, 0, f.store.orderCount())
}

func TestPlaceOrderConcurrentLastUnits(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	scarce := f.store.addProduct(models.Product{Title: "Pork Belly", Price: decimal.NewFromInt(8), Stock: 5, IsActive: true})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.PlaceOrder(context.Background(), f.staff.Principal(), models.OrderRequest{
				Items: []models.OrderItemRequest{item(scarce, 4)},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.store.product(scarce.ID).Stock)
}

func TestPlaceOrderConservesStock(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	const initial = 25
	bulk := f.store.addProduct(models.Product{Title: "Ground Beef", Price: decimal.NewFromInt(6), Stock: initial, IsActive: true})

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		placed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(kg int) {
			defer wg.Done()
			view, err := f.svc.PlaceOrder(context.Background(), f.staff.Principal(), models.OrderRequest{
				Items: []models.OrderItemRequest{item(bulk, kg)},
			})
			if err != nil {
				assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
				return
			}
			mu.Lock()
			placed += view.TotalKg
			mu.Unlock()
		}(i%3 + 1)
	}
	wg.Wait()

	remaining := f.store.product(bulk.ID).Stock
	assert.GreaterOrEqual(t, remaining, 0)
	assert.Equal(t, initial-placed, remaining)
}

func TestTransitionStatusSelfTransitionIsNoop(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	placed := f.place(t, item(f.beef, 2))

	view, changed, err := f.svc.TransitionStatus(context.Background(), placed.ID, "pending")
	require.NoError(t, err)

	assert.False(t, changed)
	assert.Equal(t, models.OrderStatusPending, view.Status)
	assert.Equal(t, placed.UpdatedAt, view.UpdatedAt)
	assert.Equal(t, placed.UpdatedAt, f.store.order(placed.ID).UpdatedAt)
	assert.Equal(t, 18, f.store.product(f.beef.ID).Stock)

	_, changed, err = f.svc.TransitionStatus(context.Background(), placed.ID, "completed")
	require.NoError(t, err)
	assert.True(t, changed)
	completedAt := f.store.order(placed.ID).UpdatedAt

	view, changed, err = f.svc.TransitionStatus(context.Background(), placed.ID, "completed")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.OrderStatusCompleted, view.Status)
	assert.Equal(t, completedAt, view.UpdatedAt)
}

func TestTransitionStatusTerminalStatesAreAbsorbing(t *testing.T) {
	tests := []struct {
		terminal string
		next     string
	}{
		{"completed", "pending"},
		{"completed", "cancelled"},
		{"cancelled", "pending"},
		{"cancelled", "completed"},
	}

	for _, tt := range tests {
		t.Run(tt.terminal+" to "+tt.next, func(t *testing.T) {
			f := newOrderFixture(t, reserveConfig())
			placed := f.place(t, item(f.beef, 2))
			_, _, err := f.svc.TransitionStatus(context.Background(), placed.ID, tt.terminal)
			require.NoError(t, err)
			before := f.store.order(placed.ID)
			stock := f.store.product(f.beef.ID).Stock

			_, _, err = f.svc.TransitionStatus(context.Background(), placed.ID, tt.next)

			assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
			assert.Equal(t, before.Status, f.store.order(placed.ID).Status)
			assert.Equal(t, before.UpdatedAt, f.store.order(placed.ID).UpdatedAt)
			assert.Equal(t, stock, f.store.product(f.beef.ID).Stock)
		})
	}
}

func TestTransitionStatusCompleteUnderReserveKeepsStock(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	placed := f.place(t, item(f.beef, 5))

	view, _, err := f.svc.TransitionStatus(context.Background(), placed.ID, "completed")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCompleted, view.Status)
	assert.Equal(t, 15, f.store.product(f.beef.ID).Stock)
	require.NotNil(t, view.User)
	assert.Equal(t, f.staff.FullName, view.User.FullName)
	assert.Equal(t, f.staff.EmployeeNumber, view.User.EmployeeNumber)
}

func TestTransitionStatusCancelRestocks(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	placed := f.place(t, item(f.beef, 5), item(f.chicken, 3))

	view, _, err := f.svc.TransitionStatus(context.Background(), placed.ID, "cancelled")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, view.Status)
	assert.Equal(t, 20, f.store.product(f.beef.ID).Stock)
	assert.Equal(t, 15, f.store.product(f.chicken.ID).Stock)
	assert.False(t, f.store.order(placed.ID).StockApplied)
}

func TestTransitionStatusCancelWithoutRestock(t *testing.T) {
	f := newOrderFixture(t, config.Orders{StockPolicy: config.StockPolicyReserve})
	placed := f.place(t, item(f.beef, 5))

	_, _, err := f.svc.TransitionStatus(context.Background(), placed.ID, "cancelled")
	require.NoError(t, err)

	assert.Equal(t, 15, f.store.product(f.beef.ID).Stock)
}

func TestTransitionStatusDeductOnComplete(t *testing.T) {
	f := newOrderFixture(t, config.Orders{StockPolicy: config.StockPolicyDeductOnComplete, RestockOnCancel: true})
	placed := f.place(t, item(f.beef, 4), item(f.chicken, 2))
	assert.Equal(t, 20, f.store.product(f.beef.ID).Stock)
	assert.False(t, f.store.order(placed.ID).StockApplied)

	view, _, err := f.svc.TransitionStatus(context.Background(), placed.ID, "completed")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCompleted, view.Status)
	assert.Equal(t, 16, f.store.product(f.beef.ID).Stock)
	assert.Equal(t, 13, f.store.product(f.chicken.ID).Stock)
	assert.Equal(t, 16, view.Items[0].Product.Stock)
	assert.True(t, f.store.order(placed.ID).StockApplied)
}

func TestTransitionStatusCompletionReverifiesStock(t *testing.T) {
	f := newOrderFixture(t, config.Orders{StockPolicy: config.StockPolicyDeductOnComplete})
	placed := f.place(t, item(f.chicken, 2), item(f.beef, 8))

	// Another order drains the beef before the first one is completed.
	drain := f.place(t, item(f.beef, 10))
	_, _, err := f.svc.TransitionStatus(context.Background(), drain.ID, "completed")
	require.NoError(t, err)
	require.Equal(t, 10, f.store.product(f.beef.ID).Stock)
	require.NoError(t, f.store.Products().DecrementStock(context.Background(), f.beef.ID, 5))

	_, _, err = f.svc.TransitionStatus(context.Background(), placed.ID, "completed")

	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, models.OrderStatusPending, f.store.order(placed.ID).Status)
	assert.Equal(t, 5, f.store.product(f.beef.ID).Stock)
	assert.Equal(t, 15, f.store.product(f.chicken.ID).Stock)
}

func TestTransitionStatusCancelUnderDeductOnCompleteLeavesStock(t *testing.T) {
	f := newOrderFixture(t, config.Orders{StockPolicy: config.StockPolicyDeductOnComplete, RestockOnCancel: true})
	placed := f.place(t, item(f.beef, 4))

	_, _, err := f.svc.TransitionStatus(context.Background(), placed.ID, "cancelled")
	require.NoError(t, err)

	assert.Equal(t, 20, f.store.product(f.beef.ID).Stock)
}

func TestTransitionStatusRollsBackOnFailure(t *testing.T) {
	tests := []struct {
		name         string
		cfg          config.Orders
		next         string
		failAt       string
		beef         int
		chicken      int
		stockApplied bool
	}{
		{
			name:    "completion after deducting stock",
			cfg:     config.Orders{StockPolicy: config.StockPolicyDeductOnComplete, RestockOnCancel: true},
			next:    "completed",
			failAt:  "orders.update_status",
			beef:    20,
			chicken: 15,
		},
		{
			name:         "cancellation after restocking",
			cfg:          reserveConfig(),
			next:         "cancelled",
			failAt:       "orders.update_status",
			beef:         16,
			chicken:      13,
			stockApplied: true,
		},
		{
			name:         "restock failure",
			cfg:          reserveConfig(),
			next:         "cancelled",
			failAt:       "products.increment",
			beef:         16,
			chicken:      13,
			stockApplied: true,
		},
		{
			name:    "deduction failure",
			cfg:     config.Orders{StockPolicy: config.StockPolicyDeductOnComplete},
			next:    "completed",
			failAt:  "products.decrement",
			beef:    20,
			chicken: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(t, tt.cfg)
			placed := f.place(t, item(f.beef, 4), item(f.chicken, 2))
			f.store.failOn(tt.failAt, errors.New("connection reset by peer"))

			_, _, err := f.svc.TransitionStatus(context.Background(), placed.ID, tt.next)

			assert.ErrorIs(t, err, apperr.ErrUnexpected)
			assert.Equal(t, tt.beef, f.store.product(f.beef.ID).Stock)
			assert.Equal(t, tt.chicken, f.store.product(f.chicken.ID).Stock)
			stored := f.store.order(placed.ID)
			assert.Equal(t, models.OrderStatusPending, stored.Status)
			assert.Equal(t, tt.stockApplied, stored.StockApplied)
		})
	}
}

func TestTransitionStatusErrors(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	placed := f.place(t, item(f.beef, 1))

	_, _, err := f.svc.TransitionStatus(context.Background(), placed.ID, "shipped")
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
	assert.NotErrorIs(t, err, apperr.ErrInvalidTransition)

	_, _, err = f.svc.TransitionStatus(context.Background(), uuid.New(), "completed")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCurrentForUser(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())

	_, err := f.svc.CurrentForUser(context.Background(), f.staff.Principal())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	first := f.place(t, item(f.beef, 1))
	second := f.place(t, item(f.chicken, 1))
	_, _, err = f.svc.TransitionStatus(context.Background(), second.ID, "completed")
	require.NoError(t, err)

	current, err := f.svc.CurrentForUser(context.Background(), f.staff.Principal())
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)
	assert.Nil(t, current.User)
}

func TestListForUser(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		ids = append(ids, f.place(t, item(f.beef, 1)).ID)
	}
	_, err := f.svc.PlaceOrder(context.Background(), f.admin.Principal(), models.OrderRequest{
		Items: []models.OrderItemRequest{item(f.chicken, 1)},
	})
	require.NoError(t, err)

	page, err := f.svc.ListForUser(context.Background(), f.staff.Principal(), models.Page{Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, page.Count)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, ids[2], page.Orders[0].ID)
	assert.Equal(t, ids[1], page.Orders[1].ID)

	page, err = f.svc.ListForUser(context.Background(), f.staff.Principal(), models.Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, ids[0], page.Orders[0].ID)
}

func TestListAdmin(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())
	// Thursday; the week starts on Monday 2026-03-02.
	f.svc.now = func() time.Time { return time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC) }

	lastWeek := f.store.addOrder(models.Order{
		UserID:    f.staff.ID,
		Status:    models.OrderStatusCompleted,
		CreatedAt: time.Date(2026, 2, 27, 10, 0, 0, 0, time.UTC),
		Items: []models.OrderItem{
			{ProductID: f.chicken.ID, Kg: 2, UnitPrice: f.chicken.Price, Subtotal: f.chicken.Price.Mul(decimal.NewFromInt(2))},
		},
	})
	thisWeek := f.store.addOrder(models.Order{
		UserID:    f.admin.ID,
		Status:    models.OrderStatusPending,
		CreatedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Items: []models.OrderItem{
			{ProductID: f.beef.ID, Kg: 1, UnitPrice: f.beef.Price, Subtotal: f.beef.Price},
		},
	})

	tests := []struct {
		name  string
		query models.AdminOrderQuery
		want  []uuid.UUID
	}{
		{"all", models.AdminOrderQuery{}, []uuid.UUID{thisWeek.ID, lastWeek.ID}},
		{"week", models.AdminOrderQuery{Scope: models.OrderScopeWeek}, []uuid.UUID{thisWeek.ID}},
		{"history", models.AdminOrderQuery{Scope: models.OrderScopeHistory}, []uuid.UUID{lastWeek.ID}},
		{"user by name", models.AdminOrderQuery{User: "torres"}, []uuid.UUID{lastWeek.ID}},
		{"user by national id", models.AdminOrderQuery{User: "0009"}, []uuid.UUID{thisWeek.ID}},
		{"product", models.AdminOrderQuery{Product: "brisket"}, []uuid.UUID{thisWeek.ID}},
		{"no match", models.AdminOrderQuery{Product: "salmon"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.svc.ListAdmin(context.Background(), tt.query)
			require.NoError(t, err)

			var got []uuid.UUID
			for _, o := range page.Orders {
				got = append(got, o.ID)
				require.NotNil(t, o.User)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), page.Count)
		})
	}
}

func TestListAdminRejectsBadQuery(t *testing.T) {
	f := newOrderFixture(t, reserveConfig())

	_, err := f.svc.ListAdmin(context.Background(), models.AdminOrderQuery{Scope: "month"})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = f.svc.ListAdmin(context.Background(), models.AdminOrderQuery{Page: models.Page{Offset: -1}})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestStartOfWeek(t *testing.T) {
	loc := time.FixedZone("ECT", -5*60*60)
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"monday morning", time.Date(2026, 3, 2, 0, 0, 1, 0, loc), time.Date(2026, 3, 2, 0, 0, 0, 0, loc)},
		{"sunday night", time.Date(2026, 3, 8, 23, 59, 0, 0, loc), time.Date(2026, 3, 2, 0, 0, 0, 0, loc)},
		{"across months", time.Date(2026, 4, 2, 12, 0, 0, 0, loc), time.Date(2026, 3, 30, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(startOfWeek(tt.in)), "got %s", startOfWeek(tt.in))
		})
	}
}
