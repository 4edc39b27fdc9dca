package service

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pizza-nz/staff-ordering/internal/db/repository"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

// memStore is a repository.Store kept in memory. Transactions run one at a
// time on a copy of the state that replaces the committed state only when
// the unit of work succeeds, which mirrors the row locks of the Postgres
// store closely enough for service tests.
type memStore struct {
	mu    sync.Mutex
	state *memState
	clock time.Time

	// failures makes the named operation return the given error.
	failures map[string]error
}

type memState struct {
	users    map[uuid.UUID]models.User
	products map[uuid.UUID]models.Product
	orders   map[uuid.UUID]models.Order
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			users:    map[uuid.UUID]models.User{},
			products: map[uuid.UUID]models.Product{},
			orders:   map[uuid.UUID]models.Order{},
		},
		clock:    time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC),
		failures: map[string]error{},
	}
}

func (st *memState) clone() *memState {
	c := &memState{
		users:    make(map[uuid.UUID]models.User, len(st.users)),
		products: make(map[uuid.UUID]models.Product, len(st.products)),
		orders:   make(map[uuid.UUID]models.Order, len(st.orders)),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	return c
}

func (s *memStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// tick advances the store clock so rows get strictly increasing timestamps.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(&memTx{store: s, state: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *memStore) Users() repository.UserStore       { return memUsers{&memTx{store: s}} }
func (s *memStore) Products() repository.ProductStore { return memProducts{&memTx{store: s}} }
func (s *memStore) Orders() repository.OrderStore     { return memOrders{&memTx{store: s}} }

// Seeding helpers used by tests; they bypass transactions.

func (s *memStore) addUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if len(u.Roles) == 0 {
		u.Roles = models.DefaultRoles()
	}
	u.CreatedAt = s.tick()
	u.UpdatedAt = u.CreatedAt
	s.state.users[u.ID] = u
	return u
}

func (s *memStore) addProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Slug == "" {
		p.Slug = strings.ToLower(strings.ReplaceAll(p.Title, " ", "-"))
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	p.CreatedAt = s.tick()
	p.UpdatedAt = p.CreatedAt
	s.state.products[p.ID] = p
	return p
}

// addOrder stores o as given. Zero timestamps are filled from the clock.
func (s *memStore) addOrder(o models.Order) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.tick()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	for i := range o.Items {
		o.Items[i].ID = uuid.New()
		o.Items[i].OrderID = o.ID
		o.TotalKg += o.Items[i].Kg
		o.TotalPrice = o.TotalPrice.Add(o.Items[i].Subtotal)
	}
	s.state.orders[o.ID] = o
	return o
}

func (s *memStore) product(id uuid.UUID) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.products[id]
}

func (s *memStore) user(id uuid.UUID) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.state.users[id]
	return u, ok
}

func (s *memStore) order(id uuid.UUID) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orders[id]
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

// memTx implements every store interface. A nil state means the call runs
// outside a transaction against the committed state.
type memTx struct {
	store *memStore
	state *memState
}

func (t *memTx) Users() repository.UserStore       { return memUsers{t} }
func (t *memTx) Products() repository.ProductStore { return memProducts{t} }
func (t *memTx) Orders() repository.OrderStore     { return memOrders{t} }

type (
	memUsers    struct{ *memTx }
	memProducts struct{ *memTx }
	memOrders   struct{ *memTx }
)

func (t *memTx) do(op string, fn func(st *memState) error) error {
	if t.state == nil {
		t.store.mu.Lock()
		defer t.store.mu.Unlock()
		if err := t.store.failures[op]; err != nil {
			return err
		}
		return fn(t.store.state)
	}
	if err := t.store.failures[op]; err != nil {
		return err
	}
	return fn(t.state)
}

func sortByID[T any](items []T, id func(T) uuid.UUID) {
	sort.Slice(items, func(i, j int) bool {
		a, b := id(items[i]), id(items[j])
		return bytes.Compare(a[:], b[:]) < 0
	})
}

// UserStore

func (t memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var out *models.User
	err := t.do("users.get", func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (t memUsers) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return t.GetByID(ctx, id)
}

func (t memUsers) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	var out []models.User
	err := t.do("users.get_many", func(st *memState) error {
		for _, id := range ids {
			if u, ok := st.users[id]; ok {
				out = append(out, u)
			}
		}
		return nil
	})
	return out, err
}

func (t memUsers) GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*models.User, error) {
	var out *models.User
	err := t.do("users.get", func(st *memState) error {
		for _, u := range st.users {
			if u.EmployeeNumber == employeeNumber {
				u := u
				out = &u
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (t memUsers) List(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := t.do("users.list", func(st *memState) error {
		for _, u := range st.users {
			out = append(out, u)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
		return nil
	})
	return out, err
}

func (t memUsers) Create(ctx context.Context, user models.User) (*models.User, error) {
	err := t.do("users.create", func(st *memState) error {
		for _, u := range st.users {
			if u.EmployeeNumber == user.EmployeeNumber || u.NationalID == user.NationalID {
				return repository.ErrDuplicate
			}
		}
		user.ID = uuid.New()
		user.CreatedAt = t.store.tick()
		user.UpdatedAt = user.CreatedAt
		st.users[user.ID] = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (t memUsers) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	var out *models.User
	err := t.do("users.set_active", func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		u.IsActive = active
		u.UpdatedAt = t.store.tick()
		st.users[id] = u
		out = &u
		return nil
	})
	return out, err
}

func (t memUsers) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (*models.User, error) {
	var out *models.User
	err := t.do("users.update_password", func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		u.PasswordHash = passwordHash
		u.UpdatedAt = t.store.tick()
		st.users[id] = u
		out = &u
		return nil
	})
	return out, err
}

func (t memUsers) Delete(ctx context.Context, id uuid.UUID) error {
	return t.do("users.delete", func(st *memState) error {
		if _, ok := st.users[id]; !ok {
			return repository.ErrNotFound
		}
		for _, o := range st.orders {
			if o.UserID == id {
				return repository.ErrReferenced
			}
		}
		delete(st.users, id)
		return nil
	})
}

func (t memUsers) LockActiveAdmins(ctx context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := t.do("users.lock_admins", func(st *memState) error {
		for _, u := range st.users {
			if u.IsActive && u.Roles.IsAdmin() {
				out = append(out, u.ID)
			}
		}
		sortByID(out, func(id uuid.UUID) uuid.UUID { return id })
		return nil
	})
	return out, err
}

// ProductStore

func (t memProducts) productsByIDs(op string, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	err := t.do(op, func(st *memState) error {
		seen := map[uuid.UUID]bool{}
		for _, id := range ids {
			if p, ok := st.products[id]; ok && !seen[id] {
				seen[id] = true
				out = append(out, p)
			}
		}
		sortByID(out, func(p models.Product) uuid.UUID { return p.ID })
		return nil
	})
	return out, err
}

func (t memProducts) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return t.productsByIDs("products.lock", ids)
}

func (t memProducts) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return t.productsByIDs("products.get_many", ids)
}

func (t memProducts) List(ctx context.Context, query models.ProductQuery) ([]models.Product, int, error) {
	var matched []models.Product
	err := t.do("products.list", func(st *memState) error {
		for _, p := range st.products {
			if query.ActiveOnly && !p.IsActive {
				continue
			}
			if query.Search != "" && !containsFold(p.Title, query.Search) && !containsFold(p.Slug, query.Search) {
				continue
			}
			matched = append(matched, p)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return paginate(matched, query.Page), len(matched), nil
}

func (t memProducts) DecrementStockIfAvailable(ctx context.Context, id uuid.UUID, qty int) error {
	return t.do("products.decrement_if_available", func(st *memState) error {
		p, ok := st.products[id]
		if !ok || p.Stock < qty {
			return repository.ErrInsufficientStock
		}
		p.Stock -= qty
		st.products[id] = p
		return nil
	})
}

func (t memProducts) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	return t.adjustStock("products.decrement", id, -qty)
}

func (t memProducts) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	return t.adjustStock("products.increment", id, qty)
}

func (t memProducts) adjustStock(op string, id uuid.UUID, delta int) error {
	return t.do(op, func(st *memState) error {
		p, ok := st.products[id]
		if !ok {
			return repository.ErrNotFound
		}
		if p.Stock+delta < 0 {
			return repository.ErrInsufficientStock
		}
		p.Stock += delta
		st.products[id] = p
		return nil
	})
}

// OrderStore

func (t memOrders) getOrder(op string, id uuid.UUID) (*models.Order, error) {
	var out *models.Order
	err := t.do(op, func(st *memState) error {
		o, ok := st.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

func (t memOrders) Create(ctx context.Context, order models.Order) (*models.Order, error) {
	err := t.do("orders.create", func(st *memState) error {
		if _, ok := st.users[order.UserID]; !ok {
			return repository.ErrReferenced
		}
		order.ID = uuid.New()
		order.CreatedAt = t.store.tick()
		order.UpdatedAt = order.CreatedAt
		items := make([]models.OrderItem, len(order.Items))
		for i, item := range order.Items {
			item.ID = uuid.New()
			item.OrderID = order.ID
			items[i] = item
		}
		order.Items = items
		st.orders[order.ID] = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (t memOrders) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return t.getOrder("orders.get", id)
}

func (t memOrders) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return t.getOrder("orders.lock", id)
}

func (t memOrders) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	var matched []models.Order
	err := t.do("orders.list", func(st *memState) error {
		for _, o := range st.orders {
			if filter.UserID != nil && o.UserID != *filter.UserID {
				continue
			}
			if filter.CreatedSince != nil && o.CreatedAt.Before(*filter.CreatedSince) {
				continue
			}
			if filter.CreatedBefore != nil && !o.CreatedAt.Before(*filter.CreatedBefore) {
				continue
			}
			if filter.UserSearch != "" {
				u := st.users[o.UserID]
				if !containsFold(u.FullName, filter.UserSearch) &&
					!containsFold(u.EmployeeNumber, filter.UserSearch) &&
					!containsFold(u.NationalID, filter.UserSearch) {
					continue
				}
			}
			if filter.ProductSearch != "" && !orderHasProduct(st, o, filter.ProductSearch) {
				continue
			}
			matched = append(matched, o)
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return paginate(matched, filter.Page), len(matched), nil
}

func orderHasProduct(st *memState, o models.Order, search string) bool {
	for _, item := range o.Items {
		p := st.products[item.ProductID]
		if containsFold(p.Title, search) || containsFold(p.Slug, search) {
			return true
		}
	}
	return false
}

func (t memOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, stockApplied bool) (*models.Order, error) {
	var out *models.Order
	err := t.do("orders.update_status", func(st *memState) error {
		o, ok := st.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		o.Status = status
		o.StockApplied = stockApplied
		o.UpdatedAt = t.store.tick()
		st.orders[id] = o

		header := o
		header.Items = nil
		out = &header
		return nil
	})
	return out, err
}

func (t memOrders) CurrentForUser(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var out *models.Order
	err := t.do("orders.current", func(st *memState) error {
		for _, o := range st.orders {
			if o.UserID != userID || o.Status != models.OrderStatusPending {
				continue
			}
			if out == nil || o.CreatedAt.After(out.CreatedAt) {
				o := o
				out = &o
			}
		}
		if out == nil {
			return repository.ErrNotFound
		}
		return nil
	})
	return out, err
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func paginate[T any](items []T, page models.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
