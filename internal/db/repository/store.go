package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pizza-nz/staff-ordering/internal/models"
)

// Errors returned by every store implementation. Storage specific errors are
// translated into these so callers never inspect driver errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("duplicate record")
	ErrReferenced        = errors.New("record is still referenced")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// UserStore persists accounts.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetByIDForUpdate locks the account row until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, user models.User) (*models.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// LockActiveAdmins locks and returns every active administrator.
	LockActiveAdmins(ctx context.Context) ([]uuid.UUID, error)
}

// ProductStore is the stock ledger. Stock mutations run on the caller's
// transaction.
type ProductStore interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	// LockByIDs locks the product rows in ascending id order.
	LockByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	List(ctx context.Context, query models.ProductQuery) ([]models.Product, int, error)
	// DecrementStockIfAvailable returns ErrInsufficientStock when stock < qty.
	DecrementStockIfAvailable(ctx context.Context, id uuid.UUID, qty int) error
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) error
}

// OrderStore persists orders together with their items.
type OrderStore interface {
	Create(ctx context.Context, order models.Order) (*models.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, stockApplied bool) (*models.Order, error)
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
	CurrentForUser(ctx context.Context, userID uuid.UUID) (*models.Order, error)
}

// Tx exposes the stores bound to one transaction-scoped handle.
type Tx interface {
	Users() UserStore
	Products() ProductStore
	Orders() OrderStore
}

// Store hands out non-transactional stores for reads and runs units of work
// through WithinTx.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
