package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/pizza-nz/staff-ordering/internal/db"
)

// Repositories provides access to all repository instances bound to one
// handle, either the pool or a transaction.
type Repositories struct {
	User    *UserRepository
	Product *ProductRepository
	Order   *OrderRepository
}

// NewRepositories creates a new repositories container over q
func NewRepositories(q sqlx.ExtContext) *Repositories {
	return &Repositories{
		User:    NewUserRepository(q),
		Product: NewProductRepository(q),
		Order:   NewOrderRepository(q),
	}
}

func (r *Repositories) Users() UserStore       { return r.User }
func (r *Repositories) Products() ProductStore { return r.Product }
func (r *Repositories) Orders() OrderStore     { return r.Order }

// PostgresStore is the Store backed by Postgres.
type PostgresStore struct {
	*Repositories
	database *db.Postgres
}

// NewStore creates a store whose units of work run through database.WithTx.
func NewStore(database *db.Postgres) *PostgresStore {
	return &PostgresStore{
		Repositories: NewRepositories(database.DB),
		database:     database,
	}
}

// WithinTx runs fn with repositories bound to a single transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.database.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(NewRepositories(tx))
	})
}
