package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pizza-nz/staff-ordering/internal/db"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

const userColumns = `id, employee_number, national_id, password_hash, full_name, is_active, roles, created_at, updated_at`

// UserRepository handles user data access
type UserRepository struct {
	db sqlx.ExtContext
}

// NewUserRepository creates a new user repository
func NewUserRepository(db sqlx.ExtContext) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, args...); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByIDForUpdate retrieves a user by ID and locks the row
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return user, nil
}

// GetByIDs retrieves the users with the given ids, in no particular order
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var users []models.User
	err := sqlx.SelectContext(ctx, r.db, &users,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, uuidArray(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

// GetByEmployeeNumber retrieves a user by employee number
func (r *UserRepository) GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*models.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE employee_number = $1`, employeeNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by employee number: %w", err)
	}
	return user, nil
}

// List retrieves all users
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := sqlx.SelectContext(ctx, r.db, &users, `SELECT `+userColumns+` FROM users ORDER BY full_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user models.User) (*models.User, error) {
	query := `
		INSERT INTO users (employee_number, national_id, password_hash, full_name, is_active, roles)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	var createdUser models.User
	err := sqlx.GetContext(
		ctx,
		r.db,
		&createdUser,
		query,
		user.EmployeeNumber,
		user.NationalID,
		user.PasswordHash,
		user.FullName,
		user.IsActive,
		user.Roles,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("failed to create user: %w: %v", ErrDuplicate, err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &createdUser, nil
}

// SetActive updates the active flag of a user
func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	user, err := r.getOne(ctx, `
		UPDATE users
		SET is_active = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+userColumns,
		active, time.Now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update user status: %w", err)
	}
	return user, nil
}

// UpdatePassword updates a user's password
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (*models.User, error) {
	user, err := r.getOne(ctx, `
		UPDATE users
		SET password_hash = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+userColumns,
		passwordHash, time.Now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update user password: %w", err)
	}
	return user, nil
}

// Delete deletes a user
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("failed to delete user: %w: %v", ErrReferenced, err)
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// LockActiveAdmins locks every active admin row and returns the ids.
// Concurrent guard checks block here until the holder commits, after which
// rows deactivated by the holder no longer match.
func (r *UserRepository) LockActiveAdmins(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := sqlx.SelectContext(ctx, r.db, &ids, `
		SELECT id FROM users
		WHERE 'admin' = ANY(roles) AND is_active = TRUE
		ORDER BY id
		FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("failed to lock active admins: %w", err)
	}
	return ids, nil
}
