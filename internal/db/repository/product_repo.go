package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pizza-nz/staff-ordering/internal/db"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

const productColumns = `id, title, slug, description, price, stock, is_active, created_at, updated_at`

// ProductRepository handles product data access and owns stock mutations
type ProductRepository struct {
	db sqlx.ExtContext
}

// NewProductRepository creates a new product repository
func NewProductRepository(db sqlx.ExtContext) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByIDs retrieves products with their images
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return r.getByIDs(ctx, ids, false)
}

// LockByIDs retrieves products with their images and locks the product rows.
// Rows are locked in id order so two transactions touching the same
// products cannot deadlock on each other.
func (r *ProductRepository) LockByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return r.getByIDs(ctx, ids, true)
}

func (r *ProductRepository) getByIDs(ctx context.Context, ids []uuid.UUID, lock bool) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::uuid[]) ORDER BY id`
	if lock {
		query += ` FOR UPDATE`
	}

	var products []models.Product
	if err := sqlx.SelectContext(ctx, r.db, &products, query, uuidArray(ids)); err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	if err := r.attachImages(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// attachImages loads image URLs for products in position order
func (r *ProductRepository) attachImages(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	var images []models.ProductImage
	err := sqlx.SelectContext(ctx, r.db, &images, `
		SELECT product_id, url
		FROM product_images
		WHERE product_id = ANY($1::uuid[])
		ORDER BY product_id, position, url`,
		uuidArray(ids))
	if err != nil {
		return fmt.Errorf("failed to get product images: %w", err)
	}

	byProduct := make(map[uuid.UUID][]string, len(products))
	for _, img := range images {
		byProduct[img.ProductID] = append(byProduct[img.ProductID], img.URL)
	}
	for i := range products {
		products[i].Images = byProduct[products[i].ID]
		if products[i].Images == nil {
			products[i].Images = []string{}
		}
	}
	return nil
}

// List retrieves a page of products, optionally filtered by title or slug
func (r *ProductRepository) List(ctx context.Context, query models.ProductQuery) ([]models.Product, int, error) {
	where := ` WHERE TRUE`
	var args []any
	if query.ActiveOnly {
		where += ` AND is_active = TRUE`
	}
	if query.Search != "" {
		args = append(args, likePattern(query.Search))
		where += ` AND (title ILIKE $1 OR slug ILIKE $1)`
	}

	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM products`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	n := len(args)
	args = append(args, query.Limit, query.Offset)
	listQuery := `SELECT ` + productColumns + ` FROM products` + where +
		` ORDER BY title ASC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)

	var products []models.Product
	if err := sqlx.SelectContext(ctx, r.db, &products, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	if err := r.attachImages(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, count, nil
}

// DecrementStockIfAvailable atomically checks and decrements stock
func (r *ProductRepository) DecrementStockIfAvailable(ctx context.Context, id uuid.UUID, qty int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = now()
		WHERE id = $2 AND stock >= $1`,
		qty, id)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// DecrementStock decrements stock without re-checking it. The stock >= 0
// constraint still rejects a decrement below zero.
func (r *ProductRepository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.adjustStock(ctx, id, -qty)
}

// IncrementStock returns qty to the product's stock
func (r *ProductRepository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.adjustStock(ctx, id, qty)
}

func (r *ProductRepository) adjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = stock + $1, updated_at = now() WHERE id = $2`,
		delta, id)
	if err != nil {
		if db.IsCheckViolation(err) {
			return fmt.Errorf("failed to adjust stock: %w", ErrInsufficientStock)
		}
		return fmt.Errorf("failed to adjust stock: %w", err)
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
