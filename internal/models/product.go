package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is owned by the catalog; orders only reference it.
type Product struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Title       string          `db:"title" json:"title"`
	Slug        string          `db:"slug" json:"slug"`
	Description *string         `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	IsActive    bool            `db:"is_active" json:"isActive"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`

	// Not stored directly in the products table
	Images []string `db:"-" json:"images"`
}

// ProductImage is one row of product_images.
type ProductImage struct {
	ProductID uuid.UUID `db:"product_id"`
	URL       string    `db:"url"`
}

// ProductQuery filters the product listing.
type ProductQuery struct {
	Page
	Search     string
	ActiveOnly bool
}
