package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/pizza-nz/staff-ordering/internal/apperr"
	"github.com/pizza-nz/staff-ordering/internal/db/repository"
	"github.com/pizza-nz/staff-ordering/internal/models"
)

const DefaultProductPageSize = 20

// ProductPage is a page of the product catalog.
type ProductPage struct {
	Count    int              `json:"count"`
	Pages    int              `json:"pages"`
	Products []models.Product `json:"products"`
}

// ProductService exposes the catalog to staff placing orders.
type ProductService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(store repository.Store, logger *zap.Logger) *ProductService {
	return &ProductService{
		store:  store,
		logger: logger.Named("products"),
	}
}

// ListProducts returns a page of products matching query. Staff without an
// administrator role only ever see active products.
func (s *ProductService) ListProducts(ctx context.Context, principal models.Principal, query models.ProductQuery) (*ProductPage, error) {
	if query.Limit < 0 || query.Offset < 0 {
		return nil, apperr.InvalidRequest("limit and offset must not be negative")
	}
	query.Page = query.Page.Normalize(DefaultProductPageSize)
	if !principal.Roles.IsAdmin() {
		query.ActiveOnly = true
	}

	products, count, err := s.store.Products().List(ctx, query)
	if err != nil {
		return nil, classify(s.logger, "list products", err)
	}
	return &ProductPage{
		Count:    count,
		Pages:    query.Pages(count),
		Products: products,
	}, nil
}
