package handler

import (
	"context"
	"net/http"

	"github.com/pizza-nz/staff-ordering/internal/api"
	"github.com/pizza-nz/staff-ordering/internal/models"
	"github.com/pizza-nz/staff-ordering/internal/service"
)

type ProductService interface {
	ListProducts(ctx context.Context, principal models.Principal, query models.ProductQuery) (*service.ProductPage, error)
}

// ProductHandler serves the product catalog
type ProductHandler struct {
	productService ProductService
}

func NewProductHandler(productService ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// List handles GET /api/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		api.Error(w, err)
		return
	}
	page, err := queryPage(r)
	if err != nil {
		api.Error(w, err)
		return
	}

	products, err := h.productService.ListProducts(r.Context(), p, models.ProductQuery{
		Page:   page,
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		api.Error(w, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}
