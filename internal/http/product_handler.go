package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fjod/pawmart/internal/domain"
)

type ProductHandler struct {
	catalog CatalogService
	ratings RatingService
	log     *slog.Logger
}

func NewProductHandler(catalog CatalogService, ratings RatingService, log *slog.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, ratings: ratings, log: log}
}

type ProductRequestDTO struct {
	CategoryID  int64           `json:"category_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Stock       int             `json:"stock"`
}

type RatingRequestDTO struct {
	Value   int    `json:"value"`
	Comment string `json:"comment"`
}

func (d ProductRequestDTO) toProduct(id int64) *domain.Product {
	return &domain.Product{
		ID:          id,
		CategoryID:  d.CategoryID,
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		ImageURL:    d.ImageURL,
		Stock:       d.Stock,
	}
}

// GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// GET /api/v1/categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// POST /api/v1/admin/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	product := req.toProduct(0)
	if err := h.catalog.CreateProduct(r.Context(), product); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

// PUT /api/v1/admin/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}
	var req ProductRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	product := req.toProduct(id)
	if err := h.catalog.UpdateProduct(r.Context(), product); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// GET /api/v1/products/{id}/ratings
func (h *ProductHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}
	ratings, err := h.ratings.ListRatings(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ratings)
}

// PUT /api/v1/products/{id}/rating
func (h *ProductHandler) RateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}
	var req RatingRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	rating, err := h.ratings.RateProduct(r.Context(), id, req.Value, req.Comment)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, rating)
}

// DELETE /api/v1/products/{id}/rating
func (h *ProductHandler) DeleteRating(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.ratings.DeleteRating(r.Context(), id); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func productIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
