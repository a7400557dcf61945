package transport

import (
	"errors"
	"fmt"
	"net/http"

	"product-catalog/internal/middleware"
	"product-catalog/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductHandler handles HTTP requests for products
type ProductHandler struct {
	services ServiceFactory
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(services ServiceFactory, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		services: services,
		logger:   logger,
	}
}

// RegisterRoutes registers the product routes. writeLimit, when not nil,
// wraps the mutating routes.
func (h *ProductHandler) RegisterRoutes(r chi.Router, writeLimit func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{productId}", h.GetProduct)
		r.Get("/searchProductByCategory/{categoryId}", h.ListProductsByCategory)
		r.Get("/searchProductByDescription/{searchTerm}", h.SearchProducts)

		r.Group(func(r chi.Router) {
			if writeLimit != nil {
				r.Use(writeLimit)
			}
			r.Post("/", h.CreateProduct)
			r.Post("/buy", h.BuyProduct)
			r.Put("/{productId}", h.UpdateProduct)
			r.Patch("/{productId}", h.UpdateProduct)
			r.Delete("/{productId}", h.DeleteProduct)
		})
	})
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	products, err := catalog.ListProducts(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductDtos(products))
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productId")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	product, err := catalog.GetProduct(r.Context(), id)
	if errors.Is(err, repository.ErrProductNotFound) {
		middleware.RespondWithError(w, http.StatusNotFound, fmt.Sprintf("Product %d not exists", id))
		return
	}
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductDto(product))
}

// ListProductsByCategory responds 404 when the category has no products
func (h *ProductHandler) ListProductsByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := pathID(r, "categoryId")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	products, err := catalog.ListProductsByCategory(r.Context(), categoryID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	if len(products) == 0 {
		middleware.RespondWithError(w, http.StatusNotFound,
			fmt.Sprintf("The products with category id: %d do not exist", categoryID))
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductDtos(products))
}

// SearchProducts responds 404 when nothing matches
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "searchTerm")

	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	products, err := catalog.SearchProducts(r.Context(), term)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	if len(products) == 0 {
		middleware.RespondWithError(w, http.StatusNotFound,
			fmt.Sprintf("No products match: %s", term))
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductDtos(products))
}

// CreateProduct responds 201 with the stored product and its Location
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	product, err := catalog.CreateProduct(r.Context(), req.toInput())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/products/%d", product.ProductID))
	middleware.RespondWithJSON(w, http.StatusCreated, toProductDto(product))
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productId")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	if _, err := catalog.UpdateProduct(r.Context(), id, req.toInput()); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productId")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	if err := catalog.DeleteProduct(r.Context(), id); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BuyProduct decrements stock by name. Insufficient stock and lost races
// answer 409.
func (h *ProductHandler) BuyProduct(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	if err := catalog.BuyProduct(r.Context(), req.Name, req.Quantity); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
