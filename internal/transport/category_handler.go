package transport

import (
	"fmt"
	"net/http"

	"product-catalog/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CategoryHandler handles HTTP requests for categories
type CategoryHandler struct {
	services ServiceFactory
	logger   *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(services ServiceFactory, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		services: services,
		logger:   logger,
	}
}

// RegisterRoutes registers the category routes. writeLimit, when not nil,
// wraps the mutating routes.
func (h *CategoryHandler) RegisterRoutes(r chi.Router, writeLimit func(http.Handler) http.Handler) {
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Get("/{id}", h.GetCategory)

		r.Group(func(r chi.Router) {
			if writeLimit != nil {
				r.Use(writeLimit)
			}
			r.Post("/", h.CreateCategory)
			r.Put("/{id}", h.UpdateCategory)
			r.Patch("/{id}", h.UpdateCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})
	})
}

func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	categories, err := catalog.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toCategoryDtos(categories))
}

func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	category, err := catalog.GetCategory(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toCategoryDto(category))
}

// CreateCategory responds 201 with the created category and its Location
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	category, err := catalog.CreateCategory(r.Context(), req.Name)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/categories/%d", category.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, toCategoryDto(category))
}

func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req CategoryRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	if _, err := catalog.UpdateCategory(r.Context(), id, req.Name); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	catalog, ok := catalogFor(w, r, h.services, h.logger)
	if !ok {
		return
	}

	if err := catalog.DeleteCategory(r.Context(), id); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
