package transport

import (
	"errors"
	"net/http"
	"strconv"

	"product-catalog/internal/database"
	"product-catalog/internal/middleware"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ServiceFactory builds the catalog service for one request
type ServiceFactory func(r *http.Request) (service.CatalogService, error)

// catalogFor resolves the request's service, answering 500 itself when it
// cannot be built.
func catalogFor(w http.ResponseWriter, r *http.Request, services ServiceFactory, logger *zap.Logger) (service.CatalogService, bool) {
	catalog, err := services(r)
	if err != nil {
		respondWithServiceError(w, r, logger, err)
		return nil, false
	}
	return catalog, true
}

var errInvalidID = errors.New("invalid id")

func pathID(r *http.Request, param string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil {
		return 0, errInvalidID
	}
	return id, nil
}

// decodeRequest decodes and validates the body into v, writing the 400
// response itself when that fails.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any, logger *zap.Logger) bool {
	err := middleware.DecodeAndValidate(r, v)
	if err == nil {
		return true
	}

	logger.Debug("Request validation failed", zap.Error(err))
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return false
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
	return false
}

// respondWithServiceError maps catalog errors to HTTP statuses
func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, repository.ErrCategoryNotFound),
		errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, repository.ErrInvalidPurchase),
		errors.Is(err, service.ErrCategoryExists),
		errors.Is(err, service.ErrProductExists),
		errors.Is(err, service.ErrCategoryMissing):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCategoryInUse),
		errors.Is(err, repository.ErrInsufficientStock):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrOptimisticLock):
		middleware.RespondWithError(w, http.StatusConflict, "the product was modified concurrently, please retry")
	case errors.Is(err, service.ErrSaveFailed):
		middleware.RespondWithError(w, http.StatusInternalServerError, "something went wrong while saving")
	default:
		logger.Error("Request failed",
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
