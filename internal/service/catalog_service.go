package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"product-catalog/internal/domain"
	"product-catalog/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrCategoryExists  = errors.New("category already exists")
	ErrCategoryMissing = errors.New("category does not exist")
	ErrCategoryInUse   = errors.New("category still has products")
	ErrProductExists   = errors.New("product already exists")
	ErrSaveFailed      = errors.New("something went wrong while saving")
)

// ProductInput carries the client-editable fields of a product
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	SKU         string
	Stock       int
	CategoryID  int
}

// CatalogService orchestrates the stores for one request. It performs the
// existence checks the stores leave to their caller: name uniqueness and
// category validity.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	GetCategory(ctx context.Context, id int) (*domain.Category, error)
	CreateCategory(ctx context.Context, name string) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id int, name string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id int) error

	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int) (*domain.Product, error)
	ListProductsByCategory(ctx context.Context, categoryID int) ([]*domain.Product, error)
	SearchProducts(ctx context.Context, term string) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int, input ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int) error
	BuyProduct(ctx context.Context, name string, quantity int) error
}

type catalogService struct {
	categories repository.CategoryStore
	products   repository.ProductStore
	logger     *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	categories repository.CategoryStore,
	products repository.ProductStore,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		categories: categories,
		products:   products,
		logger:     logger,
	}
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.ListCategories(ctx)
}

func (s *catalogService) GetCategory(ctx context.Context, id int) (*domain.Category, error) {
	return s.categories.GetCategory(ctx, id)
}

// CreateCategory rejects names already taken after normalization
func (s *catalogService) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}

	exists, err := s.categories.CategoryExistsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing category: %w", err)
	}
	if exists {
		return nil, ErrCategoryExists
	}

	category := &domain.Category{Name: name}
	if !s.categories.CreateCategory(ctx, category) {
		return nil, ErrSaveFailed
	}

	s.logger.Info("Category created",
		zap.Int("category_id", category.ID),
		zap.String("name", category.Name),
	)
	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, id int, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}

	category, err := s.categories.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	if domain.NormalizeName(name) != domain.NormalizeName(category.Name) {
		exists, err := s.categories.CategoryExistsByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing category: %w", err)
		}
		if exists {
			return nil, ErrCategoryExists
		}
	}

	category.Name = name
	if !s.categories.UpdateCategory(ctx, category) {
		return nil, ErrSaveFailed
	}
	return category, nil
}

// DeleteCategory refuses to remove a category that products still reference
func (s *catalogService) DeleteCategory(ctx context.Context, id int) error {
	category, err := s.categories.GetCategory(ctx, id)
	if err != nil {
		return err
	}

	products, err := s.products.ListProductsByCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check category usage: %w", err)
	}
	if len(products) > 0 {
		return ErrCategoryInUse
	}

	if !s.categories.DeleteCategory(ctx, category) {
		return ErrSaveFailed
	}

	s.logger.Info("Category deleted", zap.Int("category_id", id))
	return nil
}

func (s *catalogService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.products.ListProducts(ctx)
}

func (s *catalogService) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	return s.products.GetProduct(ctx, id)
}

func (s *catalogService) ListProductsByCategory(ctx context.Context, categoryID int) ([]*domain.Product, error) {
	return s.products.ListProductsByCategory(ctx, categoryID)
}

func (s *catalogService) SearchProducts(ctx context.Context, term string) ([]*domain.Product, error) {
	return s.products.SearchProducts(ctx, term)
}

// CreateProduct returns the stored product with its category attached
func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	exists, err := s.products.ProductExistsByName(ctx, input.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing product: %w", err)
	}
	if exists {
		return nil, ErrProductExists
	}

	if err := s.requireCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	product := &domain.Product{}
	input.applyTo(product)
	if !s.products.CreateProduct(ctx, product) {
		return nil, ErrSaveFailed
	}

	s.logger.Info("Product created",
		zap.Int("product_id", product.ProductID),
		zap.String("name", product.Name),
		zap.Int("category_id", product.CategoryID),
	)
	return s.products.GetProduct(ctx, product.ProductID)
}

func (s *catalogService) UpdateProduct(ctx context.Context, id int, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if domain.NormalizeName(input.Name) != domain.NormalizeName(product.Name) {
		exists, err := s.products.ProductExistsByName(ctx, input.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing product: %w", err)
		}
		if exists {
			return nil, ErrProductExists
		}
	}

	if input.CategoryID != product.CategoryID {
		if err := s.requireCategory(ctx, input.CategoryID); err != nil {
			return nil, err
		}
	}

	input.applyTo(product)
	if !s.products.UpdateProduct(ctx, product) {
		return nil, ErrSaveFailed
	}
	return s.products.GetProduct(ctx, id)
}

func (s *catalogService) DeleteProduct(ctx context.Context, id int) error {
	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	if !s.products.DeleteProduct(ctx, product) {
		return ErrSaveFailed
	}

	s.logger.Info("Product deleted", zap.Int("product_id", id))
	return nil
}

func (s *catalogService) BuyProduct(ctx context.Context, name string, quantity int) error {
	if err := s.products.Buy(ctx, name, quantity); err != nil {
		return err
	}

	s.logger.Info("Product purchased",
		zap.String("product", name),
		zap.Int("quantity", quantity),
	)
	return nil
}

func (s *catalogService) requireCategory(ctx context.Context, categoryID int) error {
	exists, err := s.categories.CategoryExistsByID(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if !exists {
		return ErrCategoryMissing
	}
	return nil
}

func validateProductInput(input ProductInput) error {
	switch {
	case strings.TrimSpace(input.Name) == "":
		return fmt.Errorf("%w: product name is required", ErrInvalidInput)
	case input.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	case input.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}
	return nil
}

func (in ProductInput) applyTo(product *domain.Product) {
	product.Name = strings.TrimSpace(in.Name)
	product.Description = in.Description
	product.Price = in.Price
	product.ImageURL = in.ImageURL
	product.SKU = in.SKU
	product.Stock = in.Stock
	product.CategoryID = in.CategoryID
}
