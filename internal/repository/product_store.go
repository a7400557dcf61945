package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"product-catalog/internal/database"
	"product-catalog/internal/domain"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidPurchase   = errors.New("purchase requires a product name and a positive quantity")
)

const (
	buyMaxRetries   = 3
	buyRetryBackoff = 25 * time.Millisecond
)

const selectProductColumns = `
	SELECT p.product_id, p.name, p.description, p.price, p.image_url, p.sku, p.stock,
	       p.creation_date, p.update_date, p.category_id, p.version,
	       c.id, c.name, c.creation_date, c.update_date
	FROM products p
	JOIN categories c ON c.id = p.category_id
`

const (
	listProductsQuery           = selectProductColumns + `ORDER BY LOWER(BTRIM(p.name, ` + trimmedChars + `)) ASC, p.product_id ASC`
	listProductsByCategoryQuery = selectProductColumns + `WHERE p.category_id = $1 ORDER BY LOWER(BTRIM(p.name, ` + trimmedChars + `)) ASC, p.product_id ASC`
	searchProductsQuery         = selectProductColumns + `
		WHERE LOWER(BTRIM(p.name, ` + trimmedChars + `)) LIKE $1 ESCAPE '\' OR LOWER(p.description) LIKE $1 ESCAPE '\'
		ORDER BY LOWER(BTRIM(p.name, ` + trimmedChars + `)) ASC, p.product_id ASC`
	getProductQuery = selectProductColumns + `WHERE p.product_id = $1`

	productExistsByIDQuery   = `SELECT EXISTS(SELECT 1 FROM products WHERE product_id = $1)`
	productExistsByNameQuery = `SELECT EXISTS(SELECT 1 FROM products WHERE LOWER(BTRIM(name, ` + trimmedChars + `)) = $1)`
	findForPurchaseQuery     = `
		SELECT product_id, stock, version
		FROM products
		WHERE LOWER(BTRIM(name, ` + trimmedChars + `)) = $1
		ORDER BY product_id
		LIMIT 1
	`
	insertProductQuery = `
		INSERT INTO products (name, description, price, image_url, sku, stock,
		                      creation_date, update_date, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING product_id, version
	`
	updateProductQuery = `
		UPDATE products
		SET name = $2, description = $3, price = $4, image_url = $5, sku = $6,
		    stock = $7, update_date = $8, category_id = $9, version = version + 1
		WHERE product_id = $1
	`
	decrementStockQuery = `
		UPDATE products
		SET stock = stock - $2, version = version + 1, update_date = $3
		WHERE product_id = $1 AND version = $4 AND stock >= $2
	`
	deleteProductQuery = `DELETE FROM products WHERE product_id = $1`
)

// ProductStore defines persistence for products.
//
// Name uniqueness and category validity are the caller's responsibility.
// Buy is the only operation guarded against concurrent writers: the stock
// decrement is applied only if the row version read before it is unchanged.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	ListProductsByCategory(ctx context.Context, categoryID int) ([]*domain.Product, error)
	SearchProducts(ctx context.Context, term string) ([]*domain.Product, error)
	ProductExistsByID(ctx context.Context, id int) (bool, error)
	ProductExistsByName(ctx context.Context, name string) (bool, error)
	GetProduct(ctx context.Context, id int) (*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) bool
	UpdateProduct(ctx context.Context, product *domain.Product) bool
	DeleteProduct(ctx context.Context, product *domain.Product) bool
	BuyProduct(ctx context.Context, name string, quantity int) bool
	Buy(ctx context.Context, name string, quantity int) error
	Save(ctx context.Context) bool
}

type productStore struct {
	session      *database.Session
	logger       *zap.Logger
	now          func() time.Time
	retryBackoff time.Duration
}

// NewProductStore creates a ProductStore bound to a request-scoped session
func NewProductStore(session *database.Session, logger *zap.Logger) ProductStore {
	return &productStore{
		session:      session,
		logger:       logger.Named("product_store"),
		now:          time.Now,
		retryBackoff: buyRetryBackoff,
	}
}

func (s *productStore) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.queryProducts(ctx, listProductsQuery)
}

// ListProductsByCategory returns an empty slice for non-positive ids
// without querying.
func (s *productStore) ListProductsByCategory(ctx context.Context, categoryID int) ([]*domain.Product, error) {
	if categoryID <= 0 {
		return []*domain.Product{}, nil
	}
	return s.queryProducts(ctx, listProductsByCategoryQuery, categoryID)
}

// SearchProducts matches term as a case-insensitive substring of the name or
// the description. A blank term lists everything.
func (s *productStore) SearchProducts(ctx context.Context, term string) ([]*domain.Product, error) {
	normalized := domain.NormalizeName(term)
	if normalized == "" {
		return s.ListProducts(ctx)
	}
	return s.queryProducts(ctx, searchProductsQuery, containsPattern(normalized))
}

func (s *productStore) ProductExistsByID(ctx context.Context, id int) (bool, error) {
	if id <= 0 {
		return false, nil
	}

	var exists bool
	if err := s.session.QueryRowContext(ctx, productExistsByIDQuery, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check product existence: %w", err)
	}
	return exists, nil
}

func (s *productStore) ProductExistsByName(ctx context.Context, name string) (bool, error) {
	normalized := domain.NormalizeName(name)
	if normalized == "" {
		return false, nil
	}

	var exists bool
	if err := s.session.QueryRowContext(ctx, productExistsByNameQuery, normalized).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check product existence by name: %w", err)
	}
	return exists, nil
}

// GetProduct returns ErrProductNotFound when no product has the id
func (s *productStore) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	if id <= 0 {
		return nil, ErrProductNotFound
	}

	product, err := scanProduct(s.session.QueryRowContext(ctx, getProductQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

func (s *productStore) CreateProduct(ctx context.Context, product *domain.Product) bool {
	if product == nil {
		return false
	}

	now := s.now()
	product.CreationDate = now
	product.UpdateDate = now

	s.session.Stage(database.Mutation{
		Query: insertProductQuery,
		Args: []any{
			product.Name,
			product.Description,
			product.Price,
			product.ImageURL,
			product.SKU,
			product.Stock,
			product.CreationDate,
			product.UpdateDate,
			product.CategoryID,
		},
		Dest: []any{&product.ProductID, &product.Version},
	})
	return s.Save(ctx)
}

// UpdateProduct replaces every mutable field of the product keyed by
// product.ProductID. CreationDate is left as stored.
func (s *productStore) UpdateProduct(ctx context.Context, product *domain.Product) bool {
	if product == nil {
		return false
	}

	product.UpdateDate = s.now()

	s.session.Stage(database.Mutation{
		Query: updateProductQuery,
		Args: []any{
			product.ProductID,
			product.Name,
			product.Description,
			product.Price,
			product.ImageURL,
			product.SKU,
			product.Stock,
			product.UpdateDate,
			product.CategoryID,
		},
	})
	return s.Save(ctx)
}

func (s *productStore) DeleteProduct(ctx context.Context, product *domain.Product) bool {
	if product == nil {
		return false
	}

	s.session.Stage(database.Mutation{
		Query: deleteProductQuery,
		Args:  []any{product.ProductID},
	})
	return s.Save(ctx)
}

// BuyProduct is Buy reporting only success. The cause of a failure is logged.
func (s *productStore) BuyProduct(ctx context.Context, name string, quantity int) bool {
	err := s.Buy(ctx, name, quantity)
	if err == nil {
		return true
	}

	fields := []zap.Field{
		zap.String("product", name),
		zap.Int("quantity", quantity),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, ErrInvalidPurchase),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrInsufficientStock):
		s.logger.Info("Purchase rejected", fields...)
	default:
		s.logger.Error("Purchase failed", fields...)
	}
	return false
}

// Buy decrements the stock of the product whose normalized name matches name.
// A concurrent change to the product between the read and the commit makes
// the attempt fail with database.ErrOptimisticLock; Buy then re-reads and
// retries a bounded number of times.
func (s *productStore) Buy(ctx context.Context, name string, quantity int) error {
	normalized := domain.NormalizeName(name)
	if normalized == "" || quantity <= 0 {
		return ErrInvalidPurchase
	}

	backoff := retry.WithMaxRetries(buyMaxRetries, retry.NewConstant(s.retryBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.tryBuy(ctx, normalized, quantity)
		if errors.Is(err, database.ErrOptimisticLock) {
			s.logger.Debug("Stock changed concurrently, retrying purchase",
				zap.String("product", normalized),
			)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *productStore) tryBuy(ctx context.Context, normalized string, quantity int) error {
	var id, stock, version int
	err := s.session.QueryRowContext(ctx, findForPurchaseQuery, normalized).Scan(&id, &stock, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to find product for purchase: %w", err)
	}

	if stock < quantity {
		return fmt.Errorf("%w: %d requested, %d available", ErrInsufficientStock, quantity, stock)
	}

	s.session.Stage(database.Mutation{
		Query:       decrementStockQuery,
		Args:        []any{id, quantity, s.now(), version},
		RequireRows: true,
	})

	if _, err := s.session.Commit(ctx); err != nil {
		return err
	}
	return nil
}

func (s *productStore) Save(ctx context.Context) bool {
	return save(ctx, s.session, s.logger)
}

func (s *productStore) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := s.session.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{Category: &domain.Category{}}
	err := row.Scan(
		&product.ProductID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.ImageURL,
		&product.SKU,
		&product.Stock,
		&product.CreationDate,
		&product.UpdateDate,
		&product.CategoryID,
		&product.Version,
		&product.Category.ID,
		&product.Category.Name,
		&product.Category.CreationDate,
		&product.Category.UpdateDate,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere, with the LIKE
// metacharacters in s taken literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
