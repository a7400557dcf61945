package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"product-catalog/internal/database"
	"product-catalog/internal/domain"

	"go.uber.org/zap"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
)

// trimmedChars matches domain.NameTrimChars as a PostgreSQL escape string
const trimmedChars = `E' \t\n\013\f\r'`

const (
	listCategoriesQuery = `
		SELECT id, name, creation_date, update_date
		FROM categories
		ORDER BY LOWER(BTRIM(name, ` + trimmedChars + `)) ASC, id ASC
	`
	getCategoryQuery = `
		SELECT id, name, creation_date, update_date
		FROM categories
		WHERE id = $1
	`
	categoryExistsByIDQuery   = `SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`
	categoryExistsByNameQuery = `SELECT EXISTS(SELECT 1 FROM categories WHERE LOWER(BTRIM(name, ` + trimmedChars + `)) = $1)`
	insertCategoryQuery       = `INSERT INTO categories (name, creation_date, update_date) VALUES ($1, $2, $3) RETURNING id`
	updateCategoryQuery       = `UPDATE categories SET name = $2, update_date = $3 WHERE id = $1`
	deleteCategoryQuery       = `DELETE FROM categories WHERE id = $1`
)

// CategoryStore defines persistence for categories.
//
// The store does not enforce name uniqueness: callers check
// CategoryExistsByName before CreateCategory/UpdateCategory.
// Mutating methods commit immediately and report commit success.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	GetCategory(ctx context.Context, id int) (*domain.Category, error)
	CategoryExistsByID(ctx context.Context, id int) (bool, error)
	CategoryExistsByName(ctx context.Context, name string) (bool, error)
	CreateCategory(ctx context.Context, category *domain.Category) bool
	UpdateCategory(ctx context.Context, category *domain.Category) bool
	DeleteCategory(ctx context.Context, category *domain.Category) bool
	Save(ctx context.Context) bool
}

type categoryStore struct {
	session *database.Session
	logger  *zap.Logger
	now     func() time.Time
}

// NewCategoryStore creates a CategoryStore bound to a request-scoped session.
// The store does not own the session.
func NewCategoryStore(session *database.Session, logger *zap.Logger) CategoryStore {
	return &categoryStore{
		session: session,
		logger:  logger.Named("category_store"),
		now:     time.Now,
	}
}

// ListCategories returns every category ordered by normalized name
func (s *categoryStore) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.session.QueryContext(ctx, listCategoriesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category := &domain.Category{}
		if err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.CreationDate,
			&category.UpdateDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// GetCategory returns ErrCategoryNotFound when no category has the id
func (s *categoryStore) GetCategory(ctx context.Context, id int) (*domain.Category, error) {
	if id <= 0 {
		return nil, ErrCategoryNotFound
	}

	category := &domain.Category{}
	err := s.session.QueryRowContext(ctx, getCategoryQuery, id).Scan(
		&category.ID,
		&category.Name,
		&category.CreationDate,
		&category.UpdateDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by ID: %w", err)
	}

	return category, nil
}

func (s *categoryStore) CategoryExistsByID(ctx context.Context, id int) (bool, error) {
	if id <= 0 {
		return false, nil
	}

	var exists bool
	if err := s.session.QueryRowContext(ctx, categoryExistsByIDQuery, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check category existence: %w", err)
	}
	return exists, nil
}

// CategoryExistsByName compares lower-cased, trimmed names
func (s *categoryStore) CategoryExistsByName(ctx context.Context, name string) (bool, error) {
	normalized := domain.NormalizeName(name)
	if normalized == "" {
		return false, nil
	}

	var exists bool
	if err := s.session.QueryRowContext(ctx, categoryExistsByNameQuery, normalized).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check category existence by name: %w", err)
	}
	return exists, nil
}

// CreateCategory stamps both dates, inserts and commits. The generated id is
// written back into category.
func (s *categoryStore) CreateCategory(ctx context.Context, category *domain.Category) bool {
	if category == nil {
		return false
	}

	now := s.now()
	category.CreationDate = now
	category.UpdateDate = now

	s.session.Stage(database.Mutation{
		Query: insertCategoryQuery,
		Args:  []any{category.Name, category.CreationDate, category.UpdateDate},
		Dest:  []any{&category.ID},
	})
	return s.Save(ctx)
}

// UpdateCategory replaces the name of the category keyed by category.ID.
// CreationDate is left as stored.
func (s *categoryStore) UpdateCategory(ctx context.Context, category *domain.Category) bool {
	if category == nil {
		return false
	}

	category.UpdateDate = s.now()

	s.session.Stage(database.Mutation{
		Query: updateCategoryQuery,
		Args:  []any{category.ID, category.Name, category.UpdateDate},
	})
	return s.Save(ctx)
}

func (s *categoryStore) DeleteCategory(ctx context.Context, category *domain.Category) bool {
	if category == nil {
		return false
	}

	s.session.Stage(database.Mutation{
		Query: deleteCategoryQuery,
		Args:  []any{category.ID},
	})
	return s.Save(ctx)
}

// Save commits every staged mutation. Touching zero rows counts as success.
func (s *categoryStore) Save(ctx context.Context) bool {
	return save(ctx, s.session, s.logger)
}

func save(ctx context.Context, session *database.Session, logger *zap.Logger) bool {
	affected, err := session.Commit(ctx)
	if err != nil {
		fields := append([]zap.Field{zap.Error(err)}, database.ConstraintFields(err)...)
		switch {
		case database.IsForeignKeyViolation(err), database.IsCheckViolation(err), database.IsUniqueViolation(err):
			logger.Warn("Save rejected by constraint", fields...)
		default:
			logger.Error("Save failed", fields...)
		}
		return false
	}
	return affected >= 0
}
