package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"product-catalog/internal/database"
	"product-catalog/internal/domain"
	"product-catalog/internal/middleware"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testTime = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// fakeCatalog is an in-memory CatalogService
type fakeCatalog struct {
	categories map[int]*domain.Category
	products   map[int]*domain.Product
	nextID     int
	buyErr     error
	err        error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		categories: make(map[int]*domain.Category),
		products:   make(map[int]*domain.Product),
		nextID:     1,
	}
}

func (f *fakeCatalog) addCategory(name string) *domain.Category {
	c := &domain.Category{ID: f.nextID, Name: name, CreationDate: testTime, UpdateDate: testTime}
	f.categories[c.ID] = c
	f.nextID++
	return c
}

func (f *fakeCatalog) addProduct(name, description string, categoryID int) *domain.Product {
	p := &domain.Product{
		ProductID:    f.nextID,
		Name:         name,
		Description:  description,
		Price:        decimal.RequireFromString("4.50"),
		Stock:        3,
		CategoryID:   categoryID,
		CreationDate: testTime,
		UpdateDate:   testTime,
		Category:     f.categories[categoryID],
	}
	f.products[p.ProductID] = p
	f.nextID++
	return p
}

func (f *fakeCatalog) sortedProducts(keep func(*domain.Product) bool) []*domain.Product {
	products := []*domain.Product{}
	for _, p := range f.products {
		if keep(p) {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products
}

func (f *fakeCatalog) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	categories := []*domain.Category{}
	for _, c := range f.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (f *fakeCatalog) GetCategory(ctx context.Context, id int) (*domain.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return c, nil
}

func (f *fakeCatalog) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.categories {
		if domain.NormalizeName(c.Name) == domain.NormalizeName(name) {
			return nil, service.ErrCategoryExists
		}
	}
	return f.addCategory(strings.TrimSpace(name)), nil
}

func (f *fakeCatalog) UpdateCategory(ctx context.Context, id int, name string) (*domain.Category, error) {
	c, err := f.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = name
	return c, nil
}

func (f *fakeCatalog) DeleteCategory(ctx context.Context, id int) error {
	if _, err := f.GetCategory(ctx, id); err != nil {
		return err
	}
	if f.err != nil {
		return f.err
	}
	delete(f.categories, id)
	return nil
}

func (f *fakeCatalog) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return f.sortedProducts(func(*domain.Product) bool { return true }), nil
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeCatalog) ListProductsByCategory(ctx context.Context, categoryID int) ([]*domain.Product, error) {
	return f.sortedProducts(func(p *domain.Product) bool { return p.CategoryID == categoryID }), nil
}

func (f *fakeCatalog) SearchProducts(ctx context.Context, term string) ([]*domain.Product, error) {
	term = domain.NormalizeName(term)
	return f.sortedProducts(func(p *domain.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Description), term)
	}), nil
}

func (f *fakeCatalog) CreateProduct(ctx context.Context, input service.ProductInput) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.categories[input.CategoryID]; !ok {
		return nil, service.ErrCategoryMissing
	}
	p := f.addProduct(input.Name, input.Description, input.CategoryID)
	p.Price = input.Price
	p.Stock = input.Stock
	return p, nil
}

func (f *fakeCatalog) UpdateProduct(ctx context.Context, id int, input service.ProductInput) (*domain.Product, error) {
	p, err := f.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = input.Name
	p.Stock = input.Stock
	return p, nil
}

func (f *fakeCatalog) DeleteProduct(ctx context.Context, id int) error {
	if _, err := f.GetProduct(ctx, id); err != nil {
		return err
	}
	delete(f.products, id)
	return nil
}

func (f *fakeCatalog) BuyProduct(ctx context.Context, name string, quantity int) error {
	return f.buyErr
}

func newTestRouter(catalog service.CatalogService) http.Handler {
	r := chi.NewRouter()
	services := func(*http.Request) (service.CatalogService, error) { return catalog, nil }
	NewCategoryHandler(services, zap.NewNop()).RegisterRoutes(r, nil)
	NewProductHandler(services, zap.NewNop()).RegisterRoutes(r, nil)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var response middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response.Error.Message
}

func TestListCategories(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addCategory("Toys")
	catalog.addCategory("Books")

	w := do(t, newTestRouter(catalog), http.MethodGet, "/api/categories", "")

	require.Equal(t, http.StatusOK, w.Code)
	var categories []CategoryDto
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &categories))
	require.Len(t, categories, 2)
	assert.Equal(t, "Books", categories[0].Name)
	assert.Equal(t, testTime, categories[0].CreationDate)
}

func TestGetCategory(t *testing.T) {
	catalog := newFakeCatalog()
	books := catalog.addCategory("Books")
	router := newTestRouter(catalog)

	w := do(t, router, http.MethodGet, "/api/categories/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var dto CategoryDto
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.Equal(t, books.ID, dto.ID)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/categories/9", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/categories/abc", "").Code)
}

func TestCreateCategory(t *testing.T) {
	catalog := newFakeCatalog()
	router := newTestRouter(catalog)

	w := do(t, router, http.MethodPost, "/api/categories", `{"name":"Books"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/categories/1", w.Header().Get("Location"))

	w = do(t, router, http.MethodPost, "/api/categories", `{"name":" books "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.ErrCategoryExists.Error(), errorMessage(t, w))

	w = do(t, router, http.MethodPost, "/api/categories", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed", errorMessage(t, w))

	w = do(t, router, http.MethodPost, "/api/categories", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", errorMessage(t, w))
}

func TestCreateCategorySaveFailure(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.err = service.ErrSaveFailed

	w := do(t, newTestRouter(catalog), http.MethodPost, "/api/categories", `{"name":"Books"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "something went wrong while saving", errorMessage(t, w))
}

func TestUpdateAndDeleteCategory(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addCategory("Books")
	router := newTestRouter(catalog)

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodPut, "/api/categories/1", `{"name":"Novels"}`).Code)
	assert.Equal(t, "Novels", catalog.categories[1].Name)
	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodPatch, "/api/categories/1", `{"name":"Poetry"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodPut, "/api/categories/7", `{"name":"x"}`).Code)

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/api/categories/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/api/categories/1", "").Code)
}

func TestDeleteCategoryInUse(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addCategory("Tools")
	catalog.err = service.ErrCategoryInUse

	w := do(t, newTestRouter(catalog), http.MethodDelete, "/api/categories/1", "")

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUnexpectedErrorIsHidden(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.err = database.ErrTransactionBegin

	w := do(t, newTestRouter(catalog), http.MethodGet, "/api/categories", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", errorMessage(t, w))
}

func TestUnresolvedServiceAnswers500(t *testing.T) {
	r := chi.NewRouter()
	calls := 0
	services := func(*http.Request) (service.CatalogService, error) {
		calls++
		return nil, errors.New("request has no database session")
	}
	NewCategoryHandler(services, zap.NewNop()).RegisterRoutes(r, nil)
	NewProductHandler(services, zap.NewNop()).RegisterRoutes(r, nil)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/categories", ""},
		{http.MethodDelete, "/api/categories/1", ""},
		{http.MethodGet, "/api/products/2", ""},
		{http.MethodPost, "/api/products/buy", `{"name":"hammer","quantity":1}`},
	} {
		w := do(t, r, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusInternalServerError, w.Code, tc.path)
		assert.Equal(t, "internal server error", errorMessage(t, w), tc.path)
	}
	assert.Equal(t, 4, calls)
}

func TestGetProduct(t *testing.T) {
	catalog := newFakeCatalog()
	tools := catalog.addCategory("Tools")
	widget := catalog.addProduct("Widget", "blue", tools.ID)
	router := newTestRouter(catalog)

	w := do(t, router, http.MethodGet, "/api/products/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var dto ProductDto
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.Equal(t, widget.ProductID, dto.ProductID)
	assert.Equal(t, "Tools", dto.CategoryName)
	assert.True(t, widget.Price.Equal(dto.Price))

	w = do(t, router, http.MethodGet, "/api/products/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Product 99 not exists", errorMessage(t, w))
}

func TestListProductsByCategory(t *testing.T) {
	catalog := newFakeCatalog()
	tools := catalog.addCategory("Tools")
	empty := catalog.addCategory("Empty")
	catalog.addProduct("Hammer", "", tools.ID)
	router := newTestRouter(catalog)

	w := do(t, router, http.MethodGet, "/api/products/searchProductByCategory/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var products []ProductDto
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	assert.Len(t, products, 1)

	w = do(t, router, http.MethodGet, "/api/products/searchProductByCategory/"+strconv.Itoa(empty.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchProducts(t *testing.T) {
	catalog := newFakeCatalog()
	tools := catalog.addCategory("Tools")
	catalog.addProduct("Widget", "", tools.ID)
	catalog.addProduct("Sprocket", "fits any widget", tools.ID)
	catalog.addProduct("Hammer", "steel", tools.ID)
	router := newTestRouter(catalog)

	w := do(t, router, http.MethodGet, "/api/products/searchProductByDescription/WID", "")
	require.Equal(t, http.StatusOK, w.Code)
	var products []ProductDto
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	require.Len(t, products, 2)
	assert.Equal(t, "Sprocket", products[0].Name)

	w = do(t, router, http.MethodGet, "/api/products/searchProductByDescription/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProduct(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addCategory("Tools")
	router := newTestRouter(catalog)

	w := do(t, router, http.MethodPost, "/api/products",
		`{"name":"Widget","description":"blue","price":"9.99","stock":3,"categoryId":1}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/products/2", w.Header().Get("Location"))

	var dto ProductDto
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.Equal(t, "Widget", dto.Name)
	assert.Equal(t, "Tools", dto.CategoryName)
	assert.True(t, decimal.RequireFromString("9.99").Equal(dto.Price))

	w = do(t, router, http.MethodPost, "/api/products", `{"name":"Gadget","price":1,"stock":1,"categoryId":42}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.ErrCategoryMissing.Error(), errorMessage(t, w))

	w = do(t, router, http.MethodPost, "/api/products", `{"name":"Gadget","price":-1,"stock":-1,"categoryId":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed", errorMessage(t, w))
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	catalog := newFakeCatalog()
	tools := catalog.addCategory("Tools")
	catalog.addProduct("Widget", "", tools.ID)
	router := newTestRouter(catalog)

	body := `{"name":"Widget XL","price":"5","stock":8,"categoryId":1}`
	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodPut, "/api/products/2", body).Code)
	assert.Equal(t, 8, catalog.products[2].Stock)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodPatch, "/api/products/3", body).Code)

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/api/products/2", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/api/products/2", "").Code)
}

func TestBuyProductStatuses(t *testing.T) {
	tests := map[string]struct {
		err    error
		body   string
		status int
	}{
		"success":      {nil, `{"name":"Widget","quantity":2}`, http.StatusNoContent},
		"insufficient": {repository.ErrInsufficientStock, `{"name":"Widget","quantity":5}`, http.StatusConflict},
		"contention":   {database.ErrOptimisticLock, `{"name":"Widget","quantity":1}`, http.StatusConflict},
		"unknown":      {repository.ErrProductNotFound, `{"name":"Gadget","quantity":1}`, http.StatusNotFound},
		"zero":         {nil, `{"name":"Widget","quantity":0}`, http.StatusBadRequest},
		"blank":        {nil, `{"name":" ","quantity":1}`, http.StatusBadRequest},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			catalog := newFakeCatalog()
			catalog.buyErr = tt.err

			w := do(t, newTestRouter(catalog), http.MethodPost, "/api/products/buy", tt.body)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestProperty_ProductDtoCarriesCategoryName(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every listed product names its category", prop.ForAll(
		func(categoryName string, productNames []string) bool {
			catalog := newFakeCatalog()
			category := catalog.addCategory(categoryName)
			for _, name := range productNames {
				catalog.addProduct(name, "", category.ID)
			}

			w := do(t, newTestRouter(catalog), http.MethodGet, "/api/products", "")
			if w.Code != http.StatusOK {
				return false
			}

			var products []ProductDto
			if err := json.Unmarshal(w.Body.Bytes(), &products); err != nil {
				return false
			}
			if len(products) != len(productNames) {
				return false
			}
			for _, p := range products {
				if p.CategoryName != categoryName || p.CategoryID != category.ID {
					return false
				}
			}
			return true
		},
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
		gen.SliceOf(gen.RegexMatch(`[A-Z][a-z]{2,15}`)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
