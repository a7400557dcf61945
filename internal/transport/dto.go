package transport

import (
	"time"

	"product-catalog/internal/domain"
	"product-catalog/internal/service"

	"github.com/shopspring/decimal"
)

// CategoryRequest is the body of category create and update
type CategoryRequest struct {
	Name string `json:"name" validate:"notblank,max=100"`
}

// ProductRequest is the body of product create and update
type ProductRequest struct {
	Name        string          `json:"name" validate:"notblank,max=100"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,url,max=500"`
	SKU         string          `json:"sku" validate:"max=50"`
	Stock       int             `json:"stock" validate:"gte=0"`
	CategoryID  int             `json:"categoryId" validate:"gt=0"`
}

// BuyRequest is the body of a purchase
type BuyRequest struct {
	Name     string `json:"name" validate:"notblank"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type CategoryDto struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	CreationDate time.Time `json:"creationDate"`
	UpdateDate   time.Time `json:"updateDate"`
}

// ProductDto is a product as returned to clients, flattened with the name of
// its category.
type ProductDto struct {
	ProductID    int             `json:"productId"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"imageUrl"`
	SKU          string          `json:"sku"`
	Stock        int             `json:"stock"`
	CreationDate time.Time       `json:"creationDate"`
	UpdateDate   time.Time       `json:"updateDate"`
	CategoryID   int             `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
}

func (r ProductRequest) toInput() service.ProductInput {
	return service.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		ImageURL:    r.ImageURL,
		SKU:         r.SKU,
		Stock:       r.Stock,
		CategoryID:  r.CategoryID,
	}
}

func toCategoryDto(c *domain.Category) CategoryDto {
	return CategoryDto{
		ID:           c.ID,
		Name:         c.Name,
		CreationDate: c.CreationDate,
		UpdateDate:   c.UpdateDate,
	}
}

func toCategoryDtos(categories []*domain.Category) []CategoryDto {
	dtos := make([]CategoryDto, 0, len(categories))
	for _, c := range categories {
		dtos = append(dtos, toCategoryDto(c))
	}
	return dtos
}

func toProductDto(p *domain.Product) ProductDto {
	dto := ProductDto{
		ProductID:    p.ProductID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		ImageURL:     p.ImageURL,
		SKU:          p.SKU,
		Stock:        p.Stock,
		CreationDate: p.CreationDate,
		UpdateDate:   p.UpdateDate,
		CategoryID:   p.CategoryID,
	}
	if p.Category != nil {
		dto.CategoryName = p.Category.Name
	}
	return dto
}

func toProductDtos(products []*domain.Product) []ProductDto {
	dtos := make([]ProductDto, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, toProductDto(p))
	}
	return dtos
}
