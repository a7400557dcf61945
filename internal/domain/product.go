package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ProductID    int             `json:"product_id" db:"product_id"`
	Name         string          `json:"name" db:"name"`
	Description  string          `json:"description" db:"description"`
	Price        decimal.Decimal `json:"price" db:"price"`
	ImageURL     string          `json:"image_url" db:"image_url"`
	SKU          string          `json:"sku" db:"sku"`
	Stock        int             `json:"stock" db:"stock"`
	CreationDate time.Time       `json:"creation_date" db:"creation_date"`
	UpdateDate   time.Time       `json:"update_date" db:"update_date"`
	CategoryID   int             `json:"category_id" db:"category_id"`
	Version      int             `json:"-" db:"version"`

	// Category is attached on reads for display only; writes go through CategoryID.
	Category *Category `json:"category,omitempty" db:"-"`
}
