package domain

import (
	"strings"
	"time"
)

// Category represents a product category
type Category struct {
	ID           int       `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	CreationDate time.Time `json:"creation_date" db:"creation_date"`
	UpdateDate   time.Time `json:"update_date" db:"update_date"`
}

// NameTrimChars is the whitespace NormalizeName strips from both ends. The
// repository trims the same set in SQL.
const NameTrimChars = " \t\n\v\f\r"

// NormalizeName lower-cases and trims a name for case/format-insensitive comparison
func NormalizeName(name string) string {
	return strings.ToLower(strings.Trim(name, NameTrimChars))
}
