package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Product struct {
	ID            int64           `json:"id"`
	CategoryID    int64           `json:"category_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      string          `json:"image_url"`
	Stock         int             `json:"stock"`
	AverageRating float64         `json:"average_rating"`
	RatingCount   int             `json:"rating_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate checks the fields an admin can write.
func (p *Product) Validate() error {
	var fields []string
	if strings.TrimSpace(p.Name) == "" {
		fields = append(fields, "name")
	}
	if p.CategoryID <= 0 {
		fields = append(fields, "category_id")
	}
	if p.Price.IsNegative() || p.Price.IsZero() {
		fields = append(fields, "price")
	}
	if p.Stock < 0 {
		fields = append(fields, "stock")
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}
