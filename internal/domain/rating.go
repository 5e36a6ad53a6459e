package domain

import (
	"strings"
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Rating struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    string    `json:"user_id"`
	Value     int       `json:"value"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Rating) Validate() error {
	var fields []string
	if r.Value < MinRating || r.Value > MaxRating {
		fields = append(fields, "value")
	}
	if len(strings.TrimSpace(r.Comment)) > 2000 {
		fields = append(fields, "comment")
	}
	if len(fields) > 0 {
		return NewValidationError(fields...)
	}
	return nil
}

// AverageRating is the plain arithmetic mean; no ratings means 0.
func AverageRating(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
