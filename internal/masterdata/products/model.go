package products

import (
	"time"
)

// Product represents a sellable product referenced by inventory records.
type Product struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	UnitPrice float64   `json:"unit_price"`
	CostPrice float64   `json:"cost_price"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
