package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a stocked item in the inventory
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Category    Category        `json:"category" db:"category"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	ImageURL    string          `json:"image_url" db:"image_url"`
	IsAvailable bool            `json:"is_available" db:"is_available"`
	OwnerID     uuid.UUID       `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// InStock reports whether at least one unit is on hand
func (p *Product) InStock() bool {
	return p.Stock > 0
}
