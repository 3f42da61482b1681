package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChangeType labels why a ledger entry was written
type ChangeType string

const (
	ChangeCreated       ChangeType = "created"
	ChangePriceChanged  ChangeType = "price_changed"
	ChangeStockAdjusted ChangeType = "stock_adjusted"
	ChangeDeleted       ChangeType = "deleted"
)

// IsValid reports whether t is a known change type
func (t ChangeType) IsValid() bool {
	switch t {
	case ChangeCreated, ChangePriceChanged, ChangeStockAdjusted, ChangeDeleted:
		return true
	}
	return false
}

// ChangeEntry is one immutable record in the product change ledger.
// OldValue and NewValue hold a price or a stock count depending on ChangeType;
// a null side means there was no value before (created) or after (deleted).
type ChangeEntry struct {
	ID          string              `json:"id" db:"id"`
	ProductID   uuid.UUID           `json:"product_id" db:"product_id"`
	ProductName string              `json:"product_name" db:"product_name"`
	OldValue    decimal.NullDecimal `json:"old_value" db:"old_value"`
	NewValue    decimal.NullDecimal `json:"new_value" db:"new_value"`
	ActorID     *uuid.UUID          `json:"actor_id,omitempty" db:"actor_id"`
	ChangeType  ChangeType          `json:"change_type" db:"change_type"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
}

// NullValue wraps a decimal as a present ledger value
func NullValue(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// StockValue wraps a stock count as a present ledger value
func StockValue(n int) decimal.NullDecimal {
	return NullValue(decimal.NewFromInt(int64(n)))
}
