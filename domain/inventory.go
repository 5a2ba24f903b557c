package domain

import "math"

const (
	StockAdd     = "ADD"
	StockConsume = "CONSUME"
)

// DaysRemainingUnknown is shown when an item has no usage rate to divide by.
const DaysRemainingUnknown = "Unknown (set usage rate)"

type InventoryItem struct {
	ID             int64   `db:"id" json:"id"`
	UserID         int64   `db:"user_id" json:"user_id"`
	ItemName       string  `db:"item_name" json:"item_name"`
	Quantity       float64 `db:"quantity" json:"quantity"`
	ReorderLevel   float64 `db:"reorder_level" json:"reorder_level"`
	DailyUsageRate float64 `db:"daily_usage_rate" json:"daily_usage_rate"`
	LastUpdated    string  `db:"last_updated" json:"last_updated"`
}

// DaysRemaining reports how long the current stock lasts at the daily usage
// rate, rounded to one decimal place. The second return is false when the
// usage rate is not strictly positive, in which case no estimate exists.
func (i InventoryItem) DaysRemaining() (float64, bool) {
	if i.DailyUsageRate <= 0 {
		return 0, false
	}
	return math.Round(i.Quantity/i.DailyUsageRate*10) / 10, true
}

// LowStock reports whether the item has dropped to or below its reorder level.
func (i InventoryItem) LowStock() bool {
	return i.Quantity <= i.ReorderLevel
}

type InventoryHistory struct {
	ID              int64   `db:"id" json:"id"`
	ItemID          int64   `db:"item_id" json:"item_id"`
	Action          string  `db:"action" json:"action"`
	QuantityChanged float64 `db:"quantity_changed" json:"quantity_changed"`
	Notes           string  `db:"notes" json:"notes"`
	CreatedAt       string  `db:"created_at" json:"created_at"`
}
