package models

import "time"

// LowStockThreshold is the fixed boundary between LOW and HEALTHY stock.
const LowStockThreshold = 10

type StockLevel string

const (
	StockLevelOutOfStock StockLevel = "out_of_stock"
	StockLevelLow        StockLevel = "low"
	StockLevelHealthy    StockLevel = "healthy"
)

type Product struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	BasePrice     float64   `json:"base_price"`
	StockQuantity *int      `json:"stock_quantity,omitempty"`
	ImageURL      string    `json:"image_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StockLevel classifies the product's stock. A nil quantity means the
// product is not stock-tracked and is always healthy.
func (p Product) StockLevel() StockLevel {
	if p.StockQuantity == nil {
		return StockLevelHealthy
	}
	switch {
	case *p.StockQuantity == 0:
		return StockLevelOutOfStock
	case *p.StockQuantity <= LowStockThreshold:
		return StockLevelLow
	default:
		return StockLevelHealthy
	}
}
