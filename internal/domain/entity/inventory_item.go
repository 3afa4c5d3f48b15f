package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados derivados de un ítem de inventario (vocabulario de la API).
const (
	StockStatusInStock    = "in_stock"
	StockStatusLowStock   = "low_stock"
	StockStatusOutOfStock = "out_of_stock"
	StockStatusExpired    = "expired"
)

// InventoryItem representa el stock disponible de un producto en una ubicación.
// Quantity solo la escribe el ledger; el estado nunca se persiste, se deriva con Status(now).
type InventoryItem struct {
	ID             string
	ProductID      string
	Quantity       int
	MinimumStock   int
	MaximumStock   int
	UnitCost       decimal.Decimal // costo promedio ponderado
	Location       string
	SupplierID     string
	ExpirationDate *time.Time
	BatchNumber    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DeriveStockStatus calcula el estado a partir de cantidad, mínimo y vencimiento.
// Precedencia: expired > out_of_stock > low_stock > in_stock.
func DeriveStockStatus(quantity, minimumStock int, expiration *time.Time, now time.Time) string {
	switch {
	case expiration != nil && expiration.Before(now):
		return StockStatusExpired
	case quantity <= 0:
		return StockStatusOutOfStock
	case quantity <= minimumStock:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// Status devuelve el estado derivado del ítem en el instante now.
func (i *InventoryItem) Status(now time.Time) string {
	return DeriveStockStatus(i.Quantity, i.MinimumStock, i.ExpirationDate, now)
}

// IsValidStockStatus indica si s pertenece al vocabulario de estados de inventario.
func IsValidStockStatus(s string) bool {
	switch s {
	case StockStatusInStock, StockStatusLowStock, StockStatusOutOfStock, StockStatusExpired:
		return true
	}
	return false
}

// Clone devuelve una copia independiente del ítem.
func (i *InventoryItem) Clone() *InventoryItem {
	c := *i
	c.ExpirationDate = cloneTime(i.ExpirationDate)
	return &c
}
