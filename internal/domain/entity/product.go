package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un material o SKU del catálogo.
type Product struct {
	ID        string
	SKU       string // código único
	Name      string
	Category  string
	Unit      string // unidad de medida (bulto, m3, varilla...)
	Price     decimal.Decimal // precio de venta
	Cost      decimal.Decimal
	Status    string // active, inactive
	CreatedAt time.Time
	UpdatedAt time.Time
}
