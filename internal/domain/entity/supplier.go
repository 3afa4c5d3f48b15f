package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supplier representa un proveedor de materiales.
// CreditLimit acota el total de una orden de compra aprobable.
type Supplier struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	CreditLimit decimal.Decimal
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
