package entity

import "time"

// Tipos de movimiento de inventario.
const (
	MovementTypeIn         = "in"         // entrada
	MovementTypeOut        = "out"        // salida
	MovementTypeTransfer   = "transfer"   // cambio de ubicación
	MovementTypeAdjustment = "adjustment" // conteo manual
)

// StockMovement representa un registro inmutable del journal de inventario.
// Quantity es la magnitud (siempre positiva); Delta es el efecto con signo sobre el stock.
type StockMovement struct {
	ID               string
	InventoryItemID  string
	ProductID        string
	Type             string
	Quantity         int
	Delta            int
	PreviousQuantity int
	NewQuantity      int
	Reason           string
	Reference        string // orden, compra, nota de ajuste, etc.
	CreatedAt        time.Time
	CreatedBy        string // UserID
}

// IsValidMovementType indica si t es un tipo de movimiento válido.
func IsValidMovementType(t string) bool {
	switch t {
	case MovementTypeIn, MovementTypeOut, MovementTypeTransfer, MovementTypeAdjustment:
		return true
	}
	return false
}
