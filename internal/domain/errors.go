package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound               = errors.New("recurso no encontrado")
	ErrItemNotFound           = fmt.Errorf("ítem de inventario no encontrado: %w", ErrNotFound)
	ErrInvalidInput           = errors.New("entrada inválida")
	ErrEmptyLines             = fmt.Errorf("se requiere al menos una línea: %w", ErrInvalidInput)
	ErrInvalidMagnitude       = fmt.Errorf("la magnitud del movimiento debe ser positiva: %w", ErrInvalidInput)
	ErrNegativeQuantity       = errors.New("la cantidad no puede ser negativa")
	ErrDuplicate              = errors.New("recurso duplicado")
	ErrUnauthorized           = errors.New("no autorizado")
	ErrInvalidStateTransition = errors.New("operación no permitida en el estado actual")
	ErrConflict               = errors.New("conflicto con el estado actual")
	ErrAlreadyReleased        = fmt.Errorf("la referencia ya fue liberada: %w", ErrConflict)
	ErrInsufficientStock      = errors.New("stock insuficiente")
	ErrCreditLimitExceeded    = errors.New("el total supera el límite de crédito del proveedor")
)

// Shortfall describe una línea que no puede reservarse.
type Shortfall struct {
	InventoryItemID string `json:"inventory_item_id"`
	ProductID       string `json:"product_id,omitempty"`
	Requested       int    `json:"requested"`
	Available       int    `json:"available"`
}

// InsufficientStockError lleva el detalle de todas las líneas sin stock suficiente.
// errors.Is(err, ErrInsufficientStock) es verdadero.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s (solicitado %d, disponible %d)", s.InventoryItemID, s.Requested, s.Available))
	}
	return ErrInsufficientStock.Error() + ": " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ShortfallsOf devuelve el detalle de faltantes si err es un InsufficientStockError.
func ShortfallsOf(err error) []Shortfall {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise.Shortfalls
	}
	return nil
}
