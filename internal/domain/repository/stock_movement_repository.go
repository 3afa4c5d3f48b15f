package repository

import (
	"context"
	"time"

	"github.com/jhoicas/materiales-erp/internal/domain/entity"
)

// MovementFilter filtro explícito del journal. Los resultados se ordenan por fecha descendente.
type MovementFilter struct {
	InventoryItemID string
	Reference       string
	Type            string
	Reason          string
	From            *time.Time
	To              *time.Time
	Limit           int
	Offset          int
}

// StockMovementRepository puerto del journal de movimientos. Solo inserta y consulta:
// los movimientos nunca se actualizan ni se eliminan.
type StockMovementRepository interface {
	Create(ctx context.Context, movement *entity.StockMovement) error
	GetByID(ctx context.Context, id string) (*entity.StockMovement, error)
	Find(ctx context.Context, filter MovementFilter) ([]*entity.StockMovement, error)
	Count(ctx context.Context, filter MovementFilter) (int, error)
	// SumDelta suma los efectos con signo de todos los movimientos del ítem.
	SumDelta(ctx context.Context, inventoryItemID string) (int, error)
}
