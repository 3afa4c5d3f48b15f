package repository

import (
	"context"
	"time"

	"github.com/jhoicas/materiales-erp/internal/domain/entity"
)

// InventoryFilter filtro explícito para listar ítems de inventario.
// Status se evalúa con la misma regla de derivación del dominio en el instante AsOf (cero = ahora).
type InventoryFilter struct {
	ProductID  string
	SupplierID string
	Location   string
	Status     string
	AsOf       time.Time
	Sort       string // created_at, updated_at, quantity; prefijo "-" para descendente
	Limit      int
	Offset     int
}

// InventoryItemRepository define el puerto de persistencia para ítems de inventario (DIP).
// GetByID/GetForUpdate devuelven (nil, nil) si no existe.
type InventoryItemRepository interface {
	Create(ctx context.Context, item *entity.InventoryItem) error
	GetByID(ctx context.Context, id string) (*entity.InventoryItem, error)
	// GetForUpdate bloquea la fila dentro de la transacción (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.InventoryItem, error)
	GetByProductID(ctx context.Context, productID string) (*entity.InventoryItem, error)
	Find(ctx context.Context, filter InventoryFilter) ([]*entity.InventoryItem, error)
	Count(ctx context.Context, filter InventoryFilter) (int, error)
	Update(ctx context.Context, item *entity.InventoryItem) error
	Delete(ctx context.Context, id string) error
}
