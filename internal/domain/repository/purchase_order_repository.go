package repository

import (
	"context"
	"time"

	"github.com/jhoicas/materiales-erp/internal/domain/entity"
)

// PurchaseFilter filtro explícito de órdenes de compra.
type PurchaseFilter struct {
	SupplierID   string
	Status       string
	NumberPrefix string
	From         *time.Time
	To           *time.Time
	Sort         string
	Limit        int
	Offset       int
}

// PurchaseOrderRepository define el puerto de persistencia para órdenes de compra.
type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *entity.PurchaseOrder) error
	GetByID(ctx context.Context, id string) (*entity.PurchaseOrder, error)
	GetForUpdate(ctx context.Context, id string) (*entity.PurchaseOrder, error)
	Find(ctx context.Context, filter PurchaseFilter) ([]*entity.PurchaseOrder, error)
	Count(ctx context.Context, filter PurchaseFilter) (int, error)
	Update(ctx context.Context, po *entity.PurchaseOrder) error
	Delete(ctx context.Context, id string) error
}
