package repository

import (
	"context"
	"time"

	"github.com/jhoicas/materiales-erp/internal/domain/entity"
)

// OrderFilter filtro explícito de órdenes de venta.
type OrderFilter struct {
	CustomerID    string
	Status        string
	PaymentStatus string
	NumberPrefix  string
	From          *time.Time
	To            *time.Time
	Sort          string // created_at, total, order_number; prefijo "-" descendente
	Limit         int
	Offset        int
}

// OrderRepository define el puerto de persistencia para órdenes de venta y sus líneas.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Order, error)
	GetByNumber(ctx context.Context, number string) (*entity.Order, error)
	Find(ctx context.Context, filter OrderFilter) ([]*entity.Order, error)
	Count(ctx context.Context, filter OrderFilter) (int, error)
	// Update reemplaza cabecera y líneas.
	Update(ctx context.Context, order *entity.Order) error
	Delete(ctx context.Context, id string) error
}
