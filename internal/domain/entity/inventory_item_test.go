package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
)

func TestDeriveStockStatus_Precedencia(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	cases := []struct {
		name       string
		qty, min   int
		expiration *time.Time
		want       string
	}{
		{"vencido gana sobre agotado", 0, 10, &past, entity.StockStatusExpired},
		{"vencido gana sobre bajo", 5, 10, &past, entity.StockStatusExpired},
		{"agotado", 0, 10, nil, entity.StockStatusOutOfStock},
		{"bajo en el mínimo", 10, 10, nil, entity.StockStatusLowStock},
		{"bajo debajo del mínimo", 15, 20, &future, entity.StockStatusLowStock},
		{"en stock", 11, 10, &future, entity.StockStatusInStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, entity.DeriveStockStatus(tc.qty, tc.min, tc.expiration, now))
		})
	}
}

// Dos ítems con las mismas entradas derivan siempre el mismo estado.
func TestInventoryItem_StatusEsFuncionPura(t *testing.T) {
	now := time.Now()
	a := &entity.InventoryItem{ID: "a", Quantity: 15, MinimumStock: 20}
	b := &entity.InventoryItem{ID: "b", Quantity: 15, MinimumStock: 20, Location: "patio"}
	assert.Equal(t, a.Status(now), b.Status(now))
	assert.Equal(t, entity.StockStatusLowStock, a.Status(now))
}

func TestOrderFlow(t *testing.T) {
	assert.Equal(t, entity.OrderStatusPending, entity.NextOrderStatus(entity.OrderStatusDraft))
	assert.Equal(t, entity.OrderStatusDelivered, entity.NextOrderStatus(entity.OrderStatusShipped))
	assert.Empty(t, entity.NextOrderStatus(entity.OrderStatusDelivered))
	assert.Empty(t, entity.NextOrderStatus(entity.OrderStatusCancelled))
}

func TestPurchaseOrder_IsFullyReceived(t *testing.T) {
	p := &entity.PurchaseOrder{Items: []entity.PurchaseOrderItem{
		{ProductID: "p1", Quantity: 10, ReceivedQuantity: 10},
		{ProductID: "p2", Quantity: 5, ReceivedQuantity: 3},
	}}
	assert.False(t, p.IsFullyReceived())
	assert.Equal(t, 2, p.Items[1].RemainingQuantity())
	p.Items[1].ReceivedQuantity = 5
	assert.True(t, p.IsFullyReceived())
}
