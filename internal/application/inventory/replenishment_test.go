package inventory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/materiales-erp/internal/application/inventory"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
)

func createSupplied(t *testing.T, l *inventory.Ledger, product, supplier string, qty, min, max int) *entity.InventoryItem {
	t.Helper()
	item, err := l.CreateItem(context.Background(), inventory.CreateItemInput{
		ProductID:       product,
		InitialQuantity: qty,
		MinimumStock:    min,
		MaximumStock:    max,
		UnitCost:        decimal.NewFromInt(10),
		Location:        "bodega-1",
		SupplierID:      supplier,
	}, "tester")
	require.NoError(t, err)
	return item
}

func TestLedger_ListaDeReposicion(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	arena := createSupplied(t, l, "arena", "s1", 0, 10, 0)
	cemento := createSupplied(t, l, "cemento", "s2", 5, 20, 100)
	varilla := createSupplied(t, l, "varilla", "s1", 18, 20, 0)
	createSupplied(t, l, "ladrillo", "s1", 50, 20, 0)

	groups, err := l.ReplenishmentList(ctx, inventory.ReplenishmentFilter{})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	// s1 va primero porque contiene el ítem agotado.
	assert.Equal(t, "s1", groups[0].SupplierID)
	require.Len(t, groups[0].Items, 2)
	first := groups[0].Items[0]
	assert.Equal(t, arena.ID, first.InventoryItemID)
	assert.Equal(t, entity.StockStatusOutOfStock, first.Status)
	assert.Equal(t, 1, first.Priority)
	assert.Equal(t, 15, first.TargetStock)
	assert.Equal(t, 15, first.SuggestedQty)
	assert.Equal(t, 10, first.Deficit)
	assert.True(t, first.EstimatedCost.Equal(decimal.NewFromInt(150)))

	second := groups[0].Items[1]
	assert.Equal(t, varilla.ID, second.InventoryItemID)
	assert.Equal(t, 3, second.Priority)
	assert.Equal(t, 30, second.TargetStock)
	assert.Equal(t, 12, second.SuggestedQty)
	assert.True(t, groups[0].EstimatedCost.Equal(decimal.NewFromInt(270)))

	assert.Equal(t, "s2", groups[1].SupplierID)
	require.Len(t, groups[1].Items, 1)
	assert.Equal(t, cemento.ID, groups[1].Items[0].InventoryItemID)
	assert.Equal(t, 2, groups[1].Items[0].Priority)
	assert.Equal(t, 95, groups[1].Items[0].SuggestedQty)
	assert.Equal(t, 15, groups[1].Items[0].Deficit)
	assert.True(t, groups[1].EstimatedCost.Equal(decimal.NewFromInt(950)))
}

func TestLedger_ListaDeReposicionPorProveedor(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	createSupplied(t, l, "arena", "s1", 0, 10, 0)
	cemento := createSupplied(t, l, "cemento", "s2", 5, 20, 100)

	groups, err := l.ReplenishmentList(ctx, inventory.ReplenishmentFilter{SupplierID: "s2"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Items, 1)
	assert.Equal(t, cemento.ID, groups[0].Items[0].InventoryItemID)
	assert.Equal(t, 1, groups[0].Items[0].Priority)
}

func TestLedger_ListaDeReposicionVacia(t *testing.T) {
	l, _, _ := newLedger(t)
	createSupplied(t, l, "ladrillo", "s1", 50, 20, 0)

	groups, err := l.ReplenishmentList(context.Background(), inventory.ReplenishmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

// Agotado sin mínimo ni máximo: se sugiere al menos una unidad.
func TestLedger_ReposicionMinimaDeUnaUnidad(t *testing.T) {
	l, _, _ := newLedger(t)
	createSupplied(t, l, "clavos", "", 0, 0, 0)

	groups, err := l.ReplenishmentList(context.Background(), inventory.ReplenishmentFilter{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "", groups[0].SupplierID)
	assert.Equal(t, 1, groups[0].Items[0].SuggestedQty)
}
