package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
)

// ReplenishmentFilter acota la lista de reposición.
type ReplenishmentFilter struct {
	SupplierID string
	Location   string
}

// ReplenishmentSuggestion cantidad sugerida de pedido para un ítem bajo su punto de reorden.
type ReplenishmentSuggestion struct {
	InventoryItemID string          `json:"inventory_item_id"`
	ProductID       string          `json:"product_id"`
	SupplierID      string          `json:"supplier_id,omitempty"`
	Location        string          `json:"location"`
	Status          string          `json:"status"`
	CurrentStock    int             `json:"current_stock"`
	MinimumStock    int             `json:"minimum_stock"`
	TargetStock     int             `json:"target_stock"`  // MaximumStock o 1.5 × MinimumStock
	Deficit         int             `json:"deficit"`       // MinimumStock - CurrentStock
	SuggestedQty    int             `json:"suggested_qty"` // TargetStock - CurrentStock, mínimo 1
	UnitCost        decimal.Decimal `json:"unit_cost"`
	EstimatedCost   decimal.Decimal `json:"estimated_cost"` // SuggestedQty × UnitCost
	Priority        int             `json:"priority"`       // 1 = más urgente
}

// ReplenishmentGroup sugerencias de un mismo proveedor. SupplierID vacío agrupa los ítems sin proveedor.
type ReplenishmentGroup struct {
	SupplierID    string                    `json:"supplier_id"`
	Items         []ReplenishmentSuggestion `json:"items"`
	EstimatedCost decimal.Decimal           `json:"estimated_cost"`
}

var idealStockFactor = decimal.NewFromFloat(1.5)

// ReplenishmentList devuelve los ítems agotados o con stock bajo agrupados por proveedor.
// Prioridad: primero agotados, luego mayor déficit y mayor cantidad sugerida.
// Los grupos se ordenan por la prioridad de su ítem más urgente.
func (l *Ledger) ReplenishmentList(ctx context.Context, filter ReplenishmentFilter) ([]ReplenishmentGroup, error) {
	now := l.now()
	var items []*entity.InventoryItem
	for _, status := range []string{entity.StockStatusOutOfStock, entity.StockStatusLowStock} {
		found, err := l.items.Find(ctx, repository.InventoryFilter{
			SupplierID: filter.SupplierID,
			Location:   filter.Location,
			Status:     status,
			AsOf:       now,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, found...)
	}

	suggestions := make([]ReplenishmentSuggestion, 0, len(items))
	for _, item := range items {
		suggestions = append(suggestions, suggestReplenishment(item, now))
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		aOut, bOut := a.Status == entity.StockStatusOutOfStock, b.Status == entity.StockStatusOutOfStock
		if aOut != bOut {
			return aOut
		}
		if a.Deficit != b.Deficit {
			return a.Deficit > b.Deficit
		}
		if a.SuggestedQty != b.SuggestedQty {
			return a.SuggestedQty > b.SuggestedQty
		}
		return a.InventoryItemID < b.InventoryItemID
	})

	groups := make([]ReplenishmentGroup, 0)
	bySupplier := make(map[string]int)
	for i := range suggestions {
		suggestions[i].Priority = i + 1
		s := suggestions[i]
		idx, ok := bySupplier[s.SupplierID]
		if !ok {
			idx = len(groups)
			bySupplier[s.SupplierID] = idx
			groups = append(groups, ReplenishmentGroup{SupplierID: s.SupplierID, EstimatedCost: decimal.Zero})
		}
		groups[idx].Items = append(groups[idx].Items, s)
		groups[idx].EstimatedCost = groups[idx].EstimatedCost.Add(s.EstimatedCost)
	}
	return groups, nil
}

func suggestReplenishment(item *entity.InventoryItem, now time.Time) ReplenishmentSuggestion {
	target := item.MaximumStock
	if target <= 0 {
		target = int(decimal.NewFromInt(int64(item.MinimumStock)).Mul(idealStockFactor).Ceil().IntPart())
	}
	qty := target - item.Quantity
	if qty < 1 {
		qty = 1
	}
	deficit := item.MinimumStock - item.Quantity
	if deficit < 0 {
		deficit = 0
	}
	return ReplenishmentSuggestion{
		InventoryItemID: item.ID,
		ProductID:       item.ProductID,
		SupplierID:      item.SupplierID,
		Location:        item.Location,
		Status:          item.Status(now),
		CurrentStock:    item.Quantity,
		MinimumStock:    item.MinimumStock,
		TargetStock:     target,
		Deficit:         deficit,
		SuggestedQty:    qty,
		UnitCost:        item.UnitCost,
		EstimatedCost:   item.UnitCost.Mul(decimal.NewFromInt(int64(qty))).Round(2),
	}
}
