package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
)

// CreateInventoryItemRequest body para POST /api/inventory.
type CreateInventoryItemRequest struct {
	ProductID       string          `json:"product_id" validate:"required,max=64"`
	InitialQuantity int             `json:"initial_quantity" validate:"gte=0"`
	MinimumStock    int             `json:"minimum_stock" validate:"gte=0"`
	MaximumStock    int             `json:"maximum_stock" validate:"gte=0"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	Location        string          `json:"location" validate:"max=100"`
	SupplierID      string          `json:"supplier_id,omitempty"`
	ExpirationDate  *time.Time      `json:"expiration_date,omitempty"`
	BatchNumber     string          `json:"batch_number,omitempty" validate:"max=64"`
}

// AdjustInventoryRequest body para POST /api/inventory/:id/adjust (conteo físico).
type AdjustInventoryRequest struct {
	Quantity *int   `json:"quantity" validate:"required"`
	Reason   string `json:"reason" validate:"max=255"`
}

// ReceiveInventoryRequest body para POST /api/inventory/:id/receive.
type ReceiveInventoryRequest struct {
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	Reference string           `json:"reference" validate:"max=100"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
}

// TransferInventoryRequest body para POST /api/inventory/:id/transfer.
type TransferInventoryRequest struct {
	Location string `json:"location" validate:"required,max=100"`
}

// InventoryListQuery filtros de GET /api/inventory.
type InventoryListQuery struct {
	ProductID  string `query:"product_id"`
	SupplierID string `query:"supplier_id"`
	Location   string `query:"location"`
	Status     string `query:"status" validate:"omitempty,oneof=in_stock low_stock out_of_stock expired"`
	Sort       string `query:"sort" validate:"omitempty,oneof=created_at -created_at updated_at -updated_at quantity -quantity"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset     int    `query:"offset" validate:"omitempty,min=0"`
}

// HistoryQuery paginación del historial de movimientos (página base 1).
type HistoryQuery struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// InventoryItemResponse ítem con su estado derivado.
type InventoryItemResponse struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	Quantity       int             `json:"quantity"`
	MinimumStock   int             `json:"minimum_stock"`
	MaximumStock   int             `json:"maximum_stock"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Location       string          `json:"location"`
	SupplierID     string          `json:"supplier_id,omitempty"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
	BatchNumber    string          `json:"batch_number,omitempty"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// InventoryItemFromEntity arma la respuesta derivando el estado en now.
func InventoryItemFromEntity(it *entity.InventoryItem, now time.Time) InventoryItemResponse {
	return InventoryItemResponse{
		ID:             it.ID,
		ProductID:      it.ProductID,
		Quantity:       it.Quantity,
		MinimumStock:   it.MinimumStock,
		MaximumStock:   it.MaximumStock,
		UnitCost:       it.UnitCost,
		Location:       it.Location,
		SupplierID:     it.SupplierID,
		ExpirationDate: it.ExpirationDate,
		BatchNumber:    it.BatchNumber,
		Status:         it.Status(now),
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
}

// StockMovementResponse registro del journal.
type StockMovementResponse struct {
	ID               string    `json:"id"`
	InventoryItemID  string    `json:"inventory_item_id"`
	ProductID        string    `json:"product_id"`
	Type             string    `json:"type"`
	Quantity         int       `json:"quantity"`
	Delta            int       `json:"delta"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	Reason           string    `json:"reason"`
	Reference        string    `json:"reference"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// StockMovementFromEntity convierte un movimiento a respuesta.
func StockMovementFromEntity(m *entity.StockMovement) StockMovementResponse {
	return StockMovementResponse{
		ID:               m.ID,
		InventoryItemID:  m.InventoryItemID,
		ProductID:        m.ProductID,
		Type:             m.Type,
		Quantity:         m.Quantity,
		Delta:            m.Delta,
		PreviousQuantity: m.PreviousQuantity,
		NewQuantity:      m.NewQuantity,
		Reason:           m.Reason,
		Reference:        m.Reference,
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt,
	}
}

// InventoryListResponse página de ítems.
type InventoryListResponse struct {
	Items []InventoryItemResponse `json:"items"`
	Page  PageResponse            `json:"page"`
}

// MovementHistoryResponse página del historial (más reciente primero).
type MovementHistoryResponse struct {
	Movements []StockMovementResponse `json:"movements"`
	Page      int                     `json:"page"`
	PageSize  int                     `json:"page_size"`
	Total     int                     `json:"total"`
}
