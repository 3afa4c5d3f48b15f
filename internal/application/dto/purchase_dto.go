package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
)

// PurchaseLineRequest línea de compra. Sin unit_cost se usa el costo del producto.
type PurchaseLineRequest struct {
	ProductID string           `json:"product_id" validate:"required,max=64"`
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
}

// CreatePurchaseRequest body para POST /api/purchases.
type CreatePurchaseRequest struct {
	SupplierID       string                `json:"supplier_id" validate:"required,max=64"`
	Items            []PurchaseLineRequest `json:"items" validate:"dive"`
	Notes            string                `json:"notes" validate:"max=1000"`
	ExpectedDelivery *time.Time            `json:"expected_delivery,omitempty"`
}

// UpdatePurchaseRequest body para PUT /api/purchases/:id.
type UpdatePurchaseRequest struct {
	Items            []PurchaseLineRequest `json:"items,omitempty" validate:"omitempty,dive"`
	Notes            *string               `json:"notes,omitempty" validate:"omitempty,max=1000"`
	ExpectedDelivery *time.Time            `json:"expected_delivery,omitempty"`
}

// ReceiveLineRequest cantidad recibida de un producto.
type ReceiveLineRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// ReceivePurchaseRequest body para POST /api/purchases/:id/receive.
type ReceivePurchaseRequest struct {
	Items []ReceiveLineRequest `json:"items" validate:"dive"`
}

// PurchaseListQuery filtros de GET /api/purchases.
type PurchaseListQuery struct {
	SupplierID string `query:"supplier_id"`
	Status     string `query:"status" validate:"omitempty,oneof=draft pending approved ordered received cancelled"`
	Number     string `query:"number"`
	From       string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To         string `query:"to" validate:"omitempty,datetime=2006-01-02"`
	Sort       string `query:"sort" validate:"omitempty,oneof=created_at -created_at total -total purchase_number -purchase_number"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset     int    `query:"offset" validate:"omitempty,min=0"`
}

// PurchaseItemResponse línea de compra con lo recibido.
type PurchaseItemResponse struct {
	ProductID         string          `json:"product_id"`
	Quantity          int             `json:"quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	Total             decimal.Decimal `json:"total"`
	ReceivedQuantity  int             `json:"received_quantity"`
	RemainingQuantity int             `json:"remaining_quantity"`
}

// PurchaseResponse orden de compra.
type PurchaseResponse struct {
	ID               string                 `json:"id"`
	PurchaseNumber   string                 `json:"purchase_number"`
	SupplierID       string                 `json:"supplier_id"`
	Items            []PurchaseItemResponse `json:"items"`
	Subtotal         decimal.Decimal        `json:"subtotal"`
	Tax              decimal.Decimal        `json:"tax"`
	Shipping         decimal.Decimal        `json:"shipping"`
	Total            decimal.Decimal        `json:"total"`
	Status           string                 `json:"status"`
	Notes            string                 `json:"notes,omitempty"`
	ExpectedDelivery *time.Time             `json:"expected_delivery,omitempty"`
	ApprovedBy       string                 `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time             `json:"approved_at,omitempty"`
	ReceivedAt       *time.Time             `json:"received_at,omitempty"`
	CreatedBy        string                 `json:"created_by"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// ReceiveResponse resultado de una recepción.
type ReceiveResponse struct {
	Purchase PurchaseResponse      `json:"purchase"`
	Lines    []ReceivedLineResponse `json:"lines"`
}

// ReceivedLineResponse detalle por producto: aceptado y exceso recortado.
type ReceivedLineResponse struct {
	ProductID       string `json:"product_id"`
	InventoryItemID string `json:"inventory_item_id"`
	Requested       int    `json:"requested"`
	Accepted        int    `json:"accepted"`
	Excess          int    `json:"excess"`
}

// PurchaseFromEntity convierte la compra a respuesta.
func PurchaseFromEntity(p *entity.PurchaseOrder) PurchaseResponse {
	items := make([]PurchaseItemResponse, 0, len(p.Items))
	for i := range p.Items {
		it := &p.Items[i]
		items = append(items, PurchaseItemResponse{
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			UnitCost:          it.UnitCost,
			Total:             it.Total,
			ReceivedQuantity:  it.ReceivedQuantity,
			RemainingQuantity: it.RemainingQuantity(),
		})
	}
	return PurchaseResponse{
		ID:               p.ID,
		PurchaseNumber:   p.PurchaseNumber,
		SupplierID:       p.SupplierID,
		Items:            items,
		Subtotal:         p.Subtotal,
		Tax:              p.Tax,
		Shipping:         p.Shipping,
		Total:            p.Total,
		Status:           p.Status,
		Notes:            p.Notes,
		ExpectedDelivery: p.ExpectedDelivery,
		ApprovedBy:       p.ApprovedBy,
		ApprovedAt:       p.ApprovedAt,
		ReceivedAt:       p.ReceivedAt,
		CreatedBy:        p.CreatedBy,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// PurchaseListResponse página de compras.
type PurchaseListResponse struct {
	Purchases []PurchaseResponse `json:"purchases"`
	Page      PageResponse       `json:"page"`
}
