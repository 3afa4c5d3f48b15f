package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una orden de compra.
const (
	PurchaseStatusDraft     = "draft"
	PurchaseStatusPending   = "pending"
	PurchaseStatusApproved  = "approved"
	PurchaseStatusOrdered   = "ordered"
	PurchaseStatusReceived  = "received"
	PurchaseStatusCancelled = "cancelled"
)

// PurchaseOrderItem línea de compra con cantidad recibida acumulada.
type PurchaseOrderItem struct {
	ProductID        string
	Quantity         int
	UnitCost         decimal.Decimal
	Total            decimal.Decimal
	ReceivedQuantity int
}

// RemainingQuantity cantidad pendiente de recibir (nunca negativa).
func (i *PurchaseOrderItem) RemainingQuantity() int {
	if r := i.Quantity - i.ReceivedQuantity; r > 0 {
		return r
	}
	return 0
}

// IsFullyReceived indica si la línea ya se recibió completa.
func (i *PurchaseOrderItem) IsFullyReceived() bool {
	return i.ReceivedQuantity >= i.Quantity
}

// PurchaseOrder representa una orden de compra a proveedor.
type PurchaseOrder struct {
	ID               string
	PurchaseNumber   string // PO-YYYYMM-NNNN
	SupplierID       string
	Items            []PurchaseOrderItem
	Subtotal         decimal.Decimal
	Tax              decimal.Decimal
	Shipping         decimal.Decimal
	Total            decimal.Decimal
	Status           string
	Notes            string
	ExpectedDelivery *time.Time
	ApprovedBy       string
	ApprovedAt       *time.Time
	ReceivedAt       *time.Time
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CanReceive indica si se pueden registrar recepciones en el estado actual.
func (p *PurchaseOrder) CanReceive() bool {
	return p.Status == PurchaseStatusApproved || p.Status == PurchaseStatusOrdered
}

// CanModify indica si las líneas pueden reemplazarse.
func (p *PurchaseOrder) CanModify() bool {
	return p.Status == PurchaseStatusDraft || p.Status == PurchaseStatusPending
}

// IsTerminal indica si la compra ya no admite transiciones.
func (p *PurchaseOrder) IsTerminal() bool {
	return p.Status == PurchaseStatusReceived || p.Status == PurchaseStatusCancelled
}

// IsFullyReceived es verdadero si todas las líneas están completas.
func (p *PurchaseOrder) IsFullyReceived() bool {
	if len(p.Items) == 0 {
		return false
	}
	for i := range p.Items {
		if !p.Items[i].IsFullyReceived() {
			return false
		}
	}
	return true
}

// IsValidPurchaseStatus indica si s pertenece al vocabulario de estados de compra.
func IsValidPurchaseStatus(s string) bool {
	switch s {
	case PurchaseStatusDraft, PurchaseStatusPending, PurchaseStatusApproved,
		PurchaseStatusOrdered, PurchaseStatusReceived, PurchaseStatusCancelled:
		return true
	}
	return false
}

// Clone devuelve una copia profunda.
func (p *PurchaseOrder) Clone() *PurchaseOrder {
	c := *p
	c.Items = append([]PurchaseOrderItem(nil), p.Items...)
	c.ExpectedDelivery = cloneTime(p.ExpectedDelivery)
	c.ApprovedAt = cloneTime(p.ApprovedAt)
	c.ReceivedAt = cloneTime(p.ReceivedAt)
	return &c
}
