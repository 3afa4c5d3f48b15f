package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una orden de venta.
const (
	OrderStatusDraft      = "draft"
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Estados de pago de una orden.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPartial  = "partial"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// orderFlow define el avance lineal de la orden; cancelled se alcanza aparte.
var orderFlow = map[string]string{
	OrderStatusDraft:      OrderStatusPending,
	OrderStatusPending:    OrderStatusConfirmed,
	OrderStatusConfirmed:  OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

// OrderItem línea de una orden de venta.
type OrderItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Order representa la cabecera de una orden de venta con sus líneas.
type Order struct {
	ID               string
	OrderNumber      string // ORD-YYYYMM-NNNN
	CustomerID       string
	Items            []OrderItem
	Subtotal         decimal.Decimal
	Tax              decimal.Decimal
	Shipping         decimal.Decimal
	Discount         decimal.Decimal
	Total            decimal.Decimal
	Status           string
	PaymentStatus    string
	Notes            string
	ShippingAddress  string
	ExpectedDelivery *time.Time
	ActualDelivery   *time.Time
	ConfirmedAt      *time.Time
	CancelledAt      *time.Time
	CancelReason     string
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NextOrderStatus devuelve el siguiente estado del flujo lineal ("" si no hay).
func NextOrderStatus(status string) string {
	return orderFlow[status]
}

// IsTerminal indica si la orden ya no admite transiciones.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}

// CanModify indica si las líneas pueden reemplazarse.
func (o *Order) CanModify() bool {
	return o.Status == OrderStatusDraft || o.Status == OrderStatusPending
}

// HasReservedStock indica si la orden ya reservó inventario (confirmed o posterior).
func (o *Order) HasReservedStock() bool {
	switch o.Status {
	case OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// IsValidOrderStatus indica si s pertenece al vocabulario de estados de orden.
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusDraft, OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsValidPaymentStatus indica si s es un estado de pago válido.
func IsValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// Clone devuelve una copia profunda (líneas y punteros de fecha).
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.ExpectedDelivery = cloneTime(o.ExpectedDelivery)
	c.ActualDelivery = cloneTime(o.ActualDelivery)
	c.ConfirmedAt = cloneTime(o.ConfirmedAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
