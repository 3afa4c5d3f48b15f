package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
)

// OrderLineRequest línea de una orden. Sin unit_price se usa el precio de lista.
type OrderLineRequest struct {
	ProductID string           `json:"product_id" validate:"required,max=64"`
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// CreateOrderRequest body para POST /api/orders.
type CreateOrderRequest struct {
	CustomerID       string             `json:"customer_id" validate:"required,max=64"`
	Items            []OrderLineRequest `json:"items" validate:"dive"`
	Discount         decimal.Decimal    `json:"discount"`
	Notes            string             `json:"notes" validate:"max=1000"`
	ShippingAddress  string             `json:"shipping_address" validate:"max=500"`
	ExpectedDelivery *time.Time         `json:"expected_delivery,omitempty"`
}

// UpdateOrderRequest body para PUT /api/orders/:id. Campos ausentes no cambian.
type UpdateOrderRequest struct {
	Items            []OrderLineRequest `json:"items,omitempty" validate:"omitempty,dive"`
	Discount         *decimal.Decimal   `json:"discount,omitempty"`
	Notes            *string            `json:"notes,omitempty" validate:"omitempty,max=1000"`
	ShippingAddress  *string            `json:"shipping_address,omitempty" validate:"omitempty,max=500"`
	ExpectedDelivery *time.Time         `json:"expected_delivery,omitempty"`
}

// CancelOrderRequest body opcional para POST /api/orders/:id/cancel.
type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// PaymentStatusRequest body para POST /api/orders/:id/payment.
type PaymentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending partial paid refunded"`
}

// OrderListQuery filtros de GET /api/orders. Fechas en formato YYYY-MM-DD.
type OrderListQuery struct {
	CustomerID    string `query:"customer_id"`
	Status        string `query:"status" validate:"omitempty,oneof=draft pending confirmed processing shipped delivered cancelled"`
	PaymentStatus string `query:"payment_status" validate:"omitempty,oneof=pending partial paid refunded"`
	Number        string `query:"number"`
	From          string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To            string `query:"to" validate:"omitempty,datetime=2006-01-02"`
	Sort          string `query:"sort" validate:"omitempty,oneof=created_at -created_at total -total order_number -order_number"`
	Limit         int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset        int    `query:"offset" validate:"omitempty,min=0"`
}

// OrderItemResponse línea de orden.
type OrderItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// OrderResponse orden de venta.
type OrderResponse struct {
	ID               string              `json:"id"`
	OrderNumber      string              `json:"order_number"`
	CustomerID       string              `json:"customer_id"`
	Items            []OrderItemResponse `json:"items"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	Tax              decimal.Decimal     `json:"tax"`
	Shipping         decimal.Decimal     `json:"shipping"`
	Discount         decimal.Decimal     `json:"discount"`
	Total            decimal.Decimal     `json:"total"`
	Status           string              `json:"status"`
	PaymentStatus    string              `json:"payment_status"`
	Notes            string              `json:"notes,omitempty"`
	ShippingAddress  string              `json:"shipping_address,omitempty"`
	ExpectedDelivery *time.Time          `json:"expected_delivery,omitempty"`
	ActualDelivery   *time.Time          `json:"actual_delivery,omitempty"`
	ConfirmedAt      *time.Time          `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason     string              `json:"cancel_reason,omitempty"`
	CreatedBy        string              `json:"created_by"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// OrderFromEntity convierte la orden a respuesta.
func OrderFromEntity(o *entity.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice, Total: it.Total})
	}
	return OrderResponse{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		CustomerID:       o.CustomerID,
		Items:            items,
		Subtotal:         o.Subtotal,
		Tax:              o.Tax,
		Shipping:         o.Shipping,
		Discount:         o.Discount,
		Total:            o.Total,
		Status:           o.Status,
		PaymentStatus:    o.PaymentStatus,
		Notes:            o.Notes,
		ShippingAddress:  o.ShippingAddress,
		ExpectedDelivery: o.ExpectedDelivery,
		ActualDelivery:   o.ActualDelivery,
		ConfirmedAt:      o.ConfirmedAt,
		CancelledAt:      o.CancelledAt,
		CancelReason:     o.CancelReason,
		CreatedBy:        o.CreatedBy,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// OrderListResponse página de órdenes.
type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Page   PageResponse    `json:"page"`
}
