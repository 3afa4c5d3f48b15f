package ports

import "context"

// Tipos de notificación emitidos por el núcleo.
const (
	NotificationLowStock      = "low_stock"
	NotificationOutOfStock    = "out_of_stock"
	NotificationOrderStatus   = "order_status"
	NotificationPurchaseState = "purchase_status"
)

// Prioridades de notificación.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Notification mensaje hacia el colaborador de notificaciones.
type Notification struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
	Priority string         `json:"priority"`
}

// Notifier es el puerto de notificaciones (fire-and-forget).
// Un error de Send nunca revierte la operación que lo originó; el llamador solo lo registra.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
