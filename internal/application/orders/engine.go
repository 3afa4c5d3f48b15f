package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/jhoicas/materiales-erp/internal/application/inventory"
	"github.com/jhoicas/materiales-erp/internal/application/ports"
	"github.com/jhoicas/materiales-erp/internal/domain"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/pricing"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
	"github.com/jhoicas/materiales-erp/pkg/logger"
)

// NumberPrefix prefijo de los números de orden (ORD-YYYYMM-NNNN).
const NumberPrefix = "ORD"

// LineInput línea solicitada. Sin UnitPrice se usa el precio del producto.
type LineInput struct {
	ProductID string
	Quantity  int
	UnitPrice *decimal.Decimal
}

// CreateInput datos para crear una orden.
type CreateInput struct {
	CustomerID       string
	Items            []LineInput
	Discount         decimal.Decimal
	Notes            string
	ShippingAddress  string
	ExpectedDelivery *time.Time
}

// UpdateInput reemplazo de líneas y datos opcionales (nil = sin cambio).
type UpdateInput struct {
	Items            []LineInput
	Discount         *decimal.Decimal
	Notes            *string
	ShippingAddress  *string
	ExpectedDelivery *time.Time
}

// Engine máquina de estados de la orden de venta. Confirmar reserva inventario en el ledger
// y cancelar una orden confirmada lo libera, siempre en la misma transacción que el cambio de estado.
type Engine struct {
	ledger    *inventory.Ledger
	orders    repository.OrderRepository
	products  repository.ProductRepository
	customers repository.CustomerRepository
	sequences repository.SequenceGenerator
	notifier  ports.Notifier
	log       *logger.Logger
	now       func() time.Time
}

// NewEngine construye el motor de órdenes.
func NewEngine(
	ledger *inventory.Ledger,
	orders repository.OrderRepository,
	products repository.ProductRepository,
	customers repository.CustomerRepository,
	sequences repository.SequenceGenerator,
	notifier ports.Notifier,
	log *logger.Logger,
) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		ledger:    ledger,
		orders:    orders,
		products:  products,
		customers: customers,
		sequences: sequences,
		notifier:  notifier,
		log:       log.Named("orders"),
		now:       time.Now,
	}
}

// SetClock reemplaza el reloj (tests).
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Create construye la orden en draft con totales calculados.
func (e *Engine) Create(ctx context.Context, actor string, in CreateInput) (*entity.Order, error) {
	if in.CustomerID == "" {
		return nil, fmt.Errorf("customer_id requerido: %w", domain.ErrInvalidInput)
	}
	customer, err := e.customers.GetByID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, fmt.Errorf("cliente %s no existe: %w", in.CustomerID, domain.ErrInvalidInput)
	}
	items, totals, err := e.buildLines(ctx, in.Items)
	if err != nil {
		return nil, err
	}
	if in.Discount.IsNegative() {
		return nil, fmt.Errorf("descuento negativo: %w", domain.ErrInvalidInput)
	}
	number, err := e.nextNumber(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()
	o := &entity.Order{
		ID:               uuid.New().String(),
		OrderNumber:      number,
		CustomerID:       in.CustomerID,
		Items:            items,
		Discount:         in.Discount,
		Status:           entity.OrderStatusDraft,
		PaymentStatus:    entity.PaymentStatusPending,
		Notes:            in.Notes,
		ShippingAddress:  in.ShippingAddress,
		ExpectedDelivery: in.ExpectedDelivery,
		CreatedBy:        actor,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	applyTotals(o, totals)
	// cabecera y líneas en una sola transacción
	err = e.ledger.RunLocked(ctx, []string{inventory.OrderKey(o.ID)}, func(tx *inventory.LedgerTx) error {
		return tx.Orders.Create(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("order_id", o.ID).Str("order_number", o.OrderNumber).Str("total", o.Total.StringFixed(2)).Msg("orden creada")
	return o, nil
}

// Update reemplaza líneas y recalcula totales. Solo en draft o pending.
func (e *Engine) Update(ctx context.Context, id, actor string, in UpdateInput) (*entity.Order, error) {
	var (
		items  []entity.OrderItem
		totals pricing.Totals
	)
	if in.Items != nil {
		var err error
		items, totals, err = e.buildLines(ctx, in.Items)
		if err != nil {
			return nil, err
		}
	}
	if in.Discount != nil && in.Discount.IsNegative() {
		return nil, fmt.Errorf("descuento negativo: %w", domain.ErrInvalidInput)
	}
	return e.mutate(ctx, id, nil, func(_ *inventory.LedgerTx, o *entity.Order) error {
		if !o.CanModify() {
			return fmt.Errorf("actualizar orden en estado %s: %w", o.Status, domain.ErrInvalidStateTransition)
		}
		if in.Notes != nil {
			o.Notes = *in.Notes
		}
		if in.ShippingAddress != nil {
			o.ShippingAddress = *in.ShippingAddress
		}
		if in.ExpectedDelivery != nil {
			o.ExpectedDelivery = in.ExpectedDelivery
		}
		if in.Discount != nil {
			o.Discount = *in.Discount
		}
		if items != nil {
			o.Items = items
		} else {
			totals = totalsOf(o)
		}
		applyTotals(o, totals)
		return nil
	})
}

// Submit pasa la orden de draft a pending.
func (e *Engine) Submit(ctx context.Context, id, actor string) (*entity.Order, error) {
	return e.transition(ctx, id, nil, func(_ *inventory.LedgerTx, o *entity.Order) error {
		if o.Status != entity.OrderStatusDraft {
			return fmt.Errorf("enviar orden en estado %s: %w", o.Status, domain.ErrInvalidStateTransition)
		}
		o.Status = entity.OrderStatusPending
		return nil
	})
}

// Confirm reserva todas las líneas y pasa la orden a confirmed. Si falta stock la orden queda
// en su estado anterior y el error trae el detalle de faltantes.
func (e *Engine) Confirm(ctx context.Context, id, actor string) (*entity.Order, error) {
	current, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != entity.OrderStatusDraft && current.Status != entity.OrderStatusPending {
		return nil, fmt.Errorf("confirmar orden en estado %s: %w", current.Status, domain.ErrInvalidStateTransition)
	}
	itemIDs, keys, err := e.resolveItems(ctx, current.Items)
	if err != nil {
		return nil, err
	}
	o, err := e.transition(ctx, id, keys, func(tx *inventory.LedgerTx, o *entity.Order) error {
		if o.Status != entity.OrderStatusDraft && o.Status != entity.OrderStatusPending {
			return fmt.Errorf("confirmar orden en estado %s: %w", o.Status, domain.ErrInvalidStateTransition)
		}
		lines, err := ledgerLines(o.Items, itemIDs)
		if err != nil {
			return err
		}
		if err := tx.ReserveMany(ctx, lines, o.ID, actor); err != nil {
			return err
		}
		now := e.now()
		o.Status = entity.OrderStatusConfirmed
		o.ConfirmedAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			e.log.Warn().Str("order_id", id).Interface("shortfalls", domain.ShortfallsOf(err)).Msg("confirmación rechazada por stock insuficiente")
		}
		return nil, err
	}
	return o, nil
}

// Advance avanza confirmed → processing → shipped → delivered.
func (e *Engine) Advance(ctx context.Context, id, actor string) (*entity.Order, error) {
	return e.transition(ctx, id, nil, func(_ *inventory.LedgerTx, o *entity.Order) error {
		if !o.HasReservedStock() {
			return fmt.Errorf("avanzar orden en estado %s: %w", o.Status, domain.ErrInvalidStateTransition)
		}
		next := entity.NextOrderStatus(o.Status)
		if next == "" {
			return fmt.Errorf("la orden ya está en estado final %s: %w", o.Status, domain.ErrInvalidStateTransition)
		}
		o.Status = next
		if next == entity.OrderStatusDelivered {
			now := e.now()
			o.ActualDelivery = &now
		}
		return nil
	})
}

// Cancel cancela una orden no terminal. Si ya había reservado stock lo libera con la
// referencia cancel:<orderID> antes de marcarla cancelada.
func (e *Engine) Cancel(ctx context.Context, id, actor, reason string) (*entity.Order, error) {
	current, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsTerminal() {
		return nil, fmt.Errorf("cancelar orden en estado %s: %w", current.Status, domain.ErrInvalidStateTransition)
	}
	var (
		itemIDs map[string]string
		keys    []string
	)
	if current.HasReservedStock() {
		itemIDs, keys, err = e.resolveItems(ctx, current.Items)
		if err != nil {
			return nil, err
		}
	}
	return e.transition(ctx, id, keys, func(tx *inventory.LedgerTx, o *entity.Order) error {
		if o.IsTerminal() {
			return fmt.Errorf("cancelar orden en estado %s: %w", o.Status, domain.ErrInvalidStateTransition)
		}
		if o.HasReservedStock() {
			if itemIDs == nil {
				return fmt.Errorf("la orden %s cambió durante la cancelación: %w", o.ID, domain.ErrConflict)
			}
			lines, err := ledgerLines(o.Items, itemIDs)
			if err != nil {
				return err
			}
			if err := tx.Release(ctx, lines, CancelReference(o.ID), actor); err != nil {
				return err
			}
		}
		now := e.now()
		o.Status = entity.OrderStatusCancelled
		o.CancelledAt = &now
		o.CancelReason = reason
		return nil
	})
}

// CancelReference referencia del journal con la que se libera la reserva de una orden.
func CancelReference(orderID string) string { return "cancel:" + orderID }

// Delete elimina una orden en draft.
func (e *Engine) Delete(ctx context.Context, id, actor string) error {
	err := e.ledger.RunLocked(ctx, []string{inventory.OrderKey(id)}, func(tx *inventory.LedgerTx) error {
		o, err := tx.Orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("orden %s: %w", id, domain.ErrNotFound)
		}
		if o.Status != entity.OrderStatusDraft {
			return fmt.Errorf("eliminar orden en estado %s: %w", o.Status, domain.ErrInvalidStateTransition)
		}
		return tx.Orders.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	e.log.Info().Str("order_id", id).Str("actor", actor).Msg("orden eliminada")
	return nil
}

// SetPaymentStatus actualiza el estado de pago.
func (e *Engine) SetPaymentStatus(ctx context.Context, id, status string) (*entity.Order, error) {
	if !entity.IsValidPaymentStatus(status) {
		return nil, fmt.Errorf("estado de pago %q: %w", status, domain.ErrInvalidInput)
	}
	return e.mutate(ctx, id, nil, func(_ *inventory.LedgerTx, o *entity.Order) error {
		if o.Status == entity.OrderStatusCancelled && status != entity.PaymentStatusRefunded {
			return fmt.Errorf("pago de orden cancelada: %w", domain.ErrInvalidStateTransition)
		}
		o.PaymentStatus = status
		return nil
	})
}

// Get obtiene una orden por ID.
func (e *Engine) Get(ctx context.Context, id string) (*entity.Order, error) {
	o, err := e.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("orden %s: %w", id, domain.ErrNotFound)
	}
	return o, nil
}

// List lista órdenes con filtro y devuelve el total sin paginar.
func (e *Engine) List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, int, error) {
	if filter.Status != "" && !entity.IsValidOrderStatus(filter.Status) {
		return nil, 0, fmt.Errorf("estado %q: %w", filter.Status, domain.ErrInvalidInput)
	}
	if filter.PaymentStatus != "" && !entity.IsValidPaymentStatus(filter.PaymentStatus) {
		return nil, 0, fmt.Errorf("estado de pago %q: %w", filter.PaymentStatus, domain.ErrInvalidInput)
	}
	list, err := e.orders.Find(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	countFilter := filter
	countFilter.Limit, countFilter.Offset = 0, 0
	total, err := e.orders.Count(ctx, countFilter)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// mutate bloquea la orden (más extraKeys), la relee dentro de la transacción, aplica fn y la persiste.
func (e *Engine) mutate(ctx context.Context, id string, extraKeys []string, fn func(tx *inventory.LedgerTx, o *entity.Order) error) (*entity.Order, error) {
	keys := append([]string{inventory.OrderKey(id)}, extraKeys...)
	var out *entity.Order
	err := e.ledger.RunLocked(ctx, keys, func(tx *inventory.LedgerTx) error {
		o, err := tx.Orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("orden %s: %w", id, domain.ErrNotFound)
		}
		if err := fn(tx, o); err != nil {
			return err
		}
		o.UpdatedAt = e.now()
		if err := tx.Orders.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// transition es mutate más log y notificación del cambio de estado.
func (e *Engine) transition(ctx context.Context, id string, extraKeys []string, fn func(tx *inventory.LedgerTx, o *entity.Order) error) (*entity.Order, error) {
	var from string
	o, err := e.mutate(ctx, id, extraKeys, func(tx *inventory.LedgerTx, o *entity.Order) error {
		from = o.Status
		return fn(tx, o)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("order_id", o.ID).Str("from", from).Str("to", o.Status).Msg("transición de orden")
	e.notify(ctx, o, from)
	return o, nil
}

func (e *Engine) notify(ctx context.Context, o *entity.Order, from string) {
	if e.notifier == nil || from == o.Status {
		return
	}
	priority := ports.PriorityLow
	if o.Status == entity.OrderStatusCancelled {
		priority = ports.PriorityMedium
	}
	err := e.notifier.Send(ctx, ports.Notification{
		Type:     ports.NotificationOrderStatus,
		Title:    "Orden " + o.OrderNumber,
		Message:  fmt.Sprintf("La orden %s pasó de %s a %s", o.OrderNumber, from, o.Status),
		Priority: priority,
		Data: map[string]any{
			"order_id":     o.ID,
			"order_number": o.OrderNumber,
			"from":         from,
			"to":           o.Status,
		},
	})
	if err != nil {
		e.log.Warn().Err(err).Str("order_id", o.ID).Msg("notificación no enviada")
	}
}

// buildLines valida las líneas contra el catálogo y calcula los totales.
func (e *Engine) buildLines(ctx context.Context, in []LineInput) ([]entity.OrderItem, pricing.Totals, error) {
	if len(in) == 0 {
		return nil, pricing.Totals{}, domain.ErrEmptyLines
	}
	items := make([]entity.OrderItem, 0, len(in))
	lines := make([]pricing.Line, 0, len(in))
	for _, ln := range in {
		if ln.Quantity <= 0 {
			return nil, pricing.Totals{}, fmt.Errorf("cantidad de %s debe ser positiva: %w", ln.ProductID, domain.ErrInvalidInput)
		}
		product, err := e.products.GetByID(ctx, ln.ProductID)
		if err != nil {
			return nil, pricing.Totals{}, err
		}
		if product == nil {
			return nil, pricing.Totals{}, fmt.Errorf("producto %s no existe: %w", ln.ProductID, domain.ErrInvalidInput)
		}
		price := product.Price
		if ln.UnitPrice != nil {
			price = *ln.UnitPrice
		}
		if price.IsNegative() {
			return nil, pricing.Totals{}, fmt.Errorf("precio de %s negativo: %w", ln.ProductID, domain.ErrInvalidInput)
		}
		pl := pricing.Line{Quantity: ln.Quantity, UnitPrice: price}
		lines = append(lines, pl)
		items = append(items, entity.OrderItem{
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitPrice: price,
			Total:     pl.Total(),
		})
	}
	totals, err := pricing.Calculate(lines, pricing.SalesPolicy)
	if err != nil {
		return nil, pricing.Totals{}, err
	}
	return items, totals, nil
}

func totalsOf(o *entity.Order) pricing.Totals {
	lines := make([]pricing.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, pricing.Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	t, _ := pricing.Calculate(lines, pricing.SalesPolicy)
	return t
}

// applyTotals Total = Subtotal + Tax + Shipping - Discount, nunca negativo.
func applyTotals(o *entity.Order, t pricing.Totals) {
	o.Subtotal = t.Subtotal
	o.Tax = t.Tax
	o.Shipping = t.Shipping
	total := t.Total.Sub(o.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total
}

// resolveItems busca el ítem de inventario de cada producto y arma las llaves a bloquear.
func (e *Engine) resolveItems(ctx context.Context, items []entity.OrderItem) (map[string]string, []string, error) {
	ids := make(map[string]string, len(items))
	keys := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := ids[it.ProductID]; ok {
			continue
		}
		item, err := e.ledger.GetByProduct(ctx, it.ProductID)
		if err != nil {
			return nil, nil, err
		}
		ids[it.ProductID] = item.ID
		keys = append(keys, inventory.ItemKey(item.ID))
	}
	return ids, keys, nil
}

// ledgerLines traduce las líneas de la orden (por producto) a líneas del ledger (por ítem).
func ledgerLines(items []entity.OrderItem, itemIDs map[string]string) ([]inventory.Line, error) {
	lines := make([]inventory.Line, 0, len(items))
	for _, it := range items {
		id, ok := itemIDs[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("las líneas de la orden cambiaron: %w", domain.ErrConflict)
		}
		lines = append(lines, inventory.Line{InventoryItemID: id, Quantity: it.Quantity})
	}
	return lines, nil
}

func (e *Engine) nextNumber(ctx context.Context) (string, error) {
	period := e.now().Format("200601")
	n, err := e.sequences.Next(ctx, NumberPrefix+"-"+period)
	if err != nil {
		return "", fmt.Errorf("secuencia de órdenes: %w", err)
	}
	return fmt.Sprintf("%s-%s-%04d", NumberPrefix, period, n), nil
}
