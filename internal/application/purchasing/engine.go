package purchasing

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

// NumberPrefix prefijo de los números de compra (PO-YYYYMM-NNNN).
const NumberPrefix = "PO"

// defaultLocation ubicación de los ítems creados al recibir un producto sin inventario.
const defaultLocation = "default"

// LineInput línea de compra. Sin UnitCost se usa el costo del producto.
type LineInput struct {
	ProductID string
	Quantity  int
	UnitCost  *decimal.Decimal
}

// CreateInput datos para crear una orden de compra.
type CreateInput struct {
	SupplierID       string
	Items            []LineInput
	Notes            string
	ExpectedDelivery *time.Time
}

// UpdateInput reemplazo de líneas y datos opcionales (nil = sin cambio).
type UpdateInput struct {
	Items            []LineInput
	Notes            *string
	ExpectedDelivery *time.Time
}

// ReceiveLine cantidad recibida de un producto.
type ReceiveLine struct {
	ProductID string
	Quantity  int
}

// ReceivedLine resultado de una línea: lo aceptado se acredita en inventario y el exceso se informa.
type ReceivedLine struct {
	ProductID       string `json:"product_id"`
	InventoryItemID string `json:"inventory_item_id"`
	Requested       int    `json:"requested"`
	Accepted        int    `json:"accepted"`
	Excess          int    `json:"excess"`
}

// ReceiveResult compra actualizada más el detalle por línea.
type ReceiveResult struct {
	Purchase *entity.PurchaseOrder
	Lines    []ReceivedLine
}

// Engine máquina de estados de la orden de compra y conciliación de recepciones.
type Engine struct {
	ledger    *inventory.Ledger
	purchases repository.PurchaseOrderRepository
	products  repository.ProductRepository
	suppliers repository.SupplierRepository
	sequences repository.SequenceGenerator
	notifier  ports.Notifier
	log       *logger.Logger
	now       func() time.Time
}

// NewEngine construye el motor de compras.
func NewEngine(
	ledger *inventory.Ledger,
	purchases repository.PurchaseOrderRepository,
	products repository.ProductRepository,
	suppliers repository.SupplierRepository,
	sequences repository.SequenceGenerator,
	notifier ports.Notifier,
	log *logger.Logger,
) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		ledger:    ledger,
		purchases: purchases,
		products:  products,
		suppliers: suppliers,
		sequences: sequences,
		notifier:  notifier,
		log:       log.Named("purchasing"),
		now:       time.Now,
	}
}

// SetClock reemplaza el reloj (tests).
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Create construye la compra en draft con totales de compra (envío gratis desde $1000).
func (e *Engine) Create(ctx context.Context, actor string, in CreateInput) (*entity.PurchaseOrder, error) {
	if in.SupplierID == "" {
		return nil, fmt.Errorf("supplier_id requerido: %w", domain.ErrInvalidInput)
	}
	supplier, err := e.suppliers.GetByID(ctx, in.SupplierID)
	if err != nil {
		return nil, err
	}
	if supplier == nil {
		return nil, fmt.Errorf("proveedor %s no existe: %w", in.SupplierID, domain.ErrInvalidInput)
	}
	items, totals, err := e.buildLines(ctx, in.Items)
	if err != nil {
		return nil, err
	}
	number, err := e.nextNumber(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()
	p := &entity.PurchaseOrder{
		ID:               uuid.New().String(),
		PurchaseNumber:   number,
		SupplierID:       in.SupplierID,
		Items:            items,
		Status:           entity.PurchaseStatusDraft,
		Notes:            in.Notes,
		ExpectedDelivery: in.ExpectedDelivery,
		CreatedBy:        actor,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	applyTotals(p, totals)
	err = e.ledger.RunLocked(ctx, []string{inventory.PurchaseKey(p.ID)}, func(tx *inventory.LedgerTx) error {
		return tx.Purchases.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("purchase_id", p.ID).Str("purchase_number", p.PurchaseNumber).Str("total", p.Total.StringFixed(2)).Msg("orden de compra creada")
	return p, nil
}

// Update reemplaza líneas en draft o pending.
func (e *Engine) Update(ctx context.Context, id, actor string, in UpdateInput) (*entity.PurchaseOrder, error) {
	var (
		items  []entity.PurchaseOrderItem
		totals pricing.Totals
	)
	if in.Items != nil {
		var err error
		items, totals, err = e.buildLines(ctx, in.Items)
		if err != nil {
			return nil, err
		}
	}
	return e.mutate(ctx, id, nil, func(_ *inventory.LedgerTx, p *entity.PurchaseOrder) error {
		if !p.CanModify() {
			return fmt.Errorf("actualizar compra en estado %s: %w", p.Status, domain.ErrInvalidStateTransition)
		}
		if in.Notes != nil {
			p.Notes = *in.Notes
		}
		if in.ExpectedDelivery != nil {
			p.ExpectedDelivery = in.ExpectedDelivery
		}
		if items != nil {
			p.Items = items
			applyTotals(p, totals)
		}
		return nil
	})
}

// Submit pasa la compra de draft a pending.
func (e *Engine) Submit(ctx context.Context, id, actor string) (*entity.PurchaseOrder, error) {
	return e.transition(ctx, id, nil, func(_ *inventory.LedgerTx, p *entity.PurchaseOrder) error {
		if p.Status != entity.PurchaseStatusDraft {
			return fmt.Errorf("enviar compra en estado %s: %w", p.Status, domain.ErrInvalidStateTransition)
		}
		p.Status = entity.PurchaseStatusPending
		return nil
	})
}

// Approve aprueba la compra si el total no supera el límite de crédito del proveedor.
func (e *Engine) Approve(ctx context.Context, id, actor string) (*entity.PurchaseOrder, error) {
	current, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	supplier, err := e.suppliers.GetByID(ctx, current.SupplierID)
	if err != nil {
		return nil, err
	}
	if supplier == nil {
		return nil, fmt.Errorf("proveedor %s: %w", current.SupplierID, domain.ErrNotFound)
	}
	return e.transition(ctx, id, nil, func(_ *inventory.LedgerTx, p *entity.PurchaseOrder) error {
		if p.Status != entity.PurchaseStatusDraft && p.Status != entity.PurchaseStatusPending {
			return fmt.Errorf("aprobar compra en estado %s: %w", p.Status, domain.ErrInvalidStateTransition)
		}
		if p.Total.GreaterThan(supplier.CreditLimit) {
			return fmt.Errorf("total %s, límite %s: %w", p.Total.StringFixed(2), supplier.CreditLimit.StringFixed(2), domain.ErrCreditLimitExceeded)
		}
		now := e.now()
		p.Status = entity.PurchaseStatusApproved
		p.ApprovedBy = actor
		p.ApprovedAt = &now
		return nil
	})
}

// MarkOrdered registra que la compra fue enviada al proveedor.
func (e *Engine) MarkOrdered(ctx context.Context, id, actor string) (*entity.PurchaseOrder, error) {
	return e.transition(ctx, id, nil, func(_ *inventory.LedgerTx, p *entity.PurchaseOrder) error {
		if p.Status != entity.PurchaseStatusApproved {
			return fmt.Errorf("ordenar compra en estado %s: %w", p.Status, domain.ErrInvalidStateTransition)
		}
		p.Status = entity.PurchaseStatusOrdered
		return nil
	})
}

// Cancel cancela la compra mientras no esté recibida. Lo ya recibido queda en inventario.
func (e *Engine) Cancel(ctx context.Context, id, actor string) (*entity.PurchaseOrder, error) {
	return e.transition(ctx, id, nil, func(_ *inventory.LedgerTx, p *entity.PurchaseOrder) error {
		if p.IsTerminal() {
			return fmt.Errorf("cancelar compra en estado %s: %w", p.Status, domain.ErrInvalidStateTransition)
		}
		p.Status = entity.PurchaseStatusCancelled
		return nil
	})
}

// Delete elimina una compra en draft.
func (e *Engine) Delete(ctx context.Context, id, actor string) error {
	err := e.ledger.RunLocked(ctx, []string{inventory.PurchaseKey(id)}, func(tx *inventory.LedgerTx) error {
		p, err := tx.Purchases.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("compra %s: %w", id, domain.ErrNotFound)
		}
		if p.Status != entity.PurchaseStatusDraft {
			return fmt.Errorf("eliminar compra en estado %s: %w", p.Status, domain.ErrInvalidStateTransition)
		}
		return tx.Purchases.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	e.log.Info().Str("purchase_id", id).Str("actor", actor).Msg("orden de compra eliminada")
	return nil
}

// Receive concilia una recepción contra lo pendiente de cada línea. Cada línea se acepta hasta
// la cantidad pendiente y el exceso se informa en el resultado. Todo lo aceptado se acredita en el
// ledger en una sola transacción; la compra pasa a received solo si todas las líneas quedan completas.
func (e *Engine) Receive(ctx context.Context, id, actor string, lines []ReceiveLine) (*ReceiveResult, error) {
	requested, order, err := mergeReceiveLines(lines)
	if err != nil {
		return nil, err
	}
	current, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.CanReceive() {
		return nil, fmt.Errorf("recibir compra en estado %s: %w", current.Status, domain.ErrInvalidStateTransition)
	}
	for _, pid := range order {
		if !hasProduct(current, pid) {
			return nil, fmt.Errorf("el producto %s no está en la compra: %w", pid, domain.ErrInvalidInput)
		}
	}

	// Ítems existentes se bloquean por ID; los faltantes por producto para crearlos en la misma tx.
	itemIDs := make(map[string]string, len(order))
	keys := []string{inventory.PurchaseKey(id)}
	for _, pid := range order {
		item, err := e.ledger.GetByProduct(ctx, pid)
		switch {
		case err == nil:
			itemIDs[pid] = item.ID
			keys = append(keys, inventory.ItemKey(item.ID))
		case errors.Is(err, domain.ErrItemNotFound):
			keys = append(keys, inventory.ProductKey(pid))
		default:
			return nil, err
		}
	}

	var (
		result ReceiveResult
		from   string
	)
	err = e.ledger.RunLocked(ctx, keys, func(tx *inventory.LedgerTx) error {
		p, err := tx.Purchases.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("compra %s: %w", id, domain.ErrNotFound)
		}
		if !p.CanReceive() {
			return fmt.Errorf("recibir compra en estado %s: %w", p.Status, domain.ErrInvalidStateTransition)
		}
		from = p.Status
		result.Lines = result.Lines[:0]
		var receipts []inventory.ReceiptLine
		for _, pid := range order {
			if !hasProduct(p, pid) {
				return fmt.Errorf("las líneas de la compra cambiaron: %w", domain.ErrConflict)
			}
			qty := requested[pid]
			accepted, cost := allocate(p, pid, qty)
			rl := ReceivedLine{ProductID: pid, Requested: qty, Accepted: accepted, Excess: qty - accepted}
			if accepted > 0 {
				itemID, ok := itemIDs[pid]
				if !ok {
					item, err := tx.CreateItem(ctx, inventory.CreateItemInput{
						ProductID:  pid,
						UnitCost:   cost,
						Location:   defaultLocation,
						SupplierID: p.SupplierID,
					}, actor)
					if errors.Is(err, domain.ErrDuplicate) {
						return fmt.Errorf("ítem del producto %s creado en paralelo: %w", pid, domain.ErrConflict)
					}
					if err != nil {
						return err
					}
					itemID = item.ID
					itemIDs[pid] = itemID
				}
				c := cost
				receipts = append(receipts, inventory.ReceiptLine{InventoryItemID: itemID, Quantity: accepted, UnitCost: &c})
			}
			rl.InventoryItemID = itemIDs[pid]
			result.Lines = append(result.Lines, rl)
		}
		if len(receipts) > 0 {
			if err := tx.ReceiveMany(ctx, receipts, inventory.ReasonPurchaseReceipt, p.ID, actor); err != nil {
				return err
			}
		}
		now := e.now()
		if p.IsFullyReceived() {
			p.Status = entity.PurchaseStatusReceived
			p.ReceivedAt = &now
		}
		p.UpdatedAt = now
		if err := tx.Purchases.Update(ctx, p); err != nil {
			return err
		}
		result.Purchase = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	p := result.Purchase
	ev := e.log.Info().Str("purchase_id", p.ID).Str("status", p.Status).Int("lines", len(result.Lines))
	for _, rl := range result.Lines {
		if rl.Excess > 0 {
			ev = ev.Int("excess_"+rl.ProductID, rl.Excess)
		}
	}
	ev.Msg("recepción de compra registrada")
	e.notify(ctx, p, from)
	return &result, nil
}

// Get obtiene una compra por ID.
func (e *Engine) Get(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	p, err := e.purchases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("compra %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// List lista compras con filtro y devuelve el total sin paginar.
func (e *Engine) List(ctx context.Context, filter repository.PurchaseFilter) ([]*entity.PurchaseOrder, int, error) {
	if filter.Status != "" && !entity.IsValidPurchaseStatus(filter.Status) {
		return nil, 0, fmt.Errorf("estado %q: %w", filter.Status, domain.ErrInvalidInput)
	}
	list, err := e.purchases.Find(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	countFilter := filter
	countFilter.Limit, countFilter.Offset = 0, 0
	total, err := e.purchases.Count(ctx, countFilter)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (e *Engine) mutate(ctx context.Context, id string, extraKeys []string, fn func(tx *inventory.LedgerTx, p *entity.PurchaseOrder) error) (*entity.PurchaseOrder, error) {
	keys := append([]string{inventory.PurchaseKey(id)}, extraKeys...)
	var out *entity.PurchaseOrder
	err := e.ledger.RunLocked(ctx, keys, func(tx *inventory.LedgerTx) error {
		p, err := tx.Purchases.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("compra %s: %w", id, domain.ErrNotFound)
		}
		if err := fn(tx, p); err != nil {
			return err
		}
		p.UpdatedAt = e.now()
		if err := tx.Purchases.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) transition(ctx context.Context, id string, extraKeys []string, fn func(tx *inventory.LedgerTx, p *entity.PurchaseOrder) error) (*entity.PurchaseOrder, error) {
	var from string
	p, err := e.mutate(ctx, id, extraKeys, func(tx *inventory.LedgerTx, p *entity.PurchaseOrder) error {
		from = p.Status
		return fn(tx, p)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("purchase_id", p.ID).Str("from", from).Str("to", p.Status).Msg("transición de compra")
	e.notify(ctx, p, from)
	return p, nil
}

func (e *Engine) notify(ctx context.Context, p *entity.PurchaseOrder, from string) {
	if e.notifier == nil || from == p.Status {
		return
	}
	err := e.notifier.Send(ctx, ports.Notification{
		Type:     ports.NotificationPurchaseState,
		Title:    "Compra " + p.PurchaseNumber,
		Message:  fmt.Sprintf("La compra %s pasó de %s a %s", p.PurchaseNumber, from, p.Status),
		Priority: ports.PriorityLow,
		Data: map[string]any{
			"purchase_id":     p.ID,
			"purchase_number": p.PurchaseNumber,
			"from":            from,
			"to":              p.Status,
		},
	})
	if err != nil {
		e.log.Warn().Err(err).Str("purchase_id", p.ID).Msg("notificación no enviada")
	}
}

func (e *Engine) buildLines(ctx context.Context, in []LineInput) ([]entity.PurchaseOrderItem, pricing.Totals, error) {
	if len(in) == 0 {
		return nil, pricing.Totals{}, domain.ErrEmptyLines
	}
	items := make([]entity.PurchaseOrderItem, 0, len(in))
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
		cost := product.Cost
		if ln.UnitCost != nil {
			cost = *ln.UnitCost
		}
		if cost.IsNegative() {
			return nil, pricing.Totals{}, fmt.Errorf("costo de %s negativo: %w", ln.ProductID, domain.ErrInvalidInput)
		}
		pl := pricing.Line{Quantity: ln.Quantity, UnitPrice: cost}
		lines = append(lines, pl)
		items = append(items, entity.PurchaseOrderItem{
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitCost:  cost,
			Total:     pl.Total(),
		})
	}
	totals, err := pricing.Calculate(lines, pricing.PurchasePolicy)
	if err != nil {
		return nil, pricing.Totals{}, err
	}
	return items, totals, nil
}

func applyTotals(p *entity.PurchaseOrder, t pricing.Totals) {
	p.Subtotal = t.Subtotal
	p.Tax = t.Tax
	p.Shipping = t.Shipping
	p.Total = t.Total
}

// mergeReceiveLines valida las líneas y suma las repetidas por producto, conservando el orden.
func mergeReceiveLines(lines []ReceiveLine) (map[string]int, []string, error) {
	if len(lines) == 0 {
		return nil, nil, domain.ErrEmptyLines
	}
	qty := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, ln := range lines {
		if ln.ProductID == "" {
			return nil, nil, fmt.Errorf("product_id requerido: %w", domain.ErrInvalidInput)
		}
		if ln.Quantity <= 0 {
			return nil, nil, fmt.Errorf("cantidad recibida de %s debe ser positiva: %w", ln.ProductID, domain.ErrInvalidMagnitude)
		}
		if _, ok := qty[ln.ProductID]; !ok {
			order = append(order, ln.ProductID)
		}
		qty[ln.ProductID] += ln.Quantity
	}
	return qty, order, nil
}

func hasProduct(p *entity.PurchaseOrder, productID string) bool {
	for i := range p.Items {
		if p.Items[i].ProductID == productID {
			return true
		}
	}
	return false
}

// allocate reparte qty entre las líneas pendientes del producto y devuelve lo aceptado
// y el costo unitario (de la primera línea que recibió).
func allocate(p *entity.PurchaseOrder, productID string, qty int) (int, decimal.Decimal) {
	accepted := 0
	cost := decimal.Zero
	costSet := false
	for i := range p.Items {
		it := &p.Items[i]
		if it.ProductID != productID {
			continue
		}
		if !costSet {
			cost, costSet = it.UnitCost, true
		}
		take := it.RemainingQuantity()
		if take > qty-accepted {
			take = qty - accepted
		}
		if take <= 0 {
			continue
		}
		if accepted == 0 {
			cost = it.UnitCost
		}
		it.ReceivedQuantity += take
		accepted += take
	}
	return accepted, cost
}

func (e *Engine) nextNumber(ctx context.Context) (string, error) {
	period := e.now().Format("200601")
	n, err := e.sequences.Next(ctx, NumberPrefix+"-"+period)
	if err != nil {
		return "", fmt.Errorf("secuencia de compras: %w", err)
	}
	return fmt.Sprintf("%s-%s-%04d", NumberPrefix, period, n), nil
}
