package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/jhoicas/materiales-erp/internal/application/ports"
	"github.com/jhoicas/materiales-erp/internal/domain"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	domaininv "github.com/jhoicas/materiales-erp/internal/domain/inventory"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
	"github.com/jhoicas/materiales-erp/pkg/logger"
)

// ReasonStockReceipt motivo de una entrada genérica (no asociada a compra).
const ReasonStockReceipt = "stock_receipt"

// Line línea de reserva o liberación.
type Line struct {
	InventoryItemID string
	Quantity        int
}

// ReceiptLine línea de entrada; UnitCost opcional actualiza el costo promedio ponderado.
type ReceiptLine struct {
	InventoryItemID string
	Quantity        int
	UnitCost        *decimal.Decimal
}

// CreateItemInput datos de alta de un ítem de inventario.
type CreateItemInput struct {
	ProductID       string
	InitialQuantity int
	MinimumStock    int
	MaximumStock    int
	UnitCost        decimal.Decimal
	Location        string
	SupplierID      string
	ExpirationDate  *time.Time
	BatchNumber     string
}

// Reconciliation resultado de comparar la cantidad del ítem con la suma del journal.
type Reconciliation struct {
	InventoryItemID string `json:"inventory_item_id"`
	Quantity        int    `json:"quantity"`
	JournalSum      int    `json:"journal_sum"`
	Balanced        bool   `json:"balanced"`
}

// Ledger es el único escritor de InventoryItem.Quantity y el único creador de movimientos.
// Cada mutación valida y escribe dentro de la misma sección crítica: llaves bloqueadas + transacción.
type Ledger struct {
	txRunner TxRunner
	items    repository.InventoryItemRepository
	journal  *Journal
	locker   *KeyedLocker
	notifier ports.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewLedger construye el ledger. items y el journal se usan para lecturas fuera de transacción.
func NewLedger(
	txRunner TxRunner,
	items repository.InventoryItemRepository,
	journal *Journal,
	locker *KeyedLocker,
	notifier ports.Notifier,
	log *logger.Logger,
) *Ledger {
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{
		txRunner: txRunner,
		items:    items,
		journal:  journal,
		locker:   locker,
		notifier: notifier,
		log:      log.Named("ledger"),
		now:      time.Now,
	}
}

// SetClock reemplaza el reloj del ledger y del journal (tests).
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
	l.journal.now = now
}

// Now instante actual según el reloj del ledger.
func (l *Ledger) Now() time.Time { return l.now() }

// Journal expone el journal para consultas de historial.
func (l *Ledger) Journal() *Journal { return l.journal }

// LedgerTx operaciones del ledger dentro de una transacción con llaves ya bloqueadas.
// Los motores la usan para combinar la mutación de stock con la de su documento.
type LedgerTx struct {
	repository.TxRepositories
	ledger  *Ledger
	locked  map[string]struct{}
	touched map[string]*touchedItem
	order   []string
}

type touchedItem struct {
	before string
	item   *entity.InventoryItem
}

// RunLocked bloquea las llaves, abre una transacción y ejecuta fn. Tras el commit emite
// notificaciones de stock bajo/agotado para los ítems cuyo estado cambió.
func (l *Ledger) RunLocked(ctx context.Context, keys []string, fn func(tx *LedgerTx) error) error {
	unlock, err := l.locker.Lock(ctx, keys...)
	if err != nil {
		l.log.Warn().Err(err).Strs("keys", keys).Msg("no se pudo adquirir el bloqueo")
		return err
	}
	locked := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		locked[k] = struct{}{}
	}
	var ltx *LedgerTx
	err = l.txRunner.Run(ctx, func(repos repository.TxRepositories) error {
		ltx = &LedgerTx{
			TxRepositories: repos,
			ledger:         l,
			locked:         locked,
			touched:        make(map[string]*touchedItem),
		}
		return fn(ltx)
	})
	unlock()
	if err != nil {
		return err
	}
	l.notifyStatusChanges(ctx, ltx)
	return nil
}

func (t *LedgerTx) ensureLocked(key string) error {
	if _, ok := t.locked[key]; !ok {
		return fmt.Errorf("%s no está bloqueado en esta transacción: %w", key, domain.ErrConflict)
	}
	return nil
}

func (t *LedgerTx) loadForUpdate(ctx context.Context, id string) (*entity.InventoryItem, error) {
	if err := t.ensureLocked(ItemKey(id)); err != nil {
		return nil, err
	}
	item, err := t.Items.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
	}
	return item, nil
}

// lockItems carga con FOR UPDATE cada ítem una sola vez, en orden de ID como las llaves del locker.
func (t *LedgerTx) lockItems(ctx context.Context, ids []string) (map[string]*entity.InventoryItem, error) {
	ordered := append([]string(nil), ids...)
	sort.Strings(ordered)
	items := make(map[string]*entity.InventoryItem, len(ordered))
	for _, id := range ordered {
		if _, ok := items[id]; ok {
			continue
		}
		item, err := t.loadForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		items[id] = item
	}
	return items, nil
}

func lineIDs(lines []Line) []string {
	ids := make([]string, 0, len(lines))
	for _, ln := range lines {
		ids = append(ids, ln.InventoryItemID)
	}
	return ids
}

// apply escribe la nueva cantidad y el movimiento correspondiente.
func (t *LedgerTx) apply(ctx context.Context, item *entity.InventoryItem, e JournalEntry) (*entity.StockMovement, error) {
	now := t.ledger.now()
	before := item.Status(now)
	e.Item = item
	e.PreviousQuantity = item.Quantity
	newQty := item.Quantity + e.delta()
	if newQty < 0 {
		return nil, domain.ErrNegativeQuantity
	}
	item.Quantity = newQty
	item.UpdatedAt = now
	if err := t.Items.Update(ctx, item); err != nil {
		return nil, err
	}
	mov, err := t.ledger.journal.Append(ctx, t.Movements, e)
	if err != nil {
		return nil, err
	}
	t.track(item, before)
	return mov, nil
}

func (t *LedgerTx) track(item *entity.InventoryItem, before string) {
	if ti, ok := t.touched[item.ID]; ok {
		ti.item = item
		return
	}
	t.touched[item.ID] = &touchedItem{before: before, item: item}
	t.order = append(t.order, item.ID)
}

// mergeLines valida y agrupa líneas repetidas del mismo ítem conservando el orden de aparición.
func mergeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, domain.ErrEmptyLines
	}
	idx := make(map[string]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, ln := range lines {
		if ln.InventoryItemID == "" {
			return nil, domain.ErrInvalidInput
		}
		if ln.Quantity <= 0 {
			return nil, domain.ErrInvalidMagnitude
		}
		if i, ok := idx[ln.InventoryItemID]; ok {
			out[i].Quantity += ln.Quantity
			continue
		}
		idx[ln.InventoryItemID] = len(out)
		out = append(out, ln)
	}
	return out, nil
}

// ReserveMany descuenta todas las líneas o ninguna. Si alguna línea no tiene stock suficiente
// devuelve *domain.InsufficientStockError con todas las líneas faltantes y no modifica nada.
func (t *LedgerTx) ReserveMany(ctx context.Context, lines []Line, reference, actor string) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	items, err := t.lockItems(ctx, lineIDs(merged))
	if err != nil {
		return err
	}
	var shortfalls []domain.Shortfall
	for _, ln := range merged {
		item := items[ln.InventoryItemID]
		if item.Quantity < ln.Quantity {
			shortfalls = append(shortfalls, domain.Shortfall{
				InventoryItemID: item.ID,
				ProductID:       item.ProductID,
				Requested:       ln.Quantity,
				Available:       item.Quantity,
			})
		}
	}
	if len(shortfalls) > 0 {
		return &domain.InsufficientStockError{Shortfalls: shortfalls}
	}
	for _, ln := range merged {
		if _, err := t.apply(ctx, items[ln.InventoryItemID], JournalEntry{
			Type:      entity.MovementTypeOut,
			Magnitude: ln.Quantity,
			Reason:    ReasonSalesReservation,
			Reference: reference,
			Actor:     actor,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Release devuelve al stock las líneas reservadas. Es idempotente por referencia:
// una segunda liberación con la misma referencia retorna ErrAlreadyReleased sin acreditar nada.
func (t *LedgerTx) Release(ctx context.Context, lines []Line, reference, actor string) error {
	if reference == "" {
		return domain.ErrInvalidInput
	}
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	n, err := t.Movements.Count(ctx, repository.MovementFilter{
		Reference: reference,
		Reason:    ReasonReservationRelease,
	})
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyReleased, reference)
	}
	items, err := t.lockItems(ctx, lineIDs(merged))
	if err != nil {
		return err
	}
	for _, ln := range merged {
		if _, err := t.apply(ctx, items[ln.InventoryItemID], JournalEntry{
			Type:      entity.MovementTypeIn,
			Magnitude: ln.Quantity,
			Reason:    ReasonReservationRelease,
			Reference: reference,
			Actor:     actor,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ReceiveMany acredita cada línea con un movimiento "in". Si la línea trae costo unitario,
// actualiza el costo promedio ponderado del ítem antes de sumar la cantidad.
func (t *LedgerTx) ReceiveMany(ctx context.Context, lines []ReceiptLine, reason, reference, actor string) error {
	if len(lines) == 0 {
		return domain.ErrEmptyLines
	}
	if reason == "" {
		reason = ReasonStockReceipt
	}
	for _, ln := range lines {
		if ln.InventoryItemID == "" {
			return domain.ErrInvalidInput
		}
		if ln.Quantity <= 0 {
			return domain.ErrInvalidMagnitude
		}
		if ln.UnitCost != nil && ln.UnitCost.IsNegative() {
			return domain.ErrInvalidInput
		}
	}
	ids := make([]string, 0, len(lines))
	for _, ln := range lines {
		ids = append(ids, ln.InventoryItemID)
	}
	items, err := t.lockItems(ctx, ids)
	if err != nil {
		return err
	}
	for _, ln := range lines {
		item := items[ln.InventoryItemID]
		if ln.UnitCost != nil {
			item.UnitCost = domaininv.WeightedAverageCost(item.Quantity, item.UnitCost, ln.Quantity, *ln.UnitCost)
		}
		if _, err := t.apply(ctx, item, JournalEntry{
			Type:      entity.MovementTypeIn,
			Magnitude: ln.Quantity,
			Reason:    reason,
			Reference: reference,
			Actor:     actor,
		}); err != nil {
			return err
		}
	}
	return nil
}

// AdjustTo fija la cantidad (conteo manual) registrando un ajuste por la diferencia.
// Sin diferencia no se escribe movimiento.
func (t *LedgerTx) AdjustTo(ctx context.Context, itemID string, newQuantity int, reason, actor string) (*entity.InventoryItem, error) {
	if newQuantity < 0 {
		return nil, domain.ErrNegativeQuantity
	}
	item, err := t.loadForUpdate(ctx, itemID)
	if err != nil {
		return nil, err
	}
	delta := newQuantity - item.Quantity
	if delta == 0 {
		return item, nil
	}
	if reason == "" {
		reason = ReasonManualCount
	}
	magnitude := delta
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if _, err := t.apply(ctx, item, JournalEntry{
		Type:      entity.MovementTypeAdjustment,
		Magnitude: magnitude,
		Decrease:  delta < 0,
		Reason:    reason,
		Reference: "adjust:" + item.ID,
		Actor:     actor,
	}); err != nil {
		return nil, err
	}
	return item, nil
}

// Transfer cambia la ubicación del ítem (modelo de una sola ubicación) y deja constancia
// con un movimiento "transfer" sin efecto sobre la cantidad.
func (t *LedgerTx) Transfer(ctx context.Context, itemID, location, actor string) (*entity.InventoryItem, error) {
	if location == "" {
		return nil, domain.ErrInvalidInput
	}
	item, err := t.loadForUpdate(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Location == location {
		return item, nil
	}
	from := item.Location
	item.Location = location
	if item.Quantity == 0 {
		item.UpdatedAt = t.ledger.now()
		return item, t.Items.Update(ctx, item)
	}
	if _, err := t.apply(ctx, item, JournalEntry{
		Type:      entity.MovementTypeTransfer,
		Magnitude: item.Quantity,
		Reason:    ReasonLocationTransfer,
		Reference: fmt.Sprintf("%s->%s", from, location),
		Actor:     actor,
	}); err != nil {
		return nil, err
	}
	return item, nil
}

// CreateItem da de alta el ítem de un producto. La cantidad inicial entra como movimiento "in"
// para que el journal cuadre desde la creación. Requiere la llave ProductKey bloqueada.
func (t *LedgerTx) CreateItem(ctx context.Context, in CreateItemInput, actor string) (*entity.InventoryItem, error) {
	if in.ProductID == "" || in.InitialQuantity < 0 || in.MinimumStock < 0 || in.MaximumStock < 0 {
		return nil, domain.ErrInvalidInput
	}
	if in.MaximumStock > 0 && in.MaximumStock < in.MinimumStock {
		return nil, domain.ErrInvalidInput
	}
	if in.UnitCost.IsNegative() {
		return nil, fmt.Errorf("%w: costo unitario negativo", domain.ErrInvalidInput)
	}
	if err := t.ensureLocked(ProductKey(in.ProductID)); err != nil {
		return nil, err
	}
	existing, err := t.Items.GetByProductID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("ítem para el producto %s: %w", in.ProductID, domain.ErrDuplicate)
	}
	location := in.Location
	if location == "" {
		location = "default"
	}
	now := t.ledger.now()
	item := &entity.InventoryItem{
		ID:             uuid.New().String(),
		ProductID:      in.ProductID,
		MinimumStock:   in.MinimumStock,
		MaximumStock:   in.MaximumStock,
		UnitCost:       in.UnitCost,
		Location:       location,
		SupplierID:     in.SupplierID,
		ExpirationDate: in.ExpirationDate,
		BatchNumber:    in.BatchNumber,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := t.Items.Create(ctx, item); err != nil {
		return nil, err
	}
	t.locked[ItemKey(item.ID)] = struct{}{}
	if in.InitialQuantity > 0 {
		if _, err := t.apply(ctx, item, JournalEntry{
			Type:      entity.MovementTypeIn,
			Magnitude: in.InitialQuantity,
			Reason:    ReasonInitialStock,
			Reference: "create:" + item.ID,
			Actor:     actor,
		}); err != nil {
			return nil, err
		}
	}
	return item, nil
}

// Operaciones públicas: cada una corre en su propia sección crítica.

// CreateItem crea un ítem de inventario con su stock inicial.
func (l *Ledger) CreateItem(ctx context.Context, in CreateItemInput, actor string) (*entity.InventoryItem, error) {
	var item *entity.InventoryItem
	err := l.RunLocked(ctx, []string{ProductKey(in.ProductID)}, func(tx *LedgerTx) error {
		var err error
		item, err = tx.CreateItem(ctx, in, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("item_id", item.ID).Str("product_id", item.ProductID).Int("quantity", item.Quantity).Msg("ítem de inventario creado")
	return item, nil
}

// AdjustTo fija la cantidad del ítem a newQuantity.
func (l *Ledger) AdjustTo(ctx context.Context, itemID string, newQuantity int, reason, actor string) (*entity.InventoryItem, error) {
	if newQuantity < 0 {
		return nil, domain.ErrNegativeQuantity
	}
	var item *entity.InventoryItem
	err := l.RunLocked(ctx, []string{ItemKey(itemID)}, func(tx *LedgerTx) error {
		var err error
		item, err = tx.AdjustTo(ctx, itemID, newQuantity, reason, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("item_id", itemID).Int("quantity", newQuantity).Str("actor", actor).Msg("ajuste de inventario")
	return item, nil
}

// Receive suma quantity al ítem (stock inicial o recepción).
func (l *Ledger) Receive(ctx context.Context, itemID string, quantity int, reference, actor string) (*entity.InventoryItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidMagnitude
	}
	if err := l.ReceiveMany(ctx, []ReceiptLine{{InventoryItemID: itemID, Quantity: quantity}}, ReasonStockReceipt, reference, actor); err != nil {
		return nil, err
	}
	return l.Get(ctx, itemID)
}

// ReceiveMany acredita varias líneas en una sola transacción.
func (l *Ledger) ReceiveMany(ctx context.Context, lines []ReceiptLine, reason, reference, actor string) error {
	keys := make([]string, 0, len(lines))
	for _, ln := range lines {
		keys = append(keys, ItemKey(ln.InventoryItemID))
	}
	err := l.RunLocked(ctx, keys, func(tx *LedgerTx) error {
		return tx.ReceiveMany(ctx, lines, reason, reference, actor)
	})
	if err != nil {
		return err
	}
	l.log.Info().Str("reference", reference).Int("lines", len(lines)).Msg("entrada de inventario registrada")
	return nil
}

// ReserveMany reserva todas las líneas o ninguna.
func (l *Ledger) ReserveMany(ctx context.Context, lines []Line, reference, actor string) error {
	err := l.RunLocked(ctx, lineKeys(lines), func(tx *LedgerTx) error {
		return tx.ReserveMany(ctx, lines, reference, actor)
	})
	if err != nil {
		l.log.Warn().Err(err).Str("reference", reference).Msg("reserva rechazada")
		return err
	}
	l.log.Info().Str("reference", reference).Int("lines", len(lines)).Msg("reserva de inventario aplicada")
	return nil
}

// Release devuelve al stock una reserva; idempotente por referencia.
func (l *Ledger) Release(ctx context.Context, lines []Line, reference, actor string) error {
	err := l.RunLocked(ctx, lineKeys(lines), func(tx *LedgerTx) error {
		return tx.Release(ctx, lines, reference, actor)
	})
	if err != nil {
		return err
	}
	l.log.Info().Str("reference", reference).Int("lines", len(lines)).Msg("reserva liberada")
	return nil
}

// Transfer cambia la ubicación del ítem.
func (l *Ledger) Transfer(ctx context.Context, itemID, location, actor string) (*entity.InventoryItem, error) {
	var item *entity.InventoryItem
	err := l.RunLocked(ctx, []string{ItemKey(itemID)}, func(tx *LedgerTx) error {
		var err error
		item, err = tx.Transfer(ctx, itemID, location, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Get obtiene un ítem por ID.
func (l *Ledger) Get(ctx context.Context, id string) (*entity.InventoryItem, error) {
	item, err := l.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
	}
	return item, nil
}

// GetByProduct obtiene el ítem asociado a un producto.
func (l *Ledger) GetByProduct(ctx context.Context, productID string) (*entity.InventoryItem, error) {
	item, err := l.items.GetByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: producto %s", domain.ErrItemNotFound, productID)
	}
	return item, nil
}

// List lista ítems con filtro explícito y devuelve el total sin paginar.
func (l *Ledger) List(ctx context.Context, filter repository.InventoryFilter) ([]*entity.InventoryItem, int, error) {
	if filter.Status != "" && !entity.IsValidStockStatus(filter.Status) {
		return nil, 0, domain.ErrInvalidInput
	}
	if filter.AsOf.IsZero() {
		filter.AsOf = l.now()
	}
	list, err := l.items.Find(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	countFilter := filter
	countFilter.Limit, countFilter.Offset = 0, 0
	total, err := l.items.Count(ctx, countFilter)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// History página del historial de movimientos del ítem.
func (l *Ledger) History(ctx context.Context, itemID string, page, pageSize int) ([]*entity.StockMovement, int, error) {
	if _, err := l.Get(ctx, itemID); err != nil {
		return nil, 0, err
	}
	return l.journal.History(ctx, itemID, page, pageSize)
}

// Reconcile verifica que la cantidad del ítem sea igual a la suma de sus movimientos.
func (l *Ledger) Reconcile(ctx context.Context, itemID string) (*Reconciliation, error) {
	item, err := l.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	sum, err := l.journal.movements.SumDelta(ctx, itemID)
	if err != nil {
		return nil, err
	}
	r := &Reconciliation{
		InventoryItemID: itemID,
		Quantity:        item.Quantity,
		JournalSum:      sum,
		Balanced:        sum == item.Quantity,
	}
	if !r.Balanced {
		l.log.Error().Str("item_id", itemID).Int("quantity", item.Quantity).Int("journal_sum", sum).Msg("ledger descuadrado")
	}
	return r, nil
}

func lineKeys(lines []Line) []string {
	keys := make([]string, 0, len(lines))
	for _, id := range lineIDs(lines) {
		keys = append(keys, ItemKey(id))
	}
	return keys
}

// notifyStatusChanges envía una notificación por cada ítem que pasó a stock bajo o agotado.
// Los errores del notificador solo se registran.
func (l *Ledger) notifyStatusChanges(ctx context.Context, tx *LedgerTx) {
	if l.notifier == nil || tx == nil {
		return
	}
	now := l.now()
	for _, id := range tx.order {
		ti := tx.touched[id]
		after := ti.item.Status(now)
		if after == ti.before {
			continue
		}
		var n ports.Notification
		switch after {
		case entity.StockStatusLowStock:
			n = ports.Notification{
				Type:     ports.NotificationLowStock,
				Title:    "Stock bajo",
				Message:  fmt.Sprintf("El ítem %s quedó con %d unidades (mínimo %d)", ti.item.ID, ti.item.Quantity, ti.item.MinimumStock),
				Priority: ports.PriorityMedium,
			}
		case entity.StockStatusOutOfStock:
			n = ports.Notification{
				Type:     ports.NotificationOutOfStock,
				Title:    "Sin stock",
				Message:  fmt.Sprintf("El ítem %s se agotó", ti.item.ID),
				Priority: ports.PriorityHigh,
			}
		default:
			continue
		}
		n.Data = map[string]any{
			"inventory_item_id": ti.item.ID,
			"product_id":        ti.item.ProductID,
			"quantity":          ti.item.Quantity,
			"status":            after,
		}
		if err := l.notifier.Send(ctx, n); err != nil {
			l.log.Warn().Err(err).Str("item_id", ti.item.ID).Msg("notificación no enviada")
		}
	}
}
