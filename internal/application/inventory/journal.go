package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/materiales-erp/internal/domain"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
)

// Motivos estándar que escribe el propio ledger.
const (
	ReasonInitialStock       = "initial_stock"
	ReasonSalesReservation   = "sales_reservation"
	ReasonReservationRelease = "reservation_release"
	ReasonPurchaseReceipt    = "purchase_receipt"
	ReasonLocationTransfer   = "location_transfer"
	ReasonManualCount        = "manual_count"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// JournalEntry datos de un movimiento a registrar. Magnitude debe ser positiva;
// Decrease solo aplica a los ajustes (ajuste negativo).
type JournalEntry struct {
	Item             *entity.InventoryItem
	Type             string
	Magnitude        int
	Decrease         bool
	PreviousQuantity int
	Reason           string
	Reference        string
	Actor            string
}

// delta efecto con signo del movimiento sobre el stock.
func (e JournalEntry) delta() int {
	switch e.Type {
	case entity.MovementTypeIn:
		return e.Magnitude
	case entity.MovementTypeOut:
		return -e.Magnitude
	case entity.MovementTypeAdjustment:
		if e.Decrease {
			return -e.Magnitude
		}
		return e.Magnitude
	default: // transfer: cambia ubicación, no cantidad
		return 0
	}
}

// Journal log append-only de movimientos de inventario.
type Journal struct {
	movements repository.StockMovementRepository
	now       func() time.Time
}

// NewJournal construye el journal. movements se usa para lecturas fuera de transacción.
func NewJournal(movements repository.StockMovementRepository) *Journal {
	return &Journal{movements: movements, now: time.Now}
}

// Append persiste un único movimiento inmutable usando el repositorio de la transacción en curso.
func (j *Journal) Append(ctx context.Context, repo repository.StockMovementRepository, e JournalEntry) (*entity.StockMovement, error) {
	if e.Magnitude <= 0 {
		return nil, domain.ErrInvalidMagnitude
	}
	if e.Item == nil || !entity.IsValidMovementType(e.Type) {
		return nil, domain.ErrInvalidInput
	}
	delta := e.delta()
	mov := &entity.StockMovement{
		ID:               uuid.New().String(),
		InventoryItemID:  e.Item.ID,
		ProductID:        e.Item.ProductID,
		Type:             e.Type,
		Quantity:         e.Magnitude,
		Delta:            delta,
		PreviousQuantity: e.PreviousQuantity,
		NewQuantity:      e.PreviousQuantity + delta,
		Reason:           e.Reason,
		Reference:        e.Reference,
		CreatedAt:        j.now(),
		CreatedBy:        e.Actor,
	}
	if err := repo.Create(ctx, mov); err != nil {
		return nil, err
	}
	return mov, nil
}

// History devuelve una página (base 1) del historial del ítem, más recientes primero, y el total.
func (j *Journal) History(ctx context.Context, itemID string, page, pageSize int) ([]*entity.StockMovement, int, error) {
	if itemID == "" {
		return nil, 0, domain.ErrInvalidInput
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	filter := repository.MovementFilter{
		InventoryItemID: itemID,
		Limit:           pageSize,
		Offset:          (page - 1) * pageSize,
	}
	list, err := j.movements.Find(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := j.movements.Count(ctx, repository.MovementFilter{InventoryItemID: itemID})
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ByReference lista los movimientos asociados a una referencia (orden, compra, ajuste).
func (j *Journal) ByReference(ctx context.Context, reference string) ([]*entity.StockMovement, error) {
	if reference == "" {
		return nil, domain.ErrInvalidInput
	}
	return j.movements.Find(ctx, repository.MovementFilter{Reference: reference})
}
