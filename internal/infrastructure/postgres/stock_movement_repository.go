package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

const stockMovementColumns = `id, inventory_item_id, product_id, type, quantity, delta, previous_quantity,
	new_quantity, reason, reference, created_at, created_by`

// StockMovementRepo journal de movimientos sobre PostgreSQL. Solo INSERT y SELECT.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

// Create persiste un movimiento.
func (r *StockMovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO stock_movements (` + stockMovementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.InventoryItemID, m.ProductID, m.Type, m.Quantity, m.Delta, m.PreviousQuantity,
		m.NewQuantity, m.Reason, m.Reference, m.CreatedAt, nullable(m.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("create stock movement: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID; (nil, nil) si no existe.
func (r *StockMovementRepo) GetByID(ctx context.Context, id string) (*entity.StockMovement, error) {
	m, err := scanStockMovement(r.q.QueryRow(ctx, `SELECT `+stockMovementColumns+` FROM stock_movements WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock movement: %w", err)
	}
	return m, nil
}

// Find lista movimientos del más reciente al más antiguo.
func (r *StockMovementRepo) Find(ctx context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	w := movementWhere(f)
	query := `SELECT ` + stockMovementColumns + ` FROM stock_movements` + w.sql() +
		` ORDER BY created_at DESC, seq DESC` + w.page(f.Limit, f.Offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.StockMovement, 0)
	for rows.Next() {
		m, err := scanStockMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (r *StockMovementRepo) Count(ctx context.Context, f repository.MovementFilter) (int, error) {
	w := movementWhere(f)
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements`+w.sql(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stock movements: %w", err)
	}
	return n, nil
}

// SumDelta suma los deltas con signo del ítem.
func (r *StockMovementRepo) SumDelta(ctx context.Context, inventoryItemID string) (int, error) {
	var sum int
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM stock_movements WHERE inventory_item_id = $1`, inventoryItemID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum stock movements: %w", err)
	}
	return sum, nil
}

func movementWhere(f repository.MovementFilter) *where {
	w := &where{}
	w.eq("inventory_item_id", f.InventoryItemID)
	w.eq("reference", f.Reference)
	w.eq("type", f.Type)
	w.eq("reason", f.Reason)
	if f.From != nil {
		w.add("created_at >= " + w.arg(*f.From))
	}
	if f.To != nil {
		w.add("created_at <= " + w.arg(*f.To))
	}
	return w
}

func scanStockMovement(row pgx.Row) (*entity.StockMovement, error) {
	var (
		m         entity.StockMovement
		createdBy *string
	)
	err := row.Scan(&m.ID, &m.InventoryItemID, &m.ProductID, &m.Type, &m.Quantity, &m.Delta,
		&m.PreviousQuantity, &m.NewQuantity, &m.Reason, &m.Reference, &m.CreatedAt, &createdBy)
	if err != nil {
		return nil, err
	}
	m.CreatedBy = deref(createdBy)
	return &m, nil
}
