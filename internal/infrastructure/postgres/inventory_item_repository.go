package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/materiales-erp/internal/domain"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
)

var _ repository.InventoryItemRepository = (*InventoryItemRepo)(nil)

const inventoryItemColumns = `id, product_id, quantity, minimum_stock, maximum_stock, unit_cost, location,
	supplier_id, expiration_date, batch_number, created_at, updated_at`

var inventorySortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"quantity":   "quantity",
}

// InventoryItemRepo ítems de inventario sobre PostgreSQL (usable con pool o tx).
type InventoryItemRepo struct {
	q Querier
}

// NewInventoryItemRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInventoryItemRepository(q Querier) *InventoryItemRepo {
	return &InventoryItemRepo{q: q}
}

// Create inserta el ítem. El índice único sobre product_id se traduce a ErrDuplicate.
func (r *InventoryItemRepo) Create(ctx context.Context, it *entity.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (` + inventoryItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		it.ID, it.ProductID, it.Quantity, it.MinimumStock, it.MaximumStock, it.UnitCost, it.Location,
		nullable(it.SupplierID), it.ExpirationDate, nullable(it.BatchNumber), it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert inventory item: %w", err)
	}
	return nil
}

func (r *InventoryItemRepo) GetByID(ctx context.Context, id string) (*entity.InventoryItem, error) {
	return r.getOne(ctx, `SELECT `+inventoryItemColumns+` FROM inventory_items WHERE id = $1`, id)
}

// GetForUpdate bloquea la fila hasta el fin de la transacción.
func (r *InventoryItemRepo) GetForUpdate(ctx context.Context, id string) (*entity.InventoryItem, error) {
	return r.getOne(ctx, `SELECT `+inventoryItemColumns+` FROM inventory_items WHERE id = $1 FOR UPDATE`, id)
}

func (r *InventoryItemRepo) GetByProductID(ctx context.Context, productID string) (*entity.InventoryItem, error) {
	return r.getOne(ctx, `SELECT `+inventoryItemColumns+` FROM inventory_items WHERE product_id = $1`, productID)
}

func (r *InventoryItemRepo) getOne(ctx context.Context, query string, arg string) (*entity.InventoryItem, error) {
	it, err := scanInventoryItem(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get inventory item: %w", err)
	}
	return it, nil
}

// Find aplica el filtro; el estado se evalúa en SQL con la misma precedencia que entity.DeriveStockStatus.
func (r *InventoryItemRepo) Find(ctx context.Context, f repository.InventoryFilter) ([]*entity.InventoryItem, error) {
	w := inventoryWhere(f)
	query := `SELECT ` + inventoryItemColumns + ` FROM inventory_items` + w.sql() +
		orderBy(f.Sort, "created_at", inventorySortColumns) + w.page(f.Limit, f.Offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.InventoryItem, 0)
	for rows.Next() {
		it, err := scanInventoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

func (r *InventoryItemRepo) Count(ctx context.Context, f repository.InventoryFilter) (int, error) {
	w := inventoryWhere(f)
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items`+w.sql(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count inventory items: %w", err)
	}
	return n, nil
}

// Update persiste todos los campos mutables del ítem.
func (r *InventoryItemRepo) Update(ctx context.Context, it *entity.InventoryItem) error {
	query := `
		UPDATE inventory_items SET quantity = $2, minimum_stock = $3, maximum_stock = $4, unit_cost = $5,
			location = $6, supplier_id = $7, expiration_date = $8, batch_number = $9, updated_at = $10
		WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query,
		it.ID, it.Quantity, it.MinimumStock, it.MaximumStock, it.UnitCost,
		it.Location, nullable(it.SupplierID), it.ExpirationDate, nullable(it.BatchNumber), it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *InventoryItemRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM inventory_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete inventory item: %w", err)
	}
	return nil
}

func inventoryWhere(f repository.InventoryFilter) *where {
	w := &where{}
	w.eq("product_id", f.ProductID)
	w.eq("supplier_id", f.SupplierID)
	w.eq("location", f.Location)
	if f.Status != "" {
		asOf := w.arg(f.AsOf)
		expired := "(expiration_date IS NOT NULL AND expiration_date < " + asOf + ")"
		notExpired := "(expiration_date IS NULL OR expiration_date >= " + asOf + ")"
		switch f.Status {
		case entity.StockStatusExpired:
			w.add(expired)
		case entity.StockStatusOutOfStock:
			w.add(notExpired + " AND quantity <= 0")
		case entity.StockStatusLowStock:
			w.add(notExpired + " AND quantity > 0 AND quantity <= minimum_stock")
		case entity.StockStatusInStock:
			w.add(notExpired + " AND quantity > 0 AND quantity > minimum_stock")
		}
	}
	return w
}

func scanInventoryItem(row pgx.Row) (*entity.InventoryItem, error) {
	var (
		it       entity.InventoryItem
		supplier *string
		batch    *string
	)
	err := row.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.MinimumStock, &it.MaximumStock, &it.UnitCost,
		&it.Location, &supplier, &it.ExpirationDate, &batch, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.SupplierID = deref(supplier)
	it.BatchNumber = deref(batch)
	return &it, nil
}
