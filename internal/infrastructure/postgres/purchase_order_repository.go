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

var _ repository.PurchaseOrderRepository = (*PurchaseOrderRepo)(nil)

const purchaseColumns = `id, purchase_number, supplier_id, subtotal, tax, shipping, total, status, notes,
	expected_delivery, approved_by, approved_at, received_at, created_by, created_at, updated_at`

var purchaseSortColumns = map[string]string{
	"created_at":      "created_at",
	"total":           "total",
	"purchase_number": "purchase_number",
}

// PurchaseOrderRepo órdenes de compra y sus líneas (purchase_order_items) sobre PostgreSQL.
type PurchaseOrderRepo struct {
	q Querier
}

// NewPurchaseOrderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPurchaseOrderRepository(q Querier) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{q: q}
}

func (r *PurchaseOrderRepo) Create(ctx context.Context, p *entity.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (` + purchaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.PurchaseNumber, p.SupplierID, p.Subtotal, p.Tax, p.Shipping, p.Total, p.Status, p.Notes,
		p.ExpectedDelivery, nullable(p.ApprovedBy), p.ApprovedAt, p.ReceivedAt, nullable(p.CreatedBy), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert purchase order: %w", err)
	}
	return r.insertItems(ctx, p)
}

func (r *PurchaseOrderRepo) insertItems(ctx context.Context, p *entity.PurchaseOrder) error {
	for i, it := range p.Items {
		_, err := r.q.Exec(ctx, `
			INSERT INTO purchase_order_items (purchase_order_id, line_no, product_id, quantity, unit_cost, total, received_quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, i+1, it.ProductID, it.Quantity, it.UnitCost, it.Total, it.ReceivedQuantity,
		)
		if err != nil {
			return fmt.Errorf("insert purchase order item: %w", err)
		}
	}
	return nil
}

func (r *PurchaseOrderRepo) GetByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return r.getOne(ctx, `SELECT `+purchaseColumns+` FROM purchase_orders WHERE id = $1`, id)
}

func (r *PurchaseOrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return r.getOne(ctx, `SELECT `+purchaseColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *PurchaseOrderRepo) getOne(ctx context.Context, query, id string) (*entity.PurchaseOrder, error) {
	p, err := scanPurchase(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get purchase order: %w", err)
	}
	if err := r.loadItems(ctx, []*entity.PurchaseOrder{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PurchaseOrderRepo) Find(ctx context.Context, f repository.PurchaseFilter) ([]*entity.PurchaseOrder, error) {
	w := purchaseWhere(f)
	query := `SELECT ` + purchaseColumns + ` FROM purchase_orders` + w.sql() +
		orderBy(f.Sort, "-created_at", purchaseSortColumns) + w.page(f.Limit, f.Offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	list := make([]*entity.PurchaseOrder, 0)
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		list = append(list, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *PurchaseOrderRepo) Count(ctx context.Context, f repository.PurchaseFilter) (int, error) {
	w := purchaseWhere(f)
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+w.sql(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count purchase orders: %w", err)
	}
	return n, nil
}

// Update reemplaza cabecera y líneas (incluida la cantidad recibida).
func (r *PurchaseOrderRepo) Update(ctx context.Context, p *entity.PurchaseOrder) error {
	query := `
		UPDATE purchase_orders SET supplier_id = $2, subtotal = $3, tax = $4, shipping = $5, total = $6,
			status = $7, notes = $8, expected_delivery = $9, approved_by = $10, approved_at = $11,
			received_at = $12, updated_at = $13
		WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query,
		p.ID, p.SupplierID, p.Subtotal, p.Tax, p.Shipping, p.Total,
		p.Status, p.Notes, p.ExpectedDelivery, nullable(p.ApprovedBy), p.ApprovedAt,
		p.ReceivedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update purchase order: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id = $1`, p.ID); err != nil {
		return fmt.Errorf("replace purchase order items: %w", err)
	}
	return r.insertItems(ctx, p)
}

func (r *PurchaseOrderRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete purchase order: %w", err)
	}
	return nil
}

func (r *PurchaseOrderRepo) loadItems(ctx context.Context, list []*entity.PurchaseOrder) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*entity.PurchaseOrder, len(list))
	ids := make([]string, 0, len(list))
	for _, p := range list {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	rows, err := r.q.Query(ctx, `
		SELECT purchase_order_id, product_id, quantity, unit_cost, total, received_quantity
		FROM purchase_order_items WHERE purchase_order_id = ANY($1) ORDER BY purchase_order_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("list purchase order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			poID string
			it   entity.PurchaseOrderItem
		)
		if err := rows.Scan(&poID, &it.ProductID, &it.Quantity, &it.UnitCost, &it.Total, &it.ReceivedQuantity); err != nil {
			return fmt.Errorf("scan purchase order item: %w", err)
		}
		if p := byID[poID]; p != nil {
			p.Items = append(p.Items, it)
		}
	}
	return rows.Err()
}

func purchaseWhere(f repository.PurchaseFilter) *where {
	w := &where{}
	w.eq("supplier_id", f.SupplierID)
	w.eq("status", f.Status)
	if f.NumberPrefix != "" {
		w.add("purchase_number LIKE " + w.arg(f.NumberPrefix+"%"))
	}
	if f.From != nil {
		w.add("created_at >= " + w.arg(*f.From))
	}
	if f.To != nil {
		w.add("created_at <= " + w.arg(*f.To))
	}
	return w
}

func scanPurchase(row pgx.Row) (*entity.PurchaseOrder, error) {
	var (
		p          entity.PurchaseOrder
		approvedBy *string
		createdBy  *string
	)
	err := row.Scan(&p.ID, &p.PurchaseNumber, &p.SupplierID, &p.Subtotal, &p.Tax, &p.Shipping, &p.Total, &p.Status,
		&p.Notes, &p.ExpectedDelivery, &approvedBy, &p.ApprovedAt, &p.ReceivedAt, &createdBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ApprovedBy = deref(approvedBy)
	p.CreatedBy = deref(createdBy)
	return &p, nil
}
