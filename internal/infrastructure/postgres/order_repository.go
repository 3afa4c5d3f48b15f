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

var _ repository.OrderRepository = (*OrderRepo)(nil)

const orderColumns = `id, order_number, customer_id, subtotal, tax, shipping, discount, total, status,
	payment_status, notes, shipping_address, expected_delivery, actual_delivery, confirmed_at, cancelled_at,
	cancel_reason, created_by, created_at, updated_at`

var orderSortColumns = map[string]string{
	"created_at":   "created_at",
	"total":        "total",
	"order_number": "order_number",
}

// OrderRepo órdenes de venta y sus líneas (tabla order_items) sobre PostgreSQL.
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

// Create inserta cabecera y líneas. Debe correr dentro de una tx para que sea atómico.
func (r *OrderRepo) Create(ctx context.Context, o *entity.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.q.Exec(ctx, query,
		o.ID, o.OrderNumber, o.CustomerID, o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total, o.Status,
		o.PaymentStatus, o.Notes, o.ShippingAddress, o.ExpectedDelivery, o.ActualDelivery, o.ConfirmedAt, o.CancelledAt,
		o.CancelReason, nullable(o.CreatedBy), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return r.insertItems(ctx, o)
}

func (r *OrderRepo) insertItems(ctx context.Context, o *entity.Order) error {
	for i, it := range o.Items {
		_, err := r.q.Exec(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, quantity, unit_price, total)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, i+1, it.ProductID, it.Quantity, it.UnitPrice, it.Total,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetForUpdate bloquea la cabecera hasta el fin de la transacción.
func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepo) GetByNumber(ctx context.Context, number string) (*entity.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

func (r *OrderRepo) getOne(ctx context.Context, query, arg string) (*entity.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := r.loadItems(ctx, []*entity.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepo) Find(ctx context.Context, f repository.OrderFilter) ([]*entity.Order, error) {
	w := orderWhere(f)
	query := `SELECT ` + orderColumns + ` FROM orders` + w.sql() +
		orderBy(f.Sort, "-created_at", orderSortColumns) + w.page(f.Limit, f.Offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	list := make([]*entity.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *OrderRepo) Count(ctx context.Context, f repository.OrderFilter) (int, error) {
	w := orderWhere(f)
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+w.sql(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// Update reemplaza la cabecera y todas las líneas.
func (r *OrderRepo) Update(ctx context.Context, o *entity.Order) error {
	query := `
		UPDATE orders SET customer_id = $2, subtotal = $3, tax = $4, shipping = $5, discount = $6, total = $7,
			status = $8, payment_status = $9, notes = $10, shipping_address = $11, expected_delivery = $12,
			actual_delivery = $13, confirmed_at = $14, cancelled_at = $15, cancel_reason = $16, updated_at = $17
		WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query,
		o.ID, o.CustomerID, o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total,
		o.Status, o.PaymentStatus, o.Notes, o.ShippingAddress, o.ExpectedDelivery,
		o.ActualDelivery, o.ConfirmedAt, o.CancelledAt, o.CancelReason, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
		return fmt.Errorf("replace order items: %w", err)
	}
	return r.insertItems(ctx, o)
}

// Delete elimina la orden; las líneas caen por ON DELETE CASCADE.
func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// loadItems trae las líneas de todas las órdenes en una sola consulta.
func (r *OrderRepo) loadItems(ctx context.Context, list []*entity.Order) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Order, len(list))
	ids := make([]string, 0, len(list))
	for _, o := range list {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := r.q.Query(ctx, `
		SELECT order_id, product_id, quantity, unit_price, total
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			it      entity.OrderItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Total); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if o := byID[orderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func orderWhere(f repository.OrderFilter) *where {
	w := &where{}
	w.eq("customer_id", f.CustomerID)
	w.eq("status", f.Status)
	w.eq("payment_status", f.PaymentStatus)
	if f.NumberPrefix != "" {
		w.add("order_number LIKE " + w.arg(f.NumberPrefix+"%"))
	}
	if f.From != nil {
		w.add("created_at >= " + w.arg(*f.From))
	}
	if f.To != nil {
		w.add("created_at <= " + w.arg(*f.To))
	}
	return w
}

func scanOrder(row pgx.Row) (*entity.Order, error) {
	var (
		o         entity.Order
		createdBy *string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.Total,
		&o.Status, &o.PaymentStatus, &o.Notes, &o.ShippingAddress, &o.ExpectedDelivery, &o.ActualDelivery,
		&o.ConfirmedAt, &o.CancelledAt, &o.CancelReason, &createdBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.CreatedBy = deref(createdBy)
	return &o, nil
}
