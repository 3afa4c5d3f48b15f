package memory

import (
	"context"
	"strings"

	"github.com/jhoicas/materiales-erp/internal/domain"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
)

var (
	_ repository.OrderRepository         = (*OrderRepo)(nil)
	_ repository.PurchaseOrderRepository = (*PurchaseRepo)(nil)
)

// OrderRepo órdenes de venta en memoria.
type OrderRepo struct {
	s  *Store
	tx *state
}

func (r *OrderRepo) Create(ctx context.Context, o *entity.Order) error {
	return r.s.write(r.tx, func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return domain.ErrDuplicate
		}
		for _, ex := range st.orders {
			if ex.OrderNumber == o.OrderNumber {
				return domain.ErrDuplicate
			}
		}
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	var out *entity.Order
	err := r.s.read(r.tx, func(st *state) error {
		if o, ok := st.orders[id]; ok {
			out = o.Clone()
		}
		return nil
	})
	return out, err
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *OrderRepo) GetByNumber(ctx context.Context, number string) (*entity.Order, error) {
	var out *entity.Order
	err := r.s.read(r.tx, func(st *state) error {
		for _, o := range st.orders {
			if o.OrderNumber == number {
				out = o.Clone()
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *OrderRepo) filter(st *state, f repository.OrderFilter) []*entity.Order {
	out := make([]*entity.Order, 0)
	for _, o := range st.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
			continue
		}
		if f.NumberPrefix != "" && !strings.HasPrefix(o.OrderNumber, f.NumberPrefix) {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, o.Clone())
	}
	field, desc := parseSort(f.Sort, "-created_at")
	sortBy(out, desc, func(a, b *entity.Order) bool {
		switch field {
		case "total":
			if !a.Total.Equal(b.Total) {
				return a.Total.LessThan(b.Total)
			}
		case "order_number":
			if a.OrderNumber != b.OrderNumber {
				return a.OrderNumber < b.OrderNumber
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.OrderNumber < b.OrderNumber
	})
	return out
}

func (r *OrderRepo) Find(ctx context.Context, f repository.OrderFilter) ([]*entity.Order, error) {
	var out []*entity.Order
	err := r.s.read(r.tx, func(st *state) error {
		out = paginate(r.filter(st, f), f.Limit, f.Offset)
		return nil
	})
	return out, err
}

func (r *OrderRepo) Count(ctx context.Context, f repository.OrderFilter) (int, error) {
	var n int
	err := r.s.read(r.tx, func(st *state) error {
		n = len(r.filter(st, f))
		return nil
	})
	return n, err
}

func (r *OrderRepo) Update(ctx context.Context, o *entity.Order) error {
	return r.s.write(r.tx, func(st *state) error {
		if _, ok := st.orders[o.ID]; !ok {
			return domain.ErrNotFound
		}
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	return r.s.write(r.tx, func(st *state) error {
		if _, ok := st.orders[id]; !ok {
			return domain.ErrNotFound
		}
		delete(st.orders, id)
		return nil
	})
}

// PurchaseRepo órdenes de compra en memoria.
type PurchaseRepo struct {
	s  *Store
	tx *state
}

func (r *PurchaseRepo) Create(ctx context.Context, p *entity.PurchaseOrder) error {
	return r.s.write(r.tx, func(st *state) error {
		if _, ok := st.purchases[p.ID]; ok {
			return domain.ErrDuplicate
		}
		for _, ex := range st.purchases {
			if ex.PurchaseNumber == p.PurchaseNumber {
				return domain.ErrDuplicate
			}
		}
		st.purchases[p.ID] = p.Clone()
		return nil
	})
}

func (r *PurchaseRepo) GetByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	var out *entity.PurchaseOrder
	err := r.s.read(r.tx, func(st *state) error {
		if p, ok := st.purchases[id]; ok {
			out = p.Clone()
		}
		return nil
	})
	return out, err
}

func (r *PurchaseRepo) GetForUpdate(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return r.GetByID(ctx, id)
}

func (r *PurchaseRepo) filter(st *state, f repository.PurchaseFilter) []*entity.PurchaseOrder {
	out := make([]*entity.PurchaseOrder, 0)
	for _, p := range st.purchases {
		if f.SupplierID != "" && p.SupplierID != f.SupplierID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.NumberPrefix != "" && !strings.HasPrefix(p.PurchaseNumber, f.NumberPrefix) {
			continue
		}
		if f.From != nil && p.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && p.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, p.Clone())
	}
	field, desc := parseSort(f.Sort, "-created_at")
	sortBy(out, desc, func(a, b *entity.PurchaseOrder) bool {
		switch field {
		case "total":
			if !a.Total.Equal(b.Total) {
				return a.Total.LessThan(b.Total)
			}
		case "purchase_number":
			if a.PurchaseNumber != b.PurchaseNumber {
				return a.PurchaseNumber < b.PurchaseNumber
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.PurchaseNumber < b.PurchaseNumber
	})
	return out
}

func (r *PurchaseRepo) Find(ctx context.Context, f repository.PurchaseFilter) ([]*entity.PurchaseOrder, error) {
	var out []*entity.PurchaseOrder
	err := r.s.read(r.tx, func(st *state) error {
		out = paginate(r.filter(st, f), f.Limit, f.Offset)
		return nil
	})
	return out, err
}

func (r *PurchaseRepo) Count(ctx context.Context, f repository.PurchaseFilter) (int, error) {
	var n int
	err := r.s.read(r.tx, func(st *state) error {
		n = len(r.filter(st, f))
		return nil
	})
	return n, err
}

func (r *PurchaseRepo) Update(ctx context.Context, p *entity.PurchaseOrder) error {
	return r.s.write(r.tx, func(st *state) error {
		if _, ok := st.purchases[p.ID]; !ok {
			return domain.ErrNotFound
		}
		st.purchases[p.ID] = p.Clone()
		return nil
	})
}

func (r *PurchaseRepo) Delete(ctx context.Context, id string) error {
	return r.s.write(r.tx, func(st *state) error {
		if _, ok := st.purchases[id]; !ok {
			return domain.ErrNotFound
		}
		delete(st.purchases, id)
		return nil
	})
}
