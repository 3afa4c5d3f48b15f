package memory

import (
	"context"
	"time"

	"github.com/jhoicas/materiales-erp/internal/domain"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
)

var (
	_ repository.InventoryItemRepository = (*ItemRepo)(nil)
	_ repository.StockMovementRepository = (*MovementRepo)(nil)
)

// ItemRepo ítems de inventario en memoria.
type ItemRepo struct {
	s  *Store
	tx *state
}

func (r *ItemRepo) Create(ctx context.Context, item *entity.InventoryItem) error {
	return r.s.write(r.tx, func(st *state) error {
		if _, ok := st.items[item.ID]; ok {
			return domain.ErrDuplicate
		}
		for _, it := range st.items {
			if it.ProductID == item.ProductID {
				return domain.ErrDuplicate
			}
		}
		st.items[item.ID] = item.Clone()
		return nil
	})
}

func (r *ItemRepo) GetByID(ctx context.Context, id string) (*entity.InventoryItem, error) {
	var out *entity.InventoryItem
	err := r.s.read(r.tx, func(st *state) error {
		if it, ok := st.items[id]; ok {
			out = it.Clone()
		}
		return nil
	})
	return out, err
}

// GetForUpdate en memoria equivale a GetByID: el bloqueo lo da Store.Run.
func (r *ItemRepo) GetForUpdate(ctx context.Context, id string) (*entity.InventoryItem, error) {
	return r.GetByID(ctx, id)
}

func (r *ItemRepo) GetByProductID(ctx context.Context, productID string) (*entity.InventoryItem, error) {
	var out *entity.InventoryItem
	err := r.s.read(r.tx, func(st *state) error {
		for _, it := range st.items {
			if it.ProductID == productID {
				out = it.Clone()
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *ItemRepo) filter(st *state, f repository.InventoryFilter) []*entity.InventoryItem {
	asOf := f.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	out := make([]*entity.InventoryItem, 0)
	for _, it := range st.items {
		if f.ProductID != "" && it.ProductID != f.ProductID {
			continue
		}
		if f.SupplierID != "" && it.SupplierID != f.SupplierID {
			continue
		}
		if f.Location != "" && it.Location != f.Location {
			continue
		}
		if f.Status != "" && it.Status(asOf) != f.Status {
			continue
		}
		out = append(out, it.Clone())
	}
	field, desc := parseSort(f.Sort, "created_at")
	sortBy(out, desc, func(a, b *entity.InventoryItem) bool {
		switch field {
		case "quantity":
			if a.Quantity != b.Quantity {
				return a.Quantity < b.Quantity
			}
		case "updated_at":
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
	return out
}

func (r *ItemRepo) Find(ctx context.Context, f repository.InventoryFilter) ([]*entity.InventoryItem, error) {
	var out []*entity.InventoryItem
	err := r.s.read(r.tx, func(st *state) error {
		out = paginate(r.filter(st, f), f.Limit, f.Offset)
		return nil
	})
	return out, err
}

func (r *ItemRepo) Count(ctx context.Context, f repository.InventoryFilter) (int, error) {
	var n int
	err := r.s.read(r.tx, func(st *state) error {
		n = len(r.filter(st, f))
		return nil
	})
	return n, err
}

func (r *ItemRepo) Update(ctx context.Context, item *entity.InventoryItem) error {
	return r.s.write(r.tx, func(st *state) error {
		if _, ok := st.items[item.ID]; !ok {
			return domain.ErrItemNotFound
		}
		st.items[item.ID] = item.Clone()
		return nil
	})
}

func (r *ItemRepo) Delete(ctx context.Context, id string) error {
	return r.s.write(r.tx, func(st *state) error {
		if _, ok := st.items[id]; !ok {
			return domain.ErrItemNotFound
		}
		delete(st.items, id)
		return nil
	})
}

// MovementRepo journal en memoria (solo inserción).
type MovementRepo struct {
	s  *Store
	tx *state
}

func (r *MovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	return r.s.write(r.tx, func(st *state) error {
		c := *m
		st.movements = append(st.movements, &c)
		return nil
	})
}

func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.StockMovement, error) {
	var out *entity.StockMovement
	err := r.s.read(r.tx, func(st *state) error {
		for _, m := range st.movements {
			if m.ID == id {
				c := *m
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

// filter devuelve los movimientos que cumplen f, más recientes primero
// (a igual fecha, el insertado después va primero).
func (r *MovementRepo) filter(st *state, f repository.MovementFilter) []*entity.StockMovement {
	out := make([]*entity.StockMovement, 0)
	for i := len(st.movements) - 1; i >= 0; i-- {
		m := st.movements[i]
		if f.InventoryItemID != "" && m.InventoryItemID != f.InventoryItemID {
			continue
		}
		if f.Reference != "" && m.Reference != f.Reference {
			continue
		}
		if f.Type != "" && m.Type != f.Type {
			continue
		}
		if f.Reason != "" && m.Reason != f.Reason {
			continue
		}
		if f.From != nil && m.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && m.CreatedAt.After(*f.To) {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	sortBy(out, true, func(a, b *entity.StockMovement) bool { return a.CreatedAt.Before(b.CreatedAt) })
	return out
}

func (r *MovementRepo) Find(ctx context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := r.s.read(r.tx, func(st *state) error {
		out = paginate(r.filter(st, f), f.Limit, f.Offset)
		return nil
	})
	return out, err
}

func (r *MovementRepo) Count(ctx context.Context, f repository.MovementFilter) (int, error) {
	var n int
	err := r.s.read(r.tx, func(st *state) error {
		n = len(r.filter(st, f))
		return nil
	})
	return n, err
}

func (r *MovementRepo) SumDelta(ctx context.Context, itemID string) (int, error) {
	var sum int
	err := r.s.read(r.tx, func(st *state) error {
		for _, m := range st.movements {
			if m.InventoryItemID == itemID {
				sum += m.Delta
			}
		}
		return nil
	})
	return sum, err
}
