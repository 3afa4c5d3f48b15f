// Package memory implementa los puertos de persistencia en memoria.
// Se usa con STORAGE_DRIVER=memory y en los tests de los motores.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jhoicas/materiales-erp/internal/application/inventory"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
)

var _ inventory.TxRunner = (*Store)(nil)

// state datos transaccionales (inventario, journal y documentos).
type state struct {
	items     map[string]*entity.InventoryItem
	movements []*entity.StockMovement
	orders    map[string]*entity.Order
	purchases map[string]*entity.PurchaseOrder
}

func newState() *state {
	return &state{
		items:     make(map[string]*entity.InventoryItem),
		orders:    make(map[string]*entity.Order),
		purchases: make(map[string]*entity.PurchaseOrder),
	}
}

// clone copia profunda usada como espacio de trabajo de una transacción.
// Los movimientos son inmutables, basta copiar el slice.
func (s *state) clone() *state {
	c := &state{
		items:     make(map[string]*entity.InventoryItem, len(s.items)),
		movements: append([]*entity.StockMovement(nil), s.movements...),
		orders:    make(map[string]*entity.Order, len(s.orders)),
		purchases: make(map[string]*entity.PurchaseOrder, len(s.purchases)),
	}
	for k, v := range s.items {
		c.items[k] = v.Clone()
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.purchases {
		c.purchases[k] = v.Clone()
	}
	return c
}

// Store almacén en memoria. Run serializa las transacciones con un único mutex de escritura
// y publica el espacio de trabajo solo si fn no devuelve error.
// El catálogo y las secuencias no son transaccionales y tienen su propio mutex.
type Store struct {
	mu sync.RWMutex
	st *state

	catalogMu sync.RWMutex
	products  map[string]*entity.Product
	customers map[string]*entity.Customer
	suppliers map[string]*entity.Supplier

	seqMu     sync.Mutex
	sequences map[string]int64
}

// NewStore construye un almacén vacío.
func NewStore() *Store {
	return &Store{
		st:        newState(),
		products:  make(map[string]*entity.Product),
		customers: make(map[string]*entity.Customer),
		suppliers: make(map[string]*entity.Supplier),
		sequences: make(map[string]int64),
	}
}

// Run ejecuta fn con repositorios atados a una copia del estado; commit = reemplazar el estado.
func (s *Store) Run(ctx context.Context, fn func(repos repository.TxRepositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(s.reposFor(work)); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) reposFor(tx *state) repository.TxRepositories {
	return repository.TxRepositories{
		Items:     &ItemRepo{s: s, tx: tx},
		Movements: &MovementRepo{s: s, tx: tx},
		Orders:    &OrderRepo{s: s, tx: tx},
		Purchases: &PurchaseRepo{s: s, tx: tx},
	}
}

// Repositories devuelve repositorios de lectura/escritura fuera de transacción.
func (s *Store) Repositories() repository.TxRepositories {
	return s.reposFor(nil)
}

// read ejecuta fn sobre el estado confirmado (tx == nil) o sobre el de la transacción.
func (s *Store) read(tx *state, fn func(st *state) error) error {
	if tx != nil {
		return fn(tx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

func (s *Store) write(tx *state, fn func(st *state) error) error {
	if tx != nil {
		return fn(tx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// paginate aplica offset y limit (limit <= 0 = sin límite).
func paginate[T any](list []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

// parseSort separa el campo y la dirección ("-campo" = descendente).
func parseSort(s, def string) (string, bool) {
	if s == "" {
		s = def
	}
	if strings.HasPrefix(s, "-") {
		return strings.TrimPrefix(s, "-"), true
	}
	return s, false
}

func sortBy[T any](list []T, desc bool, less func(a, b T) bool) {
	sort.SliceStable(list, func(i, j int) bool {
		if desc {
			return less(list[j], list[i])
		}
		return less(list[i], list[j])
	})
}
