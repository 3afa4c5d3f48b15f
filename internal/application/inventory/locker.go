package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/materiales-erp/internal/domain"
)

// Prefijos de las llaves de bloqueo.
const (
	itemKeyPrefix     = "item:"
	productKeyPrefix  = "product:"
	orderKeyPrefix    = "order:"
	purchaseKeyPrefix = "purchase:"
)

// ItemKey llave de bloqueo de un ítem de inventario.
func ItemKey(id string) string { return itemKeyPrefix + id }

// ProductKey llave de bloqueo usada al crear el ítem de un producto.
func ProductKey(id string) string { return productKeyPrefix + id }

// OrderKey llave de bloqueo de una orden de venta.
func OrderKey(id string) string { return orderKeyPrefix + id }

// PurchaseKey llave de bloqueo de una orden de compra.
func PurchaseKey(id string) string { return purchaseKeyPrefix + id }

// KeyedLocker sección crítica de un solo escritor por llave.
// Las llaves se adquieren ordenadas para que dos operaciones multi-línea no se bloqueen mutuamente.
type KeyedLocker struct {
	mu       sync.Mutex
	slots    map[string]*lockSlot
	timeout  time.Duration
	attempts int
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker construye el locker. timeout es la espera por intento y attempts el número de intentos
// antes de devolver ErrConflict.
func NewKeyedLocker(timeout time.Duration, attempts int) *KeyedLocker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if attempts <= 0 {
		attempts = 3
	}
	return &KeyedLocker{slots: make(map[string]*lockSlot), timeout: timeout, attempts: attempts}
}

// Lock adquiere todas las llaves (sin duplicados, en orden) y devuelve la función que las libera.
func (l *KeyedLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := normalizeKeys(keys)
	acquired := make([]string, 0, len(ordered))
	unlock := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			l.release(acquired[i])
		}
	}
	for _, key := range ordered {
		if err := l.acquire(ctx, key); err != nil {
			unlock()
			return nil, err
		}
		acquired = append(acquired, key)
	}
	return unlock, nil
}

func (l *KeyedLocker) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	for attempt := 0; attempt < l.attempts; attempt++ {
		timer := time.NewTimer(l.timeout)
		select {
		case s.ch <- struct{}{}:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			l.drop(key)
			return fmt.Errorf("bloqueo de %s: %w: %w", key, domain.ErrConflict, ctx.Err())
		case <-timer.C:
		}
	}
	l.drop(key)
	return fmt.Errorf("bloqueo de %s: %w", key, domain.ErrConflict)
}

func (l *KeyedLocker) release(key string) {
	l.mu.Lock()
	s := l.slots[key]
	l.mu.Unlock()
	if s == nil {
		return
	}
	<-s.ch
	l.drop(key)
}

// drop descuenta una referencia y elimina la ranura cuando nadie la usa.
func (l *KeyedLocker) drop(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs <= 0 {
		delete(l.slots, key)
	}
}

func normalizeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
