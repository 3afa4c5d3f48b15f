package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/materiales-erp/internal/application/inventory"
	"github.com/jhoicas/materiales-erp/internal/domain"
)

func TestKeyedLocker_TimeoutDevuelveConflicto(t *testing.T) {
	l := inventory.NewKeyedLocker(10*time.Millisecond, 2)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "item:1")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "item:1")
	assert.ErrorIs(t, err, domain.ErrConflict)

	unlock()
	unlock2, err := l.Lock(ctx, "item:1")
	require.NoError(t, err)
	unlock2()
}

func TestKeyedLocker_LlavesDistintasNoSeBloquean(t *testing.T) {
	l := inventory.NewKeyedLocker(10*time.Millisecond, 1)
	ctx := context.Background()

	u1, err := l.Lock(ctx, "item:a")
	require.NoError(t, err)
	u2, err := l.Lock(ctx, "item:b", "item:b")
	require.NoError(t, err)
	u1()
	u2()
}

func TestKeyedLocker_ContextoCancelado(t *testing.T) {
	l := inventory.NewKeyedLocker(time.Second, 3)
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestKeyedLocker_PlazoDelContextoEsConflicto(t *testing.T) {
	l := inventory.NewKeyedLocker(time.Second, 3)
	unlock, err := l.Lock(context.Background(), "item:x")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "item:x")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// Órdenes opuestas de llaves no producen interbloqueo porque se adquieren ordenadas.
func TestKeyedLocker_OrdenOpuestoSinInterbloqueo(t *testing.T) {
	l := inventory.NewKeyedLocker(time.Second, 5)
	ctx := context.Background()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []string{"item:a", "item:b"}
			if i%2 == 0 {
				keys = []string{"item:b", "item:a"}
			}
			unlock, err := l.Lock(ctx, keys...)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			counter++
			unlock()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
}
