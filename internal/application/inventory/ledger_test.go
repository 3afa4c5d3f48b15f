package inventory_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/materiales-erp/internal/application/inventory"
	"github.com/jhoicas/materiales-erp/internal/application/ports"
	"github.com/jhoicas/materiales-erp/internal/domain"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
	"github.com/jhoicas/materiales-erp/internal/infrastructure/memory"
	"github.com/jhoicas/materiales-erp/pkg/logger"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []ports.Notification
}

func (n *recordingNotifier) Send(_ context.Context, msg ports.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Type)
	}
	return out
}

func newLedger(t *testing.T) (*inventory.Ledger, *memory.Store, *recordingNotifier) {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	notifier := &recordingNotifier{}
	l := inventory.NewLedger(
		store,
		repos.Items,
		inventory.NewJournal(repos.Movements),
		inventory.NewKeyedLocker(time.Second, 3),
		notifier,
		logger.Nop(),
	)
	return l, store, notifier
}

func createItem(t *testing.T, l *inventory.Ledger, product string, qty, min int) *entity.InventoryItem {
	t.Helper()
	item, err := l.CreateItem(context.Background(), inventory.CreateItemInput{
		ProductID:       product,
		InitialQuantity: qty,
		MinimumStock:    min,
		UnitCost:        decimal.NewFromInt(10),
		Location:        "bodega-1",
	}, "tester")
	require.NoError(t, err)
	return item
}

func TestLedger_ReservaDejaStockBajoYRechazaExceso(t *testing.T) {
	ctx := context.Background()
	l, _, notifier := newLedger(t)
	item := createItem(t, l, "cemento", 100, 20)

	require.NoError(t, l.ReserveMany(ctx, []inventory.Line{{InventoryItemID: item.ID, Quantity: 85}}, "ORD-1", "u1"))

	got, err := l.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Quantity)
	assert.Equal(t, entity.StockStatusLowStock, got.Status(time.Now()))
	assert.Equal(t, []string{ports.NotificationLowStock}, notifier.types())

	err = l.ReserveMany(ctx, []inventory.Line{{InventoryItemID: item.ID, Quantity: 20}}, "ORD-2", "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	shortfalls := domain.ShortfallsOf(err)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, domain.Shortfall{InventoryItemID: item.ID, ProductID: "cemento", Requested: 20, Available: 15}, shortfalls[0])

	got, err = l.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Quantity)
	_, total, err := l.History(ctx, item.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total) // stock inicial + reserva
}

func TestLedger_ReservaTodoONada(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	a := createItem(t, l, "arena", 10, 0)
	b := createItem(t, l, "grava", 2, 0)
	c := createItem(t, l, "varilla", 1, 0)

	err := l.ReserveMany(ctx, []inventory.Line{
		{InventoryItemID: a.ID, Quantity: 5},
		{InventoryItemID: b.ID, Quantity: 5},
		{InventoryItemID: c.ID, Quantity: 3},
	}, "ORD-9", "u1")
	require.Error(t, err)
	assert.Len(t, domain.ShortfallsOf(err), 2)

	for id, want := range map[string]int{a.ID: 10, b.ID: 2, c.ID: 1} {
		got, err := l.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Quantity)
	}
	moves, err := l.Journal().ByReference(ctx, "ORD-9")
	require.NoError(t, err)
	assert.Empty(t, moves)
}

func TestLedger_ReservaAgrupaLineasRepetidas(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	a := createItem(t, l, "ladrillo", 10, 0)

	err := l.ReserveMany(ctx, []inventory.Line{
		{InventoryItemID: a.ID, Quantity: 6},
		{InventoryItemID: a.ID, Quantity: 6},
	}, "ORD-3", "u1")
	require.Error(t, err)
	assert.Equal(t, 12, domain.ShortfallsOf(err)[0].Requested)
}

func TestLedger_ValidaLineas(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	a := createItem(t, l, "cal", 10, 0)

	assert.ErrorIs(t, l.ReserveMany(ctx, nil, "x", "u"), domain.ErrEmptyLines)
	assert.ErrorIs(t, l.ReserveMany(ctx, []inventory.Line{{InventoryItemID: a.ID, Quantity: 0}}, "x", "u"), domain.ErrInvalidMagnitude)
	assert.ErrorIs(t, l.ReserveMany(ctx, []inventory.Line{{InventoryItemID: "nope", Quantity: 1}}, "x", "u"), domain.ErrItemNotFound)
	assert.ErrorIs(t, l.ReserveMany(ctx, []inventory.Line{{InventoryItemID: "nope", Quantity: 1}}, "x", "u"), domain.ErrNotFound)
	_, err := l.Receive(ctx, a.ID, -1, "x", "u")
	assert.ErrorIs(t, err, domain.ErrInvalidMagnitude)
}

func TestLedger_LiberacionIdempotente(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	item := createItem(t, l, "bloque", 50, 5)
	lines := []inventory.Line{{InventoryItemID: item.ID, Quantity: 10}}

	require.NoError(t, l.ReserveMany(ctx, lines, "ORD-5", "u1"))
	require.NoError(t, l.Release(ctx, lines, "cancel:ORD-5", "u1"))

	err := l.Release(ctx, lines, "cancel:ORD-5", "u1")
	assert.ErrorIs(t, err, domain.ErrAlreadyReleased)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := l.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Quantity)

	rec, err := l.Reconcile(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
}

func TestLedger_AjusteYTransferencia(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	item := createItem(t, l, "tubo", 30, 5)

	_, err := l.AdjustTo(ctx, item.ID, -1, "", "u1")
	assert.ErrorIs(t, err, domain.ErrNegativeQuantity)

	got, err := l.AdjustTo(ctx, item.ID, 30, "", "u1")
	require.NoError(t, err)
	assert.Equal(t, 30, got.Quantity)
	_, total, err := l.History(ctx, item.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "sin diferencia no hay movimiento")

	got, err = l.AdjustTo(ctx, item.ID, 12, "conteo fisico", "u1")
	require.NoError(t, err)
	assert.Equal(t, 12, got.Quantity)

	got, err = l.Transfer(ctx, item.ID, "patio-2", "u1")
	require.NoError(t, err)
	assert.Equal(t, "patio-2", got.Location)
	assert.Equal(t, 12, got.Quantity)

	moves, _, err := l.History(ctx, item.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, moves, 3)
	assert.Equal(t, entity.MovementTypeTransfer, moves[0].Type)
	assert.Equal(t, 0, moves[0].Delta)
	assert.Equal(t, entity.MovementTypeAdjustment, moves[1].Type)
	assert.Equal(t, -18, moves[1].Delta)
	assert.Equal(t, 18, moves[1].Quantity)

	rec, err := l.Reconcile(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.Reconciliation{InventoryItemID: item.ID, Quantity: 12, JournalSum: 12, Balanced: true}, *rec)
}

func TestLedger_RecepcionActualizaCostoPromedio(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	item := createItem(t, l, "malla", 10, 0)
	cost := decimal.NewFromInt(20)

	require.NoError(t, l.ReceiveMany(ctx, []inventory.ReceiptLine{{InventoryItemID: item.ID, Quantity: 10, UnitCost: &cost}},
		inventory.ReasonPurchaseReceipt, "PO-1", "u1"))

	got, err := l.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Quantity)
	assert.True(t, decimal.NewFromInt(15).Equal(got.UnitCost), got.UnitCost.String())
}

func TestLedger_CrearItemDuplicado(t *testing.T) {
	l, _, _ := newLedger(t)
	createItem(t, l, "yeso", 1, 0)
	_, err := l.CreateItem(context.Background(), inventory.CreateItemInput{ProductID: "yeso"}, "u1")
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestLedger_HistorialPaginado(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	item := createItem(t, l, "clavo", 0, 0)
	for i := 0; i < 25; i++ {
		_, err := l.Receive(ctx, item.ID, 1, fmt.Sprintf("rec-%d", i), "u1")
		require.NoError(t, err)
	}

	page1, total, err := l.History(ctx, item.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, page1, 20)
	assert.Equal(t, 25, page1[0].NewQuantity)

	page2, _, err := l.History(ctx, item.ID, 2, 20)
	require.NoError(t, err)
	assert.Len(t, page2, 5)
	assert.Equal(t, 1, page2[len(page2)-1].NewQuantity)
}

func TestLedger_ListaPorEstado(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	createItem(t, l, "p1", 0, 5)
	createItem(t, l, "p2", 3, 5)
	createItem(t, l, "p3", 30, 5)

	list, total, err := l.List(ctx, repository.InventoryFilter{Status: entity.StockStatusLowStock})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "p2", list[0].ProductID)

	_, _, err = l.List(ctx, repository.InventoryFilter{Status: "raro"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLedger_ReservasConcurrentesNoSobreVenden(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	item := createItem(t, l, "cemento-gris", 100, 0)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, short int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := l.ReserveMany(ctx, []inventory.Line{{InventoryItemID: item.ID, Quantity: 3}}, fmt.Sprintf("ORD-%d", i), "u")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				short++
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 33, ok)
	assert.Equal(t, 17, short)
	got, err := l.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)
	rec, err := l.Reconcile(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
}

func TestLedger_RunLockedExigeLlaves(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	item := createItem(t, l, "pintura", 5, 0)

	err := l.RunLocked(ctx, []string{inventory.OrderKey("x")}, func(tx *inventory.LedgerTx) error {
		return tx.ReserveMany(ctx, []inventory.Line{{InventoryItemID: item.ID, Quantity: 1}}, "x", "u")
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLedger_RunLockedRevierteSiFalla(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	item := createItem(t, l, "teja", 5, 0)
	boom := errors.New("boom")

	err := l.RunLocked(ctx, []string{inventory.ItemKey(item.ID)}, func(tx *inventory.LedgerTx) error {
		if err := tx.ReserveMany(ctx, []inventory.Line{{InventoryItemID: item.ID, Quantity: 5}}, "x", "u"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, err := l.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
}

type lockOrderItems struct {
	repository.InventoryItemRepository
	runner *lockOrderRunner
}

func (r lockOrderItems) GetForUpdate(ctx context.Context, id string) (*entity.InventoryItem, error) {
	r.runner.mu.Lock()
	r.runner.loaded = append(r.runner.loaded, id)
	r.runner.mu.Unlock()
	return r.InventoryItemRepository.GetForUpdate(ctx, id)
}

// lockOrderRunner registra el orden de los SELECT FOR UPDATE dentro de la transacción.
type lockOrderRunner struct {
	store  *memory.Store
	mu     sync.Mutex
	loaded []string
}

func (r *lockOrderRunner) Run(ctx context.Context, fn func(repos repository.TxRepositories) error) error {
	return r.store.Run(ctx, func(repos repository.TxRepositories) error {
		repos.Items = lockOrderItems{InventoryItemRepository: repos.Items, runner: r}
		return fn(repos)
	})
}

func (r *lockOrderRunner) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.loaded
	r.loaded = nil
	return out
}

func TestLedger_FilasSeBloqueanEnOrdenDeID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()
	runner := &lockOrderRunner{store: store}
	l := inventory.NewLedger(runner, repos.Items, inventory.NewJournal(repos.Movements),
		inventory.NewKeyedLocker(time.Second, 3), nil, logger.Nop())

	a := createItem(t, l, "arena", 50, 0)
	b := createItem(t, l, "cemento", 50, 0)
	c := createItem(t, l, "varilla", 50, 0)
	sorted := []string{a.ID, b.ID, c.ID}
	sort.Strings(sorted)
	runner.take()

	lines := []inventory.Line{
		{InventoryItemID: sorted[2], Quantity: 1},
		{InventoryItemID: sorted[0], Quantity: 1},
		{InventoryItemID: sorted[1], Quantity: 1},
	}
	require.NoError(t, l.ReserveMany(ctx, lines, "ORD-9", "u1"))
	assert.Equal(t, sorted, runner.take())

	require.NoError(t, l.Release(ctx, lines, "cancel:ORD-9", "u1"))
	assert.Equal(t, sorted, runner.take())

	// Líneas repetidas del mismo ítem se bloquean una sola vez.
	require.NoError(t, l.ReceiveMany(ctx, []inventory.ReceiptLine{
		{InventoryItemID: sorted[1], Quantity: 2},
		{InventoryItemID: sorted[0], Quantity: 3},
		{InventoryItemID: sorted[1], Quantity: 4},
	}, "", "REC-1", "u1"))
	assert.Equal(t, sorted[:2], runner.take())

	got, err := l.Get(ctx, sorted[1])
	require.NoError(t, err)
	assert.Equal(t, 56, got.Quantity)
	rec, err := l.Reconcile(ctx, sorted[1])
	require.NoError(t, err)
	assert.True(t, rec.Balanced)
}

func TestLedger_CrearItemConCostoNegativo(t *testing.T) {
	l, _, _ := newLedger(t)
	_, err := l.CreateItem(context.Background(), inventory.CreateItemInput{
		ProductID: "cemento",
		UnitCost:  decimal.NewFromInt(-1),
	}, "tester")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = l.GetByProduct(context.Background(), "cemento")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}
