package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/materiales-erp/internal/domain"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
	"github.com/jhoicas/materiales-erp/pkg/config"
)

// TEST_DATABASE_URL apunta a una base desechable; sin ella las pruebas se omiten.
func testPool(t *testing.T) *TxRunner {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL no definido")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, config.DBConfig{DatabaseURL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(url, nil))
	return NewTxRunner(pool)
}

func TestPostgres_InventoryItemAndJournal(t *testing.T) {
	runner := testPool(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	product := &entity.Product{
		ID: uuid.NewString(), SKU: "T-" + uuid.NewString()[:8], Name: "Cemento gris", Unit: "saco",
		Price: decimal.NewFromInt(32000), Cost: decimal.NewFromInt(25000), Status: "active",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, NewProductRepository(runner.pool).Create(ctx, product))

	item := &entity.InventoryItem{
		ID: uuid.NewString(), ProductID: product.ID, Quantity: 10, MinimumStock: 5, MaximumStock: 100,
		UnitCost: decimal.NewFromInt(25000), Location: "bodega-1", CreatedAt: now, UpdatedAt: now,
	}
	err := runner.Run(ctx, func(repos repository.TxRepositories) error {
		if err := repos.Items.Create(ctx, item); err != nil {
			return err
		}
		return repos.Movements.Create(ctx, &entity.StockMovement{
			InventoryItemID: item.ID, ProductID: product.ID, Type: entity.MovementTypeIn, Quantity: 10, Delta: 10,
			NewQuantity: 10, Reason: "initial_stock", CreatedAt: now,
		})
	})
	require.NoError(t, err)

	repos := Repositories(runner.pool)
	got, err := repos.Items.GetByProductID(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10, got.Quantity)
	assert.True(t, got.UnitCost.Equal(item.UnitCost))

	sum, err := repos.Movements.SumDelta(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, sum)

	dup := *item
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, repos.Items.Create(ctx, &dup), domain.ErrDuplicate)

	missing, err := repos.Items.GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPostgres_SequenceIsMonotonic(t *testing.T) {
	runner := testPool(t)
	ctx := context.Background()
	seq := NewSequenceRepository(runner.pool)
	key := "test-" + uuid.NewString()

	first, err := seq.Next(ctx, key)
	require.NoError(t, err)
	second, err := seq.Next(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
}
