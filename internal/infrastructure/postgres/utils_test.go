package postgres

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/materiales-erp/internal/domain"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
)

func TestWhere_BuildsPlaceholdersInOrder(t *testing.T) {
	w := &where{}
	w.eq("customer_id", "c1")
	w.eq("status", "")
	w.add("order_number LIKE " + w.arg("ORD-202603%"))

	assert.Equal(t, " WHERE customer_id = $1 AND order_number LIKE $2", w.sql())
	assert.Equal(t, " LIMIT $3 OFFSET $4", w.page(20, 40))
	assert.Equal(t, []any{"c1", "ORD-202603%", 20, 40}, w.args)
}

func TestWhere_EmptyAndNoLimit(t *testing.T) {
	w := &where{}
	assert.Empty(t, w.sql())
	assert.Empty(t, w.page(0, 10))
	assert.Empty(t, w.args)
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, " ORDER BY total DESC, id DESC", orderBy("-total", "-created_at", orderSortColumns))
	assert.Equal(t, " ORDER BY order_number ASC, id ASC", orderBy("order_number", "-created_at", orderSortColumns))
	assert.Equal(t, " ORDER BY created_at DESC, id DESC", orderBy("", "-created_at", orderSortColumns))
	// columnas fuera de la lista blanca caen al orden por defecto
	assert.Equal(t, " ORDER BY created_at DESC, id DESC", orderBy("-password; DROP", "-created_at", orderSortColumns))
}

func TestInventoryWhere_StatusPredicate(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	w := inventoryWhere(repository.InventoryFilter{Location: "bodega-1", Status: entity.StockStatusLowStock, AsOf: asOf})

	sql := w.sql()
	assert.Contains(t, sql, "location = $1")
	assert.Contains(t, sql, "quantity <= minimum_stock")
	assert.Contains(t, sql, "expiration_date >= $2")
	assert.Equal(t, []any{"bodega-1", asOf}, w.args)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("connection reset")))
}

func TestMapLockError(t *testing.T) {
	for _, code := range []string{"40P01", "55P03", "40001"} {
		err := mapLockError(fmt.Errorf("select for update: %w", &pgconn.PgError{Code: code}))
		assert.ErrorIs(t, err, domain.ErrConflict, code)
		var pgErr *pgconn.PgError
		assert.True(t, errors.As(err, &pgErr), code)
	}

	plain := &pgconn.PgError{Code: "23503"}
	assert.Same(t, plain, mapLockError(plain))
	assert.NotErrorIs(t, mapLockError(errors.New("connection reset")), domain.ErrConflict)
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	require.NotNil(t, nullable("s1"))
	assert.Equal(t, "s1", deref(nullable("s1")))
	assert.Equal(t, "", deref(nil))
}

func TestMigrations_EmbeddedSchema(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)
	require.Len(t, downs, len(ups))

	up, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	require.NoError(t, err)
	down, err := migrationsFS.ReadFile("migrations/000001_init.down.sql")
	require.NoError(t, err)
	for _, table := range []string{
		"products", "customers", "suppliers", "inventory_items", "stock_movements",
		"orders", "order_items", "purchase_orders", "purchase_order_items", "document_sequences",
	} {
		assert.True(t, strings.Contains(string(up), "CREATE TABLE IF NOT EXISTS "+table+" ("), table)
		assert.True(t, strings.Contains(string(down), "DROP TABLE IF EXISTS "+table+";"), table)
	}
}

func TestPgxMigrateURL(t *testing.T) {
	got, err := pgxMigrateURL("postgres://erp:secret@db:5432/materiales?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://erp:secret@db:5432/materiales?sslmode=disable", got)

	got, err = pgxMigrateURL("postgresql://erp@db/materiales")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://erp@db/materiales", got)

	_, err = pgxMigrateURL("mysql://erp@db/materiales")
	assert.Error(t, err)
}
