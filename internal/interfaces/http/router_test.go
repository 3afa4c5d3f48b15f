package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/materiales-erp/internal/application/catalog"
	"github.com/jhoicas/materiales-erp/internal/application/dto"
	"github.com/jhoicas/materiales-erp/internal/application/inventory"
	"github.com/jhoicas/materiales-erp/internal/application/orders"
	"github.com/jhoicas/materiales-erp/internal/application/purchasing"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/materiales-erp/internal/interfaces/http"
	"github.com/jhoicas/materiales-erp/pkg/logger"
)

type server struct {
	app   *fiber.App
	store *memory.Store
}

func newServer(t *testing.T) server {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()

	require.NoError(t, store.Products().Create(ctx, &entity.Product{ID: "cemento", SKU: "CEM-50", Name: "Cemento 50kg", Price: decimal.NewFromInt(10), Cost: decimal.NewFromInt(7)}))
	require.NoError(t, store.Products().Create(ctx, &entity.Product{ID: "varilla", SKU: "VAR-38", Name: "Varilla 3/8", Price: decimal.NewFromInt(30), Cost: decimal.NewFromInt(20)}))
	require.NoError(t, store.Customers().Create(ctx, &entity.Customer{ID: "c1", Name: "Constructora Andina"}))
	require.NoError(t, store.Suppliers().Create(ctx, &entity.Supplier{ID: "s1", Name: "Aceros del Valle", CreditLimit: decimal.NewFromInt(1000)}))

	clock := func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) }
	ledger := inventory.NewLedger(store, repos.Items, inventory.NewJournal(repos.Movements),
		inventory.NewKeyedLocker(time.Second, 3), nil, logger.Nop())
	ledger.SetClock(clock)
	orderEngine := orders.NewEngine(ledger, repos.Orders, store.Products(), store.Customers(), store, nil, logger.Nop())
	orderEngine.SetClock(clock)
	purchaseEngine := purchasing.NewEngine(ledger, repos.Purchases, store.Products(), store.Suppliers(), store, nil, logger.Nop())
	purchaseEngine.SetClock(clock)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Ledger:    ledger,
		Orders:    orderEngine,
		Purchases: purchaseEngine,
		Catalog:   catalog.NewUseCase(store.Products(), store.Customers(), store.Suppliers()),
		JWTSecret: testJWTSecret,
		JWTIssuer: testIssuer,
		Log:       logger.Nop(),
	})
	return server{app: app, store: store}
}

// call ejecuta la petición con un token del rol dado y decodifica la respuesta en out (si no es nil).
func (s server) call(t *testing.T, role, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", tokenForRole(t, role))
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s server) createItem(t *testing.T, productID string, qty int) dto.InventoryItemResponse {
	t.Helper()
	var item dto.InventoryItemResponse
	status := s.call(t, apphttp.RoleBodeguero, http.MethodPost, "/api/inventory",
		map[string]any{"product_id": productID, "initial_quantity": qty, "minimum_stock": 3}, &item)
	require.Equal(t, http.StatusCreated, status)
	return item
}

func TestInventory_CrearAjustarYConciliar(t *testing.T) {
	s := newServer(t)
	item := s.createItem(t, "cemento", 100)
	assert.Equal(t, 100, item.Quantity)
	assert.Equal(t, entity.StockStatusInStock, item.Status)
	assert.Equal(t, "default", item.Location)

	var adjusted dto.InventoryItemResponse
	status := s.call(t, apphttp.RoleBodeguero, http.MethodPost, "/api/inventory/"+item.ID+"/adjust", map[string]any{"quantity": 2}, &adjusted)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, adjusted.Quantity)
	assert.Equal(t, entity.StockStatusLowStock, adjusted.Status)

	var history dto.MovementHistoryResponse
	status = s.call(t, apphttp.RoleVendedor, http.MethodGet, "/api/inventory/"+item.ID+"/movements?page_size=1", nil, &history)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, history.Total)
	require.Len(t, history.Movements, 1)
	assert.Equal(t, -98, history.Movements[0].Delta)

	var rec inventory.Reconciliation
	status = s.call(t, apphttp.RoleAdmin, http.MethodGet, "/api/inventory/"+item.ID+"/reconcile", nil, &rec)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, rec.Balanced)
	assert.Equal(t, 2, rec.JournalSum)

	var list dto.InventoryListResponse
	status = s.call(t, apphttp.RoleVendedor, http.MethodGet, "/api/inventory?status=low_stock", nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, list.Page.Total)
}

func TestInventory_ErroresHTTP(t *testing.T) {
	s := newServer(t)
	item := s.createItem(t, "cemento", 10)

	var e dto.ErrorResponse
	assert.Equal(t, http.StatusForbidden, s.call(t, apphttp.RoleVendedor, http.MethodPost, "/api/inventory",
		map[string]any{"product_id": "varilla"}, &e))

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusConflict, s.call(t, apphttp.RoleBodeguero, http.MethodPost, "/api/inventory",
		map[string]any{"product_id": "cemento"}, &e))
	assert.Equal(t, "DUPLICATE", e.Code)

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, s.call(t, apphttp.RoleBodeguero, http.MethodPost, "/api/inventory/"+item.ID+"/adjust",
		map[string]any{"reason": "sin cantidad"}, &e))
	assert.Equal(t, "VALIDATION", e.Code)
	require.NotEmpty(t, e.Details)
	assert.Equal(t, "quantity", e.Details[0].Field)

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, s.call(t, apphttp.RoleBodeguero, http.MethodPost, "/api/inventory/"+item.ID+"/adjust",
		map[string]any{"quantity": -1}, &e))
	assert.Equal(t, "NEGATIVE_QUANTITY", e.Code)

	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusNotFound, s.call(t, apphttp.RoleVendedor, http.MethodGet, "/api/inventory/no-existe", nil, &e))
	assert.Equal(t, "ITEM_NOT_FOUND", e.Code)
}

func TestOrders_ConfirmarSinStockYLuegoCancelar(t *testing.T) {
	s := newServer(t)
	item := s.createItem(t, "cemento", 10)

	var o dto.OrderResponse
	status := s.call(t, apphttp.RoleVendedor, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "c1",
		"items":       []map[string]any{{"product_id": "cemento", "quantity": 15}},
	}, &o)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "ORD-202603-0001", o.OrderNumber)
	assert.Equal(t, "212.00", o.Total.StringFixed(2)) // 150 + 12 + 50

	var e dto.ErrorResponse
	status = s.call(t, apphttp.RoleVendedor, http.MethodPost, "/api/orders/"+o.ID+"/confirm", nil, &e)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", e.Code)
	require.Len(t, e.Shortfalls, 1)
	assert.Equal(t, item.ID, e.Shortfalls[0].InventoryItemID)
	assert.Equal(t, 15, e.Shortfalls[0].Requested)
	assert.Equal(t, 10, e.Shortfalls[0].Available)

	status = s.call(t, apphttp.RoleVendedor, http.MethodPut, "/api/orders/"+o.ID, map[string]any{
		"items": []map[string]any{{"product_id": "cemento", "quantity": 6}},
	}, &o)
	require.Equal(t, http.StatusOK, status)

	status = s.call(t, apphttp.RoleVendedor, http.MethodPost, "/api/orders/"+o.ID+"/confirm", nil, &o)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, entity.OrderStatusConfirmed, o.Status)

	var inv dto.InventoryItemResponse
	s.call(t, apphttp.RoleVendedor, http.MethodGet, "/api/inventory/"+item.ID, nil, &inv)
	assert.Equal(t, 4, inv.Quantity)

	status = s.call(t, apphttp.RoleVendedor, http.MethodPost, "/api/orders/"+o.ID+"/cancel", map[string]any{"reason": "cliente desiste"}, &o)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, entity.OrderStatusCancelled, o.Status)
	assert.Equal(t, "cliente desiste", o.CancelReason)

	s.call(t, apphttp.RoleVendedor, http.MethodGet, "/api/inventory/"+item.ID, nil, &inv)
	assert.Equal(t, 10, inv.Quantity)

	e = dto.ErrorResponse{}
	status = s.call(t, apphttp.RoleVendedor, http.MethodPost, "/api/orders/"+o.ID+"/advance", nil, &e)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_STATE", e.Code)
}

func TestOrders_ValidacionYListado(t *testing.T) {
	s := newServer(t)

	var e dto.ErrorResponse
	status := s.call(t, apphttp.RoleVendedor, http.MethodPost, "/api/orders", map[string]any{
		"items": []map[string]any{{"product_id": "cemento", "quantity": 0}},
	}, &e)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", e.Code)
	assert.Len(t, e.Details, 2)

	var o dto.OrderResponse
	require.Equal(t, http.StatusCreated, s.call(t, apphttp.RoleVendedor, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "c1",
		"items":       []map[string]any{{"product_id": "varilla", "quantity": 1}},
	}, &o))

	var list dto.OrderListResponse
	status = s.call(t, apphttp.RoleAdmin, http.MethodGet, "/api/orders?status=draft&number=ORD-202603", nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, list.Page.Total)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, o.ID, list.Orders[0].ID)

	assert.Equal(t, http.StatusNoContent, s.call(t, apphttp.RoleVendedor, http.MethodDelete, "/api/orders/"+o.ID, nil, nil))
	e = dto.ErrorResponse{}
	assert.Equal(t, http.StatusNotFound, s.call(t, apphttp.RoleVendedor, http.MethodGet, "/api/orders/"+o.ID, nil, &e))
}

func TestPurchases_AprobarYRecibirConExceso(t *testing.T) {
	s := newServer(t)

	var p dto.PurchaseResponse
	status := s.call(t, apphttp.RoleCompras, http.MethodPost, "/api/purchases", map[string]any{
		"supplier_id": "s1",
		"items":       []map[string]any{{"product_id": "varilla", "quantity": 10}},
	}, &p)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "PO-202603-0001", p.PurchaseNumber)
	assert.Equal(t, "316.00", p.Total.StringFixed(2)) // 200 + 16 + 100

	require.Equal(t, http.StatusOK, s.call(t, apphttp.RoleCompras, http.MethodPost, "/api/purchases/"+p.ID+"/submit", nil, &p))
	assert.Equal(t, http.StatusForbidden, s.call(t, apphttp.RoleCompras, http.MethodPost, "/api/purchases/"+p.ID+"/approve", nil, nil))
	require.Equal(t, http.StatusOK, s.call(t, apphttp.RoleAdmin, http.MethodPost, "/api/purchases/"+p.ID+"/approve", nil, &p))
	assert.Equal(t, entity.PurchaseStatusApproved, p.Status)

	var res dto.ReceiveResponse
	status = s.call(t, apphttp.RoleBodeguero, http.MethodPost, "/api/purchases/"+p.ID+"/receive", map[string]any{
		"items": []map[string]any{{"product_id": "varilla", "quantity": 12}},
	}, &res)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, entity.PurchaseStatusReceived, res.Purchase.Status)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, 10, res.Lines[0].Accepted)
	assert.Equal(t, 2, res.Lines[0].Excess)

	var inv dto.InventoryItemResponse
	require.Equal(t, http.StatusOK, s.call(t, apphttp.RoleBodeguero, http.MethodGet, "/api/inventory/"+res.Lines[0].InventoryItemID, nil, &inv))
	assert.Equal(t, 10, inv.Quantity)

	var e dto.ErrorResponse
	status = s.call(t, apphttp.RoleBodeguero, http.MethodPost, "/api/purchases/"+p.ID+"/receive", map[string]any{
		"items": []map[string]any{{"product_id": "varilla", "quantity": 1}},
	}, &e)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_STATE", e.Code)
}

func TestPurchases_LimiteDeCredito(t *testing.T) {
	s := newServer(t)

	var p dto.PurchaseResponse
	require.Equal(t, http.StatusCreated, s.call(t, apphttp.RoleCompras, http.MethodPost, "/api/purchases", map[string]any{
		"supplier_id": "s1",
		"items":       []map[string]any{{"product_id": "varilla", "quantity": 60}},
	}, &p))

	var e dto.ErrorResponse
	status := s.call(t, apphttp.RoleAdmin, http.MethodPost, "/api/purchases/"+p.ID+"/approve", nil, &e)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "CREDIT_LIMIT_EXCEEDED", e.Code)
}

func TestCatalog_CrearYListarProductos(t *testing.T) {
	s := newServer(t)

	var created dto.ProductResponse
	status := s.call(t, apphttp.RoleAdmin, http.MethodPost, "/api/products", map[string]any{
		"sku": "BLO-15", "name": "Bloque 15cm", "price": "1.25", "cost": "0.80",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "unidad", created.Unit)

	var got dto.ProductResponse
	require.Equal(t, http.StatusOK, s.call(t, apphttp.RoleVendedor, http.MethodGet, "/api/products/"+created.ID, nil, &got))
	assert.Equal(t, "BLO-15", got.SKU)

	var list []dto.ProductResponse
	require.Equal(t, http.StatusOK, s.call(t, apphttp.RoleVendedor, http.MethodGet, "/api/products?limit=10", nil, &list))
	assert.Len(t, list, 3)

	assert.Equal(t, http.StatusForbidden, s.call(t, apphttp.RoleVendedor, http.MethodPost, "/api/products", map[string]any{"sku": "X", "name": "Y"}, nil))
}

func TestInventory_ListaDeReposicion(t *testing.T) {
	s := newServer(t)
	var varilla, cemento dto.InventoryItemResponse
	require.Equal(t, http.StatusCreated, s.call(t, apphttp.RoleBodeguero, http.MethodPost, "/api/inventory",
		map[string]any{"product_id": "varilla", "initial_quantity": 0, "minimum_stock": 3, "supplier_id": "s1", "unit_cost": "20"}, &varilla))
	require.Equal(t, http.StatusCreated, s.call(t, apphttp.RoleBodeguero, http.MethodPost, "/api/inventory",
		map[string]any{"product_id": "cemento", "initial_quantity": 2, "minimum_stock": 3, "maximum_stock": 50, "unit_cost": "7"}, &cemento))

	var out struct {
		Groups     []inventory.ReplenishmentGroup `json:"groups"`
		TotalItems int                            `json:"total_items"`
	}
	status := s.call(t, apphttp.RoleCompras, http.MethodGet, "/api/inventory/replenishment", nil, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, out.TotalItems)
	require.Len(t, out.Groups, 2)

	assert.Equal(t, "s1", out.Groups[0].SupplierID)
	require.Len(t, out.Groups[0].Items, 1)
	first := out.Groups[0].Items[0]
	assert.Equal(t, varilla.ID, first.InventoryItemID)
	assert.Equal(t, 1, first.Priority)
	assert.Equal(t, 5, first.SuggestedQty)
	assert.True(t, first.EstimatedCost.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, "", out.Groups[1].SupplierID)
	require.Len(t, out.Groups[1].Items, 1)
	assert.Equal(t, cemento.ID, out.Groups[1].Items[0].InventoryItemID)
	assert.Equal(t, 48, out.Groups[1].Items[0].SuggestedQty)

	status = s.call(t, apphttp.RoleCompras, http.MethodGet, "/api/inventory/replenishment?supplier_id=s1", nil, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, out.TotalItems)

	assert.Equal(t, http.StatusForbidden, s.call(t, apphttp.RoleVendedor, http.MethodGet, "/api/inventory/replenishment", nil, nil))
}
