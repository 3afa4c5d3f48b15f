package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/materiales-erp/internal/application/catalog"
	"github.com/jhoicas/materiales-erp/internal/application/inventory"
	"github.com/jhoicas/materiales-erp/internal/application/orders"
	"github.com/jhoicas/materiales-erp/internal/application/purchasing"
	"github.com/jhoicas/materiales-erp/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger    *inventory.Ledger
	Orders    *orders.Engine
	Purchases *purchasing.Engine
	Catalog   *catalog.UseCase
	JWTSecret string
	JWTIssuer string
	Log       *logger.Logger
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("http")

	protected := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))
	anyRole := RequireRole(RoleAdmin, RoleBodeguero, RoleVendedor, RoleCompras)
	stockRoles := RequireRole(RoleAdmin, RoleBodeguero)
	salesRoles := RequireRole(RoleAdmin, RoleVendedor)
	purchaseRoles := RequireRole(RoleAdmin, RoleCompras, RoleBodeguero)
	adminOnly := RequireRole(RoleAdmin)

	// Catálogo
	catalogHandler := NewCatalogHandler(deps.Catalog, log)
	products := protected.Group("/products")
	products.Get("/", anyRole, catalogHandler.ListProducts)
	products.Get("/:id", anyRole, catalogHandler.GetProduct)
	products.Post("/", adminOnly, catalogHandler.CreateProduct)
	customers := protected.Group("/customers")
	customers.Get("/", anyRole, catalogHandler.ListCustomers)
	customers.Post("/", salesRoles, catalogHandler.CreateCustomer)
	suppliers := protected.Group("/suppliers")
	suppliers.Get("/", anyRole, catalogHandler.ListSuppliers)
	suppliers.Post("/", adminOnly, catalogHandler.CreateSupplier)

	// Inventario (ledger)
	inventoryHandler := NewInventoryHandler(deps.Ledger, log)
	inv := protected.Group("/inventory")
	inv.Get("/", anyRole, inventoryHandler.List)
	inv.Post("/", stockRoles, inventoryHandler.Create)
	inv.Get("/replenishment", purchaseRoles, inventoryHandler.Replenishment)
	inv.Get("/:id", anyRole, inventoryHandler.GetByID)
	inv.Get("/:id/movements", anyRole, inventoryHandler.Movements)
	inv.Get("/:id/reconcile", stockRoles, inventoryHandler.Reconcile)
	inv.Post("/:id/adjust", stockRoles, inventoryHandler.Adjust)
	inv.Post("/:id/receive", stockRoles, inventoryHandler.Receive)
	inv.Post("/:id/transfer", stockRoles, inventoryHandler.Transfer)

	// Órdenes de venta
	orderHandler := NewOrderHandler(deps.Orders, log)
	ord := protected.Group("/orders")
	ord.Get("/", anyRole, orderHandler.List)
	ord.Post("/", salesRoles, orderHandler.Create)
	ord.Get("/:id", anyRole, orderHandler.GetByID)
	ord.Put("/:id", salesRoles, orderHandler.Update)
	ord.Delete("/:id", salesRoles, orderHandler.Delete)
	ord.Post("/:id/submit", salesRoles, orderHandler.Submit)
	ord.Post("/:id/confirm", salesRoles, orderHandler.Confirm)
	ord.Post("/:id/advance", RequireRole(RoleAdmin, RoleVendedor, RoleBodeguero), orderHandler.Advance)
	ord.Post("/:id/cancel", salesRoles, orderHandler.Cancel)
	ord.Post("/:id/payment", salesRoles, orderHandler.Payment)

	// Órdenes de compra
	purchaseHandler := NewPurchaseHandler(deps.Purchases, log)
	pur := protected.Group("/purchases")
	pur.Get("/", anyRole, purchaseHandler.List)
	pur.Post("/", purchaseRoles, purchaseHandler.Create)
	pur.Get("/:id", anyRole, purchaseHandler.GetByID)
	pur.Put("/:id", purchaseRoles, purchaseHandler.Update)
	pur.Delete("/:id", purchaseRoles, purchaseHandler.Delete)
	pur.Post("/:id/submit", purchaseRoles, purchaseHandler.Submit)
	pur.Post("/:id/approve", adminOnly, purchaseHandler.Approve)
	pur.Post("/:id/order", purchaseRoles, purchaseHandler.MarkOrdered)
	pur.Post("/:id/receive", purchaseRoles, purchaseHandler.Receive)
	pur.Post("/:id/cancel", purchaseRoles, purchaseHandler.Cancel)
}
