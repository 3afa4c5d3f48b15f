package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/materiales-erp/internal/application/dto"
	"github.com/jhoicas/materiales-erp/internal/application/inventory"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
	"github.com/jhoicas/materiales-erp/pkg/logger"
)

// InventoryHandler expone el ledger de inventario (protegido).
type InventoryHandler struct {
	ledger *inventory.Ledger
	log    *logger.Logger
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(ledger *inventory.Ledger, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, log: log}
}

// Create godoc
// @Summary      Crear ítem de inventario
// @Description  Crea el ítem de un producto con su stock inicial. El stock inicial queda en el journal.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateInventoryItemRequest  true  "Datos del ítem"
// @Success      201   {object}  dto.InventoryItemResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory [post]
func (h *InventoryHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateInventoryItemRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	item, err := h.ledger.CreateItem(c.UserContext(), inventory.CreateItemInput{
		ProductID:       in.ProductID,
		InitialQuantity: in.InitialQuantity,
		MinimumStock:    in.MinimumStock,
		MaximumStock:    in.MaximumStock,
		UnitCost:        in.UnitCost,
		Location:        in.Location,
		SupplierID:      in.SupplierID,
		ExpirationDate:  in.ExpirationDate,
		BatchNumber:     in.BatchNumber,
	}, actorOf(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.InventoryItemFromEntity(item, h.ledger.Now()))
}

// List godoc
// @Summary      Listar inventario
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id   query  string  false  "Producto"
// @Param        supplier_id  query  string  false  "Proveedor"
// @Param        location     query  string  false  "Ubicación"
// @Param        status       query  string  false  "in_stock | low_stock | out_of_stock | expired"
// @Param        sort         query  string  false  "created_at | updated_at | quantity (prefijo - descendente)"
// @Param        limit        query  int     false  "Límite (default 20, máx 100)"
// @Param        offset       query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.InventoryListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory [get]
func (h *InventoryHandler) List(c *fiber.Ctx) error {
	var q dto.InventoryListQuery
	if err := c.QueryParser(&q); err != nil {
		return invalidQuery(c)
	}
	if err := dto.Validate(q); err != nil {
		return writeError(c, h.log, err)
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	now := h.ledger.Now()
	list, total, err := h.ledger.List(c.UserContext(), repository.InventoryFilter{
		ProductID:  q.ProductID,
		SupplierID: q.SupplierID,
		Location:   q.Location,
		Status:     q.Status,
		AsOf:       now,
		Sort:       q.Sort,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.InventoryListResponse{
		Items: make([]dto.InventoryItemResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: q.Limit, Offset: q.Offset, Total: total},
	}
	for _, it := range list {
		out.Items = append(out.Items, dto.InventoryItemFromEntity(it, now))
	}
	return c.JSON(out)
}

// Replenishment godoc
// @Summary      Lista de reposición
// @Description  Ítems agotados o con stock bajo con la cantidad sugerida de pedido
// @Description  (hasta el stock máximo o 1.5 × mínimo), agrupados por proveedor y priorizados por déficit.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        supplier_id  query  string  false  "Proveedor"
// @Param        location     query  string  false  "Ubicación"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  dto.ErrorResponse
// @Router       /api/inventory/replenishment [get]
func (h *InventoryHandler) Replenishment(c *fiber.Ctx) error {
	groups, err := h.ledger.ReplenishmentList(c.UserContext(), inventory.ReplenishmentFilter{
		SupplierID: c.Query("supplier_id"),
		Location:   c.Query("location"),
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	total := 0
	for _, g := range groups {
		total += len(g.Items)
	}
	return c.JSON(fiber.Map{
		"groups":      groups,
		"total_items": total,
	})
}

// GetByID godoc
// @Summary      Obtener ítem de inventario
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del ítem"
// @Success      200  {object}  dto.InventoryItemResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/{id} [get]
func (h *InventoryHandler) GetByID(c *fiber.Ctx) error {
	item, err := h.ledger.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.InventoryItemFromEntity(item, h.ledger.Now()))
}

// Adjust godoc
// @Summary      Ajustar inventario (conteo físico)
// @Description  Fija la cantidad al valor contado y registra la diferencia como ajuste.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                      true  "ID del ítem"
// @Param        body  body  dto.AdjustInventoryRequest  true  "Cantidad contada"
// @Success      200   {object}  dto.InventoryItemResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/{id}/adjust [post]
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustInventoryRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	reason := in.Reason
	if reason == "" {
		reason = inventory.ReasonManualCount
	}
	item, err := h.ledger.AdjustTo(c.UserContext(), c.Params("id"), *in.Quantity, reason, actorOf(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.InventoryItemFromEntity(item, h.ledger.Now()))
}

// Receive godoc
// @Summary      Registrar entrada de stock
// @Description  Suma la cantidad al ítem. Con unit_cost se recalcula el costo promedio ponderado.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                       true  "ID del ítem"
// @Param        body  body  dto.ReceiveInventoryRequest  true  "Entrada"
// @Success      200   {object}  dto.InventoryItemResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/{id}/receive [post]
func (h *InventoryHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiveInventoryRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	id := c.Params("id")
	reference := in.Reference
	if reference == "" {
		reference = "receive:" + id
	}
	line := inventory.ReceiptLine{InventoryItemID: id, Quantity: in.Quantity, UnitCost: in.UnitCost}
	if err := h.ledger.ReceiveMany(c.UserContext(), []inventory.ReceiptLine{line}, inventory.ReasonStockReceipt, reference, actorOf(c)); err != nil {
		return writeError(c, h.log, err)
	}
	item, err := h.ledger.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.InventoryItemFromEntity(item, h.ledger.Now()))
}

// Transfer godoc
// @Summary      Trasladar ítem de ubicación
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                        true  "ID del ítem"
// @Param        body  body  dto.TransferInventoryRequest  true  "Nueva ubicación"
// @Success      200   {object}  dto.InventoryItemResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/{id}/transfer [post]
func (h *InventoryHandler) Transfer(c *fiber.Ctx) error {
	var in dto.TransferInventoryRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	item, err := h.ledger.Transfer(c.UserContext(), c.Params("id"), in.Location, actorOf(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.InventoryItemFromEntity(item, h.ledger.Now()))
}

// Movements godoc
// @Summary      Historial de movimientos
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id         path   string  true   "ID del ítem"
// @Param        page       query  int     false  "Página (base 1)"
// @Param        page_size  query  int     false  "Tamaño de página (default 20, máx 100)"
// @Success      200  {object}  dto.MovementHistoryResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/{id}/movements [get]
func (h *InventoryHandler) Movements(c *fiber.Ctx) error {
	var q dto.HistoryQuery
	if err := c.QueryParser(&q); err != nil {
		return invalidQuery(c)
	}
	if err := dto.Validate(q); err != nil {
		return writeError(c, h.log, err)
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	list, total, err := h.ledger.History(c.UserContext(), c.Params("id"), q.Page, q.PageSize)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.MovementHistoryResponse{
		Movements: make([]dto.StockMovementResponse, 0, len(list)),
		Page:      q.Page,
		PageSize:  q.PageSize,
		Total:     total,
	}
	for _, m := range list {
		out.Movements = append(out.Movements, dto.StockMovementFromEntity(m))
	}
	return c.JSON(out)
}

// Reconcile godoc
// @Summary      Conciliar ítem contra el journal
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del ítem"
// @Success      200  {object}  inventory.Reconciliation
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/{id}/reconcile [get]
func (h *InventoryHandler) Reconcile(c *fiber.Ctx) error {
	r, err := h.ledger.Reconcile(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(r)
}
