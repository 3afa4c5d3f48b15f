package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/materiales-erp/internal/application/dto"
	"github.com/jhoicas/materiales-erp/internal/application/purchasing"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
	"github.com/jhoicas/materiales-erp/pkg/logger"
)

// PurchaseHandler órdenes de compra y recepción de mercancía (protegido).
type PurchaseHandler struct {
	engine *purchasing.Engine
	log    *logger.Logger
}

// NewPurchaseHandler construye el handler.
func NewPurchaseHandler(engine *purchasing.Engine, log *logger.Logger) *PurchaseHandler {
	return &PurchaseHandler{engine: engine, log: log}
}

// Create godoc
// @Summary      Crear orden de compra
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreatePurchaseRequest  true  "Proveedor y líneas"
// @Success      201   {object}  dto.PurchaseResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/purchases [post]
func (h *PurchaseHandler) Create(c *fiber.Ctx) error {
	var in dto.CreatePurchaseRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	p, err := h.engine.Create(c.UserContext(), actorOf(c), purchasing.CreateInput{
		SupplierID:       in.SupplierID,
		Items:            purchaseLines(in.Items),
		Notes:            in.Notes,
		ExpectedDelivery: in.ExpectedDelivery,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.PurchaseFromEntity(p))
}

// List godoc
// @Summary      Listar órdenes de compra
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        supplier_id  query  string  false  "Proveedor"
// @Param        status       query  string  false  "Estado"
// @Param        number       query  string  false  "Prefijo del número (ej. PO-202603)"
// @Param        from         query  string  false  "Desde (YYYY-MM-DD)"
// @Param        to           query  string  false  "Hasta (YYYY-MM-DD, inclusive)"
// @Param        sort         query  string  false  "created_at | total | purchase_number (prefijo - descendente)"
// @Param        limit        query  int     false  "Límite"
// @Param        offset       query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.PurchaseListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/purchases [get]
func (h *PurchaseHandler) List(c *fiber.Ctx) error {
	var q dto.PurchaseListQuery
	if err := c.QueryParser(&q); err != nil {
		return invalidQuery(c)
	}
	if err := dto.Validate(q); err != nil {
		return writeError(c, h.log, err)
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	from, to := dayRange(q.From, q.To)
	list, total, err := h.engine.List(c.UserContext(), repository.PurchaseFilter{
		SupplierID:   q.SupplierID,
		Status:       q.Status,
		NumberPrefix: q.Number,
		From:         from,
		To:           to,
		Sort:         q.Sort,
		Limit:        q.Limit,
		Offset:       q.Offset,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.PurchaseListResponse{
		Purchases: make([]dto.PurchaseResponse, 0, len(list)),
		Page:      dto.PageResponse{Limit: q.Limit, Offset: q.Offset, Total: total},
	}
	for _, p := range list {
		out.Purchases = append(out.Purchases, dto.PurchaseFromEntity(p))
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener orden de compra
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la compra"
// @Success      200  {object}  dto.PurchaseResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/purchases/{id} [get]
func (h *PurchaseHandler) GetByID(c *fiber.Ctx) error {
	p, err := h.engine.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.PurchaseFromEntity(p))
}

// Update godoc
// @Summary      Modificar compra en borrador o pendiente
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "ID de la compra"
// @Param        body  body  dto.UpdatePurchaseRequest  true  "Cambios"
// @Success      200   {object}  dto.PurchaseResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/purchases/{id} [put]
func (h *PurchaseHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdatePurchaseRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	p, err := h.engine.Update(c.UserContext(), c.Params("id"), actorOf(c), purchasing.UpdateInput{
		Items:            purchaseLines(in.Items),
		Notes:            in.Notes,
		ExpectedDelivery: in.ExpectedDelivery,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.PurchaseFromEntity(p))
}

// Delete godoc
// @Summary      Eliminar compra en borrador
// @Tags         purchases
// @Security     Bearer
// @Param        id   path  string  true  "ID de la compra"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/purchases/{id} [delete]
func (h *PurchaseHandler) Delete(c *fiber.Ctx) error {
	if err := h.engine.Delete(c.UserContext(), c.Params("id"), actorOf(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Submit godoc
// @Summary      Enviar compra a aprobación (draft → pending)
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la compra"
// @Success      200  {object}  dto.PurchaseResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/purchases/{id}/submit [post]
func (h *PurchaseHandler) Submit(c *fiber.Ctx) error {
	return h.step(c, h.engine.Submit)
}

// Approve godoc
// @Summary      Aprobar compra
// @Description  Rechaza con 422 si el total supera el límite de crédito del proveedor.
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la compra"
// @Success      200  {object}  dto.PurchaseResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/purchases/{id}/approve [post]
func (h *PurchaseHandler) Approve(c *fiber.Ctx) error {
	return h.step(c, h.engine.Approve)
}

// MarkOrdered godoc
// @Summary      Marcar compra como pedida al proveedor
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la compra"
// @Success      200  {object}  dto.PurchaseResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/purchases/{id}/order [post]
func (h *PurchaseHandler) MarkOrdered(c *fiber.Ctx) error {
	return h.step(c, h.engine.MarkOrdered)
}

// Cancel godoc
// @Summary      Cancelar compra
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la compra"
// @Success      200  {object}  dto.PurchaseResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/purchases/{id}/cancel [post]
func (h *PurchaseHandler) Cancel(c *fiber.Ctx) error {
	return h.step(c, h.engine.Cancel)
}

// Receive godoc
// @Summary      Recibir mercancía
// @Description  Acredita en inventario lo recibido por producto. Lo que excede lo pendiente se recorta y se informa en excess.
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                      true  "ID de la compra"
// @Param        body  body  dto.ReceivePurchaseRequest  true  "Cantidades recibidas"
// @Success      200   {object}  dto.ReceiveResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/purchases/{id}/receive [post]
func (h *PurchaseHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceivePurchaseRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	lines := make([]purchasing.ReceiveLine, 0, len(in.Items))
	for _, l := range in.Items {
		lines = append(lines, purchasing.ReceiveLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	res, err := h.engine.Receive(c.UserContext(), c.Params("id"), actorOf(c), lines)
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.ReceiveResponse{
		Purchase: dto.PurchaseFromEntity(res.Purchase),
		Lines:    make([]dto.ReceivedLineResponse, 0, len(res.Lines)),
	}
	for _, l := range res.Lines {
		out.Lines = append(out.Lines, dto.ReceivedLineResponse{
			ProductID:       l.ProductID,
			InventoryItemID: l.InventoryItemID,
			Requested:       l.Requested,
			Accepted:        l.Accepted,
			Excess:          l.Excess,
		})
	}
	return c.JSON(out)
}

func (h *PurchaseHandler) step(c *fiber.Ctx, fn func(ctx context.Context, id, actor string) (*entity.PurchaseOrder, error)) error {
	p, err := fn(c.UserContext(), c.Params("id"), actorOf(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.PurchaseFromEntity(p))
}

func purchaseLines(in []dto.PurchaseLineRequest) []purchasing.LineInput {
	if in == nil {
		return nil
	}
	out := make([]purchasing.LineInput, 0, len(in))
	for _, l := range in {
		out = append(out, purchasing.LineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: l.UnitCost})
	}
	return out
}
