package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/materiales-erp/internal/application/dto"
	"github.com/jhoicas/materiales-erp/internal/application/orders"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
	"github.com/jhoicas/materiales-erp/pkg/logger"
)

// OrderHandler órdenes de venta (protegido).
type OrderHandler struct {
	engine *orders.Engine
	log    *logger.Logger
}

// NewOrderHandler construye el handler.
func NewOrderHandler(engine *orders.Engine, log *logger.Logger) *OrderHandler {
	return &OrderHandler{engine: engine, log: log}
}

// Create godoc
// @Summary      Crear orden de venta
// @Description  Crea la orden en borrador con número ORD-YYYYMM-NNNN y totales calculados.
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateOrderRequest  true  "Cliente y líneas"
// @Success      201   {object}  dto.OrderResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/orders [post]
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	o, err := h.engine.Create(c.UserContext(), actorOf(c), orders.CreateInput{
		CustomerID:       in.CustomerID,
		Items:            orderLines(in.Items),
		Discount:         in.Discount,
		Notes:            in.Notes,
		ShippingAddress:  in.ShippingAddress,
		ExpectedDelivery: in.ExpectedDelivery,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.OrderFromEntity(o))
}

// List godoc
// @Summary      Listar órdenes de venta
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        customer_id     query  string  false  "Cliente"
// @Param        status          query  string  false  "Estado"
// @Param        payment_status  query  string  false  "Estado de pago"
// @Param        number          query  string  false  "Prefijo del número (ej. ORD-202603)"
// @Param        from            query  string  false  "Desde (YYYY-MM-DD)"
// @Param        to              query  string  false  "Hasta (YYYY-MM-DD, inclusive)"
// @Param        sort            query  string  false  "created_at | total | order_number (prefijo - descendente)"
// @Param        limit           query  int     false  "Límite"
// @Param        offset          query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.OrderListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/orders [get]
func (h *OrderHandler) List(c *fiber.Ctx) error {
	var q dto.OrderListQuery
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
	list, total, err := h.engine.List(c.UserContext(), repository.OrderFilter{
		CustomerID:    q.CustomerID,
		Status:        q.Status,
		PaymentStatus: q.PaymentStatus,
		NumberPrefix:  q.Number,
		From:          from,
		To:            to,
		Sort:          q.Sort,
		Limit:         q.Limit,
		Offset:        q.Offset,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := dto.OrderListResponse{
		Orders: make([]dto.OrderResponse, 0, len(list)),
		Page:   dto.PageResponse{Limit: q.Limit, Offset: q.Offset, Total: total},
	}
	for _, o := range list {
		out.Orders = append(out.Orders, dto.OrderFromEntity(o))
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener orden de venta
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	o, err := h.engine.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.OrderFromEntity(o))
}

// Update godoc
// @Summary      Modificar orden en borrador o pendiente
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "ID de la orden"
// @Param        body  body  dto.UpdateOrderRequest  true  "Cambios"
// @Success      200   {object}  dto.OrderResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders/{id} [put]
func (h *OrderHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	o, err := h.engine.Update(c.UserContext(), c.Params("id"), actorOf(c), orders.UpdateInput{
		Items:            orderLines(in.Items),
		Discount:         in.Discount,
		Notes:            in.Notes,
		ShippingAddress:  in.ShippingAddress,
		ExpectedDelivery: in.ExpectedDelivery,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.OrderFromEntity(o))
}

// Delete godoc
// @Summary      Eliminar orden en borrador
// @Tags         orders
// @Security     Bearer
// @Param        id   path  string  true  "ID de la orden"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id} [delete]
func (h *OrderHandler) Delete(c *fiber.Ctx) error {
	if err := h.engine.Delete(c.UserContext(), c.Params("id"), actorOf(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Submit godoc
// @Summary      Enviar orden (draft → pending)
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/submit [post]
func (h *OrderHandler) Submit(c *fiber.Ctx) error {
	return h.step(c, h.engine.Submit)
}

// Confirm godoc
// @Summary      Confirmar orden y reservar stock
// @Description  Reserva todas las líneas o ninguna. Si falta stock responde 422 con el detalle por ítem.
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/confirm [post]
func (h *OrderHandler) Confirm(c *fiber.Ctx) error {
	return h.step(c, h.engine.Confirm)
}

// Advance godoc
// @Summary      Avanzar orden (confirmed → processing → shipped → delivered)
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la orden"
// @Success      200  {object}  dto.OrderResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/advance [post]
func (h *OrderHandler) Advance(c *fiber.Ctx) error {
	return h.step(c, h.engine.Advance)
}

// Cancel godoc
// @Summary      Cancelar orden
// @Description  Si la orden tenía stock reservado, lo libera en la misma transacción.
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true   "ID de la orden"
// @Param        body  body  dto.CancelOrderRequest  false  "Motivo"
// @Success      200   {object}  dto.OrderResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelOrderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
		if err := dto.Validate(in); err != nil {
			return writeError(c, h.log, err)
		}
	}
	o, err := h.engine.Cancel(c.UserContext(), c.Params("id"), actorOf(c), in.Reason)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.OrderFromEntity(o))
}

// Payment godoc
// @Summary      Actualizar estado de pago
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                    true  "ID de la orden"
// @Param        body  body  dto.PaymentStatusRequest  true  "Estado de pago"
// @Success      200   {object}  dto.OrderResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/payment [post]
func (h *OrderHandler) Payment(c *fiber.Ctx) error {
	var in dto.PaymentStatusRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if err := dto.Validate(in); err != nil {
		return writeError(c, h.log, err)
	}
	o, err := h.engine.SetPaymentStatus(c.UserContext(), c.Params("id"), in.Status)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.OrderFromEntity(o))
}

func (h *OrderHandler) step(c *fiber.Ctx, fn func(ctx context.Context, id, actor string) (*entity.Order, error)) error {
	o, err := fn(c.UserContext(), c.Params("id"), actorOf(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.OrderFromEntity(o))
}

func orderLines(in []dto.OrderLineRequest) []orders.LineInput {
	if in == nil {
		return nil
	}
	out := make([]orders.LineInput, 0, len(in))
	for _, l := range in {
		out = append(out, orders.LineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return out
}

// dayRange convierte fechas YYYY-MM-DD (ya validadas) a un rango [from, to] inclusivo en UTC.
func dayRange(from, to string) (*time.Time, *time.Time) {
	var f, t *time.Time
	if d, err := time.Parse(time.DateOnly, from); err == nil {
		f = &d
	}
	if d, err := time.Parse(time.DateOnly, to); err == nil {
		end := d.Add(24*time.Hour - time.Nanosecond)
		t = &end
	}
	return f, t
}
