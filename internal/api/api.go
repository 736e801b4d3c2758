package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"storefront-service/internal/entity"
	"storefront-service/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

type createOrderRequest struct {
	LineItems []entity.LineRequest `json:"line_items" validate:"required,min=1,dive"`
}

type updateOrderRequest struct {
	LineItems []entity.LineRequest `json:"line_items" validate:"dive"`
}

// CreateOrder places an order for the caller --> POST /orders
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	customer, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}

	var req createOrderRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	order, err := h.orderService.CreateOrder(c.Request().Context(), customer.ID, req.LineItems, c.Request().Header.Get(idempotencyHeader))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, order)
}

// ListOrders returns the caller's orders --> GET /orders
func (h *OrderHandler) ListOrders(c echo.Context) error {
	customer, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}

	orders, err := h.orderService.GetOrdersByCustomerID(c.Request().Context(), customer.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, orders)
}

// GetOrder --> GET /orders/:id
func (h *OrderHandler) GetOrder(c echo.Context) error {
	order, err := h.ownedOrder(c)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, order)
}

// UpdateOrder replaces the order's lines --> PUT /orders/:id
func (h *OrderHandler) UpdateOrder(c echo.Context) error {
	current, err := h.ownedOrder(c)
	if err != nil {
		return respondError(c, err)
	}

	var req updateOrderRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	order, err := h.orderService.UpdateOrder(c.Request().Context(), current.ID, req.LineItems)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, order)
}

// CancelOrder --> DELETE /orders/:id
func (h *OrderHandler) CancelOrder(c echo.Context) error {
	current, err := h.ownedOrder(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := h.orderService.CancelOrder(c.Request().Context(), current.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]int64{"id": id})
}

// ownedOrder loads the :id order and hides orders of other customers behind
// ErrOrderNotFound.
func (h *OrderHandler) ownedOrder(c echo.Context) (*entity.OrderView, error) {
	customer, err := principal(c)
	if err != nil {
		return nil, err
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return nil, entity.ErrOrderNotFound
	}

	order, found, err := h.orderService.GetOrderByID(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if !found || order.CustomerID != customer.ID {
		return nil, entity.ErrOrderNotFound
	}
	return order, nil
}
