package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/internal/service"
	"github.com/Skotchmaster/restaurant/internal/transport"
	"github.com/Skotchmaster/restaurant/internal/util"
	"github.com/Skotchmaster/restaurant/pkg/logging"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	userID, err := getUserID(c)
	if err != nil {
		return fail(c, l, "create_order_error", err)
	}

	var req transport.CreateOrderRequest
	if err := transport.BindJSON(c, &req); err != nil {
		return fail(c, l, "create_order_error", err)
	}

	order, err := h.Svc.CreateOrder(ctx, userID, req.Input())
	if err != nil {
		return fail(c, l, "create_order_error", err)
	}

	l.Info("create_order_success", "order_id", order.ID.String())
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	userID, err := getUserID(c)
	if err != nil {
		return fail(c, l, "list_orders_error", err)
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	orders, err := h.Svc.ListOrders(ctx, userID, c.QueryParam("userId"), page, size)
	if err != nil {
		return fail(c, l, "list_orders_error", err)
	}

	offset, limit := util.Calculate(page, size)
	return c.JSON(http.StatusOK, transport.OrdersResponse{Orders: orders, Page: offset/limit + 1, Size: limit})
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	userID, err := getUserID(c)
	if err != nil {
		return fail(c, l, "get_order_error", err)
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("get_order_error", "status", http.StatusNotFound, "reason", "bad id", "error", err)
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}

	order, err := h.Svc.GetOrder(ctx, userID, orderID)
	if err != nil {
		return fail(c, l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}
