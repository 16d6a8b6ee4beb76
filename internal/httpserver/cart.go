package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/internal/service"
	"github.com/Skotchmaster/restaurant/internal/transport"
	"github.com/Skotchmaster/restaurant/pkg/logging"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_cart")

	userID, err := getUserID(c)
	if err != nil {
		return fail(c, l, "get_cart_error", err)
	}

	view, err := h.Svc.GetCart(ctx, userID)
	if err != nil {
		return fail(c, l, "get_cart_error", err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CartHTTP) GetItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get_item")

	userID, err := getUserID(c)
	if err != nil {
		return fail(c, l, "get_item_error", err)
	}

	line, err := h.Svc.GetItem(ctx, userID, c.Param("itemRef"))
	if err != nil {
		return fail(c, l, "get_item_error", err)
	}
	return c.JSON(http.StatusOK, line)
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	userID, err := getUserID(c)
	if err != nil {
		return fail(c, l, "add_item_error", err)
	}

	var req transport.AddItemRequest
	if err := transport.BindJSON(c, &req); err != nil {
		return fail(c, l, "add_item_error", err)
	}
	in, err := req.Input()
	if err != nil {
		return fail(c, l, "add_item_error", err)
	}

	view, err := h.Svc.AddItem(ctx, userID, in)
	if err != nil {
		return fail(c, l, "add_item_error", err)
	}

	l.Info("add_item_success", "item_ref", in.ItemRef)
	return c.JSON(http.StatusOK, view)
}

func (h *CartHTTP) Sync(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.sync")

	userID, err := getUserID(c)
	if err != nil {
		return fail(c, l, "sync_error", err)
	}

	var req transport.SyncRequest
	if err := transport.BindJSON(c, &req); err != nil {
		return fail(c, l, "sync_error", err)
	}

	view, err := h.Svc.Sync(ctx, userID, req.Items)
	if err != nil {
		return fail(c, l, "sync_error", err)
	}
	return c.JSON(http.StatusOK, view)
}

// UpdateItem sets the quantity of one line. A quantity below one removes it.
func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	userID, err := getUserID(c)
	if err != nil {
		return fail(c, l, "update_item_error", err)
	}

	var req transport.UpdateItemRequest
	if err := transport.BindJSON(c, &req); err != nil {
		return fail(c, l, "update_item_error", err)
	}
	if req.Quantity == nil {
		return fail(c, l, "update_item_error", &service.FieldError{Field: "quantity", Reason: "required"})
	}

	view, err := h.Svc.UpdateQuantity(ctx, userID, req.Ref(), *req.Quantity)
	if err != nil {
		return fail(c, l, "update_item_error", err)
	}
	return c.JSON(http.StatusOK, view)
}

// Delete removes the line named by ?itemId, or clears the cart without it.
func (h *CartHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.delete")

	userID, err := getUserID(c)
	if err != nil {
		return fail(c, l, "delete_error", err)
	}

	var view *service.CartView
	if ref := c.QueryParam("itemId"); ref != "" {
		view, err = h.Svc.RemoveItem(ctx, userID, ref)
	} else {
		view, err = h.Svc.Clear(ctx, userID)
	}
	if err != nil {
		return fail(c, l, "delete_error", err)
	}
	return c.JSON(http.StatusOK, view)
}
