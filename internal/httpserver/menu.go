package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/internal/catalog"
	"github.com/Skotchmaster/restaurant/internal/util"
	"github.com/Skotchmaster/restaurant/pkg/logging"
)

type MenuHTTP struct {
	Svc *catalog.Service
}

func (h *MenuHTTP) Categories(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"categories": h.Svc.Categories()})
}

func (h *MenuHTTP) Menu(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.get")

	category := c.QueryParam("category")
	if category == "" {
		l.Warn("menu_error", "status", http.StatusBadRequest, "reason", "category required")
		return echo.NewHTTPError(http.StatusBadRequest, "category required")
	}

	items, err := h.Svc.Menu(ctx, category)
	if err != nil {
		return fail(c, l, "menu_error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"category": category, "items": items})
}

func (h *MenuHTTP) Item(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.item")

	item, err := h.Svc.Item(ctx, c.Param("id"))
	if err != nil {
		return fail(c, l, "menu_item_error", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *MenuHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.search")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	res, err := h.Svc.Search(ctx, c.QueryParam("q"), offset, limit)
	if err != nil {
		return fail(c, l, "search_error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"total": res.Total,
		"items": res.Items,
		"page":  offset/limit + 1,
		"size":  limit,
	})
}
