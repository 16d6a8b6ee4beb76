package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant/internal/catalog"
	"github.com/Skotchmaster/restaurant/internal/idempotency"
	"github.com/Skotchmaster/restaurant/internal/middleware/csrf"
	"github.com/Skotchmaster/restaurant/internal/middleware/ratelimit"
	"github.com/Skotchmaster/restaurant/internal/oauth"
	"github.com/Skotchmaster/restaurant/internal/service"
	"github.com/Skotchmaster/restaurant/internal/transport"
	"github.com/Skotchmaster/restaurant/pkg/db"
	middleware "github.com/Skotchmaster/restaurant/pkg/middleware/auth"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
)

type Deps struct {
	DB          *gorm.DB
	Auth        *service.AuthService
	Cart        *service.CartService
	Orders      *service.OrderService
	Catalog     *catalog.Service
	OAuth       *oauth.Registry
	Idempotency idempotency.Store
	Cookies     tokens.Cookies
	// CSRF enables the double-submit check for cookie sessions when set.
	CSRF *csrf.Config
	// AuthRatePerMin limits auth endpoints per client IP; zero disables it.
	AuthRatePerMin int
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx, d.DB); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "db unavailable"})
		}
		return c.NoContent(http.StatusOK)
	})

	e.Use(echomw.BodyLimit(transport.MaxBodySize))

	if d.CSRF != nil {
		cfg := *d.CSRF
		cfg.SessionCookies = []string{tokens.AccessCookie, tokens.RefreshCookie}
		e.Use(csrf.Middleware(cfg))
	}

	authMw := middleware.NewAutoRefreshMiddleware(d.Auth.Tokens.AccessSecret, d.Auth, d.Cookies)

	authH := &AuthHTTP{Svc: d.Auth, Cart: d.Cart, OAuth: d.OAuth, Cookies: d.Cookies}
	cartH := &CartHTTP{Svc: d.Cart}
	orderH := &OrderHTTP{Svc: d.Orders}

	auth := e.Group("/auth")
	if d.AuthRatePerMin > 0 {
		auth.Use(ratelimit.PerMinute(d.AuthRatePerMin).Middleware)
	}
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/logout", authH.LogOut)
	auth.GET("/oauth/:provider/login", authH.OAuthLogin)
	auth.GET("/oauth/:provider/callback", authH.OAuthCallback)

	if d.Catalog != nil {
		menuH := &MenuHTTP{Svc: d.Catalog}
		e.GET("/menu", menuH.Menu)
		e.GET("/menu/categories", menuH.Categories)
		e.GET("/menu/search", menuH.Search)
		e.GET("/menu/items/:id", menuH.Item)
	}

	// RequireAuth is attached per route so unmatched paths still answer 404.
	requireAuth := authMw.RequireAuth

	e.GET("/me", authH.Me, requireAuth)

	e.GET("/cart", cartH.GetCart, requireAuth)
	e.GET("/cart/items/:itemRef", cartH.GetItem, requireAuth)
	e.POST("/cart", cartH.AddItem, requireAuth)
	e.POST("/cart/sync", cartH.Sync, requireAuth)
	e.PUT("/cart", cartH.UpdateItem, requireAuth)
	e.DELETE("/cart", cartH.Delete, requireAuth)

	createOrder := orderH.CreateOrder
	if d.Idempotency != nil {
		createOrder = idempotency.Middleware(d.Idempotency)(createOrder)
	}
	e.POST("/orders", createOrder, requireAuth)
	e.GET("/orders", orderH.ListOrders, requireAuth)
	e.GET("/orders/:id", orderH.GetOrder, requireAuth)
}
