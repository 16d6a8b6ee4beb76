package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/internal/oauth"
	"github.com/Skotchmaster/restaurant/internal/service"
	"github.com/Skotchmaster/restaurant/internal/transport"
	"github.com/Skotchmaster/restaurant/pkg/logging"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
)

const (
	oauthStatePath = "/auth/oauth"
	oauthStateTTL  = 10 * time.Minute
)

type AuthHTTP struct {
	Svc     *service.AuthService
	Cart    *service.CartService
	OAuth   *oauth.Registry
	Cookies tokens.Cookies
}

func (h *AuthHTTP) setSession(c echo.Context, p tokens.Pair) {
	for _, ck := range h.Cookies.Set(p) {
		c.SetCookie(ck)
	}
}

func (h *AuthHTTP) clearSession(c echo.Context) {
	for _, ck := range h.Cookies.Clear() {
		c.SetCookie(ck)
	}
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := transport.BindJSON(c, &req); err != nil {
		return fail(c, l, "register_error", err)
	}

	user, err := h.Svc.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return fail(c, l, "register_error", err)
	}

	l.Info("register_success", "user_id", user.ID.String())
	return c.JSON(http.StatusCreated, user)
}

// Login signs the user in. Items sent with the credentials are merged into
// the stored cart and the merged cart is returned.
func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := transport.BindJSON(c, &req); err != nil {
		return fail(c, l, "login_error", err)
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, l, "login_error", err)
	}

	var view *service.CartView
	if len(req.Items) > 0 {
		view, err = h.Cart.Sync(ctx, res.User.ID, req.Items)
	} else {
		view, err = h.Cart.GetCart(ctx, res.User.ID)
	}
	if err != nil {
		return fail(c, l, "login_cart_error", err)
	}

	h.setSession(c, res.Pair)
	l.Info("login_success", "user_id", res.User.ID.String(), "synced_items", len(req.Items))
	return c.JSON(http.StatusOK, transport.NewSessionResponse(res, view))
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	ck, err := c.Cookie(tokens.RefreshCookie)
	if err != nil || ck.Value == "" {
		l.Warn("refresh_error", "status", http.StatusUnauthorized, "reason", "missing refresh token")
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	res, err := h.Svc.Refresh(ctx, ck.Value)
	if err != nil {
		h.clearSession(c)
		return fail(c, l, "refresh_error", err)
	}

	h.setSession(c, res.Pair)
	l.Info("refresh_success", "user_id", res.User.ID.String())
	return c.JSON(http.StatusOK, transport.NewSessionResponse(res, nil))
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	if ck, err := c.Cookie(tokens.RefreshCookie); err == nil {
		if err := h.Svc.LogOut(ctx, ck.Value); err != nil {
			h.clearSession(c)
			l.Error("logout_failed", "status", 500, "reason", "cannot revoke refresh token", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	h.clearSession(c)
	l.Info("logout_success")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.me")

	userID, err := getUserID(c)
	if err != nil {
		return fail(c, l, "me_error", err)
	}

	user, err := h.Svc.Me(ctx, userID)
	if err != nil {
		return fail(c, l, "me_error", err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) provider(c echo.Context) (*oauth.Provider, error) {
	if h.OAuth == nil {
		return nil, oauth.ErrUnknownProvider
	}
	return h.OAuth.Get(c.Param("provider"))
}

func (h *AuthHTTP) OAuthLogin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.oauth_login")

	p, err := h.provider(c)
	if err != nil {
		l.Warn("oauth_login_error", "status", http.StatusNotFound, "provider", c.Param("provider"))
		return echo.NewHTTPError(http.StatusNotFound, "unknown provider")
	}

	state := oauth.NewState()
	c.SetCookie(h.Cookies.Create(oauth.StateCookie, state, oauthStatePath, time.Now().Add(oauthStateTTL)))
	return c.Redirect(http.StatusFound, p.AuthCodeURL(state))
}

func (h *AuthHTTP) OAuthCallback(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.oauth_callback", "provider", c.Param("provider"))

	p, err := h.provider(c)
	if err != nil {
		l.Warn("oauth_callback_error", "status", http.StatusNotFound, "reason", "unknown provider")
		return echo.NewHTTPError(http.StatusNotFound, "unknown provider")
	}

	stateCk, err := c.Cookie(oauth.StateCookie)
	c.SetCookie(h.Cookies.Delete(oauth.StateCookie, oauthStatePath))
	if err != nil || stateCk.Value == "" || stateCk.Value != c.QueryParam("state") {
		l.Warn("oauth_callback_error", "status", http.StatusBadRequest, "reason", "state mismatch")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid oauth state")
	}

	code := c.QueryParam("code")
	if code == "" {
		l.Warn("oauth_callback_error", "status", http.StatusBadRequest, "reason", "code missing", "provider_error", c.QueryParam("error"))
		return echo.NewHTTPError(http.StatusBadRequest, "code missing")
	}

	info, err := p.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, oauth.ErrExchange) || errors.Is(err, oauth.ErrUserInfo) {
			l.Warn("oauth_callback_error", "status", http.StatusUnauthorized, "reason", "exchange failed", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "oauth sign-in failed")
		}
		return fail(c, l, "oauth_callback_error", err)
	}

	res, err := h.Svc.LoginOAuth(ctx, service.Identity{
		Provider: info.Provider,
		Subject:  info.Subject,
		Email:    info.Email,
		Name:     info.Name,
	})
	if err != nil {
		return fail(c, l, "oauth_callback_error", err)
	}

	view, err := h.Cart.GetCart(ctx, res.User.ID)
	if err != nil {
		return fail(c, l, "oauth_callback_error", err)
	}

	h.setSession(c, res.Pair)
	l.Info("oauth_login_success", "user_id", res.User.ID.String())
	return c.JSON(http.StatusOK, transport.NewSessionResponse(res, view))
}
