package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/pkg/logging"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
)

const roleAdmin = "ADMIN"

// Refresher rotates a refresh token into a new session.
type Refresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*tokens.Pair, error)
}

type AutoRefreshMiddleware struct {
	JWTSecret []byte
	Refresher Refresher
	Cookies   tokens.Cookies
}

func NewAutoRefreshMiddleware(secret []byte, refresher Refresher, cookies tokens.Cookies) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret: secret,
		Refresher: refresher,
		Cookies:   cookies,
	}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
		if claims.Role != roleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (m *AutoRefreshMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context()).With("middleware", "auth")

		// API clients without cookies; no auto refresh on this path
		if raw := bearerToken(c); raw != "" {
			claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
			if err != nil {
				l.Warn("auth_error", "status", http.StatusUnauthorized, "reason", "invalid bearer token", "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}
			if validator != nil {
				if validationErr := validator(claims); validationErr != nil {
					return validationErr
				}
			}
			setUserContext(c, claims)
			return next(c)
		}

		accessCookie, err := c.Cookie(tokens.AccessCookie)
		hasAccess := err == nil && accessCookie.Value != ""

		var claims *tokens.AccessClaims
		if hasAccess {
			claims, err = tokens.AccessClaimsFromToken(accessCookie.Value, m.JWTSecret)
			if err == nil && claims != nil {
				if validator != nil {
					if validationErr := validator(claims); validationErr != nil {
						return validationErr
					}
				}

				setUserContext(c, claims)
				return next(c)
			}

			if !errors.Is(err, jwt.ErrTokenExpired) {
				m.clearAuthCookies(c)
				l.Warn("auth_error", "status", http.StatusUnauthorized, "reason", "invalid access token", "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}
		}

		refreshCookie, rErr := c.Cookie(tokens.RefreshCookie)
		if rErr != nil || refreshCookie.Value == "" {
			if !hasAccess {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}
			m.clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
		}

		pair, refErr := m.Refresher.RefreshSession(c.Request().Context(), refreshCookie.Value)
		if refErr != nil {
			m.clearAuthCookies(c)
			l.Warn("auth_error", "status", http.StatusUnauthorized, "reason", "refresh failed", "error", refErr)
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}

		for _, ck := range m.Cookies.Set(*pair) {
			c.SetCookie(ck)
		}

		newClaims, pErr := tokens.AccessClaimsFromToken(pair.AccessToken, m.JWTSecret)
		if pErr != nil || newClaims == nil {
			m.clearAuthCookies(c)
			return echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
		}

		if validator != nil {
			if validationErr := validator(newClaims); validationErr != nil {
				return validationErr
			}
		}

		l.Info("session_refreshed", "user_id", newClaims.Subject)
		setUserContext(c, newClaims)

		return next(c)
	}
}

func (m *AutoRefreshMiddleware) clearAuthCookies(c echo.Context) {
	for _, ck := range m.Cookies.Clear() {
		c.SetCookie(ck)
	}
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set("user_id", claims.Subject)
	c.Set("role", claims.Role)
}
