package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/internal/catalog"
	"github.com/Skotchmaster/restaurant/internal/service"
	"github.com/Skotchmaster/restaurant/internal/transport"
)

var errNoUser = errors.New("unauthorized")

func getUserID(c echo.Context) (uuid.UUID, error) {
	s, ok := c.Get("user_id").(string)
	if !ok || s == "" {
		return uuid.Nil, errNoUser
	}

	userID, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errNoUser
	}
	return userID, nil
}

// fail logs err under event and turns it into the client response.
func fail(c echo.Context, l *slog.Logger, event string, err error) error {
	var fe *service.FieldError
	if errors.As(err, &fe) {
		l.Warn(event, "status", http.StatusBadRequest, "reason", "validation", "field", fe.Field, "error", err)
		return c.JSON(http.StatusBadRequest, transport.ValidationError{Error: "validation", Field: fe.Field, Reason: fe.Reason})
	}

	var (
		code int
		msg  string
		he   *echo.HTTPError
	)
	switch {
	case errors.Is(err, transport.ErrMalformedBody):
		code, msg = http.StatusBadRequest, "invalid body"
	case errors.Is(err, service.ErrValidation):
		code, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, service.ErrConflict):
		code, msg = http.StatusBadRequest, "user already exists"
	case errors.Is(err, errNoUser), errors.Is(err, service.ErrUnauthorized):
		code, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrInvalidCredentials):
		code, msg = http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, service.ErrInvalidRefreshToken):
		code, msg = http.StatusUnauthorized, "invalid refresh token"
	case errors.Is(err, service.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, catalog.ErrUnknownCategory):
		code, msg = http.StatusNotFound, "unknown category"
	case errors.Is(err, catalog.ErrUpstream):
		code, msg = http.StatusBadGateway, "menu unavailable"
	case errors.As(err, &he):
		l.Warn(event, "status", he.Code, "reason", he.Message, "error", err)
		return he
	default:
		l.Error(event, "status", http.StatusInternalServerError, "reason", "internal error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Warn(event, "status", code, "reason", msg, "error", err)
	return echo.NewHTTPError(code, msg)
}
