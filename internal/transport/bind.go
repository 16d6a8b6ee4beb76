package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/internal/service"
)

// MaxBodySize is the request body limit handed to echo's BodyLimit middleware.
const MaxBodySize = "1M"

var ErrMalformedBody = errors.New("malformed body")

// BindJSON binds the request body into dst with echo's binder. A value of the
// wrong JSON type is reported as a validation error on that field. Errors that
// carry their own status, such as 413 or 415, are returned as is.
func BindJSON(c echo.Context, dst any) error {
	err := c.Bind(dst)
	if err == nil {
		return nil
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		return ErrMalformedBody
	}

	var (
		typeErr *json.UnmarshalTypeError
		inner   *echo.HTTPError
	)
	switch {
	case errors.As(he.Internal, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return &service.FieldError{Field: field, Reason: "must be a " + jsonKind(typeErr.Type.Kind().String())}
	case errors.Is(he.Internal, io.EOF):
		return nil
	case errors.As(he.Internal, &inner):
		return inner
	case he.Code != http.StatusBadRequest:
		return he
	}
	return ErrMalformedBody
}

func jsonKind(goKind string) string {
	switch {
	case strings.HasPrefix(goKind, "float"), strings.HasPrefix(goKind, "int"), strings.HasPrefix(goKind, "uint"):
		return "number"
	case goKind == "slice", goKind == "array":
		return "list"
	case goKind == "struct", goKind == "map":
		return "object"
	case goKind == "bool":
		return "boolean"
	default:
		return goKind
	}
}
