package loggingmw

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/restaurant/pkg/logging"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		handler   echo.HandlerFunc
		wantCode  int
		wantLevel string
	}{
		{
			name:      "ok",
			handler:   func(c echo.Context) error { return c.String(http.StatusOK, "hi") },
			wantCode:  http.StatusOK,
			wantLevel: "INFO",
		},
		{
			name:      "client error",
			handler:   func(echo.Context) error { return echo.NewHTTPError(http.StatusNotFound, "nope") },
			wantCode:  http.StatusNotFound,
			wantLevel: "WARN",
		},
		{
			name:      "server error",
			handler:   func(echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError, "boom") },
			wantCode:  http.StatusInternalServerError,
			wantLevel: "ERROR",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			e := echo.New()
			e.Use(RequestLogger(logging.NewWithWriter(&buf, "debug")))
			e.GET("/items/:id", func(c echo.Context) error {
				c.Set("user_id", "u-1")
				return tt.handler(c)
			})

			req := httptest.NewRequest(http.MethodGet, "/items/7", nil)
			req.Header.Set(echo.HeaderXRequestID, "rid-1")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "rid-1", rec.Header().Get(echo.HeaderXRequestID))

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.wantLevel, line["level"])
			assert.Equal(t, "/items/:id", line["path"])
			assert.Equal(t, "rid-1", line["request_id"])
			assert.Equal(t, "u-1", line["user_id"])
			assert.EqualValues(t, tt.wantCode, line["status"])
		})
	}
}
