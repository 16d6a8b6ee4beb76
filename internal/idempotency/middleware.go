package idempotency

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant/pkg/hash"
	"github.com/Skotchmaster/restaurant/pkg/logging"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	keyPrefix   = "idem:"
	maxBodySize = 1 << 20
)

type captureWriter struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func requestHash(r *http.Request, userID string, body []byte) string {
	return hash.Sha256Hex(r.Method + ":" + r.URL.Path + ":" + userID + ":" + string(body))
}

// Middleware must run after authentication: keys are scoped by the "user_id"
// context value. Requests without the header pass through. Only successful
// responses are stored; anything else frees the key so the client can retry.
func Middleware(store Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(HeaderKey)
			if key == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("middleware", "idempotency")

			userID, _ := c.Get("user_id").(string)

			req := c.Request()
			body, err := io.ReadAll(io.LimitReader(req.Body, maxBodySize))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			storeKey := keyPrefix + userID + ":" + key
			reqHash := requestHash(req, userID, body)

			existing, reserved, err := store.Reserve(ctx, storeKey, reqHash)
			if err != nil {
				l.Error("idempotency_reserve_error", "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}

			if !reserved {
				if existing.RequestHash != reqHash {
					l.Warn("idempotency_conflict", "status", http.StatusConflict)
					return echo.NewHTTPError(http.StatusConflict, "idempotency key reused with a different request")
				}
				if !existing.Done {
					return echo.NewHTTPError(http.StatusConflict, "request in progress")
				}
				l.Info("idempotent_replay", "status", existing.Status)
				c.Response().Header().Set(HeaderReplayed, "true")
				return c.JSONBlob(existing.Status, existing.Body)
			}

			res := c.Response()
			cw := &captureWriter{ResponseWriter: res.Writer}
			res.Writer = cw

			completed := false
			// runs on panics too, so the key never stays in progress
			defer func() {
				res.Writer = cw.ResponseWriter
				if completed {
					return
				}
				if err := store.Release(context.WithoutCancel(ctx), storeKey); err != nil {
					l.Warn("idempotency_release_error", "error", err)
				}
			}()

			herr := next(c)

			if herr == nil && res.Committed && res.Status >= 200 && res.Status < 300 {
				rec := Record{RequestHash: reqHash, Status: res.Status, Body: append([]byte(nil), cw.buf.Bytes()...)}
				if err := store.Complete(ctx, storeKey, rec); err != nil {
					l.Error("idempotency_complete_error", "error", err)
				}
				completed = true
				return nil
			}
			return herr
		}
	}
}
