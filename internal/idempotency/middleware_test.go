package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	e     *echo.Echo
	calls int32
	fail  atomic.Bool
}

func newHarness(store Store) *harness {
	h := &harness{e: echo.New()}
	withUser := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", c.Request().Header.Get("X-User"))
			return next(c)
		}
	}
	h.e.POST("/orders", func(c echo.Context) error {
		n := atomic.AddInt32(&h.calls, 1)
		if h.fail.Load() {
			return echo.NewHTTPError(http.StatusBadRequest, "bad order")
		}
		return c.JSON(http.StatusCreated, map[string]any{"order": n})
	}, withUser, Middleware(store))
	return h
}

func (h *harness) post(user, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-User", user)
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	t.Parallel()

	h := newHarness(NewMemoryStore(time.Hour))

	first := h.post("u1", "k1", `{"a":1}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := h.post("u1", "k1", `{"a":1}`)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.EqualValues(t, 1, atomic.LoadInt32(&h.calls))
}

func TestMiddleware_Cases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		secondUsr string
		secondKey string
		body      string
		wantCode  int
		wantCalls int32
	}{
		{name: "different body conflicts", secondUsr: "u1", secondKey: "k1", body: `{"a":2}`, wantCode: http.StatusConflict, wantCalls: 1},
		{name: "same key other user runs", secondUsr: "u2", secondKey: "k1", body: `{"a":1}`, wantCode: http.StatusCreated, wantCalls: 2},
		{name: "no header always runs", secondUsr: "u1", secondKey: "", body: `{"a":1}`, wantCode: http.StatusCreated, wantCalls: 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(NewMemoryStore(time.Hour))
			require.Equal(t, http.StatusCreated, h.post("u1", "k1", `{"a":1}`).Code)

			rec := h.post(tt.secondUsr, tt.secondKey, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&h.calls))
		})
	}
}

func TestMiddleware_FailureReleasesKey(t *testing.T) {
	t.Parallel()

	h := newHarness(NewMemoryStore(time.Hour))

	h.fail.Store(true)
	require.Equal(t, http.StatusBadRequest, h.post("u1", "k1", `{}`).Code)

	h.fail.Store(false)
	assert.Equal(t, http.StatusCreated, h.post("u1", "k1", `{}`).Code)
	assert.EqualValues(t, 2, atomic.LoadInt32(&h.calls))
}

func TestMiddleware_PanicReleasesKey(t *testing.T) {
	t.Parallel()

	var panicked atomic.Bool
	e := echo.New()
	e.Use(echomw.Recover())
	e.POST("/orders", func(c echo.Context) error {
		if !panicked.Swap(true) {
			panic("handler crashed")
		}
		return c.JSON(http.StatusCreated, map[string]any{"ok": true})
	}, Middleware(NewMemoryStore(time.Hour)))

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(HeaderKey, "k1")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusInternalServerError, post())
	assert.Equal(t, http.StatusCreated, post())
}

func TestMiddleware_InFlightConflicts(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Hour)
	h := newHarness(store)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`))
	_, ok, err := store.Reserve(context.Background(), keyPrefix+"u1:k1", requestHash(req, "u1", []byte(`{}`)))
	require.NoError(t, err)
	require.True(t, ok)

	rec := h.post("u1", "k1", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "in progress")
	assert.Zero(t, atomic.LoadInt32(&h.calls))
}

func TestMemoryStore_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	_, ok, err := s.Reserve(ctx, "k", "h1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = s.Reserve(ctx, "k", "h1")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = s.Reserve(ctx, "k", "h2")
	assert.True(t, ok)
}

func TestMemoryStore_SweepsExpiredKeys(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_, ok, err := s.Reserve(ctx, k, "h")
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Len(t, s.records, 3)

	now = now.Add(2 * time.Minute)
	_, ok, err := s.Reserve(ctx, "d", "h")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, s.records, 1)
}

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore_ReserveCompleteRelease(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()

	s := NewRedisStore(client, time.Minute)
	key := "idem-test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, key) })

	_, ok, err := s.Reserve(ctx, key, "h1")
	require.NoError(t, err)
	require.True(t, ok)

	existing, ok, err := s.Reserve(ctx, key, "h1")
	require.NoError(t, err)
	require.False(t, ok)
	assert.False(t, existing.Done)

	require.NoError(t, s.Complete(ctx, key, Record{RequestHash: "h1", Status: 201, Body: []byte(`{"id":1}`)}))
	existing, _, err = s.Reserve(ctx, key, "h1")
	require.NoError(t, err)
	assert.True(t, existing.Done)
	assert.Equal(t, 201, existing.Status)
	assert.JSONEq(t, `{"id":1}`, string(existing.Body))

	require.NoError(t, s.Release(ctx, key))
	_, ok, err = s.Reserve(ctx, key, "h2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_ConcurrentReserve(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()

	s := NewRedisStore(client, time.Minute)
	key := "idem-test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, key) })

	var won int32
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			if _, ok, err := s.Reserve(ctx, key, "h"); err == nil && ok {
				atomic.AddInt32(&won, 1)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.EqualValues(t, 1, won)
}
