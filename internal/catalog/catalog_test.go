package catalog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pizzasJSON = `[
  {"id":"p1","img":"p1.jpg","name":"Margherita","dsc":"Tomato and basil","price":10,"rate":4,"country":"Italy"},
  {"id":"p2","img":"p2.jpg","name":"Pepperoni","dsc":"Spicy salami","price":12.5,"rate":5,"country":"USA"}
]`

func newUpstream(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/pizzas":
			_, _ = io.WriteString(w, pizzasJSON)
		case "/drinks":
			w.WriteHeader(http.StatusBadGateway)
		case "/all/p1":
			_, _ = io.WriteString(w, `{"id":"p1","img":"p1.jpg","name":"Margherita","dsc":"Tomato and basil","price":10,"rate":4,"country":"Italy"}`)
		case "/all/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/all/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{}`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FetchCategory(t *testing.T) {
	t.Parallel()

	srv := newUpstream(t, nil)
	c := NewClient(srv.URL + "/")

	items, err := c.FetchCategory(context.Background(), "pizzas")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, MenuItem{
		ID: "p1", Name: "Margherita", Description: "Tomato and basil", Image: "p1.jpg",
		Price: 10, Rate: 4, Country: "Italy", Category: "pizzas",
	}, items[0])

	_, err = c.FetchCategory(context.Background(), "drinks")
	assert.ErrorIs(t, err, ErrUpstream)

	_, err = c.FetchCategory(context.Background(), "../admin")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestClient_FetchItem(t *testing.T) {
	t.Parallel()

	srv := newUpstream(t, nil)
	c := NewClient(srv.URL)
	ctx := context.Background()

	item, err := c.FetchItem(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, &MenuItem{
		ID: "p1", Name: "Margherita", Description: "Tomato and basil", Image: "p1.jpg",
		Price: 10, Rate: 4, Country: "Italy",
	}, item)

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "unknown id", id: "missing", wantErr: ErrNotFound},
		{name: "empty id", id: "  ", wantErr: ErrNotFound},
		{name: "upstream failure", id: "broken", wantErr: ErrUpstream},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := c.FetchItem(ctx, tt.id)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_ItemUsesCache(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()

	var hits int32
	srv := newUpstream(t, &hits)

	client.Del(ctx, itemKeyPrefix+"p1")
	t.Cleanup(func() { client.Del(ctx, itemKeyPrefix+"p1") })

	svc := &Service{Client: NewClient(srv.URL), Cache: NewCache(client, time.Minute)}

	first, err := svc.Item(ctx, "p1")
	require.NoError(t, err)
	second, err := svc.Item(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err = svc.Item(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_SearchFallback(t *testing.T) {
	t.Parallel()

	srv := newUpstream(t, nil)
	svc := &Service{Client: NewClient(srv.URL)}

	// drinks upstream fails, so the scan fails as a whole
	_, err := svc.Search(context.Background(), "salami", 0, 10)
	require.Error(t, err)

	res, err := svc.Search(context.Background(), "   ", 0, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestService_SearchFallbackMatches(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pizzas" {
			_, _ = io.WriteString(w, pizzasJSON)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	svc := &Service{Client: NewClient(srv.URL)}

	res, err := svc.Search(context.Background(), "SALAMI", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "p2", res.Items[0].ID)

	res, err = svc.Search(context.Background(), "p", 5, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Empty(t, res.Items)
}

func TestService_MenuUnknownCategory(t *testing.T) {
	t.Parallel()

	svc := &Service{Client: NewClient("http://127.0.0.1:1")}
	_, err := svc.Menu(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrUnknownCategory))
	assert.Contains(t, svc.Categories(), "pizzas")
	assert.Len(t, svc.Categories(), 14)
}

type fakeES struct {
	mu       sync.Mutex
	bulkDocs []MenuItem
	query    map[string]any
}

func newFakeES(t *testing.T, f *fakeES) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/_bulk"):
			sc := bufio.NewScanner(r.Body)
			line := 0
			for sc.Scan() {
				if line%2 == 1 {
					var it MenuItem
					_ = json.Unmarshal(sc.Bytes(), &it)
					f.bulkDocs = append(f.bulkDocs, it)
				}
				line++
			}
			_, _ = io.WriteString(w, `{"took":1,"errors":false,"items":[]}`)
		case strings.HasSuffix(r.URL.Path, "/_search"):
			_ = json.NewDecoder(r.Body).Decode(&f.query)
			_, _ = io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_source":{"id":"p2","name":"Pepperoni","category":"pizzas","price":12.5}}]}}`)
		default:
			_, _ = io.WriteString(w, `{}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIndex_IndexAndSearch(t *testing.T) {
	t.Parallel()

	f := &fakeES{}
	esSrv := newFakeES(t, f)
	es, err := NewESClient(esSrv.URL, "", "")
	require.NoError(t, err)

	upstream := newUpstream(t, nil)
	svc := &Service{Client: NewClient(upstream.URL), Index: NewIndex(es, "menu_items")}

	items, err := svc.Menu(context.Background(), "pizzas")
	require.NoError(t, err)
	require.Len(t, items, 2)

	f.mu.Lock()
	assert.Len(t, f.bulkDocs, 2)
	f.mu.Unlock()

	res, err := svc.Search(context.Background(), "peperoni", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Pepperoni", res.Items[0].Name)

	f.mu.Lock()
	defer f.mu.Unlock()
	mm := f.query["query"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "peperoni", mm["query"])
	assert.Equal(t, "AUTO", mm["fuzziness"])
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

func TestService_MenuUsesCache(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()

	var hits int32
	srv := newUpstream(t, &hits)

	cache := NewCache(client, time.Minute)
	client.Del(ctx, menuKeyPrefix+"pizzas")
	t.Cleanup(func() { client.Del(ctx, menuKeyPrefix+"pizzas") })

	svc := &Service{Client: NewClient(srv.URL), Cache: cache}

	first, err := svc.Menu(ctx, "pizzas")
	require.NoError(t, err)
	second, err := svc.Menu(ctx, "pizzas")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCache_Miss(t *testing.T) {
	client := getRedisClient(t)

	cache := NewCache(client, time.Minute)
	_, ok, err := cache.Get(context.Background(), "missing-"+uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)
}
