package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guisedstore/storefront/internal/infrastructure/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	store map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{store: map[string]string{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	val, ok := f.store[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return val, nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) error {
	f.store[key] = value.(string)
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, key string) error {
	delete(f.store, key)
	return nil
}

func (f *fakeRedis) InvalidatePattern(ctx context.Context, pattern string) error { return nil }

func (f *fakeRedis) Close() error { return nil }

func TestCacheKey(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"/api/products", "products:/api/products"},
		{"/api/products?page=2&category=shoes", "products:/api/products?category=shoes&page=2"},
		{"/api/products/abc", "product:/api/products/abc"},
		{"/api/products/search?query=boots", "search:/api/products/search?query=boots"},
		{"/api/categories", "categories:/api/categories"},
		{"/api/orders", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.url, nil)
		assert.Equal(t, tc.want, cacheKey(req), tc.url)
	}
}

func TestCacheMiddleware(t *testing.T) {
	client := newFakeRedis()
	calls := 0
	handler := CacheMiddleware(client)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"products":[]}`))
	}))

	t.Run("MissThenHit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
		require.Equal(t, 1, calls)
		assert.Equal(t, `{"products":[]}`, rec.Body.String())

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
		assert.Equal(t, 1, calls, "second request must come from the cache")
		assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
		assert.Equal(t, `{"products":[]}`, rec.Body.String())
	})

	t.Run("ErrorsNotCached", func(t *testing.T) {
		failing := CacheMiddleware(client)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"internal error"}`))
		}))

		rec := httptest.NewRecorder()
		failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		_, err := client.Get(context.Background(), "categories:/api/categories")
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)
	})

	t.Run("NonCacheableRouteBypassed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
		assert.Equal(t, 2, calls)
	})
}
