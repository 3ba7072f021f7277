package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/guisedstore/storefront/internal/infrastructure/redis"
)

const cacheTTL = time.Hour

// CacheMiddleware serves catalog GET responses out of Redis. Keys are
// prefixed per resource so that mutations can invalidate whole families
// with a single pattern delete.
func CacheMiddleware(client redis.RedisClient) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			key := cacheKey(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if body, err := client.Get(r.Context(), key); err == nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.Write([]byte(body))
				return
			}

			recorder := &bodyRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			// only successful responses are worth keeping
			if recorder.status < 200 || recorder.status >= 300 || recorder.body.Len() == 0 {
				return
			}
			if err := client.Set(r.Context(), key, recorder.body.String(), cacheTTL); err != nil {
				slog.Warn("failed to cache response", "key", key, "error", err)
			}
		})
	}
}

type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *bodyRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// cacheKey returns the Redis key for a cacheable catalog request, or ""
// when the route is not cacheable. The query string is canonicalized so
// that parameter order does not fragment the cache.
func cacheKey(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, "/api")

	var prefix string
	switch {
	case path == "/products/search":
		prefix = "search"
	case path == "/products":
		prefix = "products"
	case strings.HasPrefix(path, "/products/"):
		prefix = "product"
	case path == "/categories":
		prefix = "categories"
	default:
		return ""
	}

	key := prefix + ":" + r.URL.Path
	if query := r.URL.Query().Encode(); query != "" {
		key += "?" + query
	}
	return key
}
