package middleware

import (
	"net/http"
	"strconv"

	"query_quest/internal/platform/metrics"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Metrics counts handled requests by method and status class.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}
