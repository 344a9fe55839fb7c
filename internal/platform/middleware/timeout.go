package middleware

import (
	"context"
	"net/http"
	"time"

	"sproutmarket/pkg/requestcontext"
)

// Timeout applies a deadline to every request context. Store calls inherit
// it, so a stalled backend surfaces as a timeout instead of hanging the
// worker indefinitely.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestTime pins one timestamp per request so every store write within it
// observes the same clock reading.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
