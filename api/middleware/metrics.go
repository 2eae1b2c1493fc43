package middleware

import (
	"net/http"
	"time"
)

type httpObserver interface {
	Observe(method, route string, status int, elapsed time.Duration)
}

// Metrics records request counts and latency by chi route pattern. Unmatched
// paths share one label so cardinality stays bounded.
func Metrics(observer httpObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if observer == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := wrap(w, r)
			began := time.Now()
			next.ServeHTTP(ww, r)
			observer.Observe(r.Method, routePattern(r, "unmatched"), statusOf(ww), time.Since(began))
		})
	}
}
