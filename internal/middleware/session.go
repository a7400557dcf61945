package middleware

import (
	"context"
	"net/http"

	"product-catalog/internal/database"
)

type sessionContextKey struct{}

// SessionMiddleware opens one database session per request and discards it
// when the handler returns, including on panic. Writes a handler did not
// commit are dropped.
func SessionMiddleware(db *database.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := db.NewSession()
			defer session.Discard()

			ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the request's session
func SessionFromContext(ctx context.Context) (*database.Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(*database.Session)
	return session, ok
}
