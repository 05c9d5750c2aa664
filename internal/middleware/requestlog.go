package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/andersoncleaning/telemetry/internal/logging"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestContextMiddleware adds request attributes to context early in the
// middleware chain. A well-formed inbound request id is kept, otherwise one
// is generated; it is echoed in the response and tagged on the request's
// Sentry scope.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.Scope().SetTag("request_id", id)
		}

		attrs := &logging.RequestAttrs{
			RequestID: id,
			Method:    r.Method,
			Path:      r.URL.Path,
			IP:        logging.ExtractClientIP(r),
		}
		ctx := logging.WithRequestAttrs(r.Context(), attrs)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UpdateRequestContextMiddleware records the authenticated subject after
// AuthMiddleware runs.
func UpdateRequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := GetClaims(r.Context()); claims != nil {
			r = r.WithContext(logging.UpdateRequestAttrs(r.Context(), claims.Subject, string(claims.Role)))
		}
		next.ServeHTTP(w, r)
	})
}
