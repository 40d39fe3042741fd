package transport

import (
	"net/http"

	"github.com/google/uuid"
)

// maxRequestIDLen bounds client-supplied IDs before they reach logs.
const maxRequestIDLen = 128

// RequestID returns middleware that assigns a request ID to each request.
// A client-supplied X-Request-ID is kept; otherwise a UUID is generated.
// The ID is echoed in the response header and stored in the context.
// Requests that already carry an ID in their context pass through, so the
// middleware can be stacked.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RequestIDFromContext(r.Context()) != "" {
				next.ServeHTTP(w, r)
				return
			}
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > maxRequestIDLen {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(ContextWithRequestID(r.Context(), id)))
		})
	}
}
