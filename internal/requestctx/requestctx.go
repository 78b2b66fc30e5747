// Package requestctx stamps every inbound request with a correlation ID,
// the same way caddyevents.Event mints one via uuid.NewRandom (see
// modules/caddyevents/app.go).
package requestctx

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type idKey struct{}

// HeaderName is the response header carrying the correlation ID back to
// the caller.
const HeaderName = "X-Cardinal-Request-Id"

// New mints a fresh correlation ID, falling back to the all-zero UUID if
// the platform's random source is unavailable.
func New() uuid.UUID {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.UUID{}
	}
	return id
}

// WithID attaches id to ctx.
func WithID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// FromContext retrieves the correlation ID stamped on ctx, if any.
func FromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(idKey{}).(uuid.UUID)
	return id, ok
}

// Middleware mints a correlation ID for every request, attaches it to the
// request context, and echoes it on the response via HeaderName.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := New()
		w.Header().Set(HeaderName, id.String())
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}
