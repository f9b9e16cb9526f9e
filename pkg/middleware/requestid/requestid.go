// Package requestid assigns each inbound HTTP request a stable identifier,
// reusing the trace id when tracing is enabled.
package requestid

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Header is the HTTP response header carrying the request id.
const Header = "X-Request-Id"

type ctxKey struct{}

// InitID returns the id to be used to identify the request. If trace is
// enabled, returns the trace id; otherwise returns a new ULID.
func InitID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.TraceID().IsValid() {
		return spanCtx.TraceID().String()
	}
	return ulid.Make().String()
}

// FromContext returns the request id set by the middleware, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// NewMiddleware tags every request with an id, exposes it on the response and
// records it on the active span.
func NewMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := InitID(r.Context())

		ctx := context.WithValue(r.Context(), ctxKey{}, requestID)
		w.Header().Set(Header, requestID)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("request_id", requestID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
