package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/kirogate/kirogate/pkg/api"
)

type requestIDKey struct{}

// RequestIDFromContext returns the request's ID, or "" when none was
// assigned. Usage records and log lines carry this ID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID attaches a request ID to the context. The HTTP
// adapter calls this with the X-Request-ID header value when present.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns middleware that guarantees every request carries an
// ID, generating one when the adapter did not supply it.
func RequestID() Middleware {
	return func(next MessageCreator) MessageCreator {
		return MessageCreatorFunc(func(ctx context.Context, req *api.MessagesRequest, w ResponseWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, newRequestID())
			}
			return next.CreateMessage(ctx, req, w)
		})
	}
}

func newRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
