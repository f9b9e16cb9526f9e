// Package identity carries the authenticated principal of one inbound request.
package identity

import (
	"context"
	"time"
)

// Identity is the verified principal derived from a bearer credential. It is
// constructed once per request, is immutable afterwards, and is discarded when
// the request ends. A nil *Identity means anonymous.
type Identity struct {
	SubjectID    string
	Email        string
	IsPrivileged bool
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

type ctxKey struct{}

// ContextWithIdentity injects the given identity into the context. Passing nil
// is allowed and represents an anonymous request.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the identity stored in the context, if any. The second
// return value reports whether an identity (possibly nil/anonymous) was set.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	if !ok {
		return nil, false
	}
	return id, true
}
