// Package authn resolves the bearer credential of one inbound request into an
// identity.
//
// Resolution fails closed: a malformed, expired or signature-invalid
// credential yields no identity, never a partial one. A missing credential is
// not an error; anonymous browsing is a valid, common state.
package authn

import (
	"context"
	"errors"
	"strings"

	"github.com/mercatolabs/mercato/pkg/identity"
)

// ErrInvalidToken is returned for any credential that fails verification for
// any reason. The cause is intentionally not distinguished on the wire.
var ErrInvalidToken = errors.New("invalid bearer token")

// Authenticator verifies one request's bearer credential.
type Authenticator interface {
	// Authenticate returns the identity encoded in the bearer token, nil for
	// an empty token (anonymous), or ErrInvalidToken. It is a pure function
	// of the credential and the verification key material.
	Authenticate(ctx context.Context, bearer string) (*identity.Identity, error)

	// Close releases background resources such as JWKS refreshers.
	Close()
}

// NoopAuthenticator treats every request as anonymous.
type NoopAuthenticator struct{}

var _ Authenticator = (*NoopAuthenticator)(nil)

func (n NoopAuthenticator) Authenticate(ctx context.Context, bearer string) (*identity.Identity, error) {
	return nil, nil
}

func (n NoopAuthenticator) Close() {}

// BearerFromHeader extracts the token from an Authorization header value.
// Returns "" when the header is absent or not a bearer scheme.
func BearerFromHeader(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
