// Package authz applies ownership and privilege checks at resolution time.
//
// Every mutation and every ownership-sensitive read passes through one of
// these guards before touching backing data. There is no implicit admin
// bypass; elevated access flows only through the explicit privileged flag on
// the identity.
package authz

import (
	"context"

	"github.com/mercatolabs/mercato/internal/gqlerrors"
	"github.com/mercatolabs/mercato/pkg/identity"
)

// RequireIdentity returns the request identity or an UNAUTHENTICATED error.
func RequireIdentity(ctx context.Context) (*identity.Identity, error) {
	id, _ := identity.FromContext(ctx)
	if id == nil {
		return nil, gqlerrors.Unauthenticated()
	}
	return id, nil
}

// RequireOwnerOrPrivileged returns the request identity if it owns the target
// resource or holds the privileged flag. Anonymous requests fail with
// UNAUTHENTICATED, authenticated non-owners with FORBIDDEN.
func RequireOwnerOrPrivileged(ctx context.Context, ownerID string) (*identity.Identity, error) {
	id, err := RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if id.SubjectID != ownerID && !id.IsPrivileged {
		return nil, gqlerrors.Forbidden("not authorized to access this resource")
	}
	return id, nil
}
