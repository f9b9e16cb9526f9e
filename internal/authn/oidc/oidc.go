// Package oidc verifies bearer tokens against a remote JWKS endpoint, for
// deployments where an external identity provider mints the access tokens.
package oidc

import (
	"context"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/mercatolabs/mercato/internal/authn"
	"github.com/mercatolabs/mercato/internal/authn/jwtauth"
	"github.com/mercatolabs/mercato/pkg/identity"
)

const jwksRefreshInterval = 48 * time.Hour

type RemoteOidcAuthenticator struct {
	parser *jwt.Parser
	jwks   *keyfunc.JWKS
}

var _ authn.Authenticator = (*RemoteOidcAuthenticator)(nil)

// New fetches the JWKS from jwksURI and builds an authenticator that verifies
// RS256 tokens against it. Issuer and audience are enforced when non-empty.
// The JWKS is refreshed in the background until Close is called.
func New(jwksURI, issuer, audience string) (*RemoteOidcAuthenticator, error) {
	client := retryablehttp.NewClient()
	client.Logger = nil

	jwks, err := keyfunc.Get(jwksURI, keyfunc.Options{
		Client:          client.StandardClient(),
		RefreshInterval: jwksRefreshInterval,
	})
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &RemoteOidcAuthenticator{
		parser: jwt.NewParser(opts...),
		jwks:   jwks,
	}, nil
}

func (o *RemoteOidcAuthenticator) Authenticate(_ context.Context, bearer string) (*identity.Identity, error) {
	if bearer == "" {
		return nil, nil
	}

	token, err := o.parser.Parse(bearer, o.jwks.Keyfunc)
	if err != nil || !token.Valid {
		return nil, authn.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, authn.ErrInvalidToken
	}

	return jwtauth.IdentityFromClaims(claims)
}

func (o *RemoteOidcAuthenticator) Close() {
	o.jwks.EndBackground()
}
