// Package jwtauth verifies bearer tokens against locally configured key
// material: an HMAC shared secret or a PEM-encoded RSA public key.
package jwtauth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mercatolabs/mercato/internal/authn"
	"github.com/mercatolabs/mercato/pkg/identity"
)

type StaticKeyAuthenticator struct {
	parser    *jwt.Parser
	hmacKey   []byte
	rsaPubKey *rsa.PublicKey
}

var _ authn.Authenticator = (*StaticKeyAuthenticator)(nil)

// New builds an authenticator from the given key material. Keys that look
// like PEM blocks are parsed as RSA public keys (RS256); anything else is
// treated as an HMAC shared secret (HS256). Issuer and audience are enforced
// when non-empty.
func New(key, issuer, audience string) (*StaticKeyAuthenticator, error) {
	a := &StaticKeyAuthenticator{}

	var method string
	if strings.HasPrefix(strings.TrimSpace(key), "-----BEGIN") {
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("parse RSA public key: %w", err)
		}
		a.rsaPubKey = pub
		method = "RS256"
	} else {
		if key == "" {
			return nil, fmt.Errorf("jwt verification key must not be empty")
		}
		a.hmacKey = []byte(key)
		method = "HS256"
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	a.parser = jwt.NewParser(opts...)
	return a, nil
}

func (a *StaticKeyAuthenticator) Authenticate(_ context.Context, bearer string) (*identity.Identity, error) {
	if bearer == "" {
		return nil, nil
	}

	token, err := a.parser.Parse(bearer, func(token *jwt.Token) (interface{}, error) {
		if a.rsaPubKey != nil {
			return a.rsaPubKey, nil
		}
		return a.hmacKey, nil
	})
	if err != nil || !token.Valid {
		return nil, authn.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, authn.ErrInvalidToken
	}

	return IdentityFromClaims(claims)
}

func (a *StaticKeyAuthenticator) Close() {}

// IdentityFromClaims maps verified JWT claims onto an Identity. The subject is
// required; email and the privileged flag are optional claims.
func IdentityFromClaims(claims jwt.MapClaims) (*identity.Identity, error) {
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, authn.ErrInvalidToken
	}

	id := &identity.Identity{SubjectID: subject}

	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if privileged, ok := claims["privileged"].(bool); ok {
		id.IsPrivileged = privileged
	}
	if issuedAt, err := claims.GetIssuedAt(); err == nil && issuedAt != nil {
		id.IssuedAt = issuedAt.Time
	}
	if expiresAt, err := claims.GetExpirationTime(); err == nil && expiresAt != nil {
		id.ExpiresAt = expiresAt.Time
	}

	return id, nil
}
