package jwtauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/mercatolabs/mercato/internal/authn"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestAuthenticateValidToken(t *testing.T) {
	a, err := New(testSecret, "mercato", "")
	require.NoError(t, err)

	now := time.Now()
	bearer := signToken(t, jwt.MapClaims{
		"sub":        "u1",
		"email":      "u1@example.com",
		"privileged": true,
		"iss":        "mercato",
		"iat":        now.Unix(),
		"exp":        now.Add(time.Hour).Unix(),
	})

	id, err := a.Authenticate(context.Background(), bearer)
	require.NoError(t, err)
	require.Equal(t, "u1", id.SubjectID)
	require.Equal(t, "u1@example.com", id.Email)
	require.True(t, id.IsPrivileged)
	require.WithinDuration(t, now.Add(time.Hour), id.ExpiresAt, time.Second)
}

func TestAuthenticateAbsentTokenIsAnonymous(t *testing.T) {
	a, err := New(testSecret, "", "")
	require.NoError(t, err)

	id, err := a.Authenticate(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, id)
}

func TestAuthenticateFailsClosed(t *testing.T) {
	a, err := New(testSecret, "mercato", "")
	require.NoError(t, err)

	expired := signToken(t, jwt.MapClaims{
		"sub": "u1",
		"iss": "mercato",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	wrongIssuer := signToken(t, jwt.MapClaims{
		"sub": "u1",
		"iss": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	missingSubject := signToken(t, jwt.MapClaims{
		"iss": "mercato",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	missingExpiry := signToken(t, jwt.MapClaims{
		"sub": "u1",
		"iss": "mercato",
	})

	wrongKey := func() string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "u1",
			"iss": "mercato",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("some other secret"))
		require.NoError(t, err)
		return signed
	}()

	for name, bearer := range map[string]string{
		"expired":         expired,
		"wrong issuer":    wrongIssuer,
		"missing subject": missingSubject,
		"missing expiry":  missingExpiry,
		"wrong key":       wrongKey,
		"garbage":         "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			id, err := a.Authenticate(context.Background(), bearer)
			require.ErrorIs(t, err, authn.ErrInvalidToken)
			require.Nil(t, id)
		})
	}
}

func TestNewRejectsEmptyKey(t *testing.T) {
	_, err := New("", "", "")
	require.Error(t, err)
}

func TestBearerFromHeader(t *testing.T) {
	require.Equal(t, "abc", authn.BearerFromHeader("Bearer abc"))
	require.Equal(t, "abc", authn.BearerFromHeader("bearer abc"))
	require.Empty(t, authn.BearerFromHeader(""))
	require.Empty(t, authn.BearerFromHeader("Basic abc"))
	require.Empty(t, authn.BearerFromHeader("Bearer"))
}
