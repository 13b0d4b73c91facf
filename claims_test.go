package access_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	access "github.com/goliatone/go-access"
	"github.com/stretchr/testify/assert"
)

func TestClaimsSubjectIDFallback(t *testing.T) {
	claims := &access.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"},
	}
	assert.Equal(t, "sub-1", claims.SubjectID())

	claims.UID = "uid-1"
	assert.Equal(t, "uid-1", claims.SubjectID(), "uid wins when present")
}

func TestClaimsKindAndRoles(t *testing.T) {
	claims := &access.Claims{
		Kind:  access.TokenKindAccess,
		Roles: []string{"editor", "viewer"},
	}

	assert.True(t, claims.IsKind(access.TokenKindAccess))
	assert.False(t, claims.IsKind(access.TokenKindRefresh))

	assert.True(t, claims.HasRole("editor"))
	assert.False(t, claims.HasRole("admin"))
}

func TestClaimsTimeAccessors(t *testing.T) {
	issued := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	expires := issued.Add(time.Hour)

	claims := &access.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        "jti-1",
		},
	}

	assert.Equal(t, issued, claims.IssuedAt())
	assert.Equal(t, expires, claims.Expires())
	assert.Equal(t, "jti-1", claims.TokenID())

	empty := &access.Claims{}
	assert.True(t, empty.IssuedAt().IsZero())
	assert.True(t, empty.Expires().IsZero())
	assert.Empty(t, empty.TokenID())
}
