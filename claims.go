package access

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind tags what a token is good for.
type TokenKind string

const (
	// TokenKindAccess is a short-lived credential for protected operations
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is a longer-lived credential exchangeable for access tokens
	TokenKindRefresh TokenKind = "refresh"
	// TokenKindLink is a single-purpose, identifier-bound token (magic link,
	// set-password, account verification)
	TokenKindLink TokenKind = "link"
)

// Claims is the structure signed into every token minted by the Codec.
type Claims struct {
	jwt.RegisteredClaims
	UID      string         `json:"uid,omitempty"`
	Kind     TokenKind      `json:"kind,omitempty"`
	Roles    []string       `json:"roles,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"` // extension payload
}

// SubjectID returns the subject identifier the token was minted for.
func (c *Claims) SubjectID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// IsKind checks the token kind tag.
func (c *Claims) IsKind(kind TokenKind) bool {
	return c.Kind == kind
}

// HasRole checks whether the claims carry a given role name.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// TokenID returns the jti claim.
func (c *Claims) TokenID() string {
	return c.RegisteredClaims.ID
}
