package access

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SubjectStore is the external user-record store the core depends on.
// The core only mutates lockout and last-login fields; record lifecycle
// is owned by the consumer.
type SubjectStore interface {
	GetByID(ctx context.Context, id string) (*Subject, error)
	GetByIdentifier(ctx context.Context, identifier string) (*Subject, error)
	Save(ctx context.Context, subject *Subject) (*Subject, error)
}

// RoleCatalog is the read-mostly role store used for permission resolution.
// Assumed small enough to load in full for a single resolution pass.
type RoleCatalog interface {
	Role(ctx context.Context, name string) (*Role, error)
	Roles(ctx context.Context) ([]*Role, error)
}

// TokenVerifier validates raw tokens and extracts claims without tying
// callers to a specific signing implementation.
type TokenVerifier interface {
	Verify(raw string) (*Claims, error)
}

// TokenVerifierFunc adapts a function into a TokenVerifier.
type TokenVerifierFunc func(raw string) (*Claims, error)

// Verify satisfies the TokenVerifier interface.
func (f TokenVerifierFunc) Verify(raw string) (*Claims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(raw)
}

// PasswordAuthenticator hashes and verifies passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Config holds core options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetLinkTokenTTL() time.Duration
	GetClockSkew() time.Duration
	GetMaxLoginAttempts() int
	GetLockoutDuration() time.Duration
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCESS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCESS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCESS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCESS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
