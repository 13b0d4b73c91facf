package access

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Default token lifetimes and verification leeway.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultLinkTokenTTL    = time.Hour
	DefaultClockSkew       = 30 * time.Second
)

// SimpleConfig is a plain-struct Config implementation for callers that do
// not bring their own configuration layer.
type SimpleConfig struct {
	SigningKey       string
	Issuer           string
	Audience         []string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	LinkTokenTTL     time.Duration
	ClockSkew        time.Duration
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

// NewSimpleConfig returns a SimpleConfig with default lifetimes and lockout
// policy. The signing key has no default, set it before use.
func NewSimpleConfig(signingKey string) *SimpleConfig {
	return &SimpleConfig{
		SigningKey:       signingKey,
		AccessTokenTTL:   DefaultAccessTokenTTL,
		RefreshTokenTTL:  DefaultRefreshTokenTTL,
		LinkTokenTTL:     DefaultLinkTokenTTL,
		ClockSkew:        DefaultClockSkew,
		MaxLoginAttempts: DefaultMaxLoginAttempts,
		LockoutDuration:  DefaultLockoutDuration,
	}
}

// Validate enforces the structural invariants: a signing key is present and
// the access token lifetime stays below the refresh token lifetime.
func (c SimpleConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.AccessTokenTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RefreshTokenTTL,
			validation.Required,
			validation.Min(c.AccessTokenTTL+time.Second).Error("refresh token TTL must exceed access token TTL"),
		),
		validation.Field(&c.LinkTokenTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.ClockSkew, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxLoginAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.LockoutDuration, validation.Min(time.Duration(0))),
	)
}

func (c SimpleConfig) GetSigningKey() string { return c.SigningKey }
func (c SimpleConfig) GetIssuer() string { return c.Issuer }
func (c SimpleConfig) GetAudience() []string { return c.Audience }
func (c SimpleConfig) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }
func (c SimpleConfig) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }
func (c SimpleConfig) GetLinkTokenTTL() time.Duration { return c.LinkTokenTTL }
func (c SimpleConfig) GetClockSkew() time.Duration { return c.ClockSkew }
func (c SimpleConfig) GetMaxLoginAttempts() int { return c.MaxLoginAttempts }
func (c SimpleConfig) GetLockoutDuration() time.Duration { return c.LockoutDuration }

var _ Config = (*SimpleConfig)(nil)
