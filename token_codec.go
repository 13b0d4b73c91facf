package access

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// Token is a signed, expiring credential plus its literal expiry.
type Token struct {
	Raw       string    `json:"token"`
	Kind      TokenKind `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenPair is what a successful authentication yields.
type TokenPair struct {
	Access  Token `json:"access"`
	Refresh Token `json:"refresh"`
}

// Codec signs and verifies the compact, tamper-evident tokens the core
// hands out. Issuance and verification are pure and safe for concurrent use.
type Codec struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	accessTTL  time.Duration
	refreshTTL time.Duration
	linkTTL    time.Duration
	leeway     time.Duration
	now        func() time.Time
	logger     Logger
}

// NewCodec creates a Codec from configuration.
func NewCodec(cfg Config) *Codec {
	var aud jwt.ClaimStrings
	if len(cfg.GetAudience()) > 0 {
		aud = make(jwt.ClaimStrings, len(cfg.GetAudience()))
		copy(aud, cfg.GetAudience())
	}

	return &Codec{
		signingKey: []byte(cfg.GetSigningKey()),
		issuer:     cfg.GetIssuer(),
		audience:   aud,
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		linkTTL:    cfg.GetLinkTokenTTL(),
		leeway:     cfg.GetClockSkew(),
		now:        time.Now,
		logger:     defLogger{},
	}
}

func (c *Codec) WithLogger(logger Logger) *Codec {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithClock injects a custom clock (useful for tests).
func (c *Codec) WithClock(clock func() time.Time) *Codec {
	if clock != nil {
		c.now = clock
	}
	return c
}

// TTL returns the configured lifetime for the given token kind.
func (c *Codec) TTL(kind TokenKind) time.Duration {
	switch kind {
	case TokenKindRefresh:
		return c.refreshTTL
	case TokenKindLink:
		return c.linkTTL
	default:
		return c.accessTTL
	}
}

// Issue mints a signed token of the given kind for a subject id. A zero ttl
// uses the configured lifetime for the kind.
func (c *Codec) Issue(subjectID string, kind TokenKind, ttl time.Duration) (Token, error) {
	if subjectID == "" {
		return Token{}, goerrors.New("subject id is required", goerrors.CategoryBadInput)
	}
	if ttl == 0 {
		ttl = c.TTL(kind)
	}
	if ttl <= 0 {
		return Token{}, goerrors.New("token TTL must be positive", goerrors.CategoryBadInput)
	}

	return c.SignClaims(c.newClaims(subjectID, kind, ttl))
}

// NewClaims builds unsigned claims for a subject and kind using the codec's
// issuer, audience, clock, and the configured TTL for the kind. Callers may
// extend the claims before handing them to SignClaims.
func (c *Codec) NewClaims(subjectID string, kind TokenKind) *Claims {
	return c.newClaims(subjectID, kind, c.TTL(kind))
}

func (c *Codec) newClaims(subjectID string, kind TokenKind, ttl time.Duration) *Claims {
	now := c.now()

	var aud jwt.ClaimStrings
	if len(c.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(c.audience))
		copy(aud, c.audience)
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subjectID,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:  subjectID,
		Kind: kind,
	}
}

// SignClaims signs pre-built claims using the configured signing key.
// Missing time claims are filled in from the codec's clock and configured TTL.
func (c *Codec) SignClaims(claims *Claims) (Token, error) {
	if claims == nil {
		return Token{}, goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	now := c.now()
	if claims.RegisteredClaims.IssuedAt == nil {
		claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.RegisteredClaims.ExpiresAt == nil {
		claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(c.TTL(claims.Kind)))
	}
	if !claims.RegisteredClaims.ExpiresAt.Time.After(claims.RegisteredClaims.IssuedAt.Time) {
		return Token{}, goerrors.New("token expiry must be after issue time", goerrors.CategoryBadInput)
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return Token{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return Token{
		Raw:       signed,
		Kind:      claims.Kind,
		ExpiresAt: claims.RegisteredClaims.ExpiresAt.Time,
	}, nil
}

// Verify parses and validates a raw token, returning structured claims.
// Clock skew leeway applies to time claims only; signature checks get none.
func (c *Codec) Verify(raw string) (*Claims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
	}
	if c.leeway > 0 {
		parserOptions = append(parserOptions, jwt.WithLeeway(c.leeway))
	}
	if c.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(c.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			c.logger.Error("codec verify encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signingKey, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
				WithTextCode(ErrTokenMalformed.TextCode)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		c.logger.Error("codec verify could not decode or validate claims")
		return nil, ErrTokenMalformed
	}

	// jwt.WithAudience only matches a single value; check the full
	// configured list ourselves, any one match passes.
	if !c.audienceAllowed(claims.RegisteredClaims.Audience) {
		return nil, goerrors.Wrap(jwt.ErrTokenInvalidAudience, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	return claims, nil
}

func (c *Codec) audienceAllowed(aud jwt.ClaimStrings) bool {
	if len(c.audience) == 0 {
		return true
	}
	for _, expected := range c.audience {
		for _, got := range aud {
			if got == expected {
				return true
			}
		}
	}
	return false
}

// VerifyKind verifies a raw token and additionally checks its kind tag.
func (c *Codec) VerifyKind(raw string, kind TokenKind) (*Claims, error) {
	claims, err := c.Verify(raw)
	if err != nil {
		return nil, err
	}

	if !claims.IsKind(kind) {
		return nil, ErrTokenKindMismatch.WithMetadata(map[string]any{
			"expected": string(kind),
			"actual":   string(claims.Kind),
		})
	}

	return claims, nil
}

var _ TokenVerifier = (*Codec)(nil)
