package access

import (
	"context"
	"time"
)

// Access is the entry point wiring strategies, tokens, lockout, and the
// authorization guard over a subject store and role catalog.
type Access struct {
	store           SubjectStore
	catalog         RoleCatalog
	codec           *Codec
	resolver        *Resolver
	guard           *Guard
	lockout         *Lockout
	passwords       PasswordAuthenticator
	strategies      *StrategyRegistry
	logger          Logger
	activitySink    ActivitySink
	claimsDecorator ClaimsDecorator
	now             func() time.Time
}

// New returns an Access wired with the default password, link, and bearer
// strategies. Use the WithX builders to customize before first use.
func New(store SubjectStore, catalog RoleCatalog, cfg Config) *Access {
	codec := NewCodec(cfg)
	resolver := NewResolver(catalog)
	lockout := NewLockout(store, cfg)
	passwords := DefaultPasswordAuthenticator()

	a := &Access{
		store:           store,
		catalog:         catalog,
		codec:           codec,
		resolver:        resolver,
		guard:           NewGuard(resolver),
		lockout:         lockout,
		passwords:       passwords,
		strategies:      NewStrategyRegistry(),
		logger:          defLogger{},
		activitySink:    noopActivitySink{},
		claimsDecorator: noopClaimsDecorator{},
		now:             time.Now,
	}

	a.strategies.Register(NewPasswordStrategy(store, passwords, lockout))
	a.strategies.Register(NewLinkStrategy(store, codec))
	a.strategies.Register(NewBearerStrategy(store, codec))

	return a
}

func (a *Access) WithLogger(logger Logger) *Access {
	if logger == nil {
		return a
	}
	a.logger = logger
	a.codec.WithLogger(logger)
	a.resolver.WithLogger(logger)
	a.guard.WithLogger(logger)
	a.lockout.WithLogger(logger)
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Access) WithActivitySink(sink ActivitySink) *Access {
	sink = normalizeActivitySink(sink)
	a.activitySink = sink
	a.guard.WithActivitySink(sink)
	a.lockout.WithActivitySink(sink)
	return a
}

// WithClock injects a custom clock shared by token issuance, verification,
// and lockout bookkeeping (useful for tests).
func (a *Access) WithClock(now func() time.Time) *Access {
	if now == nil {
		return a
	}
	a.now = now
	a.codec.WithClock(now)
	a.guard.WithClock(now)
	a.lockout.WithClock(now)
	return a
}

// WithStrategy registers an additional or replacement authentication strategy.
func (a *Access) WithStrategy(strategy Strategy) *Access {
	a.strategies.Register(strategy)
	return a
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching tokens.
func (a *Access) WithClaimsDecorator(decorator ClaimsDecorator) *Access {
	a.claimsDecorator = normalizeClaimsDecorator(decorator)
	return a
}

// WithPasswordAuthenticator swaps the password hashing implementation.
func (a *Access) WithPasswordAuthenticator(passwords PasswordAuthenticator) *Access {
	if passwords == nil {
		return a
	}
	a.passwords = passwords
	a.strategies.Register(NewPasswordStrategy(a.store, passwords, a.lockout))
	return a
}

// Codec returns the token codec used by this Access instance.
func (a *Access) Codec() *Codec {
	return a.codec
}

// Guard returns the authorization guard used by this Access instance.
func (a *Access) Guard() *Guard {
	return a.guard
}

// Resolver returns the permission resolver used by this Access instance.
func (a *Access) Resolver() *Resolver {
	return a.resolver
}

// Lockout returns the lockout tracker used by this Access instance.
func (a *Access) Lockout() *Lockout {
	return a.lockout
}

// Authenticate runs the named strategy against the credential and, on
// success, issues an access/refresh token pair carrying the subject's roles.
func (a *Access) Authenticate(ctx context.Context, kind StrategyKind, cred Credential) (*TokenPair, error) {
	strategy, err := a.strategies.Strategy(kind)
	if err != nil {
		return nil, err
	}

	subject, err := strategy.Authenticate(ctx, cred)
	if err != nil {
		a.logger.Warn("authentication failed for strategy %s: %v", string(kind), err)
		a.emitEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"strategy": string(kind),
			"error":    err.Error(),
		})
		return nil, err
	}

	if subject == nil {
		a.logger.Error("strategy %s returned nil subject without error", string(kind))
		a.emitEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"strategy": string(kind),
			"error":    ErrInvalidCredentials.Error(),
		})
		return nil, ErrInvalidCredentials
	}

	pair, err := a.issueTokenPair(ctx, subject)
	if err != nil {
		a.emitEvent(ctx, ActivityEventLoginFailure, actorFromSubject(subject), subject.ID.String(), map[string]any{
			"strategy": string(kind),
			"error":    err.Error(),
		})
		return nil, err
	}

	a.emitEvent(ctx, ActivityEventLoginSuccess, actorFromSubject(subject), subject.ID.String(), map[string]any{
		"strategy": string(kind),
	})

	return pair, nil
}

// Refresh exchanges a refresh token for a fresh access token. The subject is
// reloaded so role changes and deactivations since issuance take effect; the
// refresh token itself is returned unchanged.
func (a *Access) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	claims, err := a.codec.VerifyKind(rawRefresh, TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	subject, err := a.store.GetByID(ctx, claims.SubjectID())
	if err != nil || subject == nil {
		a.logger.Warn("refresh rejected, subject lookup failed for %s", claims.SubjectID())
		return nil, ErrInvalidCredentials
	}

	if !subject.IsActive() {
		return nil, ErrAccountInactive.WithMetadata(map[string]any{
			"status": subject.Status,
		})
	}

	accessToken, err := a.issueAccessToken(ctx, subject)
	if err != nil {
		return nil, err
	}

	a.emitEvent(ctx, ActivityEventTokenRefreshed, actorFromSubject(subject), subject.ID.String(), nil)

	return &TokenPair{
		Access: accessToken,
		Refresh: Token{
			Raw:       rawRefresh,
			Kind:      TokenKindRefresh,
			ExpiresAt: claims.Expires(),
		},
	}, nil
}

// Authorize evaluates the requirement against the subject. See Guard.Authorize.
func (a *Access) Authorize(ctx context.Context, subject *Subject, req Requirement) error {
	return a.guard.Authorize(ctx, subject, req)
}

// CurrentSubject resolves a raw access token into its live subject record.
func (a *Access) CurrentSubject(ctx context.Context, rawAccess string) (*Subject, error) {
	strategy, err := a.strategies.Strategy(StrategyBearer)
	if err != nil {
		return nil, err
	}
	return strategy.Authenticate(ctx, Credential{Token: rawAccess})
}

// IssueLinkToken mints a short-lived link token for the subject matching the
// identifier, the building block for magic links and password setup flows.
// Inactive subjects get their real status; the identifier must be verified
// out of band before calling this.
func (a *Access) IssueLinkToken(ctx context.Context, identifier string) (Token, error) {
	subject, err := a.store.GetByIdentifier(ctx, identifier)
	if err != nil || subject == nil {
		return Token{}, ErrSubjectNotFound
	}

	if err := statusAuthError(subject.Status); err != nil {
		return Token{}, err
	}

	return a.codec.Issue(subject.ID.String(), TokenKindLink, 0)
}

// issueTokenPair mints the access token plus a refresh token for subject.
func (a *Access) issueTokenPair(ctx context.Context, subject *Subject) (*TokenPair, error) {
	accessToken, err := a.issueAccessToken(ctx, subject)
	if err != nil {
		return nil, err
	}

	refreshToken, err := a.codec.Issue(subject.ID.String(), TokenKindRefresh, 0)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		Access:  accessToken,
		Refresh: refreshToken,
	}, nil
}

// issueAccessToken builds role-carrying claims, runs the decorator under the
// immutable-claims guard, and signs.
func (a *Access) issueAccessToken(ctx context.Context, subject *Subject) (Token, error) {
	claims := a.codec.NewClaims(subject.ID.String(), TokenKindAccess)
	if len(subject.Roles) > 0 {
		claims.Roles = make([]string, len(subject.Roles))
		copy(claims.Roles, subject.Roles)
	}

	snapshot := captureImmutableClaims(claims)

	decorator := normalizeClaimsDecorator(a.claimsDecorator)
	if err := decorator.Decorate(ctx, subject, claims); err != nil {
		a.logger.Error("claims decorator failed: %v", err)
		return Token{}, err
	}

	if err := snapshot.validate(claims); err != nil {
		a.logger.Error("claims decorator mutated immutable claims: %v", err)
		return Token{}, err
	}

	return a.codec.SignClaims(claims)
}

func (a *Access) emitEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, subjectID string, metadata map[string]any) {
	sink := normalizeActivitySink(a.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		SubjectID: subjectID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = a.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		a.logger.Warn("activity sink record error: %v", err)
	}
}

func actorFromSubject(subject *Subject) ActorRef {
	if subject == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   subject.ID.String(),
		Type: "subject",
	}
}
