package access

import (
	"context"
	"strings"
	"sync"
)

// StrategyKind names a registered authentication strategy.
type StrategyKind string

const (
	StrategyPassword StrategyKind = "password"
	StrategyLink     StrategyKind = "link"
	StrategyBearer   StrategyKind = "bearer"
)

// Credential carries the caller-supplied proof of identity. Which fields a
// strategy reads depends on its kind.
type Credential struct {
	Identifier string
	Password   string
	Token      string
}

// Strategy authenticates a credential and returns the matching subject.
// Implementations must return ErrInvalidCredentials for any proof failure
// that could reveal whether the identifier exists.
type Strategy interface {
	Kind() StrategyKind
	Authenticate(ctx context.Context, cred Credential) (*Subject, error)
}

// StrategyRegistry holds named strategies behind a mutex so registration and
// lookup are safe from concurrent goroutines.
type StrategyRegistry struct {
	mu         sync.RWMutex
	strategies map[StrategyKind]Strategy
}

// NewStrategyRegistry creates an empty registry.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		strategies: map[StrategyKind]Strategy{},
	}
}

// Register adds or replaces the strategy under its kind.
func (r *StrategyRegistry) Register(strategy Strategy) {
	if strategy == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[strategy.Kind()] = strategy
}

// Strategy returns the strategy registered under kind, or ErrUnknownStrategy.
func (r *StrategyRegistry) Strategy(kind StrategyKind) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	strategy, ok := r.strategies[kind]
	if !ok {
		return nil, ErrUnknownStrategy.WithMetadata(map[string]any{
			"strategy": string(kind),
		})
	}
	return strategy, nil
}

// Kinds returns the registered strategy kinds.
func (r *StrategyRegistry) Kinds() []StrategyKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]StrategyKind, 0, len(r.strategies))
	for kind := range r.strategies {
		kinds = append(kinds, kind)
	}
	return kinds
}

// PasswordStrategy authenticates an identifier plus password pair. The
// identifier matches either username or email. Unknown identifiers, wrong
// passwords, and inactive accounts all collapse into ErrInvalidCredentials so
// responses cannot be used to enumerate accounts.
type PasswordStrategy struct {
	store     SubjectStore
	passwords PasswordAuthenticator
	lockout   *Lockout
	logger    Logger
}

// NewPasswordStrategy wires a password strategy over the subject store.
func NewPasswordStrategy(store SubjectStore, passwords PasswordAuthenticator, lockout *Lockout) *PasswordStrategy {
	if passwords == nil {
		passwords = DefaultPasswordAuthenticator()
	}
	return &PasswordStrategy{
		store:     store,
		passwords: passwords,
		lockout:   lockout,
		logger:    defLogger{},
	}
}

func (s *PasswordStrategy) WithLogger(logger Logger) *PasswordStrategy {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *PasswordStrategy) Kind() StrategyKind {
	return StrategyPassword
}

func (s *PasswordStrategy) Authenticate(ctx context.Context, cred Credential) (*Subject, error) {
	identifier := strings.TrimSpace(cred.Identifier)
	if identifier == "" || cred.Password == "" {
		return nil, ErrInvalidCredentials
	}

	subject, err := s.store.GetByIdentifier(ctx, identifier)
	if err != nil || subject == nil {
		s.logger.Debug("password auth: identifier %q not found", identifier)
		return nil, ErrInvalidCredentials
	}

	if s.lockout != nil {
		if err := s.lockout.Check(ctx, subject); err != nil {
			return nil, err
		}
	}

	if err := s.passwords.ComparePasswordAndHash(cred.Password, subject.PasswordHash); err != nil {
		if s.lockout != nil {
			if rerr := s.lockout.RecordFailure(ctx, subject); rerr != nil {
				s.logger.Error("password auth: failed to record attempt: %v", rerr)
			}
		}
		return nil, ErrInvalidCredentials
	}

	if !subject.IsActive() {
		s.logger.Warn("password auth blocked by subject status %s", subject.Status)
		return nil, ErrInvalidCredentials
	}

	if s.lockout != nil {
		if err := s.lockout.RecordSuccess(ctx, subject); err != nil {
			s.logger.Error("password auth: failed to reset attempts: %v", err)
		}
	}

	return subject, nil
}

// LinkStrategy authenticates a previously issued link token, the flow behind
// magic links and password setup. The token already proves control of the
// identifier, so inactive accounts surface their real status.
type LinkStrategy struct {
	store    SubjectStore
	verifier TokenVerifier
	logger   Logger
}

// NewLinkStrategy wires a link-token strategy over the subject store.
func NewLinkStrategy(store SubjectStore, verifier TokenVerifier) *LinkStrategy {
	return &LinkStrategy{
		store:    store,
		verifier: verifier,
		logger:   defLogger{},
	}
}

func (s *LinkStrategy) WithLogger(logger Logger) *LinkStrategy {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *LinkStrategy) Kind() StrategyKind {
	return StrategyLink
}

func (s *LinkStrategy) Authenticate(ctx context.Context, cred Credential) (*Subject, error) {
	if cred.Token == "" {
		return nil, ErrTokenMalformed
	}

	claims, err := s.verifier.Verify(cred.Token)
	if err != nil {
		return nil, err
	}

	if !claims.IsKind(TokenKindLink) {
		return nil, ErrTokenKindMismatch.WithMetadata(map[string]any{
			"kind": string(claims.Kind),
		})
	}

	subject, err := s.store.GetByID(ctx, claims.SubjectID())
	if err != nil || subject == nil {
		return nil, ErrSubjectNotFound
	}

	// a caller-supplied identifier must match the subject the token binds
	if identifier := strings.TrimSpace(cred.Identifier); identifier != "" {
		if identifier != subject.ID.String() &&
			identifier != subject.Username &&
			identifier != subject.Email {
			return nil, ErrInvalidCredentials
		}
	}

	if err := statusAuthError(subject.Status); err != nil {
		return nil, err
	}

	return subject, nil
}

// BearerStrategy re-authenticates a raw access token, the flow behind
// request middleware. It loads the subject fresh so revoked or suspended
// accounts stop authenticating even while their tokens are unexpired.
type BearerStrategy struct {
	store    SubjectStore
	verifier TokenVerifier
	logger   Logger
}

// NewBearerStrategy wires a bearer-token strategy over the subject store.
func NewBearerStrategy(store SubjectStore, verifier TokenVerifier) *BearerStrategy {
	return &BearerStrategy{
		store:    store,
		verifier: verifier,
		logger:   defLogger{},
	}
}

func (s *BearerStrategy) WithLogger(logger Logger) *BearerStrategy {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *BearerStrategy) Kind() StrategyKind {
	return StrategyBearer
}

func (s *BearerStrategy) Authenticate(ctx context.Context, cred Credential) (*Subject, error) {
	if cred.Token == "" {
		return nil, ErrTokenMalformed
	}

	claims, err := s.verifier.Verify(cred.Token)
	if err != nil {
		return nil, err
	}

	if !claims.IsKind(TokenKindAccess) {
		return nil, ErrTokenKindMismatch.WithMetadata(map[string]any{
			"kind": string(claims.Kind),
		})
	}

	subject, err := s.store.GetByID(ctx, claims.SubjectID())
	if err != nil || subject == nil {
		return nil, ErrInvalidCredentials
	}

	if !subject.IsActive() {
		return nil, ErrInvalidCredentials
	}

	return subject, nil
}
