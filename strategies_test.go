package access_test

import (
	"context"
	"testing"
	"time"

	access "github.com/goliatone/go-access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type minCostAuthenticator struct{}

func (minCostAuthenticator) HashPassword(password string) (string, error) {
	return access.HashPasswordCost(password, bcrypt.MinCost)
}

func (minCostAuthenticator) ComparePasswordAndHash(password, hash string) error {
	return access.DefaultPasswordAuthenticator().ComparePasswordAndHash(password, hash)
}

func TestStrategyRegistry(t *testing.T) {
	store := newMemStore()
	registry := access.NewStrategyRegistry()

	_, err := registry.Strategy(access.StrategyPassword)
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrUnknownStrategy)

	registry.Register(access.NewPasswordStrategy(store, minCostAuthenticator{}, nil))

	strategy, err := registry.Strategy(access.StrategyPassword)
	require.NoError(t, err)
	assert.Equal(t, access.StrategyPassword, strategy.Kind())
	assert.Len(t, registry.Kinds(), 1)
}

func TestPasswordStrategyAuthenticates(t *testing.T) {
	ctx := context.Background()
	subject := newActiveSubject("alice", "s3cret-password")
	store := newMemStore(subject)

	strategy := access.NewPasswordStrategy(store, minCostAuthenticator{}, nil)

	got, err := strategy.Authenticate(ctx, access.Credential{
		Identifier: "alice",
		Password:   "s3cret-password",
	})
	require.NoError(t, err)
	assert.Equal(t, subject.ID, got.ID)

	// email works as identifier too
	got, err = strategy.Authenticate(ctx, access.Credential{
		Identifier: "alice@example.com",
		Password:   "s3cret-password",
	})
	require.NoError(t, err)
	assert.Equal(t, subject.ID, got.ID)
}

func TestPasswordStrategyUniformFailures(t *testing.T) {
	ctx := context.Background()
	subject := newActiveSubject("alice", "s3cret-password")
	suspended := newActiveSubject("bob", "s3cret-password")
	suspended.Status = access.SubjectStatusSuspended
	store := newMemStore(subject, suspended)

	strategy := access.NewPasswordStrategy(store, minCostAuthenticator{}, nil)

	cases := []access.Credential{
		{Identifier: "alice", Password: "wrong-password"},
		{Identifier: "nobody", Password: "s3cret-password"},
		{Identifier: "bob", Password: "s3cret-password"},
		{Identifier: "", Password: "s3cret-password"},
		{Identifier: "alice", Password: ""},
	}

	for _, cred := range cases {
		_, err := strategy.Authenticate(ctx, cred)
		require.Error(t, err)
		assert.ErrorIs(t, err, access.ErrInvalidCredentials,
			"identifier=%q must fail uniformly", cred.Identifier)
	}
}

func TestPasswordStrategyLockoutFlow(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	subject := newActiveSubject("alice", "s3cret-password")
	store := newMemStore(subject)
	lockout := access.NewLockout(store, testConfig()).WithClock(clock.Now)

	strategy := access.NewPasswordStrategy(store, minCostAuthenticator{}, lockout)

	for i := 0; i < access.DefaultMaxLoginAttempts; i++ {
		_, err := strategy.Authenticate(ctx, access.Credential{
			Identifier: "alice",
			Password:   "wrong-password",
		})
		assert.ErrorIs(t, err, access.ErrInvalidCredentials)
	}

	// correct password is rejected while locked
	_, err := strategy.Authenticate(ctx, access.Credential{
		Identifier: "alice",
		Password:   "s3cret-password",
	})
	require.Error(t, err)
	assert.True(t, access.IsAccountLocked(err))

	// expiry clears the lock and the login succeeds, resetting the counter
	clock.Advance(access.DefaultLockoutDuration + time.Second)
	got, err := strategy.Authenticate(ctx, access.Credential{
		Identifier: "alice",
		Password:   "s3cret-password",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, got.LoginAttempts)
}

func TestLinkStrategy(t *testing.T) {
	ctx := context.Background()
	subject := newActiveSubject("alice", "s3cret-password")
	store := newMemStore(subject)
	codec := access.NewCodec(testConfig())

	strategy := access.NewLinkStrategy(store, codec)

	token, err := codec.Issue(subject.ID.String(), access.TokenKindLink, 0)
	require.NoError(t, err)

	got, err := strategy.Authenticate(ctx, access.Credential{Token: token.Raw})
	require.NoError(t, err)
	assert.Equal(t, subject.ID, got.ID)
}

func TestLinkStrategyBindsIdentifier(t *testing.T) {
	ctx := context.Background()
	subject := newActiveSubject("alice", "s3cret-password")
	store := newMemStore(subject)
	codec := access.NewCodec(testConfig())

	strategy := access.NewLinkStrategy(store, codec)

	token, err := codec.Issue(subject.ID.String(), access.TokenKindLink, 0)
	require.NoError(t, err)

	got, err := strategy.Authenticate(ctx, access.Credential{Token: token.Raw, Identifier: "alice"})
	require.NoError(t, err)
	assert.Equal(t, subject.ID, got.ID)

	_, err = strategy.Authenticate(ctx, access.Credential{Token: token.Raw, Identifier: "mallory"})
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrInvalidCredentials)
}

func TestLinkStrategyRejectsOtherKinds(t *testing.T) {
	ctx := context.Background()
	subject := newActiveSubject("alice", "s3cret-password")
	store := newMemStore(subject)
	codec := access.NewCodec(testConfig())

	strategy := access.NewLinkStrategy(store, codec)

	token, err := codec.Issue(subject.ID.String(), access.TokenKindAccess, 0)
	require.NoError(t, err)

	_, err = strategy.Authenticate(ctx, access.Credential{Token: token.Raw})
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrTokenKindMismatch)
}

func TestLinkStrategySurfacesInactiveStatus(t *testing.T) {
	ctx := context.Background()
	subject := newActiveSubject("alice", "s3cret-password")
	subject.Status = access.SubjectStatusSuspended
	store := newMemStore(subject)
	codec := access.NewCodec(testConfig())

	strategy := access.NewLinkStrategy(store, codec)

	token, err := codec.Issue(subject.ID.String(), access.TokenKindLink, 0)
	require.NoError(t, err)

	_, err = strategy.Authenticate(ctx, access.Credential{Token: token.Raw})
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrAccountInactive,
		"a link token already proves the identifier, so the real status surfaces")
}

func TestBearerStrategy(t *testing.T) {
	ctx := context.Background()
	subject := newActiveSubject("alice", "s3cret-password")
	store := newMemStore(subject)
	codec := access.NewCodec(testConfig())

	strategy := access.NewBearerStrategy(store, codec)

	token, err := codec.Issue(subject.ID.String(), access.TokenKindAccess, 0)
	require.NoError(t, err)

	got, err := strategy.Authenticate(ctx, access.Credential{Token: token.Raw})
	require.NoError(t, err)
	assert.Equal(t, subject.ID, got.ID)
}

func TestBearerStrategyRejectsDeactivatedSubject(t *testing.T) {
	ctx := context.Background()
	subject := newActiveSubject("alice", "s3cret-password")
	store := newMemStore(subject)
	codec := access.NewCodec(testConfig())

	strategy := access.NewBearerStrategy(store, codec)

	token, err := codec.Issue(subject.ID.String(), access.TokenKindAccess, 0)
	require.NoError(t, err)

	subject.Status = access.SubjectStatusDisabled

	_, err = strategy.Authenticate(ctx, access.Credential{Token: token.Raw})
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrInvalidCredentials,
		"unexpired tokens stop working once the subject is deactivated")
}

func TestBearerStrategyRejectsRefreshToken(t *testing.T) {
	ctx := context.Background()
	subject := newActiveSubject("alice", "s3cret-password")
	store := newMemStore(subject)
	codec := access.NewCodec(testConfig())

	strategy := access.NewBearerStrategy(store, codec)

	token, err := codec.Issue(subject.ID.String(), access.TokenKindRefresh, 0)
	require.NoError(t, err)

	_, err = strategy.Authenticate(ctx, access.Credential{Token: token.Raw})
	require.Error(t, err)
	assert.ErrorIs(t, err, access.ErrTokenKindMismatch)
}
