package access

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateSubjects = `CREATE TABLE subjects (
    id TEXT NOT NULL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    roles TEXT,
    is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
    status TEXT,
    login_attempts INTEGER NOT NULL DEFAULT 0,
    locked_until TIMESTAMP NULL,
    last_login_at TIMESTAMP NULL,
    suspended_at TIMESTAMP NULL,
    metadata TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NULL,
    deleted_at TIMESTAMP NULL
);`
	sqliteCreateRoles = `CREATE TABLE roles (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT,
    permissions TEXT,
    parents TEXT,
    is_system_role BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NULL,
    deleted_at TIMESTAMP NULL
);`
)

func setupBunDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateSubjects)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateRoles)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	return bunDB
}

func TestSubjectsRepositoryCreateAndLookup(t *testing.T) {
	bunDB := setupBunDB(t)
	repo := NewSubjectsRepository(bunDB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &Subject{
		Username: "nyx",
		Email:    "nyx@example.com",
		Roles:    []string{"editor"},
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, SubjectStatusActive, created.Status)

	byUsername, err := repo.GetByIdentifier(ctx, "nyx")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byUsername.ID)

	byEmail, err := repo.GetByIdentifier(ctx, "nyx@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := repo.GetByIdentifier(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "nyx", byID.Username)

	_, err = repo.GetByIdentifier(ctx, "nobody@example.com")
	assert.Error(t, err)
}

func TestSubjectsRepositorySaveRoundTripsLockoutFields(t *testing.T) {
	bunDB := setupBunDB(t)
	repo := NewSubjectsRepository(bunDB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &Subject{
		Username: "ada",
		Email:    "ada@example.com",
	})
	require.NoError(t, err)

	lockedUntil := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)
	created.LoginAttempts = 4
	created.LockedUntil = &lockedUntil

	saved, err := repo.Save(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, 4, saved.LoginAttempts)
	require.NotNil(t, saved.LockedUntil)
	assert.True(t, saved.LockedUntil.Equal(lockedUntil))

	// clearing the counter and the lock must survive the write
	saved.LoginAttempts = 0
	saved.LockedUntil = nil

	cleared, err := repo.Save(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, 0, cleared.LoginAttempts)
	assert.Nil(t, cleared.LockedUntil)

	reloaded, err := repo.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.LoginAttempts)
	assert.Nil(t, reloaded.LockedUntil)
}

func TestSubjectsRepositorySetPasswordActivatesPending(t *testing.T) {
	bunDB := setupBunDB(t)
	repo := NewSubjectsRepository(bunDB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &Subject{
		Username: "lin",
		Email:    "lin@example.com",
		Status:   SubjectStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, SubjectStatusPending, created.Status)

	hash, err := HashPasswordCost("s3cret-enough", 4)
	require.NoError(t, err)

	err = repo.SetPassword(ctx, created.ID, hash)
	require.NoError(t, err)

	reloaded, err := repo.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, SubjectStatusActive, reloaded.Status)
	assert.NoError(t, ComparePasswordAndHash("s3cret-enough", reloaded.PasswordHash))

	err = repo.SetPassword(ctx, uuid.New(), hash)
	assert.Error(t, err)
}

type stubStateMachine struct {
	lastTarget SubjectStatus
	err        error
}

func (s *stubStateMachine) Transition(ctx context.Context, actor ActorRef, subject *Subject, target SubjectStatus, opts ...TransitionOption) (*Subject, error) {
	s.lastTarget = target
	return subject, s.err
}

func (s *stubStateMachine) CurrentStatus(subject *Subject) SubjectStatus {
	if subject == nil {
		return ""
	}
	return subject.Status
}

func TestSubjectsLifecycleHelpers(t *testing.T) {
	t.Parallel()

	stub := &stubStateMachine{}
	repo := &subjects{
		stateMachine: stub,
	}

	actor := ActorRef{ID: "admin"}
	sub := &Subject{Status: SubjectStatusActive}

	_, err := repo.Suspend(context.Background(), actor, sub)
	assert.NoError(t, err)
	assert.Equal(t, SubjectStatusSuspended, stub.lastTarget)

	_, err = repo.Reinstate(context.Background(), actor, sub)
	assert.NoError(t, err)
	assert.Equal(t, SubjectStatusActive, stub.lastTarget)
}

func TestRolesRepositoryCatalog(t *testing.T) {
	bunDB := setupBunDB(t)
	repo := NewRolesRepository(bunDB)
	ctx := context.Background()

	editor, err := repo.GetOrCreate(ctx, &Role{
		Name:        "editor",
		Permissions: []string{"content:write"},
		Parents:     []string{"viewer"},
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, editor.ID)

	// second GetOrCreate returns the existing record
	again, err := repo.GetOrCreate(ctx, &Role{Name: "editor"})
	require.NoError(t, err)
	assert.Equal(t, editor.ID, again.ID)
	assert.Equal(t, []string{"content:write"}, again.Permissions)

	byName, err := repo.Role(ctx, "editor")
	require.NoError(t, err)
	assert.Equal(t, []string{"viewer"}, byName.Parents)

	_, err = repo.Role(ctx, "ghost")
	assert.Error(t, err)

	err = repo.EnsureSystemRoles(ctx,
		&Role{Name: "admin", Permissions: []string{PermissionUniversal}},
		&Role{Name: "viewer", Permissions: []string{"content:read"}},
	)
	require.NoError(t, err)

	all, err := repo.Roles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "admin", all[0].Name)
	assert.True(t, all[0].System)
	assert.Equal(t, "editor", all[1].Name)
	assert.False(t, all[1].System)
	assert.Equal(t, "viewer", all[2].Name)
}
