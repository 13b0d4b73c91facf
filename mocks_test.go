package access_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	access "github.com/goliatone/go-access"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// MockLogger implements access.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// captureLogger renders every call through fmt so tests can assert on the
// final log line.
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) log(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *captureLogger) Debug(format string, args ...any) { l.log(format, args...) }
func (l *captureLogger) Info(format string, args ...any) { l.log(format, args...) }
func (l *captureLogger) Warn(format string, args ...any) { l.log(format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.log(format, args...) }

func (l *captureLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// testClock is a controllable clock shared across components under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore is an in-memory SubjectStore.
type memStore struct {
	mu       sync.Mutex
	subjects map[string]*access.Subject
	saves    int
	saveErr  error
}

func newMemStore(subjects ...*access.Subject) *memStore {
	s := &memStore{subjects: map[string]*access.Subject{}}
	for _, subject := range subjects {
		s.subjects[subject.ID.String()] = subject
	}
	return s
}

func (s *memStore) GetByID(ctx context.Context, id string) (*access.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subject, ok := s.subjects[id]; ok {
		return subject, nil
	}
	return nil, access.ErrSubjectNotFound
}

func (s *memStore) GetByIdentifier(ctx context.Context, identifier string) (*access.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, subject := range s.subjects {
		if subject.Username == identifier || subject.Email == identifier || subject.ID.String() == identifier {
			return subject, nil
		}
	}
	return nil, access.ErrSubjectNotFound
}

func (s *memStore) Save(ctx context.Context, subject *access.Subject) (*access.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return nil, s.saveErr
	}

	s.saves++
	s.subjects[subject.ID.String()] = subject
	return subject, nil
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// memCatalog is an in-memory RoleCatalog.
type memCatalog struct {
	mu    sync.Mutex
	roles map[string]*access.Role
}

func newMemCatalog(roles ...*access.Role) *memCatalog {
	c := &memCatalog{roles: map[string]*access.Role{}}
	for _, role := range roles {
		c.roles[role.Name] = role
	}
	return c
}

func (c *memCatalog) Role(ctx context.Context, name string) (*access.Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if role, ok := c.roles[name]; ok {
		return role, nil
	}
	return nil, goerrors.New("role not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound)
}

func (c *memCatalog) Roles(ctx context.Context) ([]*access.Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*access.Role, 0, len(c.roles))
	for _, role := range c.roles {
		out = append(out, role)
	}
	return out, nil
}

// recordSink collects activity events for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []access.ActivityEvent
}

func (s *recordSink) Record(ctx context.Context, event access.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordSink) byType(eventType access.ActivityEventType) []access.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []access.ActivityEvent
	for _, event := range s.events {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

func testConfig() *access.SimpleConfig {
	cfg := access.NewSimpleConfig("test-signing-key-0123456789")
	cfg.Issuer = "access-test"
	return cfg
}

func mustHash(password string) string {
	hash, err := access.HashPasswordCost(password, bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return hash
}

func newActiveSubject(username, password string, roles ...string) *access.Subject {
	return &access.Subject{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: mustHash(password),
		Roles:        roles,
		Status:       access.SubjectStatusActive,
	}
}
