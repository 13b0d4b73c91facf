package access

import (
	"context"
	"sync"
	"time"
)

// Lockout default policy: lock after DefaultMaxLoginAttempts consecutive
// failures for DefaultLockoutDuration.
const (
	DefaultMaxLoginAttempts = 5
	DefaultLockoutDuration  = 30 * time.Minute
)

// Lockout tracks consecutive authentication failures per subject and engages
// a temporary lock once the threshold is reached. Expiry is lazy: locks are
// cleared on the next check after the window elapses, no background job.
type Lockout struct {
	store       SubjectStore
	maxAttempts int
	duration    time.Duration
	now         func() time.Time
	logger      Logger
	sink        ActivitySink

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockout creates a Lockout with the policy carried by cfg.
func NewLockout(store SubjectStore, cfg Config) *Lockout {
	l := &Lockout{
		store:       store,
		maxAttempts: DefaultMaxLoginAttempts,
		duration:    DefaultLockoutDuration,
		now:         time.Now,
		logger:      defLogger{},
		sink:        noopActivitySink{},
		locks:       map[string]*sync.Mutex{},
	}

	if cfg != nil {
		if max := cfg.GetMaxLoginAttempts(); max > 0 {
			l.maxAttempts = max
		}
		if d := cfg.GetLockoutDuration(); d > 0 {
			l.duration = d
		}
	}

	return l
}

func (l *Lockout) WithLogger(logger Logger) *Lockout {
	if logger != nil {
		l.logger = logger
	}
	return l
}

func (l *Lockout) WithClock(now func() time.Time) *Lockout {
	if now != nil {
		l.now = now
	}
	return l
}

func (l *Lockout) WithActivitySink(sink ActivitySink) *Lockout {
	if sink != nil {
		l.sink = sink
	}
	return l
}

// subjectLock returns a per-subject mutex so concurrent attempts against the
// same account serialize while different accounts proceed independently.
func (l *Lockout) subjectLock(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.locks[id]; ok {
		return m
	}
	m := &sync.Mutex{}
	l.locks[id] = m
	return m
}

// Check returns ErrAccountLocked while the subject's lock window is active.
// A lock whose window has elapsed is cleared in place, counter included, and
// the cleared state is persisted before the attempt proceeds.
func (l *Lockout) Check(ctx context.Context, subject *Subject) error {
	if subject == nil {
		return nil
	}

	mu := l.subjectLock(subject.ID.String())
	mu.Lock()
	defer mu.Unlock()

	if subject.LockedUntil == nil {
		return nil
	}

	now := l.now()
	if now.Before(*subject.LockedUntil) {
		return ErrAccountLocked.WithMetadata(map[string]any{
			"locked_until": subject.LockedUntil.UTC().Format(time.RFC3339),
		})
	}

	subject.LockedUntil = nil
	subject.LoginAttempts = 0
	if _, err := l.store.Save(ctx, subject); err != nil {
		return err
	}

	return nil
}

// RecordFailure increments the subject's consecutive failure counter and
// engages the lock once the threshold is reached. The lock is observed on
// the next attempt; the attempt that crossed the threshold still reports
// invalid credentials.
func (l *Lockout) RecordFailure(ctx context.Context, subject *Subject) error {
	if subject == nil {
		return nil
	}

	mu := l.subjectLock(subject.ID.String())
	mu.Lock()
	defer mu.Unlock()

	subject.LoginAttempts++
	if subject.LoginAttempts >= l.maxAttempts {
		until := l.now().Add(l.duration)
		subject.LockedUntil = &until

		l.logger.Warn("account %s locked after %d failures until %s",
			subject.ID.String(),
			subject.LoginAttempts,
			until.UTC().Format(time.RFC3339),
		)
		if err := l.sink.Record(ctx, ActivityEvent{
			EventType: ActivityEventLockoutEngaged,
			Actor:     ActorRef{Type: "system"},
			SubjectID: subject.ID.String(),
			Metadata: map[string]any{
				"attempts":     subject.LoginAttempts,
				"locked_until": until.UTC().Format(time.RFC3339),
			},
			OccurredAt: l.now().UTC(),
		}); err != nil {
			l.logger.Warn("activity sink rejected lockout event: %v", err)
		}
	}

	if _, err := l.store.Save(ctx, subject); err != nil {
		return err
	}

	return nil
}

// RecordSuccess resets the failure counter, clears any stale lock, and
// stamps the subject's last login, all in one write.
func (l *Lockout) RecordSuccess(ctx context.Context, subject *Subject) error {
	if subject == nil {
		return nil
	}

	mu := l.subjectLock(subject.ID.String())
	mu.Lock()
	defer mu.Unlock()

	now := l.now()
	subject.LoginAttempts = 0
	subject.LockedUntil = nil
	subject.LastLoginAt = &now

	if _, err := l.store.Save(ctx, subject); err != nil {
		return err
	}

	return nil
}
