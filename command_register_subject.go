package access

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterSubjectMessage struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Roles     []string `json:"roles"`
	Pending   bool     `json:"pending"`
	UseHashid bool
}

func (e RegisterSubjectMessage) Type() string { return "subject.register" }

// RegisterSubjectHandler creates a subject record inside a transaction.
// Empty passwords are allowed when Pending is set: the subject completes
// setup later through a link token.
type RegisterSubjectHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewRegisterSubjectHandler(repo RepositoryManager) *RegisterSubjectHandler {
	return &RegisterSubjectHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterSubjectHandler) WithActivitySink(sink ActivitySink) *RegisterSubjectHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterSubjectHandler) WithLogger(logger Logger) *RegisterSubjectHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterSubjectHandler) Execute(ctx context.Context, event RegisterSubjectMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during subject registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterSubjectHandler) execute(ctx context.Context, event RegisterSubjectMessage) error {
	subject := &Subject{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if event.Password != "" || !event.Pending {
			hash, err := HashPassword(event.Password)
			if err != nil {
				var richErr *goerrors.Error
				if goerrors.As(err, &richErr) {
					return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
				}
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
			}
			subject.PasswordHash = hash
		} else {
			// unguessable placeholder until the setup link is used
			hash, err := RandomPasswordHash()
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create placeholder hash")
			}
			subject.PasswordHash = hash
		}

		subject.Email = event.Email
		subject.Username = getUsername(event.Username, event.Email)
		subject.Roles = event.Roles
		if event.Pending {
			subject.Status = SubjectStatusPending
		} else {
			subject.Status = SubjectStatusActive
		}
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				subject.ID = id
			}
		}

		var err error
		if subject, err = h.repo.Subjects().CreateTx(ctx, tx, subject); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create subject")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "subject registration transaction failed")
	}

	h.recordActivity(ctx, subject)

	return nil
}

func (h *RegisterSubjectHandler) recordActivity(ctx context.Context, subject *Subject) {
	if subject == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventSubjectRegistered,
		Actor: ActorRef{
			ID:   subject.ID.String(),
			Type: "subject",
		},
		SubjectID: subject.ID.String(),
		Metadata: map[string]any{
			"status": subject.Status,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
