package access

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type PasswordSetupMessage struct {
	Token    string `json:"token" doc:"Link token proving control of the account"`
	Password string `json:"password" doc:"New password"`
}

func (e PasswordSetupMessage) Type() string { return "subject.password.setup" }

// PasswordSetupHandler exchanges a link token for a new password hash. The
// token proves control of the account, so pending subjects are activated in
// the same transaction.
type PasswordSetupHandler struct {
	repo     RepositoryManager
	verifier TokenVerifier
	activity ActivitySink
	logger   Logger
}

// NewPasswordSetupHandler creates a handler with sane defaults.
func NewPasswordSetupHandler(repo RepositoryManager, verifier TokenVerifier) *PasswordSetupHandler {
	return &PasswordSetupHandler{
		repo:     repo,
		verifier: verifier,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password setup events.
func (h *PasswordSetupHandler) WithActivitySink(sink ActivitySink) *PasswordSetupHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *PasswordSetupHandler) WithLogger(logger Logger) *PasswordSetupHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *PasswordSetupHandler) Execute(ctx context.Context, event PasswordSetupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password setup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *PasswordSetupHandler) execute(ctx context.Context, event PasswordSetupMessage) error {
	var subjectID uuid.UUID

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	claims, err := h.verifier.Verify(event.Token)
	if err != nil {
		return err
	}

	if !claims.IsKind(TokenKindLink) {
		return ErrTokenKindMismatch.WithMetadata(map[string]any{
			"kind": string(claims.Kind),
		})
	}

	subjectID, err = uuid.Parse(claims.SubjectID())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "token subject is not a valid id")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		subject, err := h.repo.Subjects().GetByIdentifierTx(ctx, tx, subjectID.String())
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrSubjectNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve subject")
		}

		switch subject.Status {
		case SubjectStatusActive, SubjectStatusPending, "":
			// setup allowed
		default:
			return ErrAccountInactive.WithMetadata(map[string]any{
				"status": subject.Status,
			})
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if err := h.repo.Subjects().SetPasswordTx(ctx, tx, subject.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store new password")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password setup")
	}

	h.recordActivity(ctx, subjectID)

	return nil
}

func (h *PasswordSetupHandler) recordActivity(ctx context.Context, subjectID uuid.UUID) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordSetup,
		Actor: ActorRef{
			ID:   subjectID.String(),
			Type: "subject",
		},
		SubjectID:  subjectID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password setup: %v", err)
	}
}
