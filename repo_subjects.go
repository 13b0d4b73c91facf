package access

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var setPasswordSQL = `UPDATE "subjects" AS "sub"
SET
	"password_hash" = ?,
	"status" = ?
WHERE
	"sub"."deleted_at" IS NULL
AND (
	"sub"."id" = ?
) RETURNING *;`

// Subjects is the bun-backed repository for subject records. It satisfies
// SubjectStore so the core components can run directly on top of it.
type Subjects interface {
	repository.Repository[*Subject]

	Save(ctx context.Context, subject *Subject) (*Subject, error)

	Register(ctx context.Context, subject *Subject) (*Subject, error)
	RegisterTx(ctx context.Context, tx bun.IDB, subject *Subject) (*Subject, error)
	GetOrCreate(ctx context.Context, record *Subject) (*Subject, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Subject) (*Subject, error)
	Create(ctx context.Context, record *Subject, criteria ...repository.InsertCriteria) (*Subject, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Subject, criteria ...repository.InsertCriteria) (*Subject, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status SubjectStatus) (*Subject, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status SubjectStatus) (*Subject, error)
	Suspend(ctx context.Context, actor ActorRef, subject *Subject, opts ...TransitionOption) (*Subject, error)
	Reinstate(ctx context.Context, actor ActorRef, subject *Subject, opts ...TransitionOption) (*Subject, error)

	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type subjects struct {
	repository.Repository[*Subject]
	db                  *bun.DB
	stateMachine        SubjectStateMachine
	stateMachineOptions []StateMachineOption
}

var (
	_ Subjects                        = (*subjects)(nil)
	_ repository.Repository[*Subject] = (*subjects)(nil)
)

// NewSubjectStore adapts a Subjects repository to the narrow SubjectStore
// surface the core components consume.
func NewSubjectStore(repo Subjects) SubjectStore {
	return subjectStore{repo: repo}
}

type subjectStore struct {
	repo Subjects
}

func (s subjectStore) GetByID(ctx context.Context, id string) (*Subject, error) {
	if !isUUID(strings.TrimSpace(id)) {
		return nil, ErrSubjectNotFound.WithMetadata(map[string]any{
			"id": id,
		})
	}
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

func (s subjectStore) GetByIdentifier(ctx context.Context, identifier string) (*Subject, error) {
	return s.repo.GetByIdentifier(ctx, identifier)
}

func (s subjectStore) Save(ctx context.Context, subject *Subject) (*Subject, error) {
	return s.repo.Save(ctx, subject)
}

type SubjectsOption func(*subjects)

func NewSubjectsRepository(db *bun.DB, opts ...SubjectsOption) Subjects {
	repo := repository.NewRepository[*Subject](db, repository.ModelHandlers[*Subject]{
		NewRecord: func() *Subject { return &Subject{} },
		GetID: func(s *Subject) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Subject, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	repoSubjects := &subjects{
		Repository: repo,
		db:         db,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoSubjects)
		}
	}

	return repoSubjects
}

func WithSubjectsStateMachineOptions(options ...StateMachineOption) SubjectsOption {
	return func(s *subjects) {
		if len(options) == 0 {
			return
		}
		s.stateMachineOptions = append(s.stateMachineOptions, options...)
		s.stateMachine = nil
	}
}

func WithSubjectsStateMachine(sm SubjectStateMachine) SubjectsOption {
	return func(s *subjects) {
		s.stateMachine = sm
	}
}

func (a *subjects) Register(ctx context.Context, subject *Subject) (*Subject, error) {
	return a.RegisterTx(ctx, a.db, subject)
}

func (a *subjects) RegisterTx(ctx context.Context, tx bun.IDB, subject *Subject) (*Subject, error) {
	return a.CreateTx(ctx, tx, subject)
}

func (a *subjects) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Subject, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *subjects) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Subject, error) {
	options := resolveSubjectIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &Subject{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

// Save persists the mutable auth bookkeeping fields in one write. Used by
// lockout tracking and lifecycle transitions.
func (a *subjects) Save(ctx context.Context, subject *Subject) (*Subject, error) {
	if subject == nil || subject.ID == uuid.Nil {
		return nil, repository.NewRecordNotFound()
	}

	now := time.Now()
	subject.UpdatedAt = &now

	// NOTE: ORM updates skip zero values, which would leave a cleared
	// login_attempts counter or lock timestamp behind. Raw update instead.
	record := &Subject{}
	err := a.db.NewRaw(`
		UPDATE "subjects" AS "sub"
		SET
			"status" = ?,
			"login_attempts" = ?,
			"locked_until" = ?,
			"last_login_at" = ?,
			"suspended_at" = ?,
			"updated_at" = ?
		WHERE
			("sub".id = ?)
			AND "sub"."deleted_at" IS NULL
		RETURNING *;
	`, subject.Status, subject.LoginAttempts, subject.LockedUntil,
		subject.LastLoginAt, subject.SuspendedAt, subject.UpdatedAt,
		subject.ID).Scan(ctx, record)
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (a *subjects) Create(ctx context.Context, record *Subject, criteria ...repository.InsertCriteria) (*Subject, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *subjects) CreateTx(ctx context.Context, tx bun.IDB, record *Subject, criteria ...repository.InsertCriteria) (*Subject, error) {
	prepareSubjectDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *subjects) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.SetPasswordTx(ctx, a.db, id, passwordHash)
}

// SetPasswordTx stores the hash and activates pending subjects in the same
// statement, the tail end of the password setup flow.
func (a *subjects) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, setPasswordSQL, passwordHash, SubjectStatusActive, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *subjects) GetOrCreate(ctx context.Context, record *Subject) (*Subject, error) {
	return a.GetOrCreateTx(ctx, a.db, record)
}

func (a *subjects) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Subject) (*Subject, error) {
	identifier := record.Email
	if record.ID != uuid.Nil {
		identifier = record.ID.String()
	}

	subject, err := a.Repository.GetByIdentifierTx(ctx, tx, identifier)
	if err == nil {
		return subject, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	return a.CreateTx(ctx, tx, record)
}

func (a *subjects) UpdateStatus(ctx context.Context, id uuid.UUID, status SubjectStatus) (*Subject, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status)
}

func (a *subjects) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status SubjectStatus) (*Subject, error) {
	record := &Subject{
		ID:     id,
		Status: status,
	}

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(id.String()))
}

func (a *subjects) Suspend(ctx context.Context, actor ActorRef, subject *Subject, opts ...TransitionOption) (*Subject, error) {
	return a.lifecycleMachine().Transition(ctx, actor, subject, SubjectStatusSuspended, opts...)
}

func (a *subjects) Reinstate(ctx context.Context, actor ActorRef, subject *Subject, opts ...TransitionOption) (*Subject, error) {
	return a.lifecycleMachine().Transition(ctx, actor, subject, SubjectStatusActive, opts...)
}

func prepareSubjectDefaults(record *Subject) {
	if record == nil {
		return
	}

	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveSubjectIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}

func (a *subjects) lifecycleMachine() SubjectStateMachine {
	if a.stateMachine == nil {
		a.stateMachine = NewSubjectStateMachine(NewSubjectStore(a), a.stateMachineOptions...)
	}
	return a.stateMachine
}
