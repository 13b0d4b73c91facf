package access

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Subjects() Subjects
	Roles() Roles
}

type mngr struct {
	db       *bun.DB
	subjects Subjects
	roles    Roles
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		subjects: NewSubjectsRepository(db),
		roles:    NewRolesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.subjects == nil {
		return errors.New("repository subjects should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Subjects() Subjects {
	return m.subjects
}

func (m mngr) Roles() Roles {
	return m.roles
}
