package access

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles is the bun-backed repository for role records.
type Roles interface {
	repository.Repository[*Role]

	Role(ctx context.Context, name string) (*Role, error)
	Roles(ctx context.Context) ([]*Role, error)

	GetOrCreate(ctx context.Context, record *Role) (*Role, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Role) (*Role, error)
	EnsureSystemRoles(ctx context.Context, roles ...*Role) error
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var (
	_ Roles                        = (*roles)(nil)
	_ RoleCatalog                  = (*roles)(nil)
	_ repository.Repository[*Role] = (*roles)(nil)
)

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
	}
}

// Role loads a single role by name.
func (a *roles) Role(ctx context.Context, name string) (*Role, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &Role{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"name": name,
				})
		}
		return nil, err
	}

	return record, nil
}

// Roles loads the full catalog, used for validation passes.
func (a *roles) Roles(ctx context.Context) ([]*Role, error) {
	var records []*Role
	err := a.db.NewSelect().
		Model(&records).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *roles) GetOrCreate(ctx context.Context, record *Role) (*Role, error) {
	return a.GetOrCreateTx(ctx, a.db, record)
}

func (a *roles) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *Role) (*Role, error) {
	role, err := a.Repository.GetByIdentifierTx(ctx, tx, record.Name)
	if err == nil {
		return role, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	return a.Repository.CreateTx(ctx, tx, record)
}

// EnsureSystemRoles seeds the built-in roles on startup. Existing records
// keep their permissions; only missing roles are created.
func (a *roles) EnsureSystemRoles(ctx context.Context, records ...*Role) error {
	for _, record := range records {
		if record == nil || strings.TrimSpace(record.Name) == "" {
			continue
		}
		record.System = true
		if _, err := a.GetOrCreate(ctx, record); err != nil {
			return err
		}
	}
	return nil
}
