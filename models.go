package access

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubjectStatus is the subject's lifecycle status
type SubjectStatus = string

const (
	// SubjectStatusPending is a registered but not yet activated subject
	SubjectStatusPending SubjectStatus = "pending"
	// SubjectStatusActive is a subject that can authenticate
	SubjectStatusActive SubjectStatus = "active"
	// SubjectStatusSuspended is a temporarily deactivated subject
	SubjectStatusSuspended SubjectStatus = "suspended"
	// SubjectStatusDisabled is an administratively deactivated subject
	SubjectStatusDisabled SubjectStatus = "disabled"
	// SubjectStatusArchived is a terminal state
	SubjectStatusArchived SubjectStatus = "archived"
)

// Subject is the authenticated identity record. The core reads it from the
// SubjectStore and only writes back lockout and last-login fields.
type Subject struct {
	bun.BaseModel `bun:"table:subjects,alias:sub"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string         `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string         `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string         `bun:"password_hash" json:"password_hash,omitempty"`
	Roles         []string       `bun:"roles,type:jsonb" json:"roles,omitempty"`
	IsSuperuser   bool           `bun:"is_superuser" json:"is_superuser,omitempty"`
	Status        SubjectStatus  `bun:"status" json:"status,omitempty"`
	LoginAttempts int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LockedUntil   *time.Time     `bun:"locked_until,nullzero" json:"locked_until,omitempty"`
	LastLoginAt   *time.Time     `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	SuspendedAt   *time.Time     `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus defaults a zero status to active so legacy records keep working.
func (s *Subject) EnsureStatus() {
	if s.Status == "" {
		s.Status = SubjectStatusActive
	}
}

// IsActive reports whether the subject can authenticate.
func (s *Subject) IsActive() bool {
	s.EnsureStatus()
	return s.Status == SubjectStatusActive
}

// IsLocked reports whether the subject is inside its lockout window at the
// given instant. The lazy LOCKED -> OPEN transition is the Lockout tracker's
// job; this is a pure read.
func (s *Subject) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// HasRole checks direct role assignment, not inheritance.
func (s *Subject) HasRole(name string) bool {
	for _, r := range s.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// AddMetadata will append information to a metadata attribute
func (s *Subject) AddMetadata(key string, val any) *Subject {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	s.Metadata[key] = val
	return s
}

// Role is a named grant of permission strings. Permissions may include
// wildcards of the form "resource:*" or the universal "*". Parents lists
// role names this role inherits permissions from.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	Permissions   []string   `bun:"permissions,type:jsonb" json:"permissions,omitempty"`
	Parents       []string   `bun:"parents,type:jsonb" json:"parents,omitempty"`
	System        bool       `bun:"is_system_role" json:"is_system_role,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasPermission checks the role's direct permission list. Wildcard
// subsumption happens at check time in PermissionSet.Has, not here.
func (r *Role) HasPermission(permission string) bool {
	for _, p := range r.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// statusAuthError maps a lifecycle status to the auth error a deactivated
// subject should surface outside the credential-check path.
func statusAuthError(status SubjectStatus) error {
	switch status {
	case SubjectStatusActive, "":
		return nil
	default:
		return ErrAccountInactive.WithMetadata(map[string]any{
			"status": status,
		})
	}
}
