package access

import (
	"context"
	"time"
)

// Requirement describes what a caller must satisfy. Zero-value fields are
// skipped; a zero Requirement allows any authenticated subject.
type Requirement struct {
	// Permission must be held, subject to wildcard subsumption.
	Permission string
	// Role must be held directly or through inheritance.
	Role string
	// AnyOf passes when at least one permission is held.
	AnyOf []string
	// AllOf passes only when every permission is held.
	AllOf []string
	// OwnerID enables the self-access bypass: a subject whose ID equals
	// OwnerID passes permission checks for its own resource.
	OwnerID string
}

func (r Requirement) empty() bool {
	return r.Permission == "" && r.Role == "" && len(r.AnyOf) == 0 && len(r.AllOf) == 0
}

// Guard evaluates requirements against an authenticated subject. Decisions
// follow a fixed order: authentication, superuser short-circuit, self-access
// bypass, then role and permission resolution.
type Guard struct {
	resolver *Resolver
	logger   Logger
	sink     ActivitySink
	now      func() time.Time
}

// NewGuard creates a Guard over a permission resolver.
func NewGuard(resolver *Resolver) *Guard {
	return &Guard{
		resolver: resolver,
		logger:   defLogger{},
		sink:     noopActivitySink{},
		now:      time.Now,
	}
}

func (g *Guard) WithLogger(logger Logger) *Guard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

func (g *Guard) WithActivitySink(sink ActivitySink) *Guard {
	g.sink = normalizeActivitySink(sink)
	return g
}

func (g *Guard) WithClock(now func() time.Time) *Guard {
	if now != nil {
		g.now = now
	}
	return g
}

// Authorize returns nil when subject satisfies req, ErrUnauthenticated when
// subject is nil, and ErrMissingPermission on denial. Denials are recorded
// through the activity sink; resolution failures are internal errors, never
// silent allows.
func (g *Guard) Authorize(ctx context.Context, subject *Subject, req Requirement) error {
	if subject == nil {
		return ErrUnauthenticated
	}

	if subject.IsSuperuser {
		return nil
	}

	if req.empty() {
		return nil
	}

	// subjects are always entitled to their own records
	if req.OwnerID != "" && req.OwnerID == subject.ID.String() {
		return nil
	}

	if req.Role != "" {
		held, err := g.holdsRole(ctx, subject, req.Role)
		if err != nil {
			return err
		}
		if !held {
			return g.deny(ctx, subject, req, "role")
		}
	}

	if req.Permission != "" || len(req.AnyOf) > 0 || len(req.AllOf) > 0 {
		set, err := g.resolver.Resolve(ctx, subject.Roles)
		if err != nil {
			return err
		}

		if req.Permission != "" && !set.Has(req.Permission) {
			return g.deny(ctx, subject, req, "permission")
		}
		if len(req.AnyOf) > 0 && !set.HasAny(req.AnyOf...) {
			return g.deny(ctx, subject, req, "any_of")
		}
		if len(req.AllOf) > 0 && !set.HasAll(req.AllOf...) {
			return g.deny(ctx, subject, req, "all_of")
		}
	}

	return nil
}

// HasPermission reports whether subject holds the permission, wildcard and
// inheritance rules applied. Superusers hold everything.
func (g *Guard) HasPermission(ctx context.Context, subject *Subject, permission string) (bool, error) {
	if subject == nil {
		return false, nil
	}
	if subject.IsSuperuser {
		return true, nil
	}

	set, err := g.resolver.Resolve(ctx, subject.Roles)
	if err != nil {
		return false, err
	}
	return set.Has(permission), nil
}

// HasRole reports whether subject holds the role directly or by inheritance.
func (g *Guard) HasRole(ctx context.Context, subject *Subject, role string) (bool, error) {
	if subject == nil {
		return false, nil
	}
	if subject.IsSuperuser {
		return true, nil
	}
	return g.holdsRole(ctx, subject, role)
}

func (g *Guard) holdsRole(ctx context.Context, subject *Subject, role string) (bool, error) {
	if subject.HasRole(role) {
		return true, nil
	}

	reachable, err := g.resolver.ResolveRoles(ctx, subject.Roles)
	if err != nil {
		return false, err
	}
	_, ok := reachable[role]
	return ok, nil
}

func (g *Guard) deny(ctx context.Context, subject *Subject, req Requirement, check string) error {
	metadata := map[string]any{
		"check": check,
	}
	if req.Permission != "" {
		metadata["permission"] = req.Permission
	}
	if req.Role != "" {
		metadata["role"] = req.Role
	}
	if len(req.AnyOf) > 0 {
		metadata["any_of"] = req.AnyOf
	}
	if len(req.AllOf) > 0 {
		metadata["all_of"] = req.AllOf
	}

	g.logger.Debug("authorization denied for subject %s on %s check",
		subject.ID.String(), check)

	if err := g.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventAccessDenied,
		Actor:      ActorRef{ID: subject.ID.String(), Type: "subject"},
		SubjectID:  subject.ID.String(),
		Metadata:   metadata,
		OccurredAt: g.now().UTC(),
	}); err != nil {
		g.logger.Warn("activity sink rejected denial event: %v", err)
	}

	return ErrMissingPermission.WithMetadata(metadata)
}
