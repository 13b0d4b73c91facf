package access

import (
	"context"
	"sort"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// PermissionUniversal grants everything; PermissionSeparator splits
// "resource:action" strings.
const (
	PermissionUniversal = "*"
	PermissionSeparator = ":"
)

// PermissionSet is an effective, deduplicated permission set. Wildcard
// entries are kept verbatim; subsumption happens at check time in Has.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from a list of permission strings.
func NewPermissionSet(permissions ...string) PermissionSet {
	set := make(PermissionSet, len(permissions))
	for _, p := range permissions {
		if p = strings.TrimSpace(p); p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

// Has checks a required "resource:action" permission against the set.
// Precedence: exact match, then "resource:*" wildcard, then universal "*".
func (s PermissionSet) Has(required string) bool {
	if len(s) == 0 || required == "" {
		return false
	}

	if _, ok := s[required]; ok {
		return true
	}

	if idx := strings.Index(required, PermissionSeparator); idx > 0 {
		wildcard := required[:idx] + PermissionSeparator + PermissionUniversal
		if _, ok := s[wildcard]; ok {
			return true
		}
	}

	_, ok := s[PermissionUniversal]
	return ok
}

// HasAny combines checks with OR semantics, short-circuiting on the first hit.
func (s PermissionSet) HasAny(required ...string) bool {
	for _, r := range required {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// HasAll combines checks with AND semantics, short-circuiting on the first miss.
func (s PermissionSet) HasAll(required ...string) bool {
	for _, r := range required {
		if !s.Has(r) {
			return false
		}
	}
	return true
}

// List returns the set's entries in stable order.
func (s PermissionSet) List() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Resolver expands role names into effective permission sets honoring role
// inheritance. Resolution is pure; callers may memoize per decision but must
// not cache across catalog mutations.
type Resolver struct {
	catalog RoleCatalog
	logger  Logger
}

// NewResolver creates a Resolver over a role catalog.
func NewResolver(catalog RoleCatalog) *Resolver {
	return &Resolver{
		catalog: catalog,
		logger:  defLogger{},
	}
}

func (r *Resolver) WithLogger(logger Logger) *Resolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Resolve expands the given role names through their inheritance chains and
// accumulates every visited role's direct permissions. Traversal is
// breadth-first with a visited-set guard, so it terminates even on a cyclic
// catalog. The universal wildcard short-circuits resolution entirely.
func (r *Resolver) Resolve(ctx context.Context, roleNames []string) (PermissionSet, error) {
	set := PermissionSet{}

	err := r.walk(ctx, roleNames, func(role *Role) bool {
		for _, p := range role.Permissions {
			if p = strings.TrimSpace(p); p == "" {
				continue
			}
			if p == PermissionUniversal {
				// all permissions granted, nothing left to collect
				set = PermissionSet{PermissionUniversal: {}}
				return false
			}
			set[p] = struct{}{}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return set, nil
}

// ResolveRoles returns every role name reachable from the given names
// through inheritance, the names themselves included. Used for role-based
// checks where holding a child role implies its parents.
func (r *Resolver) ResolveRoles(ctx context.Context, roleNames []string) (map[string]struct{}, error) {
	visited := map[string]struct{}{}

	err := r.walk(ctx, roleNames, func(role *Role) bool {
		visited[role.Name] = struct{}{}
		return true
	})
	if err != nil {
		return nil, err
	}

	return visited, nil
}

// walk runs a breadth-first traversal from roleNames over inherits-from
// edges, invoking visit for each role found. visit returning false stops the
// traversal early. Unknown role names are skipped with a warning; they are a
// catalog consistency problem, not a per-request failure.
func (r *Resolver) walk(ctx context.Context, roleNames []string, visit func(*Role) bool) error {
	queue := make([]string, 0, len(roleNames))
	seen := make(map[string]struct{}, len(roleNames))

	for _, name := range roleNames {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		queue = append(queue, name)
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		role, err := r.catalog.Role(ctx, name)
		if err != nil {
			if goerrors.IsNotFound(err) {
				r.logger.Warn("role %q referenced but not in catalog", name)
				continue
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load role during resolution")
		}
		if role == nil {
			r.logger.Warn("role %q referenced but not in catalog", name)
			continue
		}

		if !visit(role) {
			return nil
		}

		for _, parent := range role.Parents {
			if parent = strings.TrimSpace(parent); parent == "" {
				continue
			}
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}
			queue = append(queue, parent)
		}
	}

	return nil
}

// ValidateCatalog walks every role's inheritance chain and reports the first
// cycle found. Cycles violate catalog invariants; surfacing them here keeps
// resolution defensive without turning corruption into per-request errors.
func (r *Resolver) ValidateCatalog(ctx context.Context) error {
	roles, err := r.catalog.Roles(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list roles for catalog validation")
	}

	index := make(map[string]*Role, len(roles))
	for _, role := range roles {
		if role != nil {
			index[role.Name] = role
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(index))

	var dfs func(name string, path []string) error
	dfs = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return ErrRoleCycle.WithMetadata(map[string]any{
				"role": name,
				"path": strings.Join(append(path, name), " -> "),
			})
		}

		state[name] = visiting
		role := index[name]
		if role != nil {
			for _, parent := range role.Parents {
				if _, ok := index[parent]; !ok {
					continue
				}
				if err := dfs(parent, append(path, name)); err != nil {
					return err
				}
			}
		}
		state[name] = done
		return nil
	}

	for name := range index {
		if err := dfs(name, nil); err != nil {
			return err
		}
	}

	return nil
}
