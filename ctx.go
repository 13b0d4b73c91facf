package access

import "context"

var subjectCtxKey = &contextKey{"subject"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the Subject in the given context
func WithContext(r context.Context, subject *Subject) context.Context {
	return context.WithValue(r, subjectCtxKey, subject)
}

// FromContext finds the subject from the context.
func FromContext(ctx context.Context) (*Subject, bool) {
	raw, ok := ctx.Value(subjectCtxKey).(*Subject)
	return raw, ok
}

// WithClaimsContext sets the Claims in the given context
func WithClaimsContext(r context.Context, claims *Claims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the Claims from the context
func GetClaims(ctx context.Context) (*Claims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*Claims)
	return raw, ok
}

// Can checks a "resource:action" permission for the context subject through
// the guard. Missing subject means no.
func Can(ctx context.Context, guard *Guard, permission string) bool {
	subject, ok := FromContext(ctx)
	if !ok || guard == nil {
		return false
	}

	held, err := guard.HasPermission(ctx, subject, permission)
	if err != nil {
		return false
	}
	return held
}
