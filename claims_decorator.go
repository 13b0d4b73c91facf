package access

import "context"

// ClaimsDecorator can mutate allowed claim extensions before a token is signed.
// Implementations may only touch extension fields (e.g. Roles, Metadata) and
// must leave registered/identity claims untouched so core auth semantics stay
// stable.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, subject *Subject, claims *Claims) error
}

// ClaimsDecoratorFunc adapts a function into a ClaimsDecorator.
type ClaimsDecoratorFunc func(ctx context.Context, subject *Subject, claims *Claims) error

// Decorate satisfies the ClaimsDecorator interface.
func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, subject *Subject, claims *Claims) error {
	if f == nil {
		return nil
	}
	return f(ctx, subject, claims)
}

type noopClaimsDecorator struct{}

func (noopClaimsDecorator) Decorate(context.Context, *Subject, *Claims) error {
	return nil
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return noopClaimsDecorator{}
	}
	return d
}
