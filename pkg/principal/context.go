package principal

import "context"

type principalContextKey struct{}

// WithEmail adds the authenticated principal's email to the context
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, email)
}

// FromContext retrieves the authenticated principal's email from the context
func FromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(principalContextKey{}).(string)
	return email, ok && email != ""
}

// MustFromContext retrieves the principal email from the context or panics
func MustFromContext(ctx context.Context) string {
	email, ok := FromContext(ctx)
	if !ok {
		panic("principal: not found in context")
	}
	return email
}
