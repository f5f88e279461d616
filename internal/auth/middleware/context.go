package auth

import "context"

type subjectKey struct{}

// WithSubject stores the authenticated account id. JWTMiddleware sets
// it from the token; AttachRoleFromStore and the handlers read it back
// to resolve the caller's user and role rows.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

// SubjectFromContext returns the authenticated account id, or "" on an
// unauthenticated context.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}
