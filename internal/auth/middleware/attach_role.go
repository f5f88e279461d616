package auth

import (
	"errors"
	"net/http"

	"github.com/campusworks/examportal/internal/rbac"
	"github.com/campusworks/examportal/internal/roster"
)

// AttachRoleFromStore replaces the claim role with the account's
// current role, so an admin demoting a user takes effect without
// waiting for the token to expire. allowClaimFallback keeps dev
// tokens working against an empty database.
func AttachRoleFromStore(users roster.Store, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			claimRole := rbac.RoleFromContext(ctx)

			u, err := users.GetUser(ctx, sub)
			switch {
			case err == nil && u.Role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, u.Role)))

			case errors.Is(err, roster.ErrNotFound):
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)

			default:
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
