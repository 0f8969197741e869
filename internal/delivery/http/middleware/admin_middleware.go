package middleware

import (
	"net/http"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/utils"
)

// Roles allowed to operate the dispatch console.
const (
	RoleAdmin    = domain.RoleAdmin
	RoleOperator = domain.RoleOperator
)

// AdminMiddleware ensures the authenticated user may operate orders.
// MUST be used AFTER AuthMiddleware.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized: No user found in context")
			return
		}

		if !user.CanOperate() {
			utils.WriteError(w, http.StatusForbidden, "Forbidden: Operators only")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AdminOnlyMiddleware is for settings that operators may read but not change.
func AdminOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil || user.Role != RoleAdmin {
			utils.WriteError(w, http.StatusForbidden, "Forbidden: Admins only")
			return
		}
		next.ServeHTTP(w, r)
	})
}
