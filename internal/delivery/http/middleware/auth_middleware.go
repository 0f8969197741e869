package middleware

import (
	"context"
	"net/http"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"
	"orderdesk-backend/pkg/utils"
)

// AuthMiddleware accepts a bearer token or the accessToken cookie and puts the
// caller into the request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := utils.ExtractClaims(r)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			return
		}
		if claims.UserID == "" {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized: token has no subject")
			return
		}

		// Claims are trusted as-is; roles are not re-read from storage per request.
		user := &domain.User{
			ID:    claims.UserID,
			Email: claims.Email,
			Role:  claims.Role,
		}

		ctx := context.WithValue(r.Context(), domain.UserContextKey, user)
		userLogger := logger.WithActor(*logger.WithContext(ctx), user.ID, user.Role)
		ctx = logger.NewContext(ctx, &userLogger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(domain.UserContextKey).(*domain.User)
	return user
}

// ActorID is the id recorded as the author of order history rows.
func ActorID(r *http.Request) string {
	if user := UserFromContext(r.Context()); user != nil {
		return user.ID
	}
	return ""
}
