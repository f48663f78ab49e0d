package middleware

import (
	"net/http"

	"classifieds/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin guards category management
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]string{domain.RoleAdmin}, logger)
}

// RequireRole middleware ensures the actor is signed in with one of the
// allowed roles
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor.Anonymous() {
				RespondWithError(w, http.StatusUnauthorized, "you must be signed in to do this")
				return
			}

			for _, allowedRole := range allowedRoles {
				if actor.Role == allowedRole {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("User role not authorized",
				zap.String("user_id", actor.UserID.String()),
				zap.String("role", actor.Role),
				zap.Strings("allowed_roles", allowedRoles),
			)
			RespondWithError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}
