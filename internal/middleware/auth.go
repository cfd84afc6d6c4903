package middleware

import (
	"context"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/econsulaire/portal/internal/models"
	"github.com/econsulaire/portal/internal/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// Auth verifies JWT tokens and loads the current user into the request
// context. The account must still exist and be active; role and unit are
// always read from the database, not from the token.
func Auth(db *gorm.DB, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(parts[1], secret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			id, ok := claims["id"].(float64)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			var user models.User
			if err := db.First(&user, uint(id)).Error; err != nil {
				http.Error(w, "User not found", http.StatusUnauthorized)
				return
			}
			if !user.Active {
				http.Error(w, "Account disabled", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, &user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CurrentUser returns the authenticated user stored by Auth, or nil.
func CurrentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserContextKey).(*models.User)
	return user
}

// RequireRole wraps a handler and rejects users whose role is not listed.
func RequireRole(roles ...models.Role) func(http.HandlerFunc) http.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r)
			if user == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			if !allowed[user.Role] {
				http.Error(w, "Accès non autorisé", http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}
}

// RequireStaff admits agents, admins and supervisors.
func RequireStaff(next http.HandlerFunc) http.HandlerFunc {
	return RequireRole(models.StaffRoles...)(next)
}
