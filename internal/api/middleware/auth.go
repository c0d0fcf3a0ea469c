package middleware

import (
	"context"
	"errors"
	"net/http"

	"agt_platform/internal/common"
	"agt_platform/internal/common/security"
	"agt_platform/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const (
	UserIDCtxKey   contextKey = "userID"
	UserRoleCtxKey contextKey = "userRole"
)

// UserResolver loads the live user a token refers to.
type UserResolver interface {
	ResolveUser(ctx context.Context, userID string) (*model.User, error)
}

// Authenticator requires a valid bearer token and takes the role from the users table,
// not from the token, so role changes and deletions apply immediately.
func Authenticator(users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := identify(r, users)
			if err != nil {
				respondAuthError(w, err)
				return
			}
			if ctx == nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthenticator attaches the user when a token is present and lets anonymous
// requests through. A present but invalid token is still rejected.
func OptionalAuthenticator(users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := identify(r, users)
			if err != nil {
				respondAuthError(w, err)
				return
			}
			if ctx != nil {
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// identify returns a nil context when the request carries no token.
func identify(r *http.Request, users UserResolver) (context.Context, error) {
	token, claims, err := jwtauth.FromContext(r.Context())
	if errors.Is(err, jwtauth.ErrNoTokenFound) || (err == nil && token == nil) {
		return nil, nil
	}
	if err != nil {
		return nil, common.Errorf("invalid token: %v: %w", err, common.ErrUnauthorized)
	}

	userID, err := security.GetUserIDFromClaims(claims)
	if err != nil {
		return nil, common.Errorf("invalid token claims: %v: %w", err, common.ErrUnauthorized)
	}
	user, err := users.ResolveUser(r.Context(), userID)
	if err != nil {
		return nil, err
	}

	ctx := context.WithValue(r.Context(), UserIDCtxKey, user.ID)
	ctx = context.WithValue(ctx, UserRoleCtxKey, user.Role)
	return ctx, nil
}

func respondAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, common.ErrUnauthorized) {
		common.RespondWithError(w, http.StatusUnauthorized, err.Error())
		return
	}
	common.RespondWithDomainError(w, err)
}

// RequireRole lets through only the listed roles. It must run after Authenticator.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRoleFromContext(r.Context())
			if !ok || !allowed[role] {
				common.RespondWithError(w, http.StatusForbidden, "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AdminOnly(next http.Handler) http.Handler {
	return RequireRole(model.RoleAdmin)(next)
}

// StaffOnly admits admins and instructors.
func StaffOnly(next http.Handler) http.Handler {
	return RequireRole(model.RoleAdmin, model.RoleInstructor)(next)
}

// Helper to get user ID from context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(string)
	return userID, ok
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	userRole, ok := ctx.Value(UserRoleCtxKey).(string)
	return userRole, ok
}
