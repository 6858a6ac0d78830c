package auth

import (
	"context"
	"net/http"

	"ms-busticketing/internal/models"
	"ms-busticketing/internal/utils"
)

type contextKey string

const sessionKey contextKey = "session"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

// Middleware rejects requests without a valid bearer token and puts the
// session into the request context.
func Middleware(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Authentication required", err.Error(), models.CodeUnauthorized))
				return
			}

			session, err := a.Authenticate(r.Context(), rawToken)
			if err != nil {
				utils.WriteError(w, "Authentication failed", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// RequireRole must run after Middleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFrom(r.Context())
			if !ok {
				utils.WriteError(w, "Authentication required", models.ErrSessionNotFound)
				return
			}
			for _, role := range roles {
				if session.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.WriteError(w, "Access denied", models.ErrForbidden)
		})
	}
}

func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// Helper to extract the session in handlers
func SessionFrom(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*models.Session)
	return s, ok && s != nil
}
