package middleware

import (
	"net/http"
	"strings"

	"github.com/onnwee/talentboard/internal/auth"
)

// TokenValidator validates a bearer token and returns its claims.
// Satisfied by *auth.JWTService.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// Auth returns middleware that requires a valid access token on every
// request. On success the session's user ID and sponsor ID are stored in the
// request context for handlers and the logging middleware.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, r, "Missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				writeAuthError(w, r, "Invalid or expired token")
				return
			}
			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, "Access token required")
				return
			}

			ctx := SetSessionUser(r.Context(), claims.Subject)
			if claims.SponsorID != "" {
				ctx = SetSessionSponsor(ctx, claims.SponsorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes the standard JSON error envelope for a 401. The
// envelope is emitted inline here because the api package depends on this
// one.
func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	ctx := SetErrorCode(r.Context(), "auth_failed")
	UpdateResponseContext(w, ctx)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"auth_failed","message":"` + message + `"}}`))
}
