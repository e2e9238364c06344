package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vmsouza/conversa/internal/models"
	"github.com/vmsouza/conversa/internal/store"
)

type contextKey string

const UserContextKey contextKey = "user"

// SessionCookie is the name of the session cookie set on login.
const SessionCookie = "conversa_sessao"

// AuthMiddleware resolves the session cookie to a user for protected routes.
type AuthMiddleware struct {
	db     store.DataStore
	redis  *store.RedisStore
	logger zerolog.Logger
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(db store.DataStore, redis *store.RedisStore, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{db: db, redis: redis, logger: logger}
}

// RequireAuth rejects requests without a valid session and injects the
// authenticated user into the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			jsonError(w, http.StatusUnauthorized, "não autenticado")
			return
		}

		userID, err := m.redis.GetSessionUserID(r.Context(), cookie.Value)
		if err != nil {
			m.logger.Error().Err(err).Msg("session lookup failed")
			jsonError(w, http.StatusInternalServerError, "erro interno")
			return
		}
		if userID == 0 {
			jsonError(w, http.StatusUnauthorized, "sessão inválida ou expirada")
			return
		}

		user, err := m.db.GetUserByID(r.Context(), userID)
		if err != nil {
			m.logger.Error().Err(err).Int64("usuario_id", userID).Msg("user lookup failed")
			jsonError(w, http.StatusInternalServerError, "erro interno")
			return
		}
		if user == nil {
			// Session outlived the account.
			_ = m.redis.DeleteSession(r.Context(), cookie.Value)
			jsonError(w, http.StatusUnauthorized, "sessão inválida ou expirada")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"erro": message})
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// WithUser returns a context carrying the user, as RequireAuth would set it.
// Used by handler tests that bypass the middleware.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}
