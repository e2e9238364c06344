package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/vmsouza/conversa/internal/api/middleware"
	"github.com/vmsouza/conversa/internal/metrics"
)

const sessionMaxAge = 7 * 24 * time.Hour

// RegisterRequest is the payload for user registration.
type RegisterRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"senha"`
}

// LoginRequest is the payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

// Register handles POST /auth/cadastrar. A successful registration also logs
// the user in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	name := sanitizeName(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if len(name) < 3 {
		h.Error(w, http.StatusBadRequest, "nome deve ter pelo menos 3 caracteres")
		return
	}
	if !isValidEmail(email) {
		h.Error(w, http.StatusBadRequest, "email inválido")
		return
	}
	if n := utf8.RuneCountInString(req.Password); n < 6 || n > 128 {
		h.Error(w, http.StatusBadRequest, "senha deve ter entre 6 e 128 caracteres")
		return
	}

	exists, err := h.db.EmailExists(r.Context(), email)
	if err != nil {
		h.logger.Error().Err(err).Msg("email lookup failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if exists {
		h.Error(w, http.StatusConflict, "email já cadastrado")
		return
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error().Err(err).Msg("password hash failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}

	user, err := h.db.CreateUser(r.Context(), name, email, string(hash))
	if err != nil {
		h.logger.Error().Err(err).Msg("user insert failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}

	metrics.UsersRegistered.Inc()
	h.logger.Info().Int64("usuario_id", user.ID).Msg("user registered")

	if err := h.startSession(w, r, user.ID); err != nil {
		h.logger.Error().Err(err).Msg("session create failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}

	h.JSON(w, http.StatusCreated, user)
}

// Login handles POST /auth/login. Credential failures share one message so
// the response does not reveal whether the email exists.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.db.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.logger.Error().Err(err).Msg("user lookup failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "email ou senha inválidos")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), bcryptInput(req.Password)); err != nil {
		h.Error(w, http.StatusUnauthorized, "email ou senha inválidos")
		return
	}

	if err := h.startSession(w, r, user.ID); err != nil {
		h.logger.Error().Err(err).Msg("session create failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}

	h.JSON(w, http.StatusOK, user)
}

// Logout handles POST /auth/logout. Idempotent.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookie); err == nil && cookie.Value != "" {
		if err := h.redis.DeleteSession(r.Context(), cookie.Value); err != nil {
			h.logger.Error().Err(err).Msg("session delete failed")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.JSON(w, http.StatusOK, map[string]bool{"sucesso": true})
}

// Me handles GET /auth/eu, returning the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "não autenticado")
		return
	}
	h.JSON(w, http.StatusOK, user)
}

// bcryptInput bounds a password to the 72 bytes bcrypt reads. Register and
// Login hash the same prefix, so passwords past the bound still round-trip.
func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > 72 {
		b = b[:72]
	}
	return b
}

// startSession mints a session token and sets the session cookie.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	token, err := h.redis.CreateSession(r.Context(), userID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
