package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/vmsouza/conversa/internal/api/middleware"
	"github.com/vmsouza/conversa/internal/metrics"
	"github.com/vmsouza/conversa/internal/models"
)

const maxMessageLength = 5000

// CreateRoomRequest is the payload for opening a conversation.
type CreateRoomRequest struct {
	UserID int64 `json:"outro_usuario_id"`
}

// SendMessageRequest is the payload for sending a message.
type SendMessageRequest struct {
	RoomID string `json:"sala_id"`
	Body   string `json:"mensagem"`
}

// CreateRoom handles POST /chat/salas. Opening a conversation with the same
// user twice returns the same room.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	if req.UserID == user.ID {
		h.Error(w, http.StatusBadRequest, "não é possível conversar consigo mesmo")
		return
	}

	other, err := h.db.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("user lookup failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if other == nil {
		h.Error(w, http.StatusNotFound, "usuário não encontrado")
		return
	}

	room, err := h.db.CreateOrGetRoom(r.Context(), user.ID, other.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("room create failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"sala":          room,
		"outro_usuario": other.Ref(),
	})
}

// ListConversations handles GET /chat/conversas.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	limit := parseQueryInt(r, "limite", 20, 100)
	offset := parseQueryInt(r, "offset", 0, 1<<30)

	convs, err := h.db.ListConversations(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("conversation list failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"conversas": convs})
}

// ListMessages handles GET /chat/mensagens/{salaID}, newest first.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	roomID := chi.URLParam(r, "salaID")

	ok, err := h.db.IsParticipant(r.Context(), roomID, user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("participant check failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if !ok {
		h.Error(w, http.StatusForbidden, "acesso negado a esta conversa")
		return
	}

	limit := parseQueryInt(r, "limite", 50, 100)
	offset := parseQueryInt(r, "offset", 0, 1<<30)

	msgs, err := h.db.ListMessages(r.Context(), roomID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("message list failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"mensagens": msgs})
}

// SendMessage handles POST /chat/mensagens. The message is persisted first,
// then fanned out to both participants' live streams.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		h.Error(w, http.StatusBadRequest, "mensagem não pode ser vazia")
		return
	}
	if utf8.RuneCountInString(body) > maxMessageLength {
		h.Error(w, http.StatusBadRequest, "mensagem muito longa")
		return
	}

	ok, err := h.db.IsParticipant(r.Context(), req.RoomID, user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("participant check failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if !ok {
		h.Error(w, http.StatusForbidden, "acesso negado a esta conversa")
		return
	}

	msg, err := h.db.InsertMessage(r.Context(), req.RoomID, user.ID, body)
	if err != nil {
		h.logger.Error().Err(err).Msg("message insert failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}

	if err := h.db.TouchRoom(r.Context(), req.RoomID); err != nil {
		h.logger.Error().Err(err).Str("sala_id", req.RoomID).Msg("room touch failed")
	}

	metrics.MessagesSent.Inc()

	// Fan-out happens after the durable write: a delivery failure never
	// loses the message.
	h.notifier.NotifyNewMessage(msg)

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"sucesso":  true,
		"mensagem": msg,
	})
}

// MarkRead handles POST /chat/mensagens/lidas/{salaID}, marking every unread
// message from the other participant as read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	roomID := chi.URLParam(r, "salaID")

	ok, err := h.db.IsParticipant(r.Context(), roomID, user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("participant check failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if !ok {
		h.Error(w, http.StatusForbidden, "acesso negado a esta conversa")
		return
	}

	n, err := h.db.MarkMessagesRead(r.Context(), roomID, user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("mark read failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"sucesso":  true,
		"marcadas": n,
	})
}

// SearchUsers handles GET /chat/usuarios/buscar?q=.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(term) < 2 {
		h.Error(w, http.StatusBadRequest, "busca deve ter pelo menos 2 caracteres")
		return
	}

	users, err := h.db.SearchUsers(r.Context(), term, user.ID, 10)
	if err != nil {
		h.logger.Error().Err(err).Msg("user search failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if users == nil {
		users = []models.UserRef{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"usuarios": users})
}

// UnreadTotal handles GET /chat/mensagens/nao-lidas/total.
func (h *Handler) UnreadTotal(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	total, err := h.db.CountUnreadForUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("unread count failed")
		h.Error(w, http.StatusInternalServerError, "erro interno")
		return
	}

	h.JSON(w, http.StatusOK, map[string]int{"total": total})
}

// parseQueryInt reads a non-negative integer query parameter, clamped to max.
func parseQueryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
