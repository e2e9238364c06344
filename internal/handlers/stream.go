package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vmsouza/conversa/internal/api/middleware"
)

const keepaliveInterval = 30 * time.Second

// Stream handles GET /chat/stream, the SSE endpoint. The connection stays
// open until the client disconnects or the server shuts down. Each user holds
// at most one stream; opening a second one supersedes the first.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.Error(w, http.StatusInternalServerError, "streaming não suportado")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disable proxy buffering so events reach the client immediately.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.registry.Connect(user.ID)
	defer h.registry.Release(sub)

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case ev, open := <-sub.Events():
			// Channel closed: superseded by a newer stream or shutdown.
			if !open {
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error().Err(err).Msg("event marshal failed")
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			// SSE comment line keeps intermediaries from timing out the
			// connection.
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
