package chat

import (
	"github.com/rs/zerolog"

	"github.com/vmsouza/conversa/internal/metrics"
	"github.com/vmsouza/conversa/internal/models"
)

// Notifier fans a persisted message out to the two participants of its room.
// Delivery is fire-and-forget per recipient: an offline participant simply
// misses the push and catches up through the message history.
type Notifier struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewNotifier creates a Notifier delivering through the given registry.
func NewNotifier(registry *Registry, logger zerolog.Logger) *Notifier {
	return &Notifier{
		registry: registry,
		logger:   logger.With().Str("component", "fanout").Logger(),
	}
}

// NotifyNewMessage resolves the room's participants and delivers the
// new-message event to each connected one, the sender included — the echo
// keeps the sender's other tabs and devices in sync. A room id that fails to
// parse is logged and skipped; it must never fault the sending request.
func (n *Notifier) NotifyNewMessage(msg *models.Message) {
	userA, userB, err := ParseParticipants(msg.RoomID)
	if err != nil {
		n.logger.Warn().
			Str("sala_id", msg.RoomID).
			Err(err).
			Msg("fan-out skipped: unparseable room id")
		return
	}

	ev := NewMessageEvent(msg)
	for _, userID := range [2]int64{userA, userB} {
		if n.registry.Deliver(userID, ev) {
			metrics.DeliveriesTotal.WithLabelValues("delivered").Inc()
		} else {
			metrics.DeliveriesTotal.WithLabelValues("offline").Inc()
		}
	}
}
