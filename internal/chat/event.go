package chat

import "github.com/vmsouza/conversa/internal/models"

// EventNewMessage is the wire value for a new-message push event.
const EventNewMessage = "nova_mensagem"

// Event is the payload handed from fan-out to a subscriber's channel and
// serialized as-is into the SSE stream. Field names are part of the wire
// contract with the browser client.
type Event struct {
	Type    string          `json:"tipo"`
	RoomID  string          `json:"sala_id"`
	Message *models.Message `json:"mensagem"`
}

// NewMessageEvent builds the push event for a freshly persisted message.
func NewMessageEvent(msg *models.Message) Event {
	return Event{Type: EventNewMessage, RoomID: msg.RoomID, Message: msg}
}
