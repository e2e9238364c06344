package models

import "time"

// User represents a registered user. The password hash never leaves the
// server; JSON tags cover the fields exposed by the API.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"nome"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"data_cadastro"`
}

// Ref returns the public projection of the user used in API responses.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserRef is the public projection of a user embedded in other payloads.
type UserRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email"`
}

// Room is a two-party conversation. Its id is derived from the participant
// pair ("{min}_{max}"), so a pair of users always maps to the same room.
type Room struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"criada_em"`
	LastActivity time.Time `json:"ultima_atividade"`
}

// Message is a chat message. ReadAt stays nil until the other participant
// marks the room as read.
type Message struct {
	ID       int64      `json:"id"`
	RoomID   string     `json:"sala_id"`
	SenderID int64      `json:"usuario_id"`
	Body     string     `json:"mensagem"`
	SentAt   time.Time  `json:"data_envio"`
	ReadAt   *time.Time `json:"lida_em"`
}

// Participant links a user to a room.
type Participant struct {
	RoomID     string     `json:"sala_id"`
	UserID     int64      `json:"usuario_id"`
	LastReadAt *time.Time `json:"ultima_leitura"`
}

// Conversation is one entry in a user's conversation list: the room, the
// other participant, the latest message and the unread counter.
type Conversation struct {
	RoomID       string    `json:"sala_id"`
	LastActivity time.Time `json:"ultima_atividade"`
	OtherUser    UserRef   `json:"outro_usuario"`
	LastMessage  *string   `json:"ultima_mensagem"`
	Unread       int       `json:"nao_lidas"`
}
