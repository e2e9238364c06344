package store

import (
	"context"

	"github.com/vmsouza/conversa/internal/models"
)

// DataStore defines the interface for persistent storage of users, rooms and
// messages. Both PostgresStore and SQLiteStore implement this interface.
// Lookups return (nil, nil) when the record does not exist.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	SearchUsers(ctx context.Context, term string, excludeID int64, limit int) ([]models.UserRef, error)

	// Room operations
	CreateOrGetRoom(ctx context.Context, userA, userB int64) (*models.Room, error)
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	TouchRoom(ctx context.Context, roomID string) error
	IsParticipant(ctx context.Context, roomID string, userID int64) (bool, error)
	ListConversations(ctx context.Context, userID int64, limit, offset int) ([]models.Conversation, error)

	// Message operations
	InsertMessage(ctx context.Context, roomID string, senderID int64, body string) (*models.Message, error)
	ListMessages(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error)
	MarkMessagesRead(ctx context.Context, roomID string, readerID int64) (int64, error)
	CountUnreadForUser(ctx context.Context, userID int64) (int, error)
	CountUnreadForRoom(ctx context.Context, roomID string, userID int64) (int, error)
}
