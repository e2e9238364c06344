package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmsouza/conversa/internal/chat"
	"github.com/vmsouza/conversa/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser inserts a new user. The password must already be hashed.
func (s *PostgresStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO usuario (nome, email, senha)
		VALUES ($1, $2, $3)
		RETURNING id, nome, email, senha, data_cadastro
	`, name, email, passwordHash).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, nome, email, senha, data_cadastro
		FROM usuario WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email, used to verify login credentials.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, nome, email, senha, data_cadastro
		FROM usuario WHERE email = $1
	`, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// EmailExists reports whether an email is already registered.
func (s *PostgresStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM usuario WHERE email = $1)
	`, email).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// SearchUsers finds users by partial name or email match, excluding the
// searching user.
func (s *PostgresStore) SearchUsers(ctx context.Context, term string, excludeID int64, limit int) ([]models.UserRef, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, nome, email FROM usuario
		WHERE id != $1 AND (nome ILIKE $2 OR email ILIKE $2)
		ORDER BY nome
		LIMIT $3
	`, excludeID, "%"+term+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.UserRef
	for rows.Next() {
		var u models.UserRef
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateOrGetRoom returns the room for the user pair, creating it together
// with both participant rows on first use. Idempotent: concurrent calls for
// the same pair converge on the same room.
func (s *PostgresStore) CreateOrGetRoom(ctx context.Context, userA, userB int64) (*models.Room, error) {
	roomID := chat.CanonicalRoomID(userA, userB)

	if room, err := s.GetRoom(ctx, roomID); err != nil || room != nil {
		return room, err
	}

	now := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_sala (id, criada_em, ultima_atividade)
		VALUES ($1, $2, $2)
		ON CONFLICT (id) DO NOTHING
	`, roomID, now)
	if err != nil {
		return nil, err
	}
	for _, userID := range [2]int64{userA, userB} {
		_, err = tx.Exec(ctx, `
			INSERT INTO chat_participante (sala_id, usuario_id)
			VALUES ($1, $2)
			ON CONFLICT (sala_id, usuario_id) DO NOTHING
		`, roomID, userID)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.GetRoom(ctx, roomID)
}

// GetRoom retrieves a room by id.
func (s *PostgresStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, criada_em, ultima_atividade
		FROM chat_sala WHERE id = $1
	`, roomID).Scan(&room.ID, &room.CreatedAt, &room.LastActivity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// TouchRoom updates the room's last-activity timestamp. Called after every
// message insert, before fan-out.
func (s *PostgresStore) TouchRoom(ctx context.Context, roomID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE chat_sala SET ultima_atividade = NOW() WHERE id = $1
	`, roomID)
	return err
}

// IsParticipant reports whether userID belongs to the room. Gates every
// message read and write.
func (s *PostgresStore) IsParticipant(ctx context.Context, roomID string, userID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM chat_participante
			WHERE sala_id = $1 AND usuario_id = $2
		)
	`, roomID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListConversations returns the user's conversations ordered by most recent
// activity, each with the other participant, the latest message text and the
// unread counter.
func (s *PostgresStore) ListConversations(ctx context.Context, userID int64, limit, offset int) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			cs.id,
			cs.ultima_atividade,
			u.id, u.nome, u.email,
			(
				SELECT mensagem FROM chat_mensagem
				WHERE sala_id = cs.id
				ORDER BY data_envio DESC LIMIT 1
			),
			(
				SELECT COUNT(*) FROM chat_mensagem
				WHERE sala_id = cs.id AND usuario_id != $1 AND lida_em IS NULL
			)
		FROM chat_participante cp
		INNER JOIN chat_sala cs ON cp.sala_id = cs.id
		INNER JOIN chat_participante cp2 ON cs.id = cp2.sala_id AND cp2.usuario_id != $1
		INNER JOIN usuario u ON cp2.usuario_id = u.id
		WHERE cp.usuario_id = $1
		ORDER BY cs.ultima_atividade DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(
			&c.RoomID,
			&c.LastActivity,
			&c.OtherUser.ID, &c.OtherUser.Name, &c.OtherUser.Email,
			&c.LastMessage,
			&c.Unread,
		); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// InsertMessage persists a message and returns it with the store-assigned id
// and timestamp.
func (s *PostgresStore) InsertMessage(ctx context.Context, roomID string, senderID int64, body string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat_mensagem (sala_id, usuario_id, mensagem, data_envio)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, sala_id, usuario_id, mensagem, data_envio, lida_em
	`, roomID, senderID, body).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.SenderID,
		&msg.Body,
		&msg.SentAt,
		&msg.ReadAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns a room's messages, newest first.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sala_id, usuario_id, mensagem, data_envio, lida_em
		FROM chat_mensagem
		WHERE sala_id = $1
		ORDER BY data_envio DESC, id DESC
		LIMIT $2 OFFSET $3
	`, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Body, &m.SentAt, &m.ReadAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkMessagesRead marks every unread message in the room NOT sent by the
// reader as read now. Returns the number of messages affected.
func (s *PostgresStore) MarkMessagesRead(ctx context.Context, roomID string, readerID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE chat_mensagem
		SET lida_em = NOW()
		WHERE sala_id = $1 AND usuario_id != $2 AND lida_em IS NULL
	`, roomID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountUnreadForUser counts unread messages addressed to the user across all
// their rooms. Feeds the unread badge.
func (s *PostgresStore) CountUnreadForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM chat_mensagem cm
		INNER JOIN chat_participante cp ON cm.sala_id = cp.sala_id
		WHERE cp.usuario_id = $1 AND cm.usuario_id != $1 AND cm.lida_em IS NULL
	`, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountUnreadForRoom counts unread messages addressed to the user in one room.
func (s *PostgresStore) CountUnreadForRoom(ctx context.Context, roomID string, userID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM chat_mensagem
		WHERE sala_id = $1 AND usuario_id != $2 AND lida_em IS NULL
	`, roomID, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
