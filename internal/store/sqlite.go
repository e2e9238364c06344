package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vmsouza/conversa/internal/chat"
	"github.com/vmsouza/conversa/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the default store in
// development, where a PostgreSQL instance is not required.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/conversa.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/conversa.db"
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS usuario (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nome TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		senha TEXT NOT NULL,
		data_cadastro TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chat_sala (
		id TEXT PRIMARY KEY,
		criada_em TIMESTAMP NOT NULL,
		ultima_atividade TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_mensagem (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sala_id TEXT NOT NULL,
		usuario_id INTEGER NOT NULL,
		mensagem TEXT NOT NULL,
		data_envio TIMESTAMP NOT NULL,
		lida_em TIMESTAMP,
		FOREIGN KEY (sala_id) REFERENCES chat_sala(id) ON DELETE CASCADE,
		FOREIGN KEY (usuario_id) REFERENCES usuario(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS chat_participante (
		sala_id TEXT NOT NULL,
		usuario_id INTEGER NOT NULL,
		ultima_leitura TIMESTAMP,
		PRIMARY KEY (sala_id, usuario_id),
		FOREIGN KEY (sala_id) REFERENCES chat_sala(id) ON DELETE CASCADE,
		FOREIGN KEY (usuario_id) REFERENCES usuario(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_mensagem_sala ON chat_mensagem(sala_id);
	CREATE INDEX IF NOT EXISTS idx_mensagem_data ON chat_mensagem(data_envio);
	CREATE INDEX IF NOT EXISTS idx_participante_usuario ON chat_participante(usuario_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database handle.
func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser inserts a new user. The password must already be hashed.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO usuario (nome, email, senha, data_cadastro)
		VALUES (?, ?, ?, ?)
	`, name, email, passwordHash, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by id.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, nome, email, senha, data_cadastro
		FROM usuario WHERE id = ?
	`, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, nome, email, senha, data_cadastro
		FROM usuario WHERE email = ?
	`, email))
}

// EmailExists reports whether an email is already registered.
func (s *SQLiteStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM usuario WHERE email = ?
	`, email).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SearchUsers finds users by partial name or email match, excluding the
// searching user.
func (s *SQLiteStore) SearchUsers(ctx context.Context, term string, excludeID int64, limit int) ([]models.UserRef, error) {
	like := "%" + term + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nome, email FROM usuario
		WHERE id != ? AND (nome LIKE ? OR email LIKE ?)
		ORDER BY nome
		LIMIT ?
	`, excludeID, like, like, limit)
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
// with both participant rows on first use.
func (s *SQLiteStore) CreateOrGetRoom(ctx context.Context, userA, userB int64) (*models.Room, error) {
	roomID := chat.CanonicalRoomID(userA, userB)

	if room, err := s.GetRoom(ctx, roomID); err != nil || room != nil {
		return room, err
	}

	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO chat_sala (id, criada_em, ultima_atividade)
		VALUES (?, ?, ?)
	`, roomID, now, now)
	if err != nil {
		return nil, err
	}
	for _, userID := range [2]int64{userA, userB} {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO chat_participante (sala_id, usuario_id)
			VALUES (?, ?)
		`, roomID, userID)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetRoom(ctx, roomID)
}

// GetRoom retrieves a room by id.
func (s *SQLiteStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room := &models.Room{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, criada_em, ultima_atividade
		FROM chat_sala WHERE id = ?
	`, roomID).Scan(&room.ID, &room.CreatedAt, &room.LastActivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// TouchRoom updates the room's last-activity timestamp.
func (s *SQLiteStore) TouchRoom(ctx context.Context, roomID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_sala SET ultima_atividade = ? WHERE id = ?
	`, time.Now(), roomID)
	return err
}

// IsParticipant reports whether userID belongs to the room.
func (s *SQLiteStore) IsParticipant(ctx context.Context, roomID string, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM chat_participante WHERE sala_id = ? AND usuario_id = ?
	`, roomID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListConversations returns the user's conversations ordered by most recent
// activity.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID int64, limit, offset int) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
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
				WHERE sala_id = cs.id AND usuario_id != ? AND lida_em IS NULL
			)
		FROM chat_participante cp
		INNER JOIN chat_sala cs ON cp.sala_id = cs.id
		INNER JOIN chat_participante cp2 ON cs.id = cp2.sala_id AND cp2.usuario_id != ?
		INNER JOIN usuario u ON cp2.usuario_id = u.id
		WHERE cp.usuario_id = ?
		ORDER BY cs.ultima_atividade DESC
		LIMIT ? OFFSET ?
	`, userID, userID, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var c models.Conversation
		var lastMsg sql.NullString
		if err := rows.Scan(
			&c.RoomID,
			&c.LastActivity,
			&c.OtherUser.ID, &c.OtherUser.Name, &c.OtherUser.Email,
			&lastMsg,
			&c.Unread,
		); err != nil {
			return nil, err
		}
		if lastMsg.Valid {
			c.LastMessage = &lastMsg.String
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// InsertMessage persists a message and returns it with the store-assigned id
// and timestamp.
func (s *SQLiteStore) InsertMessage(ctx context.Context, roomID string, senderID int64, body string) (*models.Message, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_mensagem (sala_id, usuario_id, mensagem, data_envio)
		VALUES (?, ?, ?, ?)
	`, roomID, senderID, body, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Message{
		ID:       id,
		RoomID:   roomID,
		SenderID: senderID,
		Body:     body,
		SentAt:   now,
	}, nil
}

// ListMessages returns a room's messages, newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sala_id, usuario_id, mensagem, data_envio, lida_em
		FROM chat_mensagem
		WHERE sala_id = ?
		ORDER BY data_envio DESC, id DESC
		LIMIT ? OFFSET ?
	`, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		var readAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Body, &m.SentAt, &readAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			t := readAt.Time
			m.ReadAt = &t
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkMessagesRead marks every unread message in the room NOT sent by the
// reader as read now.
func (s *SQLiteStore) MarkMessagesRead(ctx context.Context, roomID string, readerID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_mensagem
		SET lida_em = ?
		WHERE sala_id = ? AND usuario_id != ? AND lida_em IS NULL
	`, time.Now(), roomID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUnreadForUser counts unread messages addressed to the user across all
// their rooms.
func (s *SQLiteStore) CountUnreadForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_mensagem cm
		INNER JOIN chat_participante cp ON cm.sala_id = cp.sala_id
		WHERE cp.usuario_id = ? AND cm.usuario_id != ? AND cm.lida_em IS NULL
	`, userID, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountUnreadForRoom counts unread messages addressed to the user in one room.
func (s *SQLiteStore) CountUnreadForRoom(ctx context.Context, roomID string, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_mensagem
		WHERE sala_id = ? AND usuario_id != ? AND lida_em IS NULL
	`, roomID, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
