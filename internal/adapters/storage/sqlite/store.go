// Package sqlite implements the durable conversation/message store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mkurev/avagate/internal/domain"
)

type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and ensures the
// schema is in place.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT,
		avatar_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		escalated BOOLEAN NOT NULL DEFAULT FALSE,
		escalation_reason TEXT,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		content TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'text',
		intent TEXT,
		sentiment REAL NOT NULL DEFAULT 0.0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_session_status ON conversations(session_id, status);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Store) FindActiveConversation(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, avatar_id, status, escalated, escalation_reason, started_at, ended_at
		FROM conversations
		WHERE session_id = ? AND status = ?
		LIMIT 1`, sessionID, domain.ConversationActive)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	return conv, nil
}

func (s *Store) CreateConversation(ctx context.Context, sessionID, avatarID string) (*domain.Conversation, error) {
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		// Anonymous sessions double as their own user id.
		UserID:    sessionID,
		AvatarID:  avatarID,
		Status:    domain.ConversationActive,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, session_id, user_id, avatar_id, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.SessionID, conv.UserID, conv.AvatarID, conv.Status, conv.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *Store) AppendMessage(ctx context.Context, conversationID string, sender domain.Sender, content string, kind domain.Kind) (*domain.Message, error) {
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Kind:           kind,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender, content, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Sender, msg.Content, msg.Kind, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

// ListMessages returns up to limit messages for the conversation,
// most-recent-last.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender, content, kind, intent, sentiment, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var msg domain.Message
		var intent sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Sender, &msg.Content, &msg.Kind, &intent, &msg.Sentiment, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Intent = intent.String
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	// Query is newest-first for the LIMIT; callers want oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Store) TagMessage(ctx context.Context, messageID, intent string, sentiment float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET intent = ?, sentiment = ? WHERE id = ?`,
		intent, sentiment, messageID)
	if err != nil {
		return fmt.Errorf("failed to tag message: %w", err)
	}
	return nil
}

func (s *Store) EndConversation(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET status = ?, ended_at = ? WHERE id = ?`,
		domain.ConversationEnded, time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("failed to end conversation: %w", err)
	}
	return nil
}

func (s *Store) MarkEscalated(ctx context.Context, conversationID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET escalated = TRUE, escalation_reason = ? WHERE id = ?`,
		reason, conversationID)
	if err != nil {
		return fmt.Errorf("failed to mark conversation escalated: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var conv domain.Conversation
	var userID, reason sql.NullString
	var endedAt sql.NullTime
	err := row.Scan(&conv.ID, &conv.SessionID, &userID, &conv.AvatarID, &conv.Status, &conv.Escalated, &reason, &conv.StartedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	conv.UserID = userID.String
	conv.EscalationReason = reason.String
	if endedAt.Valid {
		t := endedAt.Time
		conv.EndedAt = &t
	}
	return &conv, nil
}
