package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
)

// HistoryStore keeps the message log of every session.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a history store using the given database.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// GetHistory returns the last limit messages of a session, oldest first.
func (h *HistoryStore) GetHistory(ctx context.Context, sessionKey string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := h.db.sql.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, name
		 FROM history WHERE session_key = ?
		 ORDER BY id DESC LIMIT ?`,
		sessionKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			role, content           string
			toolCalls, callID, name sql.NullString
		)
		if err := rows.Scan(&role, &content, &toolCalls, &callID, &name); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}

		msg := domain.Message{
			Role:       domain.ParseRole(role),
			Content:    content,
			ToolCallID: callID.String,
			Name:       name.String,
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				h.db.log.Warn().Err(err).Str("session", sessionKey).Msg("dropping unreadable tool calls")
			}
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SaveTurn appends a user message and the assistant's answer in one transaction.
func (h *HistoryStore) SaveTurn(ctx context.Context, sessionKey, userMessage, assistantResponse string) error {
	tx, err := h.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.DateTime)
	for _, m := range []domain.Message{domain.UserMessage(userMessage), domain.AssistantMessage(assistantResponse)} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO history (session_key, role, content, created_at) VALUES (?, ?, ?, ?)`,
			sessionKey, string(m.Role), m.Content, now,
		); err != nil {
			return fmt.Errorf("inserting %s message: %w", m.Role, err)
		}
	}
	return tx.Commit()
}

// SaveMessage appends one message with its tool metadata.
func (h *HistoryStore) SaveMessage(ctx context.Context, sessionKey string, msg domain.Message) error {
	var toolCalls, callID, name sql.NullString
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("encoding tool calls: %w", err)
		}
		toolCalls = sql.NullString{String: string(data), Valid: true}
	}
	if msg.ToolCallID != "" {
		callID = sql.NullString{String: msg.ToolCallID, Valid: true}
	}
	if msg.Name != "" {
		name = sql.NullString{String: msg.Name, Valid: true}
	}

	_, err := h.db.sql.ExecContext(ctx,
		`INSERT INTO history (session_key, role, content, tool_calls, tool_call_id, name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionKey, string(msg.Role), msg.Content, toolCalls, callID, name,
		time.Now().UTC().Format(time.DateTime),
	)
	return err
}

// ClearHistory deletes every message of a session.
func (h *HistoryStore) ClearHistory(ctx context.Context, sessionKey string) error {
	_, err := h.db.sql.ExecContext(ctx, `DELETE FROM history WHERE session_key = ?`, sessionKey)
	return err
}
