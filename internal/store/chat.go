package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/pick27/internal/domain"
)

// ListMessages returns the conversation for userID, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	query := `
		SELECT id, role, text, recommendation_json, acted_upon, created_at
		FROM chat_messages WHERE user_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close chat message rows", "error", closeErr)
		}
	}()

	msgs := []domain.ChatMessage{}
	for rows.Next() {
		var (
			m         domain.ChatMessage
			recJSON   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.Role, &m.Text, &recJSON, &m.ActedUpon, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message row: %w", err)
		}
		if recJSON.Valid && recJSON.String != "" {
			var rec domain.Recommendation
			if err := json.Unmarshal([]byte(recJSON.String), &rec); err != nil {
				slog.Warn("discarding unreadable recommendation", "message_id", m.ID, "error", err)
			} else {
				m.Recommendation = &rec
			}
		}
		m.CreatedAt = time.UnixMilli(createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return msgs, nil
}

// AppendMessage stores msg at the end of the conversation.
func (s *SQLiteStore) AppendMessage(ctx context.Context, userID string, msg domain.ChatMessage) error {
	var recJSON any
	if msg.Recommendation != nil {
		data, err := json.Marshal(msg.Recommendation)
		if err != nil {
			return fmt.Errorf("encode recommendation: %w", err)
		}
		recJSON = string(data)
	}

	query := `
	INSERT INTO chat_messages (id, user_id, role, text, recommendation_json, acted_upon, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	return s.write(ctx, "append chat message", func() error {
		if _, err := s.db.ExecContext(ctx, query,
			msg.ID, userID, string(msg.Role), msg.Text, recJSON, msg.ActedUpon, msg.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
		return nil
	})
}

// MarkActedUpon flags a message as accepted.
func (s *SQLiteStore) MarkActedUpon(ctx context.Context, userID, messageID string) error {
	query := `UPDATE chat_messages SET acted_upon = 1 WHERE user_id = ? AND id = ?`
	return s.write(ctx, "mark acted upon", func() error {
		result, err := s.db.ExecContext(ctx, query, userID, messageID)
		if err != nil {
			return fmt.Errorf("mark acted upon: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("chat message %s not found", messageID)
		}
		return nil
	})
}

// ClearMessages deletes the conversation for userID.
func (s *SQLiteStore) ClearMessages(ctx context.Context, userID string) error {
	return s.write(ctx, "clear chat messages", func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear chat messages: %w", err)
		}
		return nil
	})
}

// GetQueuedNumbers returns the numbers waiting for the next draw, or nil.
func (s *SQLiteStore) GetQueuedNumbers(ctx context.Context, userID string) ([]domain.Number, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT numbers_json FROM queued_numbers WHERE user_id = ?`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan queued numbers: %w", err)
	}
	var nums []domain.Number
	if err := json.Unmarshal([]byte(raw), &nums); err != nil {
		slog.Warn("discarding unreadable queued numbers", "user_id", userID, "error", err)
		return nil, nil
	}
	return nums, nil
}

// SetQueuedNumbers replaces the queued numbers. An empty slice clears them.
func (s *SQLiteStore) SetQueuedNumbers(ctx context.Context, userID string, nums []domain.Number) error {
	if len(nums) == 0 {
		return s.write(ctx, "clear queued numbers", func() error {
			if _, err := s.db.ExecContext(ctx, `DELETE FROM queued_numbers WHERE user_id = ?`, userID); err != nil {
				return fmt.Errorf("clear queued numbers: %w", err)
			}
			return nil
		})
	}

	data, err := json.Marshal(nums)
	if err != nil {
		return fmt.Errorf("encode queued numbers: %w", err)
	}
	query := `
	INSERT INTO queued_numbers (user_id, numbers_json, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		numbers_json = excluded.numbers_json,
		updated_at = excluded.updated_at`

	return s.write(ctx, "set queued numbers", func() error {
		if _, err := s.db.ExecContext(ctx, query, userID, string(data), time.Now().Unix()); err != nil {
			return fmt.Errorf("set queued numbers: %w", err)
		}
		return nil
	})
}
