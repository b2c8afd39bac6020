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

// GetBalance returns the wallet balance for userID.
func (s *SQLiteStore) GetBalance(ctx context.Context, userID string) (int, bool, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE user_id = ?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("scan wallet balance: %w", err)
	}
	return balance, true, nil
}

// SetBalance creates or overwrites the wallet balance.
func (s *SQLiteStore) SetBalance(ctx context.Context, userID string, balance int) error {
	return s.write(ctx, "set balance", func() error {
		return setBalance(ctx, s.db, userID, balance)
	})
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setBalance(ctx context.Context, db execer, userID string, balance int) error {
	query := `
	INSERT INTO wallets (user_id, balance, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		balance = excluded.balance,
		updated_at = excluded.updated_at`
	if _, err := db.ExecContext(ctx, query, userID, balance, time.Now().Unix()); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// AddWalletEntry stores entry and the new balance in one transaction.
func (s *SQLiteStore) AddWalletEntry(ctx context.Context, userID string, entry domain.WalletEntry, balance int) error {
	numbers, err := json.Marshal(entry.Numbers)
	if err != nil {
		return fmt.Errorf("encode entry numbers: %w", err)
	}

	query := `
	INSERT INTO wallet_entries (
		id, user_id, cycle, numbers_json, matches, credit_change, winnings, processed, entered_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return s.inTx(ctx, "add wallet entry", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			entry.ID, userID, entry.Cycle, string(numbers),
			entry.Matches, entry.CreditChange, entry.Winnings, entry.Processed,
			entry.Date.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert wallet entry: %w", err)
		}
		return setBalance(ctx, tx, userID, balance)
	})
}

// SettleWalletEntries writes the scored entries and balance in one
// transaction.
func (s *SQLiteStore) SettleWalletEntries(ctx context.Context, userID string, entries []domain.WalletEntry, balance int) error {
	query := `
	UPDATE wallet_entries
	SET matches = ?, credit_change = ?, winnings = ?, processed = ?
	WHERE id = ? AND user_id = ?`

	return s.inTx(ctx, "settle wallet entries", func(tx *sql.Tx) error {
		for _, e := range entries {
			result, err := tx.ExecContext(ctx, query,
				e.Matches, e.CreditChange, e.Winnings, e.Processed, e.ID, userID)
			if err != nil {
				return fmt.Errorf("update wallet entry %s: %w", e.ID, err)
			}
			if rows, err := result.RowsAffected(); err == nil && rows == 0 {
				slog.Warn("SettleWalletEntries affected 0 rows", "user_id", userID, "entry_id", e.ID)
			}
		}
		return setBalance(ctx, tx, userID, balance)
	})
}

// ListWalletEntries returns the player's entries, newest first.
func (s *SQLiteStore) ListWalletEntries(ctx context.Context, userID string) ([]domain.WalletEntry, error) {
	query := `
		SELECT id, cycle, numbers_json, matches, credit_change, winnings, processed, entered_at
		FROM wallet_entries WHERE user_id = ?
		ORDER BY entered_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query wallet entries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close wallet entry rows", "error", closeErr)
		}
	}()

	entries := []domain.WalletEntry{}
	for rows.Next() {
		var (
			e         domain.WalletEntry
			numbers   string
			enteredAt int64
		)
		if err := rows.Scan(&e.ID, &e.Cycle, &numbers, &e.Matches, &e.CreditChange,
			&e.Winnings, &e.Processed, &enteredAt); err != nil {
			return nil, fmt.Errorf("scan wallet entry row: %w", err)
		}
		if err := json.Unmarshal([]byte(numbers), &e.Numbers); err != nil {
			slog.Warn("discarding unreadable entry numbers", "entry_id", e.ID, "error", err)
		}
		e.Date = time.UnixMilli(enteredAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet entries: %w", err)
	}
	return entries, nil
}
