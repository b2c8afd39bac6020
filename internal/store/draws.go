package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/pick27/internal/domain"
)

// InsertDraw records a revealed draw. Re-inserting a cycle replaces it.
func (s *SQLiteStore) InsertDraw(ctx context.Context, draw domain.Draw) error {
	winning, err := json.Marshal(draw.WinningNumbers)
	if err != nil {
		return fmt.Errorf("encode winning numbers: %w", err)
	}

	query := `
	INSERT INTO draws (cycle, drawn_at, winning_json, jackpot_won, total_winnings)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(cycle) DO UPDATE SET
		drawn_at = excluded.drawn_at,
		winning_json = excluded.winning_json,
		jackpot_won = excluded.jackpot_won,
		total_winnings = excluded.total_winnings`

	return s.write(ctx, "insert draw", func() error {
		if _, err := s.db.ExecContext(ctx, query,
			draw.Cycle, draw.Date.UnixMilli(), string(winning), draw.JackpotWon, draw.TotalWinnings,
		); err != nil {
			return fmt.Errorf("insert draw: %w", err)
		}
		return nil
	})
}

// ListDraws returns up to limit draws, newest first.
func (s *SQLiteStore) ListDraws(ctx context.Context, limit int) ([]domain.Draw, error) {
	query := `
		SELECT cycle, drawn_at, winning_json, jackpot_won, total_winnings
		FROM draws ORDER BY cycle DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query draws: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close draw rows", "error", closeErr)
		}
	}()

	draws := []domain.Draw{}
	for rows.Next() {
		var (
			d       domain.Draw
			drawnAt int64
			winning string
		)
		if err := rows.Scan(&d.Cycle, &drawnAt, &winning, &d.JackpotWon, &d.TotalWinnings); err != nil {
			return nil, fmt.Errorf("scan draw row: %w", err)
		}
		if err := json.Unmarshal([]byte(winning), &d.WinningNumbers); err != nil {
			slog.Warn("discarding unreadable winning numbers", "cycle", d.Cycle, "error", err)
		}
		d.Date = time.UnixMilli(drawnAt)
		draws = append(draws, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate draws: %w", err)
	}
	return draws, nil
}
