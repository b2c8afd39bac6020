// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/pick27/internal/domain"
)

// Repository defines the interface for persisting players, their wallets and
// conversations, and the shared draw log.
type Repository interface {
	// GetUser retrieves a user by their user ID, or nil if unknown.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetBalance returns the wallet balance. ok is false when the player has
	// no wallet yet.
	GetBalance(ctx context.Context, userID string) (balance int, ok bool, err error)

	// SetBalance creates or overwrites the wallet balance.
	SetBalance(ctx context.Context, userID string, balance int) error

	// AddWalletEntry stores a confirmed entry and the new balance atomically.
	AddWalletEntry(ctx context.Context, userID string, entry domain.WalletEntry, balance int) error

	// SettleWalletEntries updates scored entries and the balance atomically.
	SettleWalletEntries(ctx context.Context, userID string, entries []domain.WalletEntry, balance int) error

	// ListWalletEntries returns the player's entries, newest first.
	ListWalletEntries(ctx context.Context, userID string) ([]domain.WalletEntry, error)

	// InsertDraw records a revealed draw.
	InsertDraw(ctx context.Context, draw domain.Draw) error

	// ListDraws returns up to limit draws, newest first.
	ListDraws(ctx context.Context, limit int) ([]domain.Draw, error)

	// ListMessages returns the conversation, oldest first.
	ListMessages(ctx context.Context, userID string) ([]domain.ChatMessage, error)

	// AppendMessage adds a message to the conversation.
	AppendMessage(ctx context.Context, userID string, msg domain.ChatMessage) error

	// MarkActedUpon flags a recommendation as accepted.
	MarkActedUpon(ctx context.Context, userID, messageID string) error

	// ClearMessages deletes the conversation.
	ClearMessages(ctx context.Context, userID string) error

	// GetQueuedNumbers returns the numbers waiting for the next draw, or nil.
	GetQueuedNumbers(ctx context.Context, userID string) ([]domain.Number, error)

	// SetQueuedNumbers replaces the queued numbers. Empty clears them.
	SetQueuedNumbers(ctx context.Context, userID string, nums []domain.Number) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
