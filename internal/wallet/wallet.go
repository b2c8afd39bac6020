// Package wallet keeps a player's credit balance and entry history.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/pick27/internal/domain"
)

// Repository persists balances and entries. ListWalletEntries returns newest
// first.
type Repository interface {
	GetBalance(ctx context.Context, userID string) (balance int, ok bool, err error)
	SetBalance(ctx context.Context, userID string, balance int) error
	AddWalletEntry(ctx context.Context, userID string, entry domain.WalletEntry, balance int) error
	SettleWalletEntries(ctx context.Context, userID string, entries []domain.WalletEntry, balance int) error
	ListWalletEntries(ctx context.Context, userID string) ([]domain.WalletEntry, error)
}

// Config sets the economics of the game.
type Config struct {
	EntryCost       int
	StartingBalance int
	// Payouts maps a match count to the credits it wins.
	Payouts map[int]int
}

// DefaultConfig returns the standard cost and payout table.
func DefaultConfig() Config {
	return Config{
		EntryCost:       10,
		StartingBalance: 1000,
		Payouts: map[int]int{
			3: 20,
			4: 100,
			5: 1000,
			6: 10000,
		},
	}
}

const writeTimeout = 5 * time.Second

// Wallet is one player's ledger. It is not safe for concurrent use.
type Wallet struct {
	repo    Repository
	userID  string
	cfg     Config
	balance int
	history []domain.WalletEntry
	logger  *slog.Logger
}

// Load reads the player's wallet, creating it with the starting balance on
// first use.
func Load(ctx context.Context, repo Repository, userID string, cfg Config) (*Wallet, error) {
	w := &Wallet{
		repo:   repo,
		userID: userID,
		cfg:    cfg,
		logger: slog.Default().With("user_id", userID),
	}

	balance, ok, err := repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	if !ok {
		balance = cfg.StartingBalance
		if err := repo.SetBalance(ctx, userID, balance); err != nil {
			return nil, fmt.Errorf("create wallet: %w", err)
		}
	}
	w.balance = balance

	entries, err := repo.ListWalletEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load wallet entries: %w", err)
	}
	for i := range entries {
		entries[i].Numbers = domain.FilterValid(entries[i].Numbers)
	}
	w.history = entries
	return w, nil
}

// Balance returns the current credit balance.
func (w *Wallet) Balance() int {
	return w.balance
}

// History returns entries newest first.
func (w *Wallet) History() []domain.WalletEntry {
	return cloneEntries(w.history)
}

// Recent returns at most n entries, newest first.
func (w *Wallet) Recent(n int) []domain.WalletEntry {
	if n > len(w.history) {
		n = len(w.history)
	}
	return cloneEntries(w.history[:n])
}

// RecordConfirmedEntry deducts the entry cost and stores the entry.
func (w *Wallet) RecordConfirmedEntry(req domain.EntryRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	entry := domain.WalletEntry{
		ID:           uuid.NewString(),
		Date:         req.Date,
		Numbers:      domain.FilterValid(req.Numbers),
		CreditChange: -w.cfg.EntryCost,
		Cycle:        req.Cycle,
	}
	balance := w.balance - w.cfg.EntryCost

	if err := w.repo.AddWalletEntry(ctx, w.userID, entry, balance); err != nil {
		return fmt.Errorf("add wallet entry: %w", err)
	}

	w.balance = balance
	w.history = append([]domain.WalletEntry{entry}, w.history...)
	w.logger.Info("entry recorded", "cycle", entry.Cycle, "balance", balance)
	return nil
}

// Settlement summarizes the outcome of a draw for one wallet.
type Settlement struct {
	Entries  int
	Winnings int
	Jackpot  bool
}

// Settle scores every unprocessed entry of the draw's cycle and credits the
// winnings.
func (w *Wallet) Settle(ctx context.Context, draw domain.Draw) (Settlement, error) {
	var (
		result  Settlement
		changed []domain.WalletEntry
		indexes []int
	)

	for i, entry := range w.history {
		if entry.Processed || entry.Cycle != draw.Cycle {
			continue
		}
		entry.Matches = countMatches(entry.Numbers, draw.WinningNumbers)
		entry.Winnings = w.cfg.Payouts[entry.Matches]
		entry.CreditChange = entry.Winnings - w.cfg.EntryCost
		entry.Processed = true

		result.Entries++
		result.Winnings += entry.Winnings
		if entry.Matches == domain.PickSize {
			result.Jackpot = true
		}
		changed = append(changed, entry)
		indexes = append(indexes, i)
	}

	if len(changed) == 0 {
		return result, nil
	}

	balance := w.balance + result.Winnings
	if err := w.repo.SettleWalletEntries(ctx, w.userID, changed, balance); err != nil {
		return Settlement{}, fmt.Errorf("settle wallet entries: %w", err)
	}

	for j, i := range indexes {
		w.history[i] = changed[j]
	}
	w.balance = balance

	w.logger.Info("draw settled",
		"cycle", draw.Cycle,
		"entries", result.Entries,
		"winnings", result.Winnings,
		"jackpot", result.Jackpot,
	)
	return result, nil
}

func countMatches(picked, winning []domain.Number) int {
	n := 0
	for _, v := range domain.UniqueValid(picked) {
		if slices.Contains(winning, v) {
			n++
		}
	}
	return n
}

func cloneEntries(in []domain.WalletEntry) []domain.WalletEntry {
	out := make([]domain.WalletEntry, len(in))
	for i, e := range in {
		e.Numbers = slices.Clone(e.Numbers)
		out[i] = e
	}
	return out
}
