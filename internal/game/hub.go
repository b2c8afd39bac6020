// Package game ties the draw clock, the shared draw history and every
// player's wallet, selection session and assistant together.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ashureev/pick27/internal/assistant"
	"github.com/ashureev/pick27/internal/domain"
	"github.com/ashureev/pick27/internal/drawclock"
	"github.com/ashureev/pick27/internal/draws"
	"github.com/ashureev/pick27/internal/metrics"
	"github.com/ashureev/pick27/internal/selection"
	"github.com/ashureev/pick27/internal/wallet"
)

const revealTimeout = 10 * time.Second

// Store is the persistence a Hub needs for its players.
type Store interface {
	wallet.Repository
	assistant.ChatStore
}

// Clock is the draw-cycle timer the hub follows.
type Clock interface {
	Snapshot() domain.TimerSnapshot
	Subscribe(fn drawclock.Listener)
	OnReveal(fn drawclock.RevealFunc)
}

// Listener receives a player's state after every change.
type Listener func(userID string, state State)

// Config holds the hub's collaborators and settings.
type Config struct {
	Store    Store
	Clock    Clock
	Draws    *draws.History
	Wallet   wallet.Config
	Reasoner assistant.Reasoner
	Rand     *rand.Rand
	Logger   *slog.Logger
	Now      func() time.Time
}

// Hub owns the lazily loaded players and fans clock events out to them.
type Hub struct {
	store     Store
	clock     Clock
	draws     *draws.History
	walletCfg wallet.Config
	reasoner  assistant.Reasoner
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	rng       *rand.Rand
	players   map[string]*Player
	listeners []Listener
}

// NewHub creates a hub and subscribes it to the clock.
func NewHub(cfg Config) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	h := &Hub{
		store:     cfg.Store,
		clock:     cfg.Clock,
		draws:     cfg.Draws,
		walletCfg: cfg.Wallet,
		reasoner:  cfg.Reasoner,
		logger:    cfg.Logger,
		now:       cfg.Now,
		rng:       cfg.Rand,
		players:   make(map[string]*Player),
	}
	cfg.Clock.Subscribe(h.handleTimer)
	cfg.Clock.OnReveal(h.handleReveal)
	return h
}

// OnChange registers fn for every player state change.
func (h *Hub) OnChange(fn Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Draws returns the shared draw history.
func (h *Hub) Draws() *draws.History {
	return h.draws
}

// Timer returns the current clock observation.
func (h *Hub) Timer() domain.TimerSnapshot {
	return h.clock.Snapshot()
}

// Player returns the player for userID, loading it on first use.
func (h *Hub) Player(ctx context.Context, userID string) (*Player, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if p, ok := h.players[userID]; ok {
		return p, nil
	}

	p, err := h.loadPlayer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", userID, err)
	}
	h.players[userID] = p
	metrics.SetPlayers(len(h.players))
	return p, nil
}

// loadPlayer builds a player. Called with h.mu held.
func (h *Hub) loadPlayer(ctx context.Context, userID string) (*Player, error) {
	logger := h.logger.With("user_id", userID)

	w, err := wallet.Load(ctx, h.store, userID, h.walletCfg)
	if err != nil {
		return nil, err
	}
	// Entries confirmed before a restart are scored against draws revealed
	// while the player was not loaded.
	for _, d := range h.draws.All() {
		if _, err := w.Settle(ctx, d); err != nil {
			logger.Warn("failed to settle missed draw", "cycle", d.Cycle, "error", err)
		}
	}

	timer := h.clock.Snapshot()
	session := selection.NewSession(w, timer,
		selection.WithLogger(logger),
		selection.WithConfirmed(timer.Cycle, pendingSets(w.History(), timer.Cycle)),
		selection.WithConfirmHook(func(_ domain.PickSet, auto bool) {
			metrics.RecordConfirmation(auto)
		}),
	)

	orch := assistant.New(assistant.Deps{
		UserID:    userID,
		Selection: session,
		Wallet:    w,
		Draws:     h.draws,
		Reasoner:  h.reasoner,
		Store:     h.store,
	},
		assistant.WithRand(rand.New(rand.NewPCG(h.rng.Uint64(), h.rng.Uint64()))),
		assistant.WithLogger(logger),
		assistant.WithClock(h.now),
	)
	if err := orch.Load(ctx); err != nil {
		return nil, err
	}

	logger.Info("player loaded", "balance", w.Balance())
	return &Player{
		hub:     h,
		userID:  userID,
		wallet:  w,
		session: session,
		orch:    orch,
	}, nil
}

// pendingSets returns the unsettled entries for cycle, oldest first. history
// is newest first.
func pendingSets(history []domain.WalletEntry, cycle int64) []domain.PickSet {
	var sets []domain.PickSet
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		if e.Cycle != cycle || e.Processed {
			continue
		}
		if set, ok := domain.NormalizePickSet(e.Numbers); ok {
			sets = append(sets, set)
		}
	}
	return sets
}

func (h *Hub) snapshotPlayers() []*Player {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Player, 0, len(h.players))
	for _, p := range h.players {
		out = append(out, p)
	}
	return out
}

func (h *Hub) notify(userID string, state State) {
	h.mu.Lock()
	listeners := append([]Listener(nil), h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(userID, state)
	}
}

func (h *Hub) handleTimer(snap domain.TimerSnapshot) {
	ctx := context.Background()
	for _, p := range h.snapshotPlayers() {
		h.notify(p.userID, p.observeTimer(ctx, snap))
	}
}

func (h *Hub) handleReveal(cycle int64, winning domain.PickSet) {
	ctx, cancel := context.WithTimeout(context.Background(), revealTimeout)
	defer cancel()

	draw := domain.Draw{
		Cycle:          cycle,
		Date:           h.now(),
		WinningNumbers: winning.Clone(),
	}
	for _, p := range h.snapshotPlayers() {
		result, err := p.settle(ctx, draw)
		if err != nil {
			h.logger.Error("failed to settle wallet", "user_id", p.userID, "cycle", cycle, "error", err)
			continue
		}
		draw.TotalWinnings += result.Winnings
		draw.JackpotWon = draw.JackpotWon || result.Jackpot
	}

	if err := h.draws.Add(ctx, draw); err != nil {
		h.logger.Error("failed to record draw", "cycle", cycle, "error", err)
	}
	metrics.RecordDraw(draw.JackpotWon)
	h.logger.Info("draw revealed",
		"cycle", cycle,
		"winning", draw.WinningNumbers,
		"total_winnings", draw.TotalWinnings,
		"jackpot", draw.JackpotWon,
	)
}
