package game

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/ashureev/pick27/internal/assistant"
	"github.com/ashureev/pick27/internal/domain"
	"github.com/ashureev/pick27/internal/selection"
	"github.com/ashureev/pick27/internal/wallet"
)

// ErrInvalidNumber is returned when a toggled number is outside 1..27.
var ErrInvalidNumber = errors.New("number must be between 1 and 27")

// State is what a client sees of its player.
type State struct {
	UserID        string             `json:"userId"`
	Selection     selection.Snapshot `json:"selection"`
	Balance       int                `json:"balance"`
	QueuedNumbers []domain.Number    `json:"queuedNumbers"`
	AssistantBusy bool               `json:"assistantBusy"`
	AcceptLabel   string             `json:"acceptLabel"`
}

// Player serializes every reaction for one user behind its mutex.
type Player struct {
	hub    *Hub
	userID string

	mu      sync.Mutex
	wallet  *wallet.Wallet
	session *selection.Session
	orch    *assistant.Orchestrator
}

// UserID returns the player's identifier.
func (p *Player) UserID() string {
	return p.userID
}

// State returns the player's current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Player) stateLocked() State {
	queued := p.orch.Queued()
	if queued == nil {
		queued = []domain.Number{}
	}
	return State{
		UserID:        p.userID,
		Selection:     p.session.Snapshot(),
		Balance:       p.wallet.Balance(),
		QueuedNumbers: queued,
		AssistantBusy: p.orch.InFlight(),
		AcceptLabel:   p.orch.AcceptLabel(),
	}
}

// update runs fn under the lock and broadcasts the resulting state.
func (p *Player) update(fn func() error) (State, error) {
	p.mu.Lock()
	err := fn()
	state := p.stateLocked()
	p.mu.Unlock()

	if err == nil {
		p.hub.notify(p.userID, state)
	}
	return state, err
}

// TogglePick adds n to the candidate set, or removes it if already picked.
// A seventh number is ignored.
func (p *Player) TogglePick(n int) (State, error) {
	num := domain.Number(n)
	if !num.Valid() {
		return p.State(), ErrInvalidNumber
	}
	return p.update(func() error {
		if !p.session.CanPick() {
			return selection.ErrCannotPick
		}
		p.session.MutatePicked(func(prev []domain.Number) []domain.Number {
			if i := slices.Index(prev, num); i >= 0 {
				return slices.Delete(prev, i, i+1)
			}
			if len(prev) >= domain.PickSize {
				return prev
			}
			return append(prev, num)
		})
		return nil
	})
}

// Confirm confirms the candidate set.
func (p *Player) Confirm() (State, error) {
	return p.update(p.session.Confirm)
}

// StartNewSet opens a fresh candidate after a confirmation.
func (p *Player) StartNewSet() (State, error) {
	return p.update(func() error {
		p.session.StartNewPickSetSelection()
		return nil
	})
}

// Reset clears the selection for the current cycle.
func (p *Player) Reset() (State, error) {
	return p.update(func() error {
		p.session.Reset()
		return nil
	})
}

// Messages returns the conversation, oldest first.
func (p *Player) Messages() []domain.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orch.Messages()
}

// History returns the wallet entries, newest first.
func (p *Player) History() []domain.WalletEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wallet.History()
}

// Ask sends a chat message and waits for the assistant's reply. The player
// lock is released while the reasoner runs so the game keeps reacting.
func (p *Player) Ask(ctx context.Context, text string) (domain.ChatMessage, State, error) {
	p.mu.Lock()
	text, err := p.orch.AddUserMessage(ctx, text)
	if err != nil {
		state := p.stateLocked()
		p.mu.Unlock()
		return domain.ChatMessage{}, state, err
	}
	req, err := p.orch.PrepareRequest(text)
	state := p.stateLocked()
	p.mu.Unlock()
	if err != nil {
		return domain.ChatMessage{}, state, err
	}
	p.hub.notify(p.userID, state)

	resp, reasonErr := p.orch.Reason(ctx, req)

	p.mu.Lock()
	// The reply is recorded even if the caller went away.
	reply := p.orch.CompleteRequest(context.WithoutCancel(ctx), resp, reasonErr)
	state = p.stateLocked()
	p.mu.Unlock()

	p.hub.notify(p.userID, state)
	return reply, state, nil
}

// Accept acts on the recommendation in message messageID.
func (p *Player) Accept(ctx context.Context, messageID string, numbers []domain.Number) (assistant.AcceptOutcome, State, error) {
	var outcome assistant.AcceptOutcome
	state, err := p.update(func() error {
		var err error
		outcome, err = p.orch.AcceptRecommendation(ctx, numbers, messageID)
		return err
	})
	return outcome, state, err
}

// ClearHistory empties the conversation and any queued numbers.
func (p *Player) ClearHistory(ctx context.Context) (State, error) {
	return p.update(func() error {
		return p.orch.ClearHistory(ctx)
	})
}

func (p *Player) observeTimer(ctx context.Context, snap domain.TimerSnapshot) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session.ObserveTimer(snap)
	p.orch.HandleTimer(ctx, snap)
	return p.stateLocked()
}

func (p *Player) settle(ctx context.Context, draw domain.Draw) (wallet.Settlement, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wallet.Settle(ctx, draw)
}
