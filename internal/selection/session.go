// Package selection implements the per-player number-selection session: the
// candidate pick set, the confirmed sets of the current draw cycle and the
// auto-confirm protocol used when an accepted recommendation fills the
// candidate.
package selection

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/ashureev/pick27/internal/domain"
)

// Confirmation rejections. A rejected Confirm leaves the session untouched.
var (
	ErrLocked       = errors.New("selection is locked")
	ErrFull         = errors.New("maximum pick sets already confirmed for this draw")
	ErrTimerNotOpen = errors.New("draw is not open")
	ErrIncomplete   = errors.New("pick set needs six distinct numbers")
)

// ErrCannotPick is returned by callers that edit the candidate while CanPick
// is false.
var ErrCannotPick = errors.New("numbers cannot be picked right now")

// Wallet records confirmed entries and deducts their cost.
type Wallet interface {
	RecordConfirmedEntry(req domain.EntryRequest) error
}

// Phase is the derived state of a session.
type Phase string

// Session phases.
const (
	PhaseIdle           Phase = "idle"
	PhasePicking        Phase = "picking"
	PhaseReadyToConfirm Phase = "ready_to_confirm"
	PhaseLocked         Phase = "locked"
	PhaseFull           Phase = "full"
)

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the timestamp source for wallet entries.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithConfirmHook registers a callback invoked after every successful
// confirmation. auto is true when the auto-confirm rule fired it.
func WithConfirmHook(fn func(set domain.PickSet, auto bool)) Option {
	return func(s *Session) { s.onConfirm = fn }
}

// WithConfirmed restores sets already confirmed for cycle, such as entries a
// player made before a restart. It has no effect when cycle is not the
// session's current cycle; at most MaxSetsPerCycle sets are kept.
func WithConfirmed(cycle int64, sets []domain.PickSet) Option {
	return func(s *Session) {
		if cycle != s.timer.Cycle || len(sets) == 0 {
			return
		}
		s.confirmed = nil
		for _, set := range sets[:min(len(sets), domain.MaxSetsPerCycle)] {
			s.confirmed = append(s.confirmed, set.Clone())
		}
		c := cycle
		s.confirmedCycle = &c
	}
}

// Session is the selection state for one player and one draw cycle. It is not
// safe for concurrent use; the owner serializes calls.
type Session struct {
	wallet Wallet
	timer  domain.TimerSnapshot

	picked           []domain.Number
	locked           bool
	confirmed        []domain.PickSet
	confirmedCycle   *int64
	addingNewSet     bool
	autoConfirmArmed bool

	now       func() time.Time
	logger    *slog.Logger
	onConfirm func(domain.PickSet, bool)
}

// NewSession creates an empty session observing timer.
func NewSession(wallet Wallet, timer domain.TimerSnapshot, opts ...Option) *Session {
	s := &Session{
		wallet: wallet,
		timer:  timer,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MutatePicked applies transform to the candidate set unless the session is
// locked. It returns the resulting candidate and whether transform ran.
func (s *Session) MutatePicked(transform func(prev []domain.Number) []domain.Number) ([]domain.Number, bool) {
	if s.locked {
		s.logger.Debug("selection locked, ignoring pick change")
		return slices.Clone(s.picked), false
	}
	s.picked = transform(slices.Clone(s.picked))
	s.evaluateAutoConfirm()
	return slices.Clone(s.picked), true
}

// Confirm promotes the candidate into the confirmed sets and records it with
// the wallet.
func (s *Session) Confirm() error {
	return s.confirm(false)
}

func (s *Session) confirm(auto bool) error {
	if err := s.checkConfirm(); err != nil {
		s.logger.Debug("confirmation rejected", "reason", err, "cycle", s.timer.Cycle)
		return err
	}

	set, _ := domain.NormalizePickSet(s.picked)
	cycle := s.timer.Cycle

	s.locked = true
	err := s.wallet.RecordConfirmedEntry(domain.EntryRequest{
		Date:    s.now(),
		Numbers: set.Clone(),
		Cycle:   cycle,
	})
	s.locked = false
	if err != nil {
		s.logger.Warn("wallet rejected confirmed entry", "cycle", cycle, "error", err)
		return fmt.Errorf("record confirmed entry: %w", err)
	}

	s.confirmed = append(s.confirmed, set)
	s.picked = nil
	s.addingNewSet = false
	s.autoConfirmArmed = false
	s.confirmedCycle = &cycle

	s.logger.Info("pick set confirmed",
		"cycle", cycle,
		"numbers", set,
		"sets", len(s.confirmed),
		"auto", auto,
	)
	if s.onConfirm != nil {
		s.onConfirm(set.Clone(), auto)
	}
	return nil
}

func (s *Session) checkConfirm() error {
	switch {
	case s.locked:
		return ErrLocked
	case len(s.confirmed) >= domain.MaxSetsPerCycle:
		return ErrFull
	case !s.timer.IsOpen():
		return ErrTimerNotOpen
	}
	if len(s.picked) != domain.PickSize {
		return ErrIncomplete
	}
	if _, ok := domain.NormalizePickSet(s.picked); !ok {
		return ErrIncomplete
	}
	return nil
}

// StartNewPickSetSelection clears the candidate and opens a slot for another
// set.
func (s *Session) StartNewPickSetSelection() {
	s.picked = nil
	s.locked = false
	s.addingNewSet = true
	s.evaluateAutoConfirm()
}

// Reset clears every field to its default.
func (s *Session) Reset() {
	s.picked = nil
	s.locked = false
	s.confirmed = nil
	s.confirmedCycle = nil
	s.addingNewSet = false
	s.autoConfirmArmed = false
}

// ArmAutoConfirm sets the one-shot auto-confirm flag.
func (s *Session) ArmAutoConfirm(armed bool) {
	s.autoConfirmArmed = armed
	s.evaluateAutoConfirm()
}

// ObserveTimer feeds a draw clock observation into the session. A cycle index
// different from the last one observed resets the session.
func (s *Session) ObserveTimer(snap domain.TimerSnapshot) {
	if snap.Cycle != s.timer.Cycle {
		s.logger.Debug("draw cycle changed, resetting selection",
			"from", s.timer.Cycle,
			"to", snap.Cycle,
		)
		s.Reset()
	}
	s.timer = snap
	s.evaluateAutoConfirm()
}

// evaluateAutoConfirm fires a confirmation when an armed candidate is
// complete and the draw accepts it. The arm is consumed by the attempt.
func (s *Session) evaluateAutoConfirm() {
	if !s.autoConfirmArmed ||
		len(s.picked) != domain.PickSize ||
		!s.timer.IsOpen() ||
		s.locked ||
		len(s.confirmed) >= domain.MaxSetsPerCycle {
		return
	}
	s.autoConfirmArmed = false
	if err := s.confirm(true); err != nil {
		s.logger.Warn("auto-confirm failed", "cycle", s.timer.Cycle, "error", err)
	}
}

// CanPick reports whether numbers may be added to the candidate.
func (s *Session) CanPick() bool {
	return s.timer.IsOpen() && !s.locked && (s.addingNewSet || len(s.confirmed) == 0)
}

// CanConfirm reports whether Confirm would be offered to the player.
func (s *Session) CanConfirm() bool {
	return s.CanPick() && len(s.picked) == domain.PickSize
}

// Phase derives the current state of the session.
func (s *Session) Phase() Phase {
	switch {
	case s.locked:
		return PhaseLocked
	case len(s.confirmed) >= domain.MaxSetsPerCycle:
		return PhaseFull
	case len(s.picked) == domain.PickSize:
		return PhaseReadyToConfirm
	case len(s.picked) > 0 || s.addingNewSet:
		return PhasePicking
	default:
		return PhaseIdle
	}
}

// Timer returns the last observed draw clock snapshot.
func (s *Session) Timer() domain.TimerSnapshot {
	return s.timer
}

// ConfirmedCount returns how many sets were confirmed this cycle.
func (s *Session) ConfirmedCount() int {
	return len(s.confirmed)
}

// ConfirmedNumbers flattens every confirmed set.
func (s *Session) ConfirmedNumbers() []domain.Number {
	var out []domain.Number
	for _, set := range s.confirmed {
		out = append(out, set...)
	}
	return out
}

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	Timer            domain.TimerSnapshot `json:"timer"`
	Picked           []domain.Number      `json:"picked"`
	Locked           bool                 `json:"locked"`
	ConfirmedSets    []domain.PickSet     `json:"confirmedSets"`
	ConfirmedCycle   *int64               `json:"confirmedCycle"`
	AddingNewSet     bool                 `json:"addingNewSet"`
	AutoConfirmArmed bool                 `json:"autoConfirmArmed"`
	Phase            Phase                `json:"phase"`
	CanPick          bool                 `json:"canPick"`
	CanConfirm       bool                 `json:"canConfirm"`
}

// Snapshot copies the current state together with its derived flags.
func (s *Session) Snapshot() Snapshot {
	sets := make([]domain.PickSet, len(s.confirmed))
	for i, set := range s.confirmed {
		sets[i] = set.Clone()
	}
	var cycle *int64
	if s.confirmedCycle != nil {
		c := *s.confirmedCycle
		cycle = &c
	}
	picked := slices.Clone(s.picked)
	if picked == nil {
		picked = []domain.Number{}
	}
	return Snapshot{
		Timer:            s.timer,
		Picked:           picked,
		Locked:           s.locked,
		ConfirmedSets:    sets,
		ConfirmedCycle:   cycle,
		AddingNewSet:     s.addingNewSet,
		AutoConfirmArmed: s.autoConfirmArmed,
		Phase:            s.Phase(),
		CanPick:          s.CanPick(),
		CanConfirm:       s.CanConfirm(),
	}
}
