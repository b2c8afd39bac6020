// Package assistant turns chat requests into number recommendations and feeds
// accepted recommendations into the player's selection session.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/pick27/internal/analytics"
	"github.com/ashureev/pick27/internal/domain"
	"github.com/ashureev/pick27/internal/metrics"
)

var (
	ErrMessageNotFound    = errors.New("message not found")
	ErrNotARecommendation = errors.New("message carries no recommendation")
	ErrAlreadyActedUpon   = errors.New("recommendation already acted upon")
	ErrInvalidPickSet     = errors.New("numbers must be one of the recommended sets of six distinct numbers from 1 to 27")
	ErrRequestInFlight    = errors.New("a recommendation request is already in progress")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrNoReasoner         = errors.New("no reasoning backend configured")
)

// Reply texts shown in the conversation.
const (
	msgFallback        = "I'm having trouble right now. Let me suggest some numbers anyway!"
	msgDefaultRec      = "Here are some numbers for you:"
	msgDefaultReply    = "I'm here to help with number recommendations!"
	msgApplied         = "🎯 Perfect! Your numbers are set and will be automatically confirmed. Good luck!"
	msgFull            = "🚫 You've already confirmed 3 sets for this draw. Cannot add more."
	msgQueued          = "✨ Great choice! Your numbers are all set for the next draw!"
	msgQueueApplied    = "✅ Your queued numbers have been applied to the current draw! Don't forget to confirm them!"
	msgQueueRejected   = "🚫 Cannot apply queued numbers. You've already confirmed 3 sets for this draw."
	fallbackReasoning  = "A nice balanced mix for you!"
	fallbackConfidence = 0.75
)

// Reasoner answers a chat message with an optional recommendation.
type Reasoner interface {
	Reason(ctx context.Context, req domain.ReasonRequest) (*domain.ReasonResponse, error)
}

// Selection is the part of the selection session the orchestrator drives.
type Selection interface {
	Timer() domain.TimerSnapshot
	ConfirmedCount() int
	ConfirmedNumbers() []domain.Number
	StartNewPickSetSelection()
	ArmAutoConfirm(armed bool)
	MutatePicked(transform func([]domain.Number) []domain.Number) ([]domain.Number, bool)
}

// WalletView exposes the balance and recent entries.
type WalletView interface {
	Balance() int
	Recent(n int) []domain.WalletEntry
}

// DrawView exposes the draw history accessors used in the context snapshot.
type DrawView interface {
	Recent(n int) []domain.Draw
	HotNumbers(n int) []domain.Number
	ColdNumbers(n int) []domain.Number
	RecentPatterns() string
}

// ChatStore persists the conversation and the queued numbers.
type ChatStore interface {
	ListMessages(ctx context.Context, userID string) ([]domain.ChatMessage, error)
	AppendMessage(ctx context.Context, userID string, msg domain.ChatMessage) error
	MarkActedUpon(ctx context.Context, userID, messageID string) error
	ClearMessages(ctx context.Context, userID string) error
	GetQueuedNumbers(ctx context.Context, userID string) ([]domain.Number, error)
	SetQueuedNumbers(ctx context.Context, userID string, nums []domain.Number) error
}

// Deps are the collaborators of an Orchestrator. Reasoner and Store may be
// nil: without a reasoner every request is answered by the local fallback,
// without a store nothing survives a restart.
type Deps struct {
	UserID    string
	Selection Selection
	Wallet    WalletView
	Draws     DrawView
	Reasoner  Reasoner
	Store     ChatStore
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRand injects the random source used for fallback picks.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// WithClock overrides message timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithIDs overrides message ID generation.
func WithIDs(next func() string) Option {
	return func(o *Orchestrator) { o.newID = next }
}

// Orchestrator owns one player's conversation. It is not safe for concurrent
// use; the owner serializes calls and may release its lock between
// PrepareRequest and CompleteRequest.
type Orchestrator struct {
	deps     Deps
	messages []domain.ChatMessage
	queued   []domain.Number
	inFlight bool

	rng    *rand.Rand
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// New creates an orchestrator with an empty conversation.
func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:   deps,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = analytics.NewRand(0)
	}
	o.logger = o.logger.With("user_id", deps.UserID)
	return o
}

// Load restores the conversation and queued numbers from the store.
func (o *Orchestrator) Load(ctx context.Context) error {
	if o.deps.Store == nil {
		return nil
	}
	msgs, err := o.deps.Store.ListMessages(ctx, o.deps.UserID)
	if err != nil {
		return fmt.Errorf("load chat history: %w", err)
	}
	queued, err := o.deps.Store.GetQueuedNumbers(ctx, o.deps.UserID)
	if err != nil {
		return fmt.Errorf("load queued numbers: %w", err)
	}
	for i := range msgs {
		if msgs[i].Recommendation != nil {
			msgs[i].Recommendation.Numbers = msgs[i].Recommendation.Numbers.Sanitize()
		}
	}
	o.messages = msgs
	if set, ok := domain.NormalizePickSet(queued); ok {
		o.queued = set
	}
	return nil
}

// Messages returns a copy of the conversation, oldest first.
func (o *Orchestrator) Messages() []domain.ChatMessage {
	return slices.Clone(o.messages)
}

// Queued returns the numbers waiting for the next open draw, or nil.
func (o *Orchestrator) Queued() []domain.Number {
	return slices.Clone(o.queued)
}

// InFlight reports whether a reasoning request is outstanding.
func (o *Orchestrator) InFlight() bool {
	return o.inFlight
}

// AcceptLabel is the action offered for recommendations in the current
// draw state.
func (o *Orchestrator) AcceptLabel() string {
	if o.deps.Selection.Timer().IsOpen() {
		return "Confirm Numbers"
	}
	return "Queue for Next Draw"
}

// SendMessage records the player's message and answers it.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) (domain.ChatMessage, error) {
	text, err := o.AddUserMessage(ctx, text)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return o.RequestRecommendation(ctx, text)
}

// AddUserMessage appends the player's message and returns the trimmed text.
func (o *Orchestrator) AddUserMessage(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if o.inFlight {
		return "", ErrRequestInFlight
	}
	o.addMessage(ctx, domain.RoleUser, text, nil)
	return text, nil
}

// RequestRecommendation asks the reasoner about text and appends its answer,
// or a local fallback recommendation when the call fails.
func (o *Orchestrator) RequestRecommendation(ctx context.Context, text string) (domain.ChatMessage, error) {
	req, err := o.PrepareRequest(text)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	resp, err := o.Reason(ctx, req)
	return o.CompleteRequest(ctx, resp, err), nil
}

// PrepareRequest marks a request in flight and builds its payload.
func (o *Orchestrator) PrepareRequest(text string) (domain.ReasonRequest, error) {
	if o.inFlight {
		return domain.ReasonRequest{}, ErrRequestInFlight
	}
	o.inFlight = true
	return domain.ReasonRequest{Message: text, Context: o.BuildContext()}, nil
}

// Reason calls the configured reasoner. It touches no orchestrator state and
// may run without the owner's lock.
func (o *Orchestrator) Reason(ctx context.Context, req domain.ReasonRequest) (*domain.ReasonResponse, error) {
	if o.deps.Reasoner == nil {
		return nil, ErrNoReasoner
	}
	start := time.Now()
	resp, err := o.deps.Reasoner.Reason(ctx, req)
	metrics.ObserveReasoner(time.Since(start))
	return resp, err
}

// CompleteRequest appends the reply for a request started with
// PrepareRequest and clears the in-flight flag.
func (o *Orchestrator) CompleteRequest(ctx context.Context, resp *domain.ReasonResponse, err error) domain.ChatMessage {
	o.inFlight = false

	if err != nil || resp == nil {
		if err != nil && !errors.Is(err, ErrNoReasoner) {
			o.logger.Warn("reasoning request failed, using fallback", "error", err)
		}
		metrics.RecordResponse("fallback")
		rec := Fallback(o.rng)
		return o.addMessage(ctx, domain.RoleRecommendation, msgFallback, &rec)
	}

	if rec := sanitizeRecommendation(resp.Recommendation); rec != nil {
		metrics.RecordResponse("recommendation")
		return o.addMessage(ctx, domain.RoleRecommendation, orDefault(resp.Message, msgDefaultRec), rec)
	}

	metrics.RecordResponse("message")
	return o.addMessage(ctx, domain.RoleAssistant, orDefault(resp.Message, msgDefaultReply), nil)
}

// AcceptOutcome tells what accepting a recommendation did.
type AcceptOutcome string

// Accept outcomes.
const (
	AcceptApplied      AcceptOutcome = "applied"
	AcceptQueued       AcceptOutcome = "queued"
	AcceptRejectedFull AcceptOutcome = "rejected_full"
)

// AcceptRecommendation applies numbers from the recommendation in message
// messageID. While the draw is open they go straight into the selection and
// are confirmed automatically; otherwise they are queued for the next open
// draw. A message can be acted upon once.
func (o *Orchestrator) AcceptRecommendation(ctx context.Context, numbers []domain.Number, messageID string) (AcceptOutcome, error) {
	idx := slices.IndexFunc(o.messages, func(m domain.ChatMessage) bool { return m.ID == messageID })
	if idx < 0 {
		return "", ErrMessageNotFound
	}
	msg := o.messages[idx]
	if msg.Role != domain.RoleRecommendation || msg.Recommendation == nil {
		return "", ErrNotARecommendation
	}
	if msg.ActedUpon {
		return "", ErrAlreadyActedUpon
	}
	set, ok := domain.NormalizePickSet(numbers)
	if !ok || !offers(msg.Recommendation, set) {
		return "", ErrInvalidPickSet
	}

	o.messages[idx].ActedUpon = true
	if o.deps.Store != nil {
		if err := o.deps.Store.MarkActedUpon(ctx, o.deps.UserID, messageID); err != nil {
			o.logger.Warn("failed to persist acted-upon flag", "message_id", messageID, "error", err)
		}
	}

	var outcome AcceptOutcome
	switch {
	case !o.deps.Selection.Timer().IsOpen():
		o.setQueued(ctx, set)
		o.addMessage(ctx, domain.RoleAssistant, msgQueued, nil)
		outcome = AcceptQueued
	case o.deps.Selection.ConfirmedCount() >= domain.MaxSetsPerCycle:
		o.addMessage(ctx, domain.RoleAssistant, msgFull, nil)
		outcome = AcceptRejectedFull
	default:
		o.applyToSelection(set)
		o.addMessage(ctx, domain.RoleAssistant, msgApplied, nil)
		outcome = AcceptApplied
	}

	metrics.RecordAcceptance(string(outcome))
	o.logger.Info("recommendation accepted", "message_id", messageID, "outcome", outcome)
	return outcome, nil
}

// offers reports whether set is one of the sets rec recommended.
func offers(rec *domain.Recommendation, set domain.PickSet) bool {
	return slices.ContainsFunc(rec.Numbers.Sets, func(offered []domain.Number) bool {
		norm, ok := domain.NormalizePickSet(offered)
		return ok && slices.Equal(norm, set)
	})
}

// HandleTimer applies queued numbers once the draw is open. Call it after the
// selection session has observed the same snapshot.
func (o *Orchestrator) HandleTimer(ctx context.Context, snap domain.TimerSnapshot) {
	if !snap.IsOpen() || len(o.queued) != domain.PickSize {
		return
	}

	set := domain.PickSet(slices.Clone(o.queued))
	o.setQueued(ctx, nil)

	if o.deps.Selection.ConfirmedCount() >= domain.MaxSetsPerCycle {
		o.addMessage(ctx, domain.RoleAssistant, msgQueueRejected, nil)
		return
	}
	o.applyToSelection(set)
	o.addMessage(ctx, domain.RoleAssistant, msgQueueApplied, nil)
	o.logger.Info("queued numbers applied", "cycle", snap.Cycle)
}

// ClearHistory empties the conversation and the queued numbers.
func (o *Orchestrator) ClearHistory(ctx context.Context) error {
	if o.deps.Store != nil {
		if err := o.deps.Store.ClearMessages(ctx, o.deps.UserID); err != nil {
			return fmt.Errorf("clear chat history: %w", err)
		}
		if err := o.deps.Store.SetQueuedNumbers(ctx, o.deps.UserID, nil); err != nil {
			return fmt.Errorf("clear queued numbers: %w", err)
		}
	}
	o.messages = nil
	o.queued = nil
	return nil
}

func (o *Orchestrator) applyToSelection(set domain.PickSet) {
	before := o.deps.Selection.ConfirmedCount()

	o.deps.Selection.StartNewPickSetSelection()
	o.deps.Selection.ArmAutoConfirm(true)
	o.deps.Selection.MutatePicked(func([]domain.Number) []domain.Number {
		return slices.Clone(set)
	})

	if o.deps.Selection.ConfirmedCount() == before {
		o.logger.Warn("accepted numbers were not auto-confirmed", "numbers", set)
	}
}

func (o *Orchestrator) setQueued(ctx context.Context, set []domain.Number) {
	o.queued = slices.Clone(set)
	if o.deps.Store == nil {
		return
	}
	if err := o.deps.Store.SetQueuedNumbers(ctx, o.deps.UserID, set); err != nil {
		o.logger.Warn("failed to persist queued numbers", "error", err)
	}
}

func (o *Orchestrator) addMessage(ctx context.Context, role domain.Role, text string, rec *domain.Recommendation) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:             o.newID(),
		Role:           role,
		Text:           text,
		Recommendation: rec,
		CreatedAt:      o.now(),
	}
	o.messages = append(o.messages, msg)

	if o.deps.Store != nil {
		if err := o.deps.Store.AppendMessage(ctx, o.deps.UserID, msg); err != nil {
			o.logger.Warn("failed to persist chat message", "message_id", msg.ID, "error", err)
		}
	}
	return msg
}

// Fallback is the locally generated recommendation used when the reasoner
// cannot answer.
func Fallback(rng *rand.Rand) domain.Recommendation {
	confidence := fallbackConfidence
	return domain.Recommendation{
		Numbers:    domain.SingleSet(analytics.RandomPick(rng)),
		Kind:       domain.KindBalanced,
		Reasoning:  fallbackReasoning,
		Confidence: &confidence,
	}
}

func sanitizeRecommendation(rec *domain.Recommendation) *domain.Recommendation {
	if rec == nil {
		return nil
	}
	out := *rec
	out.Numbers = rec.Numbers.Sanitize()
	if out.Numbers.Empty() {
		return nil
	}
	if out.Kind == "" {
		out.Kind = domain.KindBalanced
	}
	if out.Confidence != nil {
		c := min(max(*out.Confidence, 0), 1)
		out.Confidence = &c
	}
	return &out
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
