package assistant

import (
	"github.com/ashureev/pick27/internal/domain"
)

// Sizes of the history slices sent with each request.
const (
	contextWalletEntries = 10
	contextDraws         = 10
	contextHotCold       = 10
)

// BuildContext snapshots the game state for a reasoning request.
func (o *Orchestrator) BuildContext() domain.GameContext {
	timer := o.deps.Selection.Timer()
	gc := domain.GameContext{
		TimerState:      timer.State,
		CycleIndex:      timer.Cycle,
		SelectedNumbers: nonNil(o.deps.Selection.ConfirmedNumbers()),
		UserHistory:     []domain.WalletEntry{},
		DrawHistory:     []domain.Draw{},
		HotNumbers:      []domain.Number{},
		ColdNumbers:     []domain.Number{},
	}

	if w := o.deps.Wallet; w != nil {
		gc.Balance = w.Balance()
		gc.UserHistory = w.Recent(contextWalletEntries)
	}
	if d := o.deps.Draws; d != nil {
		gc.DrawHistory = d.Recent(contextDraws)
		gc.HotNumbers = nonNil(d.HotNumbers(contextHotCold))
		gc.ColdNumbers = nonNil(d.ColdNumbers(contextHotCold))
		gc.RecentPatterns = d.RecentPatterns()
	}
	return gc
}

func nonNil(nums []domain.Number) []domain.Number {
	if nums == nil {
		return []domain.Number{}
	}
	return nums
}
