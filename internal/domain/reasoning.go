package domain

// GameContext is the snapshot sent alongside a recommendation request.
type GameContext struct {
	TimerState      TimerState    `json:"timerState"`
	CycleIndex      int64         `json:"cycleIndex"`
	SelectedNumbers []Number      `json:"selectedNumbers"`
	Balance         int           `json:"balance"`
	UserHistory     []WalletEntry `json:"userHistory"`
	DrawHistory     []Draw        `json:"drawHistory"`
	HotNumbers      []Number      `json:"hotNumbers"`
	ColdNumbers     []Number      `json:"coldNumbers"`
	RecentPatterns  string        `json:"recentPatterns"`
}

// ReasonRequest is the payload sent to a reasoning backend.
type ReasonRequest struct {
	Message string      `json:"message"`
	Context GameContext `json:"context"`
}

// ReasonResponse is a reasoning backend reply. Recommendation is nil for a
// plain conversational answer.
type ReasonResponse struct {
	Message        string          `json:"message"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
}
