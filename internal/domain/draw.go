package domain

import (
	"time"
)

// Draw is the revealed result of one draw cycle.
type Draw struct {
	Cycle          int64     `json:"cycle"`
	Date           time.Time `json:"date"`
	WinningNumbers []Number  `json:"winningNumbers"`
	JackpotWon     bool      `json:"jackpotWon"`
	TotalWinnings  int       `json:"totalWinnings"`
}
