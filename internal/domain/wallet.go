package domain

import (
	"time"
)

// WalletEntry is one confirmed pick set and, once its draw has been revealed,
// its result.
type WalletEntry struct {
	ID           string    `json:"id"`
	Date         time.Time `json:"date"`
	Numbers      []Number  `json:"numbers"`
	Matches      int       `json:"matches"`
	CreditChange int       `json:"creditChange"`
	Winnings     int       `json:"winnings"`
	Processed    bool      `json:"processed"`
	Cycle        int64     `json:"cycle"`
}

// EntryRequest is what the selection session hands to the wallet when a pick
// set is confirmed.
type EntryRequest struct {
	Date    time.Time `json:"date"`
	Numbers PickSet   `json:"numbers"`
	Cycle   int64     `json:"cycle"`
}
