package models

import (
	"time"

	"github.com/google/uuid"
)

// StatementBalance is a point-in-time snapshot of a sub-account balance.
// It is written by an external process and is never authoritative on its own.
type StatementBalance struct {
	ID              uuid.UUID `json:"id"`
	SubAccountID    uuid.UUID `json:"sub_account_id"`
	Amount          int64     `json:"amount"`
	BalanceDateTime time.Time `json:"balance_date_time"`
}
