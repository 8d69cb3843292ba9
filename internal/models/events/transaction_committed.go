package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionCommitted is published once per freshly committed transaction.
// Replayed submissions do not produce an event.
type TransactionCommitted struct {
	TransactionID string          `json:"transaction_id"`
	Reference     string          `json:"reference"`
	AmountMinor   int64           `json:"amount_minor"`
	Amount        decimal.Decimal `json:"amount"`
	Postings      []PostingLine   `json:"postings"`
	Timestamp     time.Time       `json:"timestamp"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// PostingLine is the event view of a single posting.
type PostingLine struct {
	SubAccountID string `json:"sub_account_id"`
	Type         string `json:"type"`
	AmountMinor  int64  `json:"amount_minor"`
}
