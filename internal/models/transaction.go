package models

import (
	"time"

	"github.com/google/uuid"
)

// Direction is the side of a posting. CR increases a sub-account balance, DR decreases it.
type Direction string

const (
	Credit Direction = "CR"
	Debit  Direction = "DR"
)

// Valid reports whether d is CR or DR.
func (d Direction) Valid() bool {
	return d == Credit || d == Debit
}

// Transaction is an immutable, balanced group of postings.
// Amount is in minor currency units and equals the total of each side.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Amount      int64     `json:"amount"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Posting is a single CR or DR movement against one sub-account.
type Posting struct {
	ID            uuid.UUID `json:"id"`
	Direction     Direction `json:"type"`
	Amount        int64     `json:"amount"`
	SubAccountID  uuid.UUID `json:"sub_account_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// PostedTransaction pairs a transaction with its postings, in creation order.
type PostedTransaction struct {
	Transaction
	Postings []Posting `json:"postings"`
}

// PostingRequest is one leg of a TransactionRequest.
type PostingRequest struct {
	Direction    Direction `json:"type"`
	Amount       int64     `json:"amount"`
	SubAccountID uuid.UUID `json:"sub_account_id"`
}

// TransactionRequest is the caller's intent to move money between sub-accounts.
type TransactionRequest struct {
	IdempotencyKey uuid.UUID
	Reference      string
	Description    string
	Timestamp      time.Time
	Amount         int64
	CreatedBy      string
	Postings       []PostingRequest
}
