package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountType classifies the owner of a top-level account.
type AccountType string

const (
	AccountTypeInstitution AccountType = "INSTITUTION"
	AccountTypePerson      AccountType = "PERSON"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeInstitution, AccountTypePerson:
		return true
	default:
		return false
	}
}

// Account is a top-level ledger entity such as a prison or a prisoner.
// Its sub-accounts are fetched by explicit query on AccountID, never held here.
type Account struct {
	ID        uuid.UUID   `json:"id"`
	Reference string      `json:"reference"` // globally unique
	Type      AccountType `json:"type"`
	CreatedBy string      `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
}

// SubAccount is a named bucket of funds (cash, spends, savings) owned by one Account.
type SubAccount struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Reference string    `json:"reference"` // unique within AccountID only
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
