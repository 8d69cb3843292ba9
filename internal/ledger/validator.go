package ledger

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
)

// CandidatePosting is one leg of a Candidate.
type CandidatePosting struct {
	Direction    models.Direction
	Amount       int64
	SubAccountID uuid.UUID
}

// Candidate is a transaction that has not been persisted yet.
type Candidate struct {
	Amount   int64
	Postings []CandidatePosting
}

// Validate checks the double-entry structure of a candidate transaction:
// one side has exactly one posting, and both sides total the declared amount.
// It does not check that the sub-accounts exist.
func Validate(candidate Candidate) error {
	if candidate.Amount < 0 {
		return validationError("amount", "must not be negative")
	}

	var (
		credits, debits         int
		creditTotal, debitTotal int64
	)

	for i, posting := range candidate.Postings {
		field := fmt.Sprintf("postings[%d]", i)

		if posting.Amount <= 0 {
			return validationError(field+".amount", "must be greater than zero")
		}

		switch posting.Direction {
		case models.Credit:
			if creditTotal > math.MaxInt64-posting.Amount {
				return validationError(field+".amount", "credit total overflows")
			}
			credits++
			creditTotal += posting.Amount
		case models.Debit:
			if debitTotal > math.MaxInt64-posting.Amount {
				return validationError(field+".amount", "debit total overflows")
			}
			debits++
			debitTotal += posting.Amount
		default:
			return validationError(field+".type", fmt.Sprintf("unknown direction %q", posting.Direction))
		}
	}

	if min(credits, debits) != 1 {
		return validationError("postings",
			fmt.Sprintf("one side must have exactly one posting (credits=%d debits=%d)", credits, debits))
	}

	if creditTotal != candidate.Amount {
		return validationError("amount",
			fmt.Sprintf("credit total=%d expected=%d", creditTotal, candidate.Amount))
	}

	if creditTotal != debitTotal {
		return validationError("postings",
			fmt.Sprintf("credit total=%d debit total=%d", creditTotal, debitTotal))
	}

	return nil
}
