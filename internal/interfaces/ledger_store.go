package interfaces

import (
	"context"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
)

// AccountStore persists accounts and sub-accounts.
// Lookups of a missing record return storage.ErrNotFound; uniqueness
// violations on insert return storage.ErrDuplicate.
type AccountStore interface {
	InsertAccount(ctx context.Context, account models.Account) error
	InsertSubAccount(ctx context.Context, subAccount models.SubAccount) error
	GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetSubAccount(ctx context.Context, id uuid.UUID) (models.SubAccount, error)
	FindAccountsByReference(ctx context.Context, reference string) ([]models.Account, error)
	ListSubAccounts(ctx context.Context, accountID uuid.UUID) ([]models.SubAccount, error)
}

// LedgerWriter is the write side of a single unit of work. Nothing written
// through it is visible to readers until the unit commits.
type LedgerWriter interface {
	InsertTransaction(ctx context.Context, tx models.Transaction) error
	InsertPosting(ctx context.Context, posting models.Posting) error
	// RegisterIdempotencyKey returns storage.ErrIdempotencyKeyUsed if key is already registered.
	RegisterIdempotencyKey(ctx context.Context, key uuid.UUID, transactionID uuid.UUID) error
}

// TransactionStore persists transactions and their postings.
type TransactionStore interface {
	// WithinUnitOfWork runs fn and commits everything it wrote, or nothing if fn
	// or the commit fails. fn must only touch the store through the given writer.
	WithinUnitOfWork(ctx context.Context, fn func(w LedgerWriter) error) error
	GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error)
	FindTransactionByIdempotencyKey(ctx context.Context, key uuid.UUID) (models.Transaction, error)
	ListPostingsByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.Posting, error)
	// ListTransactionsByAccount orders by business timestamp, newest first.
	ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error)
}

// PostingReader reads committed posting history.
type PostingReader interface {
	ListPostingsBySubAccount(ctx context.Context, subAccountID uuid.UUID) ([]models.Posting, error)
	ListPostingsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Posting, error)
}

// StatementBalanceStore persists sub-account balance snapshots.
type StatementBalanceStore interface {
	InsertStatementBalance(ctx context.Context, balance models.StatementBalance) error
	LatestStatementBalance(ctx context.Context, subAccountID uuid.UUID) (models.StatementBalance, error)
}

// LedgerStore is the full storage surface a backend provides.
type LedgerStore interface {
	AccountStore
	TransactionStore
	PostingReader
	StatementBalanceStore
	Close() error
}
