package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/storage"
)

// Reservation is the outcome of an idempotency check: either a previously
// committed transaction for the key, or a fresh key the caller may use once.
type Reservation struct {
	Key      uuid.UUID
	existing *models.PostedTransaction
}

// Existing returns the transaction already committed under the key, if any.
func (r Reservation) Existing() (models.PostedTransaction, bool) {
	if r.existing == nil {
		return models.PostedTransaction{}, false
	}
	return *r.existing, true
}

// Fresh reports whether no transaction has been committed under the key yet.
func (r Reservation) Fresh() bool {
	return r.existing == nil
}

// IdempotencyGuard maps a client-supplied key to at most one committed transaction.
type IdempotencyGuard struct {
	store interfaces.TransactionStore
}

// NewIdempotencyGuard creates a guard over the given transaction store.
func NewIdempotencyGuard(store interfaces.TransactionStore) *IdempotencyGuard {
	return &IdempotencyGuard{store: store}
}

// CheckAndReserve looks the key up without writing anything. A fresh
// reservation does not block other callers; the storage uniqueness
// constraint decides the winner when the key is registered.
func (g *IdempotencyGuard) CheckAndReserve(ctx context.Context, key uuid.UUID) (Reservation, error) {
	posted, err := g.load(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return Reservation{Key: key}, nil
	}
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{Key: key, existing: &posted}, nil
}

// Register records the reservation's key against transactionID inside the
// caller's unit of work. It returns storage.ErrIdempotencyKeyUsed when a
// concurrent writer registered the key first.
func (g *IdempotencyGuard) Register(ctx context.Context, w interfaces.LedgerWriter, r Reservation, transactionID uuid.UUID) error {
	if !r.Fresh() {
		return storage.ErrIdempotencyKeyUsed
	}
	return w.RegisterIdempotencyKey(ctx, r.Key, transactionID)
}

// Replay loads the transaction committed under key.
func (g *IdempotencyGuard) Replay(ctx context.Context, key uuid.UUID) (models.PostedTransaction, error) {
	return g.load(ctx, key)
}

func (g *IdempotencyGuard) load(ctx context.Context, key uuid.UUID) (models.PostedTransaction, error) {
	tx, err := g.store.FindTransactionByIdempotencyKey(ctx, key)
	if err != nil {
		return models.PostedTransaction{}, err
	}

	postings, err := g.store.ListPostingsByTransaction(ctx, tx.ID)
	if err != nil {
		return models.PostedTransaction{}, err
	}

	return models.PostedTransaction{Transaction: tx, Postings: postings}, nil
}
