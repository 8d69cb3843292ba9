package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models/events"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.MemoryLedgerStore
	directory *Directory
	ledger    *Ledger
	balances  *BalanceCalculator
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewMemoryLedgerStore()
	publisher := &recordingPublisher{}
	directory := NewDirectory(store)

	return &fixture{
		store:     store,
		directory: directory,
		ledger:    NewLedger(store, directory, WithPublisher(publisher, "test.topic")),
		balances:  NewBalanceCalculator(store, store, store),
		publisher: publisher,
	}
}

func (f *fixture) account(t *testing.T, reference string, accountType models.AccountType) models.Account {
	t.Helper()

	account, err := f.directory.CreateAccount(context.Background(), reference, accountType, "admin")
	require.NoError(t, err)
	return account
}

func (f *fixture) subAccount(t *testing.T, accountID uuid.UUID, reference string) models.SubAccount {
	t.Helper()

	subAccount, err := f.directory.CreateSubAccount(context.Background(), accountID, reference, "admin")
	require.NoError(t, err)
	return subAccount
}

func (f *fixture) post(t *testing.T, reference string, amount int64, postings ...models.PostingRequest) Result {
	t.Helper()

	result, err := f.ledger.CreateTransaction(context.Background(), request(reference, amount, postings...))
	require.NoError(t, err)
	return result
}

func (f *fixture) balance(t *testing.T, subAccountID uuid.UUID) int64 {
	t.Helper()

	balance, err := f.balances.SubAccountBalance(context.Background(), subAccountID)
	require.NoError(t, err)
	return balance
}

func request(reference string, amount int64, postings ...models.PostingRequest) models.TransactionRequest {
	return models.TransactionRequest{
		IdempotencyKey: uuid.New(),
		Reference:      reference,
		Description:    "test " + reference,
		Timestamp:      baseTime,
		Amount:         amount,
		CreatedBy:      "officer",
		Postings:       postings,
	}
}

func cr(sub models.SubAccount, amount int64) models.PostingRequest {
	return models.PostingRequest{Direction: models.Credit, Amount: amount, SubAccountID: sub.ID}
}

func dr(sub models.SubAccount, amount int64) models.PostingRequest {
	return models.PostingRequest{Direction: models.Debit, Amount: amount, SubAccountID: sub.ID}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TransactionCommitted
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fail {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, event.(events.TransactionCommitted))
	return nil
}

func (p *recordingPublisher) published() []events.TransactionCommitted {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]events.TransactionCommitted(nil), p.events...)
}

// failingStore fails the nth posting insert of every unit of work.
type failingStore struct {
	*memory.MemoryLedgerStore
	failOnPosting int
}

func (s *failingStore) WithinUnitOfWork(ctx context.Context, fn func(w interfaces.LedgerWriter) error) error {
	return s.MemoryLedgerStore.WithinUnitOfWork(ctx, func(w interfaces.LedgerWriter) error {
		return fn(&failingWriter{LedgerWriter: w, failOn: s.failOnPosting})
	})
}

type failingWriter struct {
	interfaces.LedgerWriter
	failOn int
	count  int
}

func (w *failingWriter) InsertPosting(ctx context.Context, posting models.Posting) error {
	w.count++
	if w.count == w.failOn {
		return errors.New("disk full")
	}
	return w.LedgerWriter.InsertPosting(ctx, posting)
}
