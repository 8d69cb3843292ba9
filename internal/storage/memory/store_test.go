package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func seedAccount(t *testing.T, s *MemoryLedgerStore, reference string) models.Account {
	t.Helper()

	account := models.Account{ID: uuid.New(), Reference: reference, Type: models.AccountTypePerson, CreatedBy: "test", CreatedAt: t0}
	require.NoError(t, s.InsertAccount(context.Background(), account))
	return account
}

func seedSubAccount(t *testing.T, s *MemoryLedgerStore, accountID uuid.UUID, reference string) models.SubAccount {
	t.Helper()

	sub := models.SubAccount{ID: uuid.New(), AccountID: accountID, Reference: reference, CreatedBy: "test", CreatedAt: t0}
	require.NoError(t, s.InsertSubAccount(context.Background(), sub))
	return sub
}

func transfer(reference string, at time.Time, from, to uuid.UUID, amount int64) (models.Transaction, []models.Posting) {
	tx := models.Transaction{ID: uuid.New(), Reference: reference, Description: reference, Timestamp: at, Amount: amount, CreatedBy: "test", CreatedAt: at}
	return tx, []models.Posting{
		{ID: uuid.New(), Direction: models.Debit, Amount: amount, SubAccountID: from, TransactionID: tx.ID, CreatedBy: "test", CreatedAt: at},
		{ID: uuid.New(), Direction: models.Credit, Amount: amount, SubAccountID: to, TransactionID: tx.ID, CreatedBy: "test", CreatedAt: at},
	}
}

func commit(ctx context.Context, s *MemoryLedgerStore, key uuid.UUID, tx models.Transaction, postings []models.Posting) error {
	return s.WithinUnitOfWork(ctx, func(w interfaces.LedgerWriter) error {
		if err := w.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		for _, p := range postings {
			if err := w.InsertPosting(ctx, p); err != nil {
				return err
			}
		}
		return w.RegisterIdempotencyKey(ctx, key, tx.ID)
	})
}

func TestMemoryLedgerStore_AccountUniqueness(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()
	account := seedAccount(t, s, "A1234BC")

	err := s.InsertAccount(ctx, models.Account{ID: uuid.New(), Reference: "A1234BC", Type: models.AccountTypePerson})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	err = s.InsertAccount(ctx, models.Account{ID: account.ID, Reference: "OTHER", Type: models.AccountTypePerson})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := s.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account, got)

	_, err = s.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemoryLedgerStore_SubAccountRules(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()
	first := seedAccount(t, s, "A1234BC")
	second := seedAccount(t, s, "B5678DE")

	cash := seedSubAccount(t, s, first.ID, "CASH")
	seedSubAccount(t, s, second.ID, "CASH")
	spends := seedSubAccount(t, s, first.ID, "SPENDS")

	err := s.InsertSubAccount(ctx, models.SubAccount{ID: uuid.New(), AccountID: first.ID, Reference: "CASH"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	err = s.InsertSubAccount(ctx, models.SubAccount{ID: uuid.New(), AccountID: uuid.New(), Reference: "CASH"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	subAccounts, err := s.ListSubAccounts(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.SubAccount{cash, spends}, subAccounts)

	none, err := s.ListSubAccounts(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryLedgerStore_UnitOfWorkCommits(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()
	account := seedAccount(t, s, "A1234BC")
	cash := seedSubAccount(t, s, account.ID, "CASH")
	savings := seedSubAccount(t, s, account.ID, "SAVINGS")

	key := uuid.New()
	tx, postings := transfer("save", t0, cash.ID, savings.ID, 100)
	require.NoError(t, commit(ctx, s, key, tx, postings))

	byKey, err := s.FindTransactionByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, tx, byKey)

	stored, err := s.ListPostingsByTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, postings, stored)

	bySub, err := s.ListPostingsBySubAccount(ctx, savings.ID)
	require.NoError(t, err)
	assert.Equal(t, postings[1:], bySub)

	byAccount, err := s.ListPostingsByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, byAccount, 2)
}

func TestMemoryLedgerStore_UnitOfWorkRollsBack(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()
	account := seedAccount(t, s, "A1234BC")
	cash := seedSubAccount(t, s, account.ID, "CASH")

	tests := []struct {
		name     string
		postings func(tx models.Transaction) []models.Posting
		wantErr  error
	}{
		{
			name: "unknown sub-account",
			postings: func(tx models.Transaction) []models.Posting {
				_, p := transfer("x", t0, cash.ID, uuid.New(), 10)
				p[0].TransactionID, p[1].TransactionID = tx.ID, tx.ID
				return p
			},
			wantErr: storage.ErrNotFound,
		},
		{
			name: "posting for another transaction",
			postings: func(models.Transaction) []models.Posting {
				_, p := transfer("x", t0, cash.ID, cash.ID, 10)
				return p
			},
			wantErr: storage.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := models.Transaction{ID: uuid.New(), Reference: tt.name, Timestamp: t0, Amount: 10}
			err := commit(ctx, s, uuid.New(), tx, tt.postings(tx))
			require.ErrorIs(t, err, tt.wantErr)

			_, err = s.GetTransaction(ctx, tx.ID)
			assert.ErrorIs(t, err, storage.ErrNotFound)

			postings, err := s.ListPostingsBySubAccount(ctx, cash.ID)
			require.NoError(t, err)
			assert.Empty(t, postings)
		})
	}
}

func TestMemoryLedgerStore_CallbackErrorDiscardsWrites(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()
	account := seedAccount(t, s, "A1234BC")
	cash := seedSubAccount(t, s, account.ID, "CASH")
	savings := seedSubAccount(t, s, account.ID, "SAVINGS")

	tx, postings := transfer("save", t0, cash.ID, savings.ID, 100)
	boom := errors.New("boom")

	err := s.WithinUnitOfWork(ctx, func(w interfaces.LedgerWriter) error {
		require.NoError(t, w.InsertTransaction(ctx, tx))
		require.NoError(t, w.InsertPosting(ctx, postings[0]))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The reference was never taken.
	require.NoError(t, commit(ctx, s, uuid.New(), tx, postings))
}

func TestMemoryLedgerStore_IdempotencyKeyAndReferenceUniqueness(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()
	account := seedAccount(t, s, "A1234BC")
	cash := seedSubAccount(t, s, account.ID, "CASH")
	savings := seedSubAccount(t, s, account.ID, "SAVINGS")

	key := uuid.New()
	tx, postings := transfer("save", t0, cash.ID, savings.ID, 100)
	require.NoError(t, commit(ctx, s, key, tx, postings))

	again, againPostings := transfer("save-again", t0, cash.ID, savings.ID, 100)
	err := commit(ctx, s, key, again, againPostings)
	assert.ErrorIs(t, err, storage.ErrIdempotencyKeyUsed)

	sameRef, sameRefPostings := transfer("save", t0, cash.ID, savings.ID, 100)
	err = commit(ctx, s, uuid.New(), sameRef, sameRefPostings)
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	_, err = s.FindTransactionByIdempotencyKey(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	bySub, err := s.ListPostingsBySubAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.Len(t, bySub, 1)
}

func TestMemoryLedgerStore_ListTransactionsByAccount(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()
	first := seedAccount(t, s, "A1234BC")
	second := seedAccount(t, s, "B5678DE")
	cashA := seedSubAccount(t, s, first.ID, "CASH")
	savingsA := seedSubAccount(t, s, first.ID, "SAVINGS")
	cashB := seedSubAccount(t, s, second.ID, "CASH")

	older, olderPostings := transfer("older", t0, cashA.ID, savingsA.ID, 5)
	newer, newerPostings := transfer("newer", t0.Add(time.Minute), cashB.ID, cashA.ID, 5)
	elsewhere, elsewherePostings := transfer("elsewhere", t0.Add(time.Hour), cashB.ID, cashB.ID, 5)
	require.NoError(t, commit(ctx, s, uuid.New(), older, olderPostings))
	require.NoError(t, commit(ctx, s, uuid.New(), newer, newerPostings))
	require.NoError(t, commit(ctx, s, uuid.New(), elsewhere, elsewherePostings))

	transactions, err := s.ListTransactionsByAccount(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.Transaction{newer, older}, transactions, "one entry per transaction, newest first")
}

func TestMemoryLedgerStore_StatementBalances(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx := context.Background()
	account := seedAccount(t, s, "A1234BC")
	cash := seedSubAccount(t, s, account.ID, "CASH")

	_, err := s.LatestStatementBalance(ctx, cash.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	early := models.StatementBalance{ID: uuid.New(), SubAccountID: cash.ID, Amount: 10, BalanceDateTime: t0}
	late := models.StatementBalance{ID: uuid.New(), SubAccountID: cash.ID, Amount: 20, BalanceDateTime: t0.Add(time.Hour)}
	require.NoError(t, s.InsertStatementBalance(ctx, late))
	require.NoError(t, s.InsertStatementBalance(ctx, early))

	latest, err := s.LatestStatementBalance(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, late, latest)

	err = s.InsertStatementBalance(ctx, models.StatementBalance{ID: uuid.New(), SubAccountID: uuid.New(), BalanceDateTime: t0})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemoryLedgerStore_CancelledContext(t *testing.T) {
	s := NewMemoryLedgerStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinUnitOfWork(ctx, func(interfaces.LedgerWriter) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
