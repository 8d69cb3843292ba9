//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/ledger"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupStore starts a disposable PostgreSQL container and opens a store on it.
func setupStore(t *testing.T) *PostgresLedgerStore {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := Open(ctx, dsn, Options{MaxOpenConns: 10, MaxIdleConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestIntegration_Postgres_SchemaIsIdempotent(t *testing.T) {
	store := setupStore(t)

	require.NoError(t, store.InitializeSchema(context.Background()))
}

func TestIntegration_Postgres_Constraints(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	account := models.Account{ID: uuid.New(), Reference: "A1234BC", Type: models.AccountTypePerson, CreatedBy: "test", CreatedAt: now}
	require.NoError(t, store.InsertAccount(ctx, account))

	err := store.InsertAccount(ctx, models.Account{ID: uuid.New(), Reference: "A1234BC", Type: models.AccountTypePerson, CreatedBy: "test", CreatedAt: now})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account, got)

	_, err = store.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	cash := models.SubAccount{ID: uuid.New(), AccountID: account.ID, Reference: "CASH", CreatedBy: "test", CreatedAt: now}
	require.NoError(t, store.InsertSubAccount(ctx, cash))

	err = store.InsertSubAccount(ctx, models.SubAccount{ID: uuid.New(), AccountID: account.ID, Reference: "CASH", CreatedBy: "test", CreatedAt: now})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	err = store.InsertSubAccount(ctx, models.SubAccount{ID: uuid.New(), AccountID: uuid.New(), Reference: "CASH", CreatedBy: "test", CreatedAt: now})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	tx := models.Transaction{ID: uuid.New(), Reference: "ghost", Description: "ghost", Timestamp: now, Amount: 5, CreatedBy: "test", CreatedAt: now}
	err = store.WithinUnitOfWork(ctx, func(w interfaces.LedgerWriter) error {
		if err := w.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		return w.InsertPosting(ctx, models.Posting{
			ID: uuid.New(), Direction: models.Credit, Amount: 5, SubAccountID: uuid.New(),
			TransactionID: tx.ID, CreatedBy: "test", CreatedAt: now,
		})
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound, "a failed unit of work must roll back")
}

func TestIntegration_Postgres_Ledger(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	directory := ledger.NewDirectory(store)
	l := ledger.NewLedger(store, directory)
	balances := ledger.NewBalanceCalculator(store, store, store)

	prison, err := directory.CreateAccount(ctx, "LEI", models.AccountTypeInstitution, "admin")
	require.NoError(t, err)
	prisoner, err := directory.CreateAccount(ctx, "A1234BC", models.AccountTypePerson, "admin")
	require.NoError(t, err)
	mainSub, err := directory.CreateSubAccount(ctx, prison.ID, "MAIN", "admin")
	require.NoError(t, err)
	cash, err := directory.CreateSubAccount(ctx, prisoner.ID, "CASH", "admin")
	require.NoError(t, err)

	req := models.TransactionRequest{
		IdempotencyKey: uuid.New(),
		Reference:      "payroll",
		Description:    "weekly wages",
		Timestamp:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Amount:         500,
		CreatedBy:      "officer",
		Postings: []models.PostingRequest{
			{Direction: models.Debit, Amount: 500, SubAccountID: mainSub.ID},
			{Direction: models.Credit, Amount: 500, SubAccountID: cash.ID},
		},
	}

	const workers = 8
	var (
		wg      sync.WaitGroup
		results = make([]ledger.Result, workers)
		errs    = make([]error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = l.CreateTransaction(ctx, req)
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ID, results[i].ID)
		if !results[i].Replayed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)

	balance, err := balances.SubAccountBalance(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	total, err := balances.AccountBalance(ctx, prison.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-500), total)

	twoParty, err := balances.TwoPartyBalance(ctx, prisoner.ID, prison.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), twoParty)

	transactions, err := l.ListTransactionsForAccount(ctx, prisoner.ID)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "payroll", transactions[0].Reference)

	posted, err := l.GetTransaction(ctx, results[0].ID)
	require.NoError(t, err)
	require.Len(t, posted.Postings, 2)
	assert.Equal(t, models.Debit, posted.Postings[0].Direction)

	_, err = balances.RecordStatementBalance(ctx, cash.ID, 480, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	snapshot, found, err := balances.LatestStatementBalance(ctx, cash.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(480), snapshot.Amount)
}
