package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	interfaces "github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces" // interface LedgerStore
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/storage"
)

// PostgreSQL error codes the store translates into storage sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Open connects with the lib/pq driver, verifies the connection and
// bootstraps the schema.
func Open(ctx context.Context, dsn string, opts Options) (*PostgresLedgerStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := NewPostgresLedgerStore(db)
	if err := store.InitializeSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying pool.
func (p *PostgresLedgerStore) Close() error {
	return p.db.Close()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (p *PostgresLedgerStore) InsertAccount(ctx context.Context, account models.Account) error {
	const query = `INSERT INTO accounts (id, reference, type, created_by, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := p.db.ExecContext(ctx, query,
		account.ID, account.Reference, string(account.Type), account.CreatedBy, account.CreatedAt)
	return translateError("insert account", err)
}

func (p *PostgresLedgerStore) InsertSubAccount(ctx context.Context, subAccount models.SubAccount) error {
	const query = `INSERT INTO sub_accounts (id, account_id, reference, created_by, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	_, err := p.db.ExecContext(ctx, query,
		subAccount.ID, subAccount.AccountID, subAccount.Reference, subAccount.CreatedBy, subAccount.CreatedAt)
	return translateError("insert sub-account", err)
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	const query = `SELECT id, reference, type, created_by, created_at FROM accounts WHERE id = $1`

	account, err := scanAccount(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Account{}, translateError("get account", err)
	}
	return account, nil
}

func (p *PostgresLedgerStore) GetSubAccount(ctx context.Context, id uuid.UUID) (models.SubAccount, error) {
	const query = `SELECT id, account_id, reference, created_by, created_at FROM sub_accounts WHERE id = $1`

	subAccount, err := scanSubAccount(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.SubAccount{}, translateError("get sub-account", err)
	}
	return subAccount, nil
}

func (p *PostgresLedgerStore) FindAccountsByReference(ctx context.Context, reference string) ([]models.Account, error) {
	const query = `SELECT id, reference, type, created_by, created_at FROM accounts WHERE reference = $1`

	rows, err := p.db.QueryContext(ctx, query, reference)
	if err != nil {
		return nil, translateError("find accounts", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, translateError("scan account", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("find accounts", err)
	}
	return accounts, nil
}

func (p *PostgresLedgerStore) ListSubAccounts(ctx context.Context, accountID uuid.UUID) ([]models.SubAccount, error) {
	const query = `SELECT id, account_id, reference, created_by, created_at FROM sub_accounts
	WHERE account_id = $1 ORDER BY created_at, id`

	rows, err := p.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, translateError("list sub-accounts", err)
	}
	defer rows.Close()

	subAccounts := []models.SubAccount{}
	for rows.Next() {
		subAccount, err := scanSubAccount(rows)
		if err != nil {
			return nil, translateError("scan sub-account", err)
		}
		subAccounts = append(subAccounts, subAccount)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list sub-accounts", err)
	}
	return subAccounts, nil
}

// WithinUnitOfWork runs fn inside one read-committed database transaction.
func (p *PostgresLedgerStore) WithinUnitOfWork(ctx context.Context, fn func(w interfaces.LedgerWriter) error) (err error) {
	dbTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			dbTx.Rollback()
			panic(r)
		}
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = fn(&txWriter{tx: dbTx}); err != nil {
		return err
	}

	if err = dbTx.Commit(); err != nil {
		return translateError("commit unit of work", err)
	}
	return nil
}

func (p *PostgresLedgerStore) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	const query = `SELECT id, reference, description, timestamp, amount, created_by, created_at
	FROM transactions WHERE id = $1`

	tx, err := scanTransaction(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Transaction{}, translateError("get transaction", err)
	}
	return tx, nil
}

func (p *PostgresLedgerStore) FindTransactionByIdempotencyKey(ctx context.Context, key uuid.UUID) (models.Transaction, error) {
	const query = `SELECT t.id, t.reference, t.description, t.timestamp, t.amount, t.created_by, t.created_at
	FROM idempotency_keys k JOIN transactions t ON t.id = k.transaction_id
	WHERE k.id = $1`

	tx, err := scanTransaction(p.db.QueryRowContext(ctx, query, key))
	if err != nil {
		return models.Transaction{}, translateError("find transaction by idempotency key", err)
	}
	return tx, nil
}

func (p *PostgresLedgerStore) ListPostingsByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.Posting, error) {
	const query = `SELECT id, type, amount, sub_account_id, transaction_id, created_by, created_at
	FROM postings WHERE transaction_id = $1 ORDER BY seq`

	return p.queryPostings(ctx, "list postings by transaction", query, transactionID)
}

func (p *PostgresLedgerStore) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error) {
	const query = `SELECT t.id, t.reference, t.description, t.timestamp, t.amount, t.created_by, t.created_at
	FROM transactions t
	WHERE EXISTS (
		SELECT 1 FROM postings p JOIN sub_accounts s ON s.id = p.sub_account_id
		WHERE p.transaction_id = t.id AND s.account_id = $1
	)
	ORDER BY t.timestamp DESC, t.created_at DESC`

	rows, err := p.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, translateError("list transactions", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, translateError("scan transaction", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list transactions", err)
	}
	return transactions, nil
}

func (p *PostgresLedgerStore) ListPostingsBySubAccount(ctx context.Context, subAccountID uuid.UUID) ([]models.Posting, error) {
	const query = `SELECT id, type, amount, sub_account_id, transaction_id, created_by, created_at
	FROM postings WHERE sub_account_id = $1 ORDER BY seq`

	return p.queryPostings(ctx, "list postings by sub-account", query, subAccountID)
}

func (p *PostgresLedgerStore) ListPostingsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Posting, error) {
	const query = `SELECT p.id, p.type, p.amount, p.sub_account_id, p.transaction_id, p.created_by, p.created_at
	FROM postings p JOIN sub_accounts s ON s.id = p.sub_account_id
	WHERE s.account_id = $1 ORDER BY p.seq`

	return p.queryPostings(ctx, "list postings by account", query, accountID)
}

func (p *PostgresLedgerStore) queryPostings(ctx context.Context, op, query string, arg any) ([]models.Posting, error) {
	rows, err := p.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, translateError(op, err)
	}
	defer rows.Close()

	postings := []models.Posting{}
	for rows.Next() {
		var (
			posting   models.Posting
			direction string
		)
		if err := rows.Scan(
			&posting.ID,
			&direction,
			&posting.Amount,
			&posting.SubAccountID,
			&posting.TransactionID,
			&posting.CreatedBy,
			&posting.CreatedAt,
		); err != nil {
			return nil, translateError(op, err)
		}
		posting.Direction = models.Direction(direction)
		posting.CreatedAt = posting.CreatedAt.UTC()
		postings = append(postings, posting)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(op, err)
	}
	return postings, nil
}

func (p *PostgresLedgerStore) InsertStatementBalance(ctx context.Context, balance models.StatementBalance) error {
	const query = `INSERT INTO statement_balances (id, sub_account_id, amount, balance_date_time)
	VALUES ($1, $2, $3, $4)`

	_, err := p.db.ExecContext(ctx, query, balance.ID, balance.SubAccountID, balance.Amount, balance.BalanceDateTime)
	return translateError("insert statement balance", err)
}

func (p *PostgresLedgerStore) LatestStatementBalance(ctx context.Context, subAccountID uuid.UUID) (models.StatementBalance, error) {
	const query = `SELECT id, sub_account_id, amount, balance_date_time FROM statement_balances
	WHERE sub_account_id = $1 ORDER BY balance_date_time DESC LIMIT 1`

	var balance models.StatementBalance
	err := p.db.QueryRowContext(ctx, query, subAccountID).Scan(
		&balance.ID, &balance.SubAccountID, &balance.Amount, &balance.BalanceDateTime)
	if err != nil {
		return models.StatementBalance{}, translateError("latest statement balance", err)
	}
	balance.BalanceDateTime = balance.BalanceDateTime.UTC()
	return balance, nil
}

// txWriter writes through an open *sql.Tx.
type txWriter struct {
	tx *sql.Tx
}

func (w *txWriter) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	const query = `INSERT INTO transactions (id, reference, description, timestamp, amount, created_by, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	return insert(ctx, w.tx, "insert transaction", query,
		tx.ID, tx.Reference, tx.Description, tx.Timestamp, tx.Amount, tx.CreatedBy, tx.CreatedAt)
}

func (w *txWriter) InsertPosting(ctx context.Context, posting models.Posting) error {
	const query = `INSERT INTO postings (id, type, amount, sub_account_id, transaction_id, created_by, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	return insert(ctx, w.tx, "insert posting", query,
		posting.ID, string(posting.Direction), posting.Amount, posting.SubAccountID,
		posting.TransactionID, posting.CreatedBy, posting.CreatedAt)
}

func (w *txWriter) RegisterIdempotencyKey(ctx context.Context, key uuid.UUID, transactionID uuid.UUID) error {
	const query = `INSERT INTO idempotency_keys (id, transaction_id) VALUES ($1, $2)`

	return insert(ctx, w.tx, "register idempotency key", query, key, transactionID)
}

func insert(ctx context.Context, db execer, op, query string, args ...any) error {
	_, err := db.ExecContext(ctx, query, args...)
	return translateError(op, err)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (models.Account, error) {
	var (
		account     models.Account
		accountType string
	)
	if err := row.Scan(&account.ID, &account.Reference, &accountType, &account.CreatedBy, &account.CreatedAt); err != nil {
		return models.Account{}, err
	}
	account.Type = models.AccountType(accountType)
	account.CreatedAt = account.CreatedAt.UTC()
	return account, nil
}

func scanSubAccount(row rowScanner) (models.SubAccount, error) {
	var subAccount models.SubAccount
	if err := row.Scan(
		&subAccount.ID,
		&subAccount.AccountID,
		&subAccount.Reference,
		&subAccount.CreatedBy,
		&subAccount.CreatedAt,
	); err != nil {
		return models.SubAccount{}, err
	}
	subAccount.CreatedAt = subAccount.CreatedAt.UTC()
	return subAccount, nil
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var tx models.Transaction
	if err := row.Scan(
		&tx.ID,
		&tx.Reference,
		&tx.Description,
		&tx.Timestamp,
		&tx.Amount,
		&tx.CreatedBy,
		&tx.CreatedAt,
	); err != nil {
		return models.Transaction{}, err
	}
	tx.Timestamp = tx.Timestamp.UTC()
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}

// translateError maps driver errors onto the storage sentinels while keeping
// the original error in the chain.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrNotFound, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			if pqErr.Constraint == constraintIdempotencyKey {
				return fmt.Errorf("%s: %w: %w", op, storage.ErrIdempotencyKeyUsed, err)
			}
			return fmt.Errorf("%s: %w: %w", op, storage.ErrDuplicate, err)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w: %w", op, storage.ErrNotFound, err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
