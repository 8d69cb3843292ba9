package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/storage"
)

type subAccountKey struct {
	accountID uuid.UUID
	reference string
}

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// It enforces the same uniqueness and foreign-key rules as the SQL schema.
// Writes are serialised; reads share the lock and never see a unit of work
// before it is applied.
type MemoryLedgerStore struct {
	mu sync.RWMutex

	accounts       map[uuid.UUID]models.Account
	accountRefs    map[string]uuid.UUID
	subAccounts    map[uuid.UUID]models.SubAccount
	subAccountRefs map[subAccountKey]uuid.UUID
	subAccountSeq  []uuid.UUID // creation order

	transactions    map[uuid.UUID]models.Transaction
	transactionRefs map[string]uuid.UUID
	postings        []models.Posting // creation order
	idempotencyKeys map[uuid.UUID]uuid.UUID
	keyedTxs        map[uuid.UUID]struct{}

	statements []models.StatementBalance
}

// NewMemoryLedgerStore creates an empty store.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts:        make(map[uuid.UUID]models.Account),
		accountRefs:     make(map[string]uuid.UUID),
		subAccounts:     make(map[uuid.UUID]models.SubAccount),
		subAccountRefs:  make(map[subAccountKey]uuid.UUID),
		transactions:    make(map[uuid.UUID]models.Transaction),
		transactionRefs: make(map[string]uuid.UUID),
		idempotencyKeys: make(map[uuid.UUID]uuid.UUID),
		keyedTxs:        make(map[uuid.UUID]struct{}),
	}
}

func (m *MemoryLedgerStore) InsertAccount(ctx context.Context, account models.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[account.ID]; exists {
		return fmt.Errorf("account %s: %w", account.ID, storage.ErrDuplicate)
	}
	if _, exists := m.accountRefs[account.Reference]; exists {
		return fmt.Errorf("account reference %q: %w", account.Reference, storage.ErrDuplicate)
	}

	m.accounts[account.ID] = account
	m.accountRefs[account.Reference] = account.ID
	return nil
}

func (m *MemoryLedgerStore) InsertSubAccount(ctx context.Context, subAccount models.SubAccount) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[subAccount.AccountID]; !exists {
		return fmt.Errorf("parent account %s: %w", subAccount.AccountID, storage.ErrNotFound)
	}
	if _, exists := m.subAccounts[subAccount.ID]; exists {
		return fmt.Errorf("sub-account %s: %w", subAccount.ID, storage.ErrDuplicate)
	}
	key := subAccountKey{accountID: subAccount.AccountID, reference: subAccount.Reference}
	if _, exists := m.subAccountRefs[key]; exists {
		return fmt.Errorf("sub-account reference %q: %w", subAccount.Reference, storage.ErrDuplicate)
	}

	m.subAccounts[subAccount.ID] = subAccount
	m.subAccountRefs[key] = subAccount.ID
	m.subAccountSeq = append(m.subAccountSeq, subAccount.ID)
	return nil
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	if err := ctx.Err(); err != nil {
		return models.Account{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	return account, nil
}

func (m *MemoryLedgerStore) GetSubAccount(ctx context.Context, id uuid.UUID) (models.SubAccount, error) {
	if err := ctx.Err(); err != nil {
		return models.SubAccount{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	subAccount, ok := m.subAccounts[id]
	if !ok {
		return models.SubAccount{}, fmt.Errorf("sub-account %s: %w", id, storage.ErrNotFound)
	}
	return subAccount, nil
}

func (m *MemoryLedgerStore) FindAccountsByReference(ctx context.Context, reference string) ([]models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.accountRefs[reference]
	if !ok {
		return []models.Account{}, nil
	}
	return []models.Account{m.accounts[id]}, nil
}

func (m *MemoryLedgerStore) ListSubAccounts(ctx context.Context, accountID uuid.UUID) ([]models.SubAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []models.SubAccount{}
	for _, id := range m.subAccountSeq {
		if sa := m.subAccounts[id]; sa.AccountID == accountID {
			result = append(result, sa)
		}
	}
	return result, nil
}

// WithinUnitOfWork holds the write lock for the whole unit and applies the
// staged rows only if fn succeeds.
func (m *MemoryLedgerStore) WithinUnitOfWork(ctx context.Context, fn func(w interfaces.LedgerWriter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	uow := &unitOfWork{store: m, keys: make(map[uuid.UUID]uuid.UUID)}
	if err := fn(uow); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	uow.apply()
	return nil
}

func (m *MemoryLedgerStore) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return models.Transaction{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[id]
	if !ok {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return tx, nil
}

func (m *MemoryLedgerStore) FindTransactionByIdempotencyKey(ctx context.Context, key uuid.UUID) (models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return models.Transaction{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	txID, ok := m.idempotencyKeys[key]
	if !ok {
		return models.Transaction{}, fmt.Errorf("idempotency key %s: %w", key, storage.ErrNotFound)
	}
	return m.transactions[txID], nil
}

func (m *MemoryLedgerStore) ListPostingsByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.Posting, error) {
	return m.filterPostings(ctx, func(p models.Posting) bool {
		return p.TransactionID == transactionID
	})
}

func (m *MemoryLedgerStore) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	result := []models.Transaction{}
	for _, p := range m.postings {
		if m.subAccounts[p.SubAccountID].AccountID != accountID {
			continue
		}
		if _, dup := seen[p.TransactionID]; dup {
			continue
		}
		seen[p.TransactionID] = struct{}{}
		result = append(result, m.transactions[p.TransactionID])
	}

	slices.SortStableFunc(result, func(a, b models.Transaction) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

func (m *MemoryLedgerStore) ListPostingsBySubAccount(ctx context.Context, subAccountID uuid.UUID) ([]models.Posting, error) {
	return m.filterPostings(ctx, func(p models.Posting) bool {
		return p.SubAccountID == subAccountID
	})
}

func (m *MemoryLedgerStore) ListPostingsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Posting, error) {
	return m.filterPostings(ctx, func(p models.Posting) bool {
		return m.subAccounts[p.SubAccountID].AccountID == accountID
	})
}

// filterPostings must be called without m.mu held.
func (m *MemoryLedgerStore) filterPostings(ctx context.Context, keep func(models.Posting) bool) ([]models.Posting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []models.Posting{}
	for _, p := range m.postings {
		if keep(p) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MemoryLedgerStore) InsertStatementBalance(ctx context.Context, balance models.StatementBalance) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.subAccounts[balance.SubAccountID]; !exists {
		return fmt.Errorf("sub-account %s: %w", balance.SubAccountID, storage.ErrNotFound)
	}
	for _, s := range m.statements {
		if s.ID == balance.ID {
			return fmt.Errorf("statement balance %s: %w", balance.ID, storage.ErrDuplicate)
		}
	}

	m.statements = append(m.statements, balance)
	return nil
}

func (m *MemoryLedgerStore) LatestStatementBalance(ctx context.Context, subAccountID uuid.UUID) (models.StatementBalance, error) {
	if err := ctx.Err(); err != nil {
		return models.StatementBalance{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		latest models.StatementBalance
		found  bool
	)
	for _, s := range m.statements {
		if s.SubAccountID != subAccountID {
			continue
		}
		if !found || s.BalanceDateTime.After(latest.BalanceDateTime) {
			latest, found = s, true
		}
	}
	if !found {
		return models.StatementBalance{}, fmt.Errorf("statement balance for %s: %w", subAccountID, storage.ErrNotFound)
	}
	return latest, nil
}

// Close is a no-op; it exists so the memory store satisfies interfaces.LedgerStore.
func (m *MemoryLedgerStore) Close() error { return nil }

// unitOfWork stages writes while the store's write lock is held.
type unitOfWork struct {
	store        *MemoryLedgerStore
	transactions []models.Transaction
	postings     []models.Posting
	keys         map[uuid.UUID]uuid.UUID
}

func (u *unitOfWork) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.hasTransaction(tx.ID) {
		return fmt.Errorf("transaction %s: %w", tx.ID, storage.ErrDuplicate)
	}
	if _, exists := u.store.transactionRefs[tx.Reference]; exists {
		return fmt.Errorf("transaction reference %q: %w", tx.Reference, storage.ErrDuplicate)
	}
	for _, staged := range u.transactions {
		if staged.Reference == tx.Reference {
			return fmt.Errorf("transaction reference %q: %w", tx.Reference, storage.ErrDuplicate)
		}
	}

	u.transactions = append(u.transactions, tx)
	return nil
}

func (u *unitOfWork) InsertPosting(ctx context.Context, posting models.Posting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := u.store.subAccounts[posting.SubAccountID]; !exists {
		return fmt.Errorf("sub-account %s: %w", posting.SubAccountID, storage.ErrNotFound)
	}
	if !u.hasTransaction(posting.TransactionID) {
		return fmt.Errorf("transaction %s: %w", posting.TransactionID, storage.ErrNotFound)
	}

	u.postings = append(u.postings, posting)
	return nil
}

func (u *unitOfWork) RegisterIdempotencyKey(ctx context.Context, key uuid.UUID, transactionID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, used := u.store.idempotencyKeys[key]; used {
		return fmt.Errorf("key %s: %w", key, storage.ErrIdempotencyKeyUsed)
	}
	if _, used := u.keys[key]; used {
		return fmt.Errorf("key %s: %w", key, storage.ErrIdempotencyKeyUsed)
	}
	if !u.hasTransaction(transactionID) {
		return fmt.Errorf("transaction %s: %w", transactionID, storage.ErrNotFound)
	}
	if _, keyed := u.store.keyedTxs[transactionID]; keyed {
		return fmt.Errorf("transaction %s already keyed: %w", transactionID, storage.ErrDuplicate)
	}
	for _, staged := range u.keys {
		if staged == transactionID {
			return fmt.Errorf("transaction %s already keyed: %w", transactionID, storage.ErrDuplicate)
		}
	}

	u.keys[key] = transactionID
	return nil
}

func (u *unitOfWork) hasTransaction(id uuid.UUID) bool {
	if _, exists := u.store.transactions[id]; exists {
		return true
	}
	for _, staged := range u.transactions {
		if staged.ID == id {
			return true
		}
	}
	return false
}

func (u *unitOfWork) apply() {
	s := u.store
	for _, tx := range u.transactions {
		s.transactions[tx.ID] = tx
		s.transactionRefs[tx.Reference] = tx.ID
	}
	s.postings = append(s.postings, u.postings...)
	for key, txID := range u.keys {
		s.idempotencyKeys[key] = txID
		s.keyedTxs[txID] = struct{}{}
	}
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
