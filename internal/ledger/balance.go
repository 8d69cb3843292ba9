package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/storage"
	"go.uber.org/zap"
)

// BalanceCalculator derives balances by replaying committed postings.
// Statement balances are exposed but never used to compute a balance.
type BalanceCalculator struct {
	accounts   interfaces.AccountStore
	postings   interfaces.PostingReader
	statements interfaces.StatementBalanceStore
	opts       options
}

// NewBalanceCalculator creates a calculator over the given stores.
func NewBalanceCalculator(accounts interfaces.AccountStore, postings interfaces.PostingReader, statements interfaces.StatementBalanceStore, opts ...Option) *BalanceCalculator {
	return &BalanceCalculator{
		accounts:   accounts,
		postings:   postings,
		statements: statements,
		opts:       buildOptions(opts),
	}
}

// SubAccountBalance is the sum of CR postings minus the sum of DR postings
// against the sub-account. A sub-account with no history has balance 0.
func (b *BalanceCalculator) SubAccountBalance(ctx context.Context, subAccountID uuid.UUID) (int64, error) {
	postings, err := b.postings.ListPostingsBySubAccount(ctx, subAccountID)
	if err != nil {
		b.opts.logger.Error("list postings failed", zap.Stringer("sub_account_id", subAccountID), zap.Error(err))
		return 0, internalError("could not compute balance", err)
	}
	return fold(postings), nil
}

// SubAccountBalances returns the balance of every sub-account owned by
// accountID, including those without postings.
func (b *BalanceCalculator) SubAccountBalances(ctx context.Context, accountID uuid.UUID) (map[uuid.UUID]int64, error) {
	subAccounts, err := b.accounts.ListSubAccounts(ctx, accountID)
	if err != nil {
		b.opts.logger.Error("list sub-accounts failed", zap.Stringer("account_id", accountID), zap.Error(err))
		return nil, internalError("could not compute balance", err)
	}

	postings, err := b.postings.ListPostingsByAccount(ctx, accountID)
	if err != nil {
		b.opts.logger.Error("list postings failed", zap.Stringer("account_id", accountID), zap.Error(err))
		return nil, internalError("could not compute balance", err)
	}

	balances := make(map[uuid.UUID]int64, len(subAccounts))
	for _, sa := range subAccounts {
		balances[sa.ID] = 0
	}
	for _, p := range postings {
		balances[p.SubAccountID] += signed(p)
	}
	return balances, nil
}

// AccountBalance is the sum of the balances of all the account's sub-accounts.
func (b *BalanceCalculator) AccountBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	balances, err := b.SubAccountBalances(ctx, accountID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, balance := range balances {
		total += balance
	}
	return total, nil
}

// TwoPartyBalance is partyA's balance restricted to transactions that touch
// sub-accounts of both partyA and partyB. Transactions touching only one of
// the two are ignored, whatever other accounts they involve.
func (b *BalanceCalculator) TwoPartyBalance(ctx context.Context, partyA, partyB uuid.UUID) (int64, error) {
	if partyA == partyB {
		return 0, nil
	}

	postingsA, err := b.postings.ListPostingsByAccount(ctx, partyA)
	if err != nil {
		b.opts.logger.Error("list postings failed", zap.Stringer("account_id", partyA), zap.Error(err))
		return 0, internalError("could not compute balance", err)
	}

	postingsB, err := b.postings.ListPostingsByAccount(ctx, partyB)
	if err != nil {
		b.opts.logger.Error("list postings failed", zap.Stringer("account_id", partyB), zap.Error(err))
		return 0, internalError("could not compute balance", err)
	}

	touchesB := make(map[uuid.UUID]struct{}, len(postingsB))
	for _, p := range postingsB {
		touchesB[p.TransactionID] = struct{}{}
	}

	var balance int64
	for _, p := range postingsA {
		if _, shared := touchesB[p.TransactionID]; shared {
			balance += signed(p)
		}
	}
	return balance, nil
}

// LatestStatementBalance returns the most recent snapshot for the sub-account.
func (b *BalanceCalculator) LatestStatementBalance(ctx context.Context, subAccountID uuid.UUID) (models.StatementBalance, bool, error) {
	snapshot, err := b.statements.LatestStatementBalance(ctx, subAccountID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.StatementBalance{}, false, nil
	}
	if err != nil {
		b.opts.logger.Error("latest statement balance failed", zap.Stringer("sub_account_id", subAccountID), zap.Error(err))
		return models.StatementBalance{}, false, internalError("could not load statement balance", err)
	}
	return snapshot, true, nil
}

// RecordStatementBalance stores a snapshot taken at the given time.
func (b *BalanceCalculator) RecordStatementBalance(ctx context.Context, subAccountID uuid.UUID, amount int64, at time.Time) (models.StatementBalance, error) {
	if at.IsZero() {
		return models.StatementBalance{}, validationError("balance_date_time", "is required")
	}

	snapshot := models.StatementBalance{
		ID:              uuid.New(),
		SubAccountID:    subAccountID,
		Amount:          amount,
		BalanceDateTime: at.UTC(),
	}

	if err := b.statements.InsertStatementBalance(ctx, snapshot); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.StatementBalance{}, notFoundError("sub_account_id", "sub-account does not exist")
		}
		b.opts.logger.Error("insert statement balance failed", zap.Stringer("sub_account_id", subAccountID), zap.Error(err))
		return models.StatementBalance{}, internalError("could not record statement balance", err)
	}
	return snapshot, nil
}

func fold(postings []models.Posting) int64 {
	var balance int64
	for _, p := range postings {
		balance += signed(p)
	}
	return balance
}

func signed(p models.Posting) int64 {
	if p.Direction == models.Debit {
		return -p.Amount
	}
	return p.Amount
}
