package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/storage"
	"go.uber.org/zap"
)

// Directory owns account and sub-account identity and the hierarchy lookups.
type Directory struct {
	store interfaces.AccountStore
	opts  options
}

// NewDirectory creates a Directory over the given account store.
func NewDirectory(store interfaces.AccountStore, opts ...Option) *Directory {
	return &Directory{store: store, opts: buildOptions(opts)}
}

// CreateAccount registers a new top-level account. The reference is compared
// case-sensitively; uniqueness is enforced by the store.
func (d *Directory) CreateAccount(ctx context.Context, reference string, accountType models.AccountType, createdBy string) (models.Account, error) {
	if err := validateReference("reference", reference); err != nil {
		return models.Account{}, err
	}
	if !accountType.Valid() {
		return models.Account{}, validationError("type", "must be INSTITUTION or PERSON")
	}
	if err := validateFreeText("created_by", createdBy); err != nil {
		return models.Account{}, err
	}

	account := models.Account{
		ID:        uuid.New(),
		Reference: reference,
		Type:      accountType,
		CreatedBy: createdBy,
		CreatedAt: d.opts.now(),
	}

	if err := d.store.InsertAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return models.Account{}, duplicateError("reference", "account reference already exists", err)
		}
		d.opts.logger.Error("insert account failed", zap.String("reference", reference), zap.Error(err))
		return models.Account{}, internalError("could not create account", err)
	}

	d.opts.logger.Info("account created",
		zap.Stringer("account_id", account.ID),
		zap.String("reference", account.Reference),
		zap.String("type", string(account.Type)))

	return account, nil
}

// CreateSubAccount adds a sub-account under parentAccountID. The reference
// only has to be unique within that parent.
func (d *Directory) CreateSubAccount(ctx context.Context, parentAccountID uuid.UUID, reference string, createdBy string) (models.SubAccount, error) {
	if err := validateReference("reference", reference); err != nil {
		return models.SubAccount{}, err
	}
	if err := validateFreeText("created_by", createdBy); err != nil {
		return models.SubAccount{}, err
	}

	if _, found, err := d.ResolveAccount(ctx, parentAccountID); err != nil {
		return models.SubAccount{}, err
	} else if !found {
		return models.SubAccount{}, notFoundError("account_id", "parent account does not exist")
	}

	subAccount := models.SubAccount{
		ID:        uuid.New(),
		AccountID: parentAccountID,
		Reference: reference,
		CreatedBy: createdBy,
		CreatedAt: d.opts.now(),
	}

	if err := d.store.InsertSubAccount(ctx, subAccount); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			return models.SubAccount{}, duplicateError("reference", "sub-account reference already exists for this account", err)
		case errors.Is(err, storage.ErrNotFound):
			return models.SubAccount{}, notFoundError("account_id", "parent account does not exist")
		}
		d.opts.logger.Error("insert sub-account failed",
			zap.Stringer("account_id", parentAccountID), zap.String("reference", reference), zap.Error(err))
		return models.SubAccount{}, internalError("could not create sub-account", err)
	}

	d.opts.logger.Info("sub-account created",
		zap.Stringer("sub_account_id", subAccount.ID),
		zap.Stringer("account_id", parentAccountID),
		zap.String("reference", reference))

	return subAccount, nil
}

// ResolveAccount looks an account up by id.
func (d *Directory) ResolveAccount(ctx context.Context, id uuid.UUID) (models.Account, bool, error) {
	account, err := d.store.GetAccount(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Account{}, false, nil
	}
	if err != nil {
		d.opts.logger.Error("get account failed", zap.Stringer("account_id", id), zap.Error(err))
		return models.Account{}, false, internalError("could not load account", err)
	}
	return account, true, nil
}

// ResolveSubAccount looks a sub-account up by id.
func (d *Directory) ResolveSubAccount(ctx context.Context, id uuid.UUID) (models.SubAccount, bool, error) {
	subAccount, err := d.store.GetSubAccount(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.SubAccount{}, false, nil
	}
	if err != nil {
		d.opts.logger.Error("get sub-account failed", zap.Stringer("sub_account_id", id), zap.Error(err))
		return models.SubAccount{}, false, internalError("could not load sub-account", err)
	}
	return subAccount, true, nil
}

// FindAccountsByReference returns every account with the given reference.
// Callers must not assume at most one match.
func (d *Directory) FindAccountsByReference(ctx context.Context, reference string) ([]models.Account, error) {
	accounts, err := d.store.FindAccountsByReference(ctx, reference)
	if err != nil {
		d.opts.logger.Error("find accounts failed", zap.String("reference", reference), zap.Error(err))
		return nil, internalError("could not search accounts", err)
	}
	return accounts, nil
}

// ListSubAccounts returns the sub-accounts owned by accountID.
func (d *Directory) ListSubAccounts(ctx context.Context, accountID uuid.UUID) ([]models.SubAccount, error) {
	subAccounts, err := d.store.ListSubAccounts(ctx, accountID)
	if err != nil {
		d.opts.logger.Error("list sub-accounts failed", zap.Stringer("account_id", accountID), zap.Error(err))
		return nil, internalError("could not list sub-accounts", err)
	}
	return subAccounts, nil
}
