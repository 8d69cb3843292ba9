package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/interfaces"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models/events"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/storage"
	"go.uber.org/zap"
)

// Ledger persists balanced transactions and lists them per account.
// Entries are append-only: there is no update or delete.
type Ledger struct {
	store     interfaces.TransactionStore
	directory *Directory
	guard     *IdempotencyGuard
	opts      options
}

// Result is the outcome of CreateTransaction. Replayed is true when the
// idempotency key had already been used and nothing new was written.
type Result struct {
	models.PostedTransaction
	Replayed bool
}

// NewLedger creates a Ledger. The directory resolves posting sub-accounts.
func NewLedger(store interfaces.TransactionStore, directory *Directory, opts ...Option) *Ledger {
	return &Ledger{
		store:     store,
		directory: directory,
		guard:     NewIdempotencyGuard(store),
		opts:      buildOptions(opts),
	}
}

// CreateTransaction records req exactly once per idempotency key.
//
// A key that already has a committed transaction short-circuits to that
// transaction without re-validating req. Otherwise req is validated, its
// sub-accounts are resolved, and the transaction, its postings and the key
// registration are written in one unit of work.
func (l *Ledger) CreateTransaction(ctx context.Context, req models.TransactionRequest) (Result, error) {
	if req.IdempotencyKey == uuid.Nil {
		return Result{}, validationError("idempotency_key", "must be a non-nil UUID")
	}

	logger := l.opts.logger.With(zap.Stringer("idempotency_key", req.IdempotencyKey))

	reservation, err := l.guard.CheckAndReserve(ctx, req.IdempotencyKey)
	if err != nil {
		logger.Error("idempotency lookup failed", zap.Error(err))
		return Result{}, internalError("could not check idempotency key", err)
	}
	if existing, ok := reservation.Existing(); ok {
		logger.Info("idempotent replay", zap.Stringer("transaction_id", existing.ID))
		return Result{PostedTransaction: existing, Replayed: true}, nil
	}

	if err := validateRequest(req); err != nil {
		return Result{}, err
	}
	if err := l.resolveSubAccounts(ctx, req.Postings); err != nil {
		return Result{}, err
	}

	posted := l.build(req)

	err = l.store.WithinUnitOfWork(ctx, func(w interfaces.LedgerWriter) error {
		if err := w.InsertTransaction(ctx, posted.Transaction); err != nil {
			return err
		}
		for _, posting := range posted.Postings {
			if err := w.InsertPosting(ctx, posting); err != nil {
				return err
			}
		}
		return l.guard.Register(ctx, w, reservation, posted.ID)
	})
	if err != nil {
		return l.handleCommitError(ctx, logger, req, err)
	}

	logger.Info("transaction committed",
		zap.Stringer("transaction_id", posted.ID),
		zap.String("reference", posted.Reference),
		zap.Int64("amount", posted.Amount),
		zap.Int("postings", len(posted.Postings)))

	l.publish(ctx, logger, posted)

	return Result{PostedTransaction: posted}, nil
}

// handleCommitError turns a failed unit of work into a result. A conflicting
// writer that committed under the same key wins and its transaction is
// returned as a replay.
func (l *Ledger) handleCommitError(ctx context.Context, logger *zap.Logger, req models.TransactionRequest, err error) (Result, error) {
	if errors.Is(err, storage.ErrIdempotencyKeyUsed) || errors.Is(err, storage.ErrDuplicate) {
		winner, replayErr := l.guard.Replay(ctx, req.IdempotencyKey)
		if replayErr == nil {
			logger.Info("idempotency race lost, returning committed transaction",
				zap.Stringer("transaction_id", winner.ID))
			return Result{PostedTransaction: winner, Replayed: true}, nil
		}
		if !errors.Is(replayErr, storage.ErrNotFound) {
			logger.Error("replay after conflict failed", zap.Error(replayErr))
			return Result{}, internalError("could not load committed transaction", replayErr)
		}
		if errors.Is(err, storage.ErrDuplicate) {
			return Result{}, duplicateError("reference", "transaction reference already exists", err)
		}
	}

	if errors.Is(err, storage.ErrNotFound) {
		return Result{}, notFoundError("postings", "sub-account no longer exists")
	}

	logger.Error("commit transaction failed", zap.String("reference", req.Reference), zap.Error(err))
	return Result{}, internalError("could not record transaction", err)
}

// GetTransaction returns a committed transaction with its postings.
func (l *Ledger) GetTransaction(ctx context.Context, id uuid.UUID) (models.PostedTransaction, error) {
	tx, err := l.store.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.PostedTransaction{}, notFoundError("id", "transaction does not exist")
	}
	if err != nil {
		l.opts.logger.Error("get transaction failed", zap.Stringer("transaction_id", id), zap.Error(err))
		return models.PostedTransaction{}, internalError("could not load transaction", err)
	}

	postings, err := l.store.ListPostingsByTransaction(ctx, id)
	if err != nil {
		l.opts.logger.Error("list postings failed", zap.Stringer("transaction_id", id), zap.Error(err))
		return models.PostedTransaction{}, internalError("could not load postings", err)
	}

	return models.PostedTransaction{Transaction: tx, Postings: postings}, nil
}

// ListTransactionsForAccount returns the transactions with at least one
// posting under accountID, newest business timestamp first.
func (l *Ledger) ListTransactionsForAccount(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error) {
	transactions, err := l.store.ListTransactionsByAccount(ctx, accountID)
	if err != nil {
		l.opts.logger.Error("list transactions failed", zap.Stringer("account_id", accountID), zap.Error(err))
		return nil, internalError("could not list transactions", err)
	}
	return transactions, nil
}

func validateRequest(req models.TransactionRequest) error {
	if err := validateFreeText("reference", req.Reference); err != nil {
		return err
	}
	if err := validateFreeText("description", req.Description); err != nil {
		return err
	}
	if err := validateFreeText("created_by", req.CreatedBy); err != nil {
		return err
	}
	if req.Timestamp.IsZero() {
		return validationError("timestamp", "is required")
	}

	candidate := Candidate{Amount: req.Amount, Postings: make([]CandidatePosting, len(req.Postings))}
	for i, p := range req.Postings {
		candidate.Postings[i] = CandidatePosting{Direction: p.Direction, Amount: p.Amount, SubAccountID: p.SubAccountID}
	}
	return Validate(candidate)
}

func (l *Ledger) resolveSubAccounts(ctx context.Context, postings []models.PostingRequest) error {
	resolved := make(map[uuid.UUID]struct{}, len(postings))
	for i, p := range postings {
		if _, done := resolved[p.SubAccountID]; done {
			continue
		}

		_, found, err := l.directory.ResolveSubAccount(ctx, p.SubAccountID)
		if err != nil {
			return err
		}
		if !found {
			return notFoundError(fmt.Sprintf("postings[%d].sub_account_id", i),
				fmt.Sprintf("sub-account %s does not exist", p.SubAccountID))
		}
		resolved[p.SubAccountID] = struct{}{}
	}
	return nil
}

func (l *Ledger) build(req models.TransactionRequest) models.PostedTransaction {
	now := l.opts.now()

	tx := models.Transaction{
		ID:          uuid.New(),
		Reference:   req.Reference,
		Description: req.Description,
		Timestamp:   req.Timestamp.UTC(),
		Amount:      req.Amount,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
	}

	postings := make([]models.Posting, len(req.Postings))
	for i, p := range req.Postings {
		postings[i] = models.Posting{
			ID:            uuid.New(),
			Direction:     p.Direction,
			Amount:        p.Amount,
			SubAccountID:  p.SubAccountID,
			TransactionID: tx.ID,
			CreatedBy:     req.CreatedBy,
			CreatedAt:     now,
		}
	}

	return models.PostedTransaction{Transaction: tx, Postings: postings}
}

// publish is best-effort: the transaction is already committed.
func (l *Ledger) publish(ctx context.Context, logger *zap.Logger, posted models.PostedTransaction) {
	if l.opts.publisher == nil {
		return
	}

	event := events.TransactionCommitted{
		TransactionID: posted.ID.String(),
		Reference:     posted.Reference,
		AmountMinor:   posted.Amount,
		Amount:        models.MajorUnits(posted.Amount),
		Postings:      make([]events.PostingLine, len(posted.Postings)),
		Timestamp:     posted.Timestamp,
		OccurredAt:    posted.CreatedAt,
	}
	for i, p := range posted.Postings {
		event.Postings[i] = events.PostingLine{
			SubAccountID: p.SubAccountID.String(),
			Type:         string(p.Direction),
			AmountMinor:  p.Amount,
		}
	}

	if err := l.opts.publisher.Publish(ctx, l.opts.topic, event.TransactionID, event); err != nil {
		logger.Warn("publish transaction committed event failed",
			zap.Stringer("transaction_id", posted.ID), zap.String("topic", l.opts.topic), zap.Error(err))
	}
}
