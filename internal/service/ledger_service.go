package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"
	"wallet-platform/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// pgLockNotAvailable is raised when SELECT ... FOR UPDATE NOWAIT loses the
// race for a row lock.
const pgLockNotAvailable = "55P03"

func isLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable
}

// LedgerServiceImpl implements ports.LedgerService. It is the only writer of
// wallet balances: every committed balance change is paired with exactly one
// WalletTransaction row carrying the post-change snapshot, persisted in the
// same database transaction.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	entryRepo  ports.WalletTransactionRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	entryRepo ports.WalletTransactionRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		transactor: transactor,
		log:        log,
	}
}

// Credit applies one balance mutation inside the caller's transaction. The
// wallet row is locked for the duration; the lock is released on commit or
// rollback by the caller.
func (s *LedgerServiceImpl) Credit(ctx context.Context, tx pgx.Tx, req ports.CreditRequest) (*domain.WalletTransaction, error) {
	if req.Amount.IsZero() {
		return nil, apperror.ErrInvalidAmount()
	}

	// Lock & get wallet
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, tx, req.WalletID)
	if err != nil {
		if isLockNotAvailable(err) {
			return nil, apperror.ErrConcurrentModification(err)
		}
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if wallet.Currency != req.Currency {
		return nil, apperror.Validation(fmt.Sprintf("wallet currency is %s, not %s", wallet.Currency, req.Currency))
	}

	// Negative entries are debits. The ledger records what happened and
	// does not police the resulting balance; a wallet may go below zero.
	newBalance := wallet.Balance.Add(req.Amount)

	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	entry := &domain.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		PerformedBy: req.PerformedBy,
		Balance:     newBalance,
		Note:        req.Note,
		Reference:   req.Reference,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("entry_id", entry.ID.String()).
		Str("amount", req.Amount.String()).
		Str("balance", newBalance.String()).
		Msg("wallet credited")

	return entry, nil
}

// CreditWallet opens its own transaction around Credit.
func (s *LedgerServiceImpl) CreditWallet(ctx context.Context, req ports.CreditRequest) (*domain.WalletTransaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := s.Credit(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return entry, nil
}
