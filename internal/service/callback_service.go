package service

import (
	"context"
	"fmt"
	"net/url"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"
	"wallet-platform/pkg/apperror"

	"github.com/rs/zerolog"
)

// CallbackServiceImpl implements ports.CallbackService, the reconciler for
// gateway callbacks. For each gateway transaction exactly one terminal state
// is ever committed: the first callback to take the row lock while the status
// is still PENDING settles it, every later delivery observes a terminal
// status and is answered as a no-op.
type CallbackServiceImpl struct {
	gwTxnRepo       ports.GatewayTransactionRepository
	gatewayRepo     ports.GatewayRepository
	ledger          ports.LedgerService
	clientFactory   ports.GatewayClientFactory
	transactor      ports.DBTransactor
	confirmationURL string
	log             zerolog.Logger
}

// NewCallbackService creates a new CallbackServiceImpl. confirmationURL is
// the fallback redirect target for transactions without a return URL.
func NewCallbackService(
	gwTxnRepo ports.GatewayTransactionRepository,
	gatewayRepo ports.GatewayRepository,
	ledger ports.LedgerService,
	clientFactory ports.GatewayClientFactory,
	transactor ports.DBTransactor,
	confirmationURL string,
	log zerolog.Logger,
) *CallbackServiceImpl {
	return &CallbackServiceImpl{
		gwTxnRepo:       gwTxnRepo,
		gatewayRepo:     gatewayRepo,
		ledger:          ledger,
		clientFactory:   clientFactory,
		transactor:      transactor,
		confirmationURL: confirmationURL,
		log:             log,
	}
}

// HandleCallback settles one gateway callback. On a duplicate delivery it
// returns the already-settled result together with ErrAlreadyProcessed; the
// HTTP layer still redirects, since gateways must not be told to retry a
// handled callback.
func (s *CallbackServiceImpl) HandleCallback(ctx context.Context, req ports.CallbackRequest) (*ports.CallbackResult, error) {
	// The token lookup doubles as authentication: a forged or stale callback
	// that does not carry the provider-issued token matches no row.
	txn, err := s.gwTxnRepo.GetByIDAndToken(ctx, req.TransactionID, req.Token)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find gateway transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrTransactionNotFound()
	}

	// Cheap pre-check before taking the lock. Racy by itself, repeated below
	// under the lock.
	if !txn.IsPending() {
		return s.settledResult(txn), apperror.ErrAlreadyProcessed()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock ordering: GatewayTransaction row first, Wallet row second (inside
	// the ledger credit). Every flow touching both must lock in this order.
	locked, err := s.gwTxnRepo.GetByIDForUpdate(ctx, dbTx, txn.ID)
	if err != nil {
		if isLockNotAvailable(err) {
			return nil, apperror.ErrConcurrentModification(err)
		}
		return nil, apperror.InternalError(fmt.Errorf("lock gateway transaction: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	if !locked.IsPending() {
		return s.settledResult(locked), apperror.ErrAlreadyProcessed()
	}

	gw, err := s.gatewayRepo.GetByID(ctx, locked.GatewayID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load gateway: %w", err))
	}
	if gw == nil {
		return nil, apperror.InternalError(fmt.Errorf("gateway %s referenced by transaction %s not found", locked.GatewayID, locked.ID))
	}

	client, err := s.clientFactory.ClientFor(gw)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build gateway client: %w", err))
	}

	// Some providers (SEP) verify by the reference number delivered in the
	// callback rather than the initiate token.
	if req.IPGReferenceID != nil {
		locked.IPGReferenceID = req.IPGReferenceID
	}

	// The verify call happens while the row lock is held: its outcome decides
	// whether the wallet credit below happens, and releasing the lock in
	// between would reopen the duplicate-callback race. A transport error
	// rolls back, leaving the row PENDING for the next delivery.
	if err := client.Verify(ctx, locked); err != nil {
		s.log.Error().Err(err).
			Str("txn_id", locked.ID.String()).
			Str("gateway_type", string(gw.Type)).
			Msg("gateway verify failed, transaction left pending")
		return nil, apperror.ErrProviderFailure(err)
	}

	if locked.Status == domain.TransactionStatusSuccess {
		if locked.WalletID == nil {
			return nil, apperror.InternalError(fmt.Errorf("transaction %s has no wallet", locked.ID))
		}
		if _, err := s.ledger.Credit(ctx, dbTx, ports.CreditRequest{
			WalletID:    *locked.WalletID,
			Amount:      locked.Amount,
			Currency:    locked.Currency,
			PerformedBy: locked.UserID,
			Note:        locked.Note,
			Reference:   locked.ReferenceID,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.gwTxnRepo.Finalize(ctx, dbTx, locked); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("finalize gateway transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("txn_id", locked.ID.String()).
		Str("status", string(locked.Status)).
		Str("amount", locked.Amount.String()).
		Msg("gateway callback settled")

	return s.settledResult(locked), nil
}

func (s *CallbackServiceImpl) settledResult(txn *domain.GatewayTransaction) *ports.CallbackResult {
	return &ports.CallbackResult{
		Status:      txn.Status,
		RedirectURL: s.redirectFor(txn),
	}
}

// redirectFor picks the per-transaction return URL when one was supplied at
// initiation, the configured confirmation page otherwise, and tags it with
// the outcome.
func (s *CallbackServiceImpl) redirectFor(txn *domain.GatewayTransaction) string {
	base := s.confirmationURL
	if txn.ReturnURL != nil && *txn.ReturnURL != "" {
		base = *txn.ReturnURL
	}

	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("status", string(txn.Status))
	q.Set("transaction_id", txn.ID.String())
	u.RawQuery = q.Encode()
	return u.String()
}
