package service

import (
	"context"
	"fmt"
	"time"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"
	"wallet-platform/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TopoffServiceImpl implements ports.TopoffService: it orchestrates the
// top-off flow from gateway selection through the provider initiate call,
// ending with the redirect handle for the payer's browser.
type TopoffServiceImpl struct {
	selector      ports.GatewaySelector
	walletRepo    ports.WalletRepository
	gwTxnRepo     ports.GatewayTransactionRepository
	clientFactory ports.GatewayClientFactory
	log           zerolog.Logger
}

// NewTopoffService creates a new TopoffServiceImpl.
func NewTopoffService(
	selector ports.GatewaySelector,
	walletRepo ports.WalletRepository,
	gwTxnRepo ports.GatewayTransactionRepository,
	clientFactory ports.GatewayClientFactory,
	log zerolog.Logger,
) *TopoffServiceImpl {
	return &TopoffServiceImpl{
		selector:      selector,
		walletRepo:    walletRepo,
		gwTxnRepo:     gwTxnRepo,
		clientFactory: clientFactory,
		log:           log,
	}
}

// Topoff starts a wallet top-off. The PENDING row is created before the
// provider call; an initiate failure therefore leaves an orphan PENDING row
// with no token, which never settles and is swept by operators.
func (s *TopoffServiceImpl) Topoff(ctx context.Context, req ports.TopoffRequest) (*ports.PaymentHandle, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Currency.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unsupported currency %q", req.Currency))
	}

	// Gateway selection happens before any row is written: no active gateway
	// means no GatewayTransaction.
	gw, err := s.selector.Select(ctx, req.Currency)
	if err != nil {
		return nil, err
	}

	wallet, err := s.resolveWallet(ctx, req.TargetUser, req.Currency)
	if err != nil {
		return nil, err
	}

	// The transaction is attributed to the actor who asked for it. The
	// wallet decides who receives the funds; an agency topping off a
	// customer stays the payer of record.
	now := time.Now().UTC()
	txn := &domain.GatewayTransaction{
		ID:          uuid.New(),
		UserID:      req.RequestedBy.ID,
		GatewayID:   gw.ID,
		WalletID:    &wallet.ID,
		Status:      domain.TransactionStatusPending,
		Kind:        domain.TransactionKindTopoff,
		Amount:      req.Amount,
		Currency:    req.Currency,
		ReferenceID: req.Reference,
		Note:        req.Note,
		ReturnURL:   req.ReturnURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.gwTxnRepo.Create(ctx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create gateway transaction: %w", err))
	}

	client, err := s.clientFactory.ClientFor(gw)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build gateway client: %w", err))
	}

	handle, err := client.Initiate(ctx, ports.InitiateRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		PhoneNumber: req.RequestedBy.PhoneNumber,
		OrderID:     txn.ID.String(),
		Reference:   req.Reference,
		Description: req.Note,
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("txn_id", txn.ID.String()).
			Str("gateway_id", gw.ID.String()).
			Msg("gateway initiate failed, transaction left pending without token")
		return nil, apperror.ErrProviderFailure(err)
	}

	if err := s.gwTxnRepo.SetToken(ctx, txn.ID, handle.Token); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("store gateway token: %w", err))
	}

	s.log.Info().
		Str("txn_id", txn.ID.String()).
		Str("gateway_id", gw.ID.String()).
		Str("user_id", req.TargetUser.ID.String()).
		Str("amount", req.Amount.String()).
		Msg("top-off initiated")

	return handle, nil
}

// resolveWallet finds the wallet to credit: the target's business wallet when
// the account belongs to a business, the personal wallet otherwise.
func (s *TopoffServiceImpl) resolveWallet(ctx context.Context, target *domain.User, currency domain.Currency) (*domain.Wallet, error) {
	var (
		wallet *domain.Wallet
		err    error
	)
	if target.IsBusinessSet() {
		wallet, err = s.walletRepo.GetByBusinessID(ctx, *target.BusinessID, currency)
	} else {
		wallet, err = s.walletRepo.GetByUserID(ctx, target.ID, currency)
	}
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}
