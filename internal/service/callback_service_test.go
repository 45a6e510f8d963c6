package service

import (
	"context"
	"errors"
	"testing"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"
	"wallet-platform/internal/core/ports/mocks"
	"wallet-platform/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const confirmationURL = "https://app.example.com/payment/result"

type callbackTestDeps struct {
	svc           *CallbackServiceImpl
	gwTxnRepo     *mocks.MockGatewayTransactionRepository
	gatewayRepo   *mocks.MockGatewayRepository
	ledger        *mocks.MockLedgerService
	clientFactory *mocks.MockGatewayClientFactory
	client        *mocks.MockGatewayClient
	transactor    *mocks.MockDBTransactor
	ctrl          *gomock.Controller
}

func setupCallbackService(t *testing.T) *callbackTestDeps {
	ctrl := gomock.NewController(t)
	d := &callbackTestDeps{
		gwTxnRepo:     mocks.NewMockGatewayTransactionRepository(ctrl),
		gatewayRepo:   mocks.NewMockGatewayRepository(ctrl),
		ledger:        mocks.NewMockLedgerService(ctrl),
		clientFactory: mocks.NewMockGatewayClientFactory(ctrl),
		client:        mocks.NewMockGatewayClient(ctrl),
		transactor:    mocks.NewMockDBTransactor(ctrl),
		ctrl:          ctrl,
	}
	d.svc = NewCallbackService(
		d.gwTxnRepo, d.gatewayRepo, d.ledger, d.clientFactory,
		d.transactor, confirmationURL, zerolog.Nop(),
	)
	return d
}

func pendingTxn() *domain.GatewayTransaction {
	token := "gw-token"
	walletID := uuid.New()
	return &domain.GatewayTransaction{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		GatewayID: uuid.New(),
		WalletID:  &walletID,
		Status:    domain.TransactionStatusPending,
		Kind:      domain.TransactionKindTopoff,
		Amount:    decimal.NewFromInt(50000),
		Currency:  domain.CurrencyIRR,
		Token:     &token,
	}
}

func TestCallbackService_HandleCallback_SuccessCreditsWallet(t *testing.T) {
	d := setupCallbackService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn()
	locked := *txn
	gw := &domain.Gateway{ID: txn.GatewayID, Type: domain.GatewayTypeNextPay}
	tx := &mockTx{}

	d.gwTxnRepo.EXPECT().GetByIDAndToken(ctx, txn.ID, "gw-token").Return(txn, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.gwTxnRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(&locked, nil)
	d.gatewayRepo.EXPECT().GetByID(ctx, txn.GatewayID).Return(gw, nil)
	d.clientFactory.EXPECT().ClientFor(gw).Return(d.client, nil)
	d.client.EXPECT().Verify(ctx, &locked).
		DoAndReturn(func(_ context.Context, tr *domain.GatewayTransaction) error {
			tr.Status = domain.TransactionStatusSuccess
			return nil
		})
	d.ledger.EXPECT().Credit(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ any, req ports.CreditRequest) (*domain.WalletTransaction, error) {
			assert.Equal(t, *txn.WalletID, req.WalletID)
			assert.True(t, req.Amount.Equal(decimal.NewFromInt(50000)))
			assert.Equal(t, txn.UserID, req.PerformedBy)
			return &domain.WalletTransaction{ID: uuid.New()}, nil
		})
	d.gwTxnRepo.EXPECT().Finalize(ctx, tx, &locked).Return(nil)

	result, err := d.svc.HandleCallback(ctx, ports.CallbackRequest{TransactionID: txn.ID, Token: "gw-token"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, result.Status)
	assert.Contains(t, result.RedirectURL, confirmationURL)
	assert.Contains(t, result.RedirectURL, "status=SUCCESS")
}

func TestCallbackService_HandleCallback_FailedNoCredit(t *testing.T) {
	d := setupCallbackService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn()
	locked := *txn
	gw := &domain.Gateway{ID: txn.GatewayID, Type: domain.GatewayTypeNextPay}
	tx := &mockTx{}

	d.gwTxnRepo.EXPECT().GetByIDAndToken(ctx, txn.ID, "gw-token").Return(txn, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.gwTxnRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(&locked, nil)
	d.gatewayRepo.EXPECT().GetByID(ctx, txn.GatewayID).Return(gw, nil)
	d.clientFactory.EXPECT().ClientFor(gw).Return(d.client, nil)
	// No ledger expectation: FAILED must not touch the wallet.
	d.client.EXPECT().Verify(ctx, &locked).
		DoAndReturn(func(_ context.Context, tr *domain.GatewayTransaction) error {
			tr.Status = domain.TransactionStatusFailed
			return nil
		})
	d.gwTxnRepo.EXPECT().Finalize(ctx, tx, &locked).Return(nil)

	result, err := d.svc.HandleCallback(ctx, ports.CallbackRequest{TransactionID: txn.ID, Token: "gw-token"})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, result.Status)
}

func TestCallbackService_HandleCallback_DiscrepancyNoCredit(t *testing.T) {
	d := setupCallbackService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn()
	locked := *txn
	gw := &domain.Gateway{ID: txn.GatewayID, Type: domain.GatewayTypeSep}
	tx := &mockTx{}

	refNum := "sep-ref"
	d.gwTxnRepo.EXPECT().GetByIDAndToken(ctx, txn.ID, "gw-token").Return(txn, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.gwTxnRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(&locked, nil)
	d.gatewayRepo.EXPECT().GetByID(ctx, txn.GatewayID).Return(gw, nil)
	d.clientFactory.EXPECT().ClientFor(gw).Return(d.client, nil)
	d.client.EXPECT().Verify(ctx, &locked).
		DoAndReturn(func(_ context.Context, tr *domain.GatewayTransaction) error {
			// The callback's reference number must reach the verify call.
			require.NotNil(t, tr.IPGReferenceID)
			assert.Equal(t, refNum, *tr.IPGReferenceID)
			tr.Status = domain.TransactionStatusDiscrepancy
			return nil
		})
	d.gwTxnRepo.EXPECT().Finalize(ctx, tx, &locked).Return(nil)

	result, err := d.svc.HandleCallback(ctx, ports.CallbackRequest{
		TransactionID:  txn.ID,
		Token:          "gw-token",
		IPGReferenceID: &refNum,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusDiscrepancy, result.Status)
}

func TestCallbackService_HandleCallback_UnknownIDOrToken(t *testing.T) {
	d := setupCallbackService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	d.gwTxnRepo.EXPECT().GetByIDAndToken(ctx, id, "forged").Return(nil, nil)

	_, err := d.svc.HandleCallback(ctx, ports.CallbackRequest{TransactionID: id, Token: "forged"})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "GTW_002", appErr.Code)
}

func TestCallbackService_HandleCallback_DuplicateDelivery(t *testing.T) {
	d := setupCallbackService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn()
	txn.Status = domain.TransactionStatusSuccess

	d.gwTxnRepo.EXPECT().GetByIDAndToken(ctx, txn.ID, "gw-token").Return(txn, nil)

	result, err := d.svc.HandleCallback(ctx, ports.CallbackRequest{TransactionID: txn.ID, Token: "gw-token"})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "GTW_003", appErr.Code)
	// The already-settled result still carries the redirect so the gateway is
	// not told to retry.
	require.NotNil(t, result)
	assert.Equal(t, domain.TransactionStatusSuccess, result.Status)
	assert.Contains(t, result.RedirectURL, "status=SUCCESS")
}

func TestCallbackService_HandleCallback_SettledUnderLock(t *testing.T) {
	d := setupCallbackService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn()
	settled := *txn
	settled.Status = domain.TransactionStatusFailed
	tx := &mockTx{}

	d.gwTxnRepo.EXPECT().GetByIDAndToken(ctx, txn.ID, "gw-token").Return(txn, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// A concurrent callback won the race between the pre-check and the lock.
	d.gwTxnRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(&settled, nil)

	result, err := d.svc.HandleCallback(ctx, ports.CallbackRequest{TransactionID: txn.ID, Token: "gw-token"})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "GTW_003", appErr.Code)
	require.NotNil(t, result)
	assert.Equal(t, domain.TransactionStatusFailed, result.Status)
}

func TestCallbackService_HandleCallback_LockNotAvailable(t *testing.T) {
	d := setupCallbackService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn()
	tx := &mockTx{}

	d.gwTxnRepo.EXPECT().GetByIDAndToken(ctx, txn.ID, "gw-token").Return(txn, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.gwTxnRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(nil, &pgconn.PgError{Code: "55P03"})

	_, err := d.svc.HandleCallback(ctx, ports.CallbackRequest{TransactionID: txn.ID, Token: "gw-token"})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "WLT_003", appErr.Code)
}

func TestCallbackService_HandleCallback_VerifyTransportErrorLeavesPending(t *testing.T) {
	d := setupCallbackService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn()
	locked := *txn
	gw := &domain.Gateway{ID: txn.GatewayID, Type: domain.GatewayTypeNextPay}
	tx := &mockTx{}

	d.gwTxnRepo.EXPECT().GetByIDAndToken(ctx, txn.ID, "gw-token").Return(txn, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.gwTxnRepo.EXPECT().GetByIDForUpdate(ctx, tx, txn.ID).Return(&locked, nil)
	d.gatewayRepo.EXPECT().GetByID(ctx, txn.GatewayID).Return(gw, nil)
	d.clientFactory.EXPECT().ClientFor(gw).Return(d.client, nil)
	// No Finalize expectation: the rollback leaves the row PENDING.
	d.client.EXPECT().Verify(ctx, &locked).Return(errors.New("connection refused"))

	_, err := d.svc.HandleCallback(ctx, ports.CallbackRequest{TransactionID: txn.ID, Token: "gw-token"})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "GTW_004", appErr.Code)
}

func TestCallbackService_HandleCallback_ReturnURLOverridesConfirmation(t *testing.T) {
	d := setupCallbackService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := pendingTxn()
	returnURL := "https://merchant.example.com/done"
	txn.ReturnURL = &returnURL
	txn.Status = domain.TransactionStatusSuccess

	d.gwTxnRepo.EXPECT().GetByIDAndToken(ctx, txn.ID, "gw-token").Return(txn, nil)

	result, _ := d.svc.HandleCallback(ctx, ports.CallbackRequest{TransactionID: txn.ID, Token: "gw-token"})
	require.NotNil(t, result)
	assert.Contains(t, result.RedirectURL, returnURL)
	assert.Contains(t, result.RedirectURL, "transaction_id="+txn.ID.String())
}
