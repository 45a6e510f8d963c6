package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	httpHandler "wallet-platform/internal/adapter/http/handler"
	redisStorage "wallet-platform/internal/adapter/storage/redis"
	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"
	"wallet-platform/internal/service"
	"wallet-platform/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires the full stack against in-memory repos and miniredis: real
// HTTP layer, middleware, services, Redis stores, crypto, and a scripted
// provider client in place of the real gateway HTTP integrations.

const testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func ctxBg() context.Context { return context.Background() }

type recordingSMS struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordingSMS) Send(ctx context.Context, phoneNumber string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *recordingSMS) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return strings.TrimPrefix(s.messages[len(s.messages)-1], "Your verification code is ")
}

// scriptedGateway is a provider client with scriptable initiate and verify
// behavior. The default verify marks the transaction successful and fills
// the metadata a real provider would return.
type scriptedGateway struct {
	mu          sync.Mutex
	token       string
	initiateErr error
	verifyErr   error
	verifyFn    func(txn *domain.GatewayTransaction)
	lastOrderID string
	verifyCalls int
}

func newScriptedGateway(token string) *scriptedGateway {
	return &scriptedGateway{token: token}
}

func (g *scriptedGateway) Initiate(ctx context.Context, req ports.InitiateRequest) (*ports.PaymentHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	g.lastOrderID = req.OrderID
	return &ports.PaymentHandle{
		Type:  "redirect",
		URL:   "https://provider.test/pay/" + g.token,
		Token: g.token,
	}, nil
}

func (g *scriptedGateway) Verify(ctx context.Context, txn *domain.GatewayTransaction) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return g.verifyErr
	}
	if g.verifyFn != nil {
		g.verifyFn(txn)
		return nil
	}
	txn.Status = domain.TransactionStatusSuccess
	card := "6219-86**-****-1234"
	shaparak := "shaparak-" + txn.ID.String()[:8]
	trace := "trace-001"
	txn.CardNumber = &card
	txn.ShaparakReferenceID = &shaparak
	txn.TraceNumber = &trace
	return nil
}

func (g *scriptedGateway) lastOrder() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastOrderID
}

func (g *scriptedGateway) verifyCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls
}

func (g *scriptedGateway) setVerifyErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyErr = err
}

func (g *scriptedGateway) setVerifyFn(fn func(txn *domain.GatewayTransaction)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyFn = fn
}

type scriptedFactory struct {
	client ports.GatewayClient
}

func (f *scriptedFactory) ClientFor(gw *domain.Gateway) (ports.GatewayClient, error) {
	return f.client, nil
}

type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis

	users    *inMemoryUserRepo
	wallets  *inMemoryWalletRepo
	entries  *inMemoryWalletTxnRepo
	gateways *inMemoryGatewayRepo
	gwTxns   *inMemoryGatewayTxnRepo

	sms      *recordingSMS
	gwClient *scriptedGateway

	ledger      ports.LedgerService
	topoffSvc   ports.TopoffService
	callbackSvc ports.CallbackService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	log := logger.NewWithWriter("error", io.Discard)

	encSvc, err := service.NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("integration-test-secret-key!!", time.Hour, 24*time.Hour, "wallet-platform-test")
	otpSvc := service.NewTOTPService("wallet-platform-test", 6, 120*time.Second)

	users := newInMemoryUserRepo()
	wallets := newInMemoryWalletRepo()
	entries := newInMemoryWalletTxnRepo()
	gateways := newInMemoryGatewayRepo()
	gwTxns := newInMemoryGatewayTxnRepo()
	transactor := newMemTransactor()

	sms := &recordingSMS{}
	gwClient := newScriptedGateway("tok-" + uuid.NewString())
	factory := &scriptedFactory{client: gwClient}

	otpStore := redisStorage.NewOTPStore(rdb)
	rlStore := redisStorage.NewRateLimitStore(rdb)

	authSvc := service.NewAuthService(users, wallets, hashSvc, encSvc, otpSvc, otpStore, sms, tokenSvc, time.Minute, log)
	ledger := service.NewLedgerService(wallets, entries, transactor, log)
	selector := service.NewSelectorService(gateways, log)
	topoffSvc := service.NewTopoffService(selector, wallets, gwTxns, factory, log)
	callbackSvc := service.NewCallbackService(gwTxns, gateways, ledger, factory, transactor, "https://app.example.com/payment/result", log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		TopoffSvc:      topoffSvc,
		CallbackSvc:    callbackSvc,
		LedgerSvc:      ledger,
		TokenSvc:       tokenSvc,
		UserRepo:       users,
		WalletRepo:     wallets,
		EntryRepo:      entries,
		GatewayRepo:    gateways,
		GwTxnRepo:      gwTxns,
		RateLimitStore: rlStore,
		Logger:         log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{
		server:      server,
		redis:       mr,
		users:       users,
		wallets:     wallets,
		entries:     entries,
		gateways:    gateways,
		gwTxns:      gwTxns,
		sms:         sms,
		gwClient:    gwClient,
		ledger:      ledger,
		topoffSvc:   topoffSvc,
		callbackSvc: callbackSvc,
	}
}

func (a *testApp) seedGateway(t *testing.T) *domain.Gateway {
	t.Helper()
	terminal := "T-12345"
	gw := &domain.Gateway{
		ID:          uuid.New(),
		Name:        "sep-primary",
		Type:        domain.GatewayTypeSep,
		TerminalID:  &terminal,
		CallbackURL: a.server.URL + "/api/v1/callback/sep",
		BaseURL:     "https://sep.test",
		Currency:    domain.CurrencyIRR,
		Priority:    1,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, a.gateways.Create(ctxBg(), gw))
	return gw
}

func (a *testApp) seedNextPayGateway(t *testing.T) *domain.Gateway {
	t.Helper()
	key := "np-merchant-key"
	gw := &domain.Gateway{
		ID:          uuid.New(),
		Name:        "nextpay-primary",
		Type:        domain.GatewayTypeNextPay,
		MerchantKey: &key,
		CallbackURL: a.server.URL + "/api/v1/callback/nextpay",
		BaseURL:     "https://nextpay.test",
		Currency:    domain.CurrencyIRR,
		Priority:    1,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, a.gateways.Create(ctxBg(), gw))
	return gw
}

func (a *testApp) postJSON(t *testing.T, path, accessToken string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// get issues a GET without following redirects so callback Location headers
// can be asserted.
func (a *testApp) get(t *testing.T, path string) *http.Response {
	t.Helper()
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(a.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func decodeErrorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		ErrorCode string `json:"error_code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.ErrorCode
}

// registerAndLogin runs the full password + OTP flow over HTTP and returns
// the created user's ID with a usable access token.
func (a *testApp) registerAndLogin(t *testing.T, phone string) (uuid.UUID, string) {
	t.Helper()

	resp := a.postJSON(t, "/api/v1/auth/register", "", map[string]any{
		"phone_number": phone,
		"password":     "correct-horse-battery",
		"type":         "REGULAR",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var user struct {
		ID string `json:"id"`
	}
	decodeData(t, resp, &user)
	userID, err := uuid.Parse(user.ID)
	require.NoError(t, err)

	resp = a.postJSON(t, "/api/v1/auth/login", "", map[string]any{
		"phone_number": phone,
		"password":     "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	code := a.sms.lastCode()
	require.Len(t, code, 6)

	resp = a.postJSON(t, "/api/v1/auth/verify-otp", "", map[string]any{
		"phone_number": phone,
		"code":         code,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	decodeData(t, resp, &tokens)
	require.NotEmpty(t, tokens.AccessToken)

	return userID, tokens.AccessToken
}

// startTopoff initiates a top-off over HTTP and returns the created gateway
// transaction with its correlation token.
func (a *testApp) startTopoff(t *testing.T, accessToken string, amount string) *domain.GatewayTransaction {
	t.Helper()
	resp := a.postJSON(t, "/api/v1/topoff", accessToken, map[string]any{
		"amount":   amount,
		"currency": "IRR",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var handle struct {
		Type  string `json:"type"`
		URL   string `json:"url"`
		Token string `json:"token"`
	}
	decodeData(t, resp, &handle)
	require.Equal(t, "redirect", handle.Type)
	require.NotEmpty(t, handle.URL)

	txnID, err := uuid.Parse(a.gwClient.lastOrder())
	require.NoError(t, err)
	txn, err := a.gwTxns.GetByID(ctxBg(), txnID)
	require.NoError(t, err)
	require.NotNil(t, txn)
	require.Equal(t, domain.TransactionStatusPending, txn.Status)
	require.NotNil(t, txn.Token)
	require.Equal(t, handle.Token, *txn.Token)
	return txn
}

// callbackPath builds a SEP style bounce-back URL, which is what the seeded
// gateway registers as its callback.
func (a *testApp) callbackPath(txn *domain.GatewayTransaction) string {
	return fmt.Sprintf("/api/v1/callback/sep?ResNum=%s&Token=%s", txn.ID, url.QueryEscape(*txn.Token))
}

func TestTopoffCallback_SuccessCreditsWallet(t *testing.T) {
	app := newTestApp(t)
	app.seedGateway(t)
	userID, token := app.registerAndLogin(t, "+989121234567")

	wallet, err := app.wallets.GetByUserID(ctxBg(), userID, domain.CurrencyIRR)
	require.NoError(t, err)
	require.NotNil(t, wallet)
	require.True(t, wallet.Balance.IsZero())

	// Seed an opening balance through the ledger so the post-credit snapshot
	// covers more than just the top-off amount.
	_, err = app.ledger.CreditWallet(ctxBg(), ports.CreditRequest{
		WalletID:    wallet.ID,
		Amount:      decimal.NewFromInt(30000),
		Currency:    domain.CurrencyIRR,
		PerformedBy: userID,
	})
	require.NoError(t, err)

	txn := app.startTopoff(t, token, "20000")

	resp := app.get(t, app.callbackPath(txn)+"&RefNum=ipg-ref-42")
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	assert.Contains(t, location, "https://app.example.com/payment/result")
	assert.Contains(t, location, "status=SUCCESS")
	assert.Contains(t, location, "transaction_id="+txn.ID.String())

	settled, err := app.gwTxns.GetByID(ctxBg(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, settled.Status)
	require.NotNil(t, settled.IPGReferenceID)
	assert.Equal(t, "ipg-ref-42", *settled.IPGReferenceID)
	assert.NotNil(t, settled.ShaparakReferenceID)
	assert.NotNil(t, settled.CardNumber)

	wallet, err = app.wallets.GetByID(ctxBg(), wallet.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(50000)), "balance = %s", wallet.Balance)

	ledgerEntries, total, err := app.entries.ListByWallet(ctxBg(), wallet.ID, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	// Second entry is the top-off credit and snapshots the final balance.
	assert.True(t, ledgerEntries[1].Amount.Equal(decimal.NewFromInt(20000)))
	assert.True(t, ledgerEntries[1].Balance.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, userID, ledgerEntries[1].PerformedBy)
}

func TestTopoffCallback_NextPayBounceCreditsWallet(t *testing.T) {
	app := newTestApp(t)
	app.seedNextPayGateway(t)
	userID, token := app.registerAndLogin(t, "+989121234578")
	txn := app.startTopoff(t, token, "15000")

	// NextPay bounces the payer to the registered callback URI with its own
	// query vocabulary: trans_id carries the session token, order_id our
	// transaction id.
	path := fmt.Sprintf("/api/v1/callback/nextpay?trans_id=%s&order_id=%s&amount=15000&np_status=OK",
		url.QueryEscape(*txn.Token), txn.ID)
	resp := app.get(t, path)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "status=SUCCESS")

	settled, err := app.gwTxns.GetByID(ctxBg(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, settled.Status)

	wallet, err := app.wallets.GetByUserID(ctxBg(), userID, domain.CurrencyIRR)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(15000)), "balance = %s", wallet.Balance)
}

func TestTopoff_NoActiveGatewayLeavesNoRow(t *testing.T) {
	app := newTestApp(t)
	_, token := app.registerAndLogin(t, "+989121234568")

	resp := app.postJSON(t, "/api/v1/topoff", token, map[string]any{
		"amount":   "5000",
		"currency": "IRR",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "GTW_001", decodeErrorCode(t, resp))

	_, total, err := app.gwTxns.List(ctxBg(), ports.GatewayTransactionListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCallback_DuplicateDeliveryCreditsOnce(t *testing.T) {
	app := newTestApp(t)
	app.seedGateway(t)
	userID, token := app.registerAndLogin(t, "+989121234569")
	txn := app.startTopoff(t, token, "10000")

	resp := app.get(t, app.callbackPath(txn))
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	// The provider redelivers the same callback. It must still get a
	// redirect, not an error that would trigger a retry loop.
	resp = app.get(t, app.callbackPath(txn))
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "status=SUCCESS")

	assert.Equal(t, 1, app.gwClient.verifyCount())

	wallet, err := app.wallets.GetByUserID(ctxBg(), userID, domain.CurrencyIRR)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(10000)), "balance = %s", wallet.Balance)

	_, total, err := app.entries.ListByWallet(ctxBg(), wallet.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestCallback_FailedVerificationDoesNotCredit(t *testing.T) {
	app := newTestApp(t)
	app.seedGateway(t)
	userID, token := app.registerAndLogin(t, "+989121234570")
	txn := app.startTopoff(t, token, "10000")

	app.gwClient.setVerifyFn(func(txn *domain.GatewayTransaction) {
		txn.Status = domain.TransactionStatusFailed
	})

	resp := app.get(t, app.callbackPath(txn))
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "status=FAILED")

	settled, err := app.gwTxns.GetByID(ctxBg(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, settled.Status)

	wallet, err := app.wallets.GetByUserID(ctxBg(), userID, domain.CurrencyIRR)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
}

func TestCallback_AmountMismatchIsDiscrepancyWithoutCredit(t *testing.T) {
	app := newTestApp(t)
	app.seedGateway(t)
	userID, token := app.registerAndLogin(t, "+989121234575")
	txn := app.startTopoff(t, token, "10000")

	// The provider settled a different amount than we asked for.
	app.gwClient.setVerifyFn(func(txn *domain.GatewayTransaction) {
		txn.Status = domain.TransactionStatusDiscrepancy
	})

	resp := app.get(t, app.callbackPath(txn))
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "status=DISCREPANCY")

	settled, err := app.gwTxns.GetByID(ctxBg(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusDiscrepancy, settled.Status)

	wallet, err := app.wallets.GetByUserID(ctxBg(), userID, domain.CurrencyIRR)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero(), "discrepancy must not credit")
}

func TestCallback_TransportErrorLeavesPendingForRetry(t *testing.T) {
	app := newTestApp(t)
	app.seedGateway(t)
	userID, token := app.registerAndLogin(t, "+989121234571")
	txn := app.startTopoff(t, token, "10000")

	app.gwClient.setVerifyErr(fmt.Errorf("connection reset by peer"))

	resp := app.get(t, app.callbackPath(txn))
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "GTW_004", decodeErrorCode(t, resp))

	pending, err := app.gwTxns.GetByID(ctxBg(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, pending.Status)

	// The next delivery finds the row still pending and settles it.
	app.gwClient.setVerifyErr(nil)
	resp = app.get(t, app.callbackPath(txn))
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	wallet, err := app.wallets.GetByUserID(ctxBg(), userID, domain.CurrencyIRR)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(10000)))
}

func TestCallback_WrongTokenIsNotFound(t *testing.T) {
	app := newTestApp(t)
	app.seedGateway(t)
	userID, token := app.registerAndLogin(t, "+989121234572")
	txn := app.startTopoff(t, token, "10000")

	resp := app.get(t, fmt.Sprintf("/api/v1/callback/sep?ResNum=%s&Token=forged", txn.ID))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "GTW_002", decodeErrorCode(t, resp))

	wallet, err := app.wallets.GetByUserID(ctxBg(), userID, domain.CurrencyIRR)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
}

func TestLogin_WrongPasswordRejected(t *testing.T) {
	app := newTestApp(t)
	app.registerAndLogin(t, "+989121234573")

	resp := app.postJSON(t, "/api/v1/auth/login", "", map[string]any{
		"phone_number": "+989121234573",
		"password":     "not-the-password",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTH_001", decodeErrorCode(t, resp))
}

func TestLogin_OTPResendThrottled(t *testing.T) {
	app := newTestApp(t)
	app.registerAndLogin(t, "+989121234574")

	// registerAndLogin already consumed one OTP delivery; an immediate second
	// login falls inside the resend window.
	resp := app.postJSON(t, "/api/v1/auth/login", "", map[string]any{
		"phone_number": "+989121234574",
		"password":     "correct-horse-battery",
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "AUTH_004", decodeErrorCode(t, resp))

	// Once the window lapses, delivery works again.
	app.redis.FastForward(2 * time.Minute)
	resp = app.postJSON(t, "/api/v1/auth/login", "", map[string]any{
		"phone_number": "+989121234574",
		"password":     "correct-horse-battery",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestTopoff_RequiresAuthentication(t *testing.T) {
	app := newTestApp(t)
	app.seedGateway(t)

	resp := app.postJSON(t, "/api/v1/topoff", "", map[string]any{
		"amount":   "5000",
		"currency": "IRR",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTH_002", decodeErrorCode(t, resp))
}
