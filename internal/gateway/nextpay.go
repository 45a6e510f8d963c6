package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"

	"github.com/shopspring/decimal"
)

// NextPay wire paths. These are fixed provider contracts.
const (
	nextpayTokenPath    = "/nx/gateway/token"
	nextpayVerifyPath   = "/nx/gateway/verify"
	nextpayRedirectPath = "/nx/gateway/payment"
)

// nextpayUserAgent is required: NextPay rejects requests with unknown agents.
const nextpayUserAgent = "PostmanRuntime/7.26.8"

// NextPayClient implements ports.GatewayClient for the NextPay provider.
// Both the token and verify endpoints are form-encoded.
type NextPayClient struct {
	merchantKey string
	callbackURL string
	baseURL     string
	httpClient  HTTPClient
}

// NewNextPayClient builds a NextPay client from a gateway configuration.
func NewNextPayClient(gw *domain.Gateway, httpClient HTTPClient) *NextPayClient {
	return &NextPayClient{
		merchantKey: strOrEmpty(gw.MerchantKey),
		callbackURL: gw.CallbackURL,
		baseURL:     strings.TrimRight(gw.BaseURL, "/"),
		httpClient:  httpClient,
	}
}

type nextpayTokenResponse struct {
	Code    json.Number `json:"code"`
	TransID string      `json:"trans_id"`
}

type nextpayVerifyResponse struct {
	Code          json.Number `json:"code"`
	Amount        json.Number `json:"amount"`
	OrderID       string      `json:"order_id"`
	CardHolder    string      `json:"card_holder"`
	ShaparakRefID string      `json:"Shaparak_Ref_Id"`
}

// Initiate opens a payment session and returns the redirect handle. The
// trans_id doubles as the correlation token echoed back in the callback.
func (c *NextPayClient) Initiate(ctx context.Context, req ports.InitiateRequest) (*ports.PaymentHandle, error) {
	custom, err := json.Marshal(map[string]*string{
		"description": req.Description,
		"reference":   req.Reference,
	})
	if err != nil {
		return nil, fmt.Errorf("nextpay: encoding custom fields: %w", err)
	}

	form := url.Values{}
	form.Set("api_key", c.merchantKey)
	form.Set("order_id", req.OrderID)
	form.Set("amount", req.Amount.String())
	form.Set("callback_uri", c.callbackURL)
	form.Set("currency", string(req.Currency))
	form.Set("customer_phone", req.PhoneNumber)
	form.Set("custom_json_fields", string(custom))
	form.Set("payer_desc", strOrEmpty(req.Description))

	var resp nextpayTokenResponse
	if err := c.postForm(ctx, nextpayTokenPath, form, &resp); err != nil {
		return nil, err
	}
	if resp.TransID == "" {
		return nil, fmt.Errorf("nextpay: token response carried no trans_id (code %s)", resp.Code)
	}

	return &ports.PaymentHandle{
		Type:  "redirect",
		URL:   c.baseURL + nextpayRedirectPath + "/" + resp.TransID,
		Token: resp.TransID,
	}, nil
}

// Verify settles the transaction against NextPay's verify endpoint. The
// status is mutated in memory only; callers persist it. A transport or
// decoding error leaves the transaction untouched.
func (c *NextPayClient) Verify(ctx context.Context, txn *domain.GatewayTransaction) error {
	form := url.Values{}
	form.Set("api_key", c.merchantKey)
	form.Set("trans_id", strOrEmpty(txn.Token))
	form.Set("amount", txn.Amount.String())
	form.Set("currency", string(txn.Currency))

	var resp nextpayVerifyResponse
	if err := c.postForm(ctx, nextpayVerifyPath, form, &resp); err != nil {
		return err
	}

	// card_holder is NextPay's name for the masked PAN.
	if resp.Code.String() != "0" {
		txn.Status = domain.TransactionStatusFailed
		txn.CardNumber = strPtr(resp.CardHolder)
		txn.ShaparakReferenceID = strPtr(resp.ShaparakRefID)
		return nil
	}

	reported, err := decimal.NewFromString(resp.Amount.String())
	if err != nil {
		return fmt.Errorf("nextpay: unparseable amount %q in verify response: %w", resp.Amount, err)
	}

	// Reported amount and order correlation must both match the local
	// expectation; otherwise funds may have moved at the provider while our
	// record disagrees, which needs manual reconciliation.
	if !reported.Equal(txn.Amount) || resp.OrderID != txn.ID.String() {
		txn.Status = domain.TransactionStatusDiscrepancy
		return nil
	}

	txn.Status = domain.TransactionStatusSuccess
	txn.CardNumber = strPtr(resp.CardHolder)
	txn.ShaparakReferenceID = strPtr(resp.ShaparakRefID)
	return nil
}

func (c *NextPayClient) postForm(ctx context.Context, path string, form url.Values, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("nextpay: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", nextpayUserAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("nextpay: calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("nextpay: decoding %s response: %w", path, err)
	}
	return nil
}
