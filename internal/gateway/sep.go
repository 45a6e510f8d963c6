package gateway

import (
	"bytes"
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

// SEP (Saman electronic payment) wire paths. Fixed provider contracts.
const (
	sepTokenPath    = "/onlinepg/onlinepg"
	sepVerifyPath   = "/verifyTxnRandomSessionkey/ipg/VerifyTransaction"
	sepRedirectPath = "/OnlinePG/SendToken"
)

// SepClient implements ports.GatewayClient for the SEP provider. The token
// endpoint is form-encoded, verification is JSON.
type SepClient struct {
	terminalID  string
	callbackURL string
	baseURL     string
	httpClient  HTTPClient
}

// NewSepClient builds a SEP client from a gateway configuration.
func NewSepClient(gw *domain.Gateway, httpClient HTTPClient) *SepClient {
	return &SepClient{
		terminalID:  strOrEmpty(gw.TerminalID),
		callbackURL: gw.CallbackURL,
		baseURL:     strings.TrimRight(gw.BaseURL, "/"),
		httpClient:  httpClient,
	}
}

type sepTokenResponse struct {
	Token string `json:"token"`
}

type sepVerifyRequest struct {
	RefNum         string `json:"RefNum"`
	TerminalNumber string `json:"TerminalNumber"`
}

type sepTransactionDetail struct {
	MaskedPan       string      `json:"MaskedPan"`
	RRN             string      `json:"RRN"`
	AffectiveAmount json.Number `json:"AffectiveAmount"`
}

type sepVerifyResponse struct {
	ResultCode        json.Number          `json:"ResultCode"`
	TransactionDetail sepTransactionDetail `json:"TransactionDetail"`
}

// Initiate requests a payment token. SEP multiplexes caller data through the
// ResNum1..3 slots; the slot assignment is part of the wire contract.
func (c *SepClient) Initiate(ctx context.Context, req ports.InitiateRequest) (*ports.PaymentHandle, error) {
	form := url.Values{}
	form.Set("action", "token")
	form.Set("TerminalId", c.terminalID)
	form.Set("Amount", req.Amount.String())
	form.Set("ResNum", req.OrderID)
	form.Set("ResNum1", strOrEmpty(req.Reference))
	form.Set("ResNum2", strOrEmpty(req.Description))
	form.Set("ResNum3", req.PhoneNumber)
	form.Set("RedirectUrl", c.callbackURL)
	form.Set("CellNumber", req.PhoneNumber)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sepTokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("sep: building token request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sep: calling token endpoint: %w", err)
	}
	defer resp.Body.Close()

	var tokenResp sepTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("sep: decoding token response: %w", err)
	}
	if tokenResp.Token == "" {
		return nil, fmt.Errorf("sep: token response carried no token")
	}

	return &ports.PaymentHandle{
		Type:  "redirect",
		URL:   c.baseURL + sepRedirectPath + "?token=" + tokenResp.Token,
		Token: tokenResp.Token,
	}, nil
}

// Verify settles the transaction against SEP's verify endpoint using the
// reference number delivered in the callback. In-memory mutation only.
func (c *SepClient) Verify(ctx context.Context, txn *domain.GatewayTransaction) error {
	body, err := json.Marshal(sepVerifyRequest{
		RefNum:         strOrEmpty(txn.IPGReferenceID),
		TerminalNumber: c.terminalID,
	})
	if err != nil {
		return fmt.Errorf("sep: encoding verify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sepVerifyPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sep: building verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sep: calling verify endpoint: %w", err)
	}
	defer resp.Body.Close()

	var verifyResp sepVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return fmt.Errorf("sep: decoding verify response: %w", err)
	}

	detail := verifyResp.TransactionDetail
	if verifyResp.ResultCode.String() != "0" {
		txn.Status = domain.TransactionStatusFailed
		txn.CardNumber = strPtr(detail.MaskedPan)
		txn.ShaparakReferenceID = strPtr(detail.RRN)
		return nil
	}

	reported, err := decimal.NewFromString(detail.AffectiveAmount.String())
	if err != nil {
		return fmt.Errorf("sep: unparseable AffectiveAmount %q in verify response: %w", detail.AffectiveAmount, err)
	}

	if !reported.Equal(txn.Amount) {
		txn.Status = domain.TransactionStatusDiscrepancy
		return nil
	}

	txn.Status = domain.TransactionStatusSuccess
	txn.CardNumber = strPtr(detail.MaskedPan)
	txn.ShaparakReferenceID = strPtr(detail.RRN)
	return nil
}
