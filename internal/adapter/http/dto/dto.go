package dto

import (
	"time"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"

	"github.com/shopspring/decimal"
)

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	PhoneNumber string  `json:"phone_number" binding:"required,e164"`
	Email       *string `json:"email,omitempty" binding:"omitempty,email"`
	Password    string  `json:"password" binding:"required,min=8,max=128"`
	Type        string  `json:"type" binding:"required"`
	BusinessID  *string `json:"business_id,omitempty" binding:"omitempty,uuid"`
}

// LoginRequest is the request body for the password step of login.
type LoginRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,e164"`
	Password    string `json:"password" binding:"required"`
}

// VerifyOTPRequest is the request body for the OTP step of login.
type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,e164"`
	Code        string `json:"code" binding:"required,min=4,max=10"`
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string   `json:"id"`
	PhoneNumber string   `json:"phone_number"`
	Email       *string  `json:"email,omitempty"`
	Type        string   `json:"type"`
	BusinessID  *string  `json:"business_id,omitempty"`
	IsActive    bool     `json:"is_active"`
	Scopes      []string `json:"scopes"`
	CreatedAt   string   `json:"created_at"`
}

// TopoffRequest is the request body for a wallet top-off through a payment
// gateway. TargetUserID tops off another account's wallet and is restricted
// to agency users.
type TopoffRequest struct {
	Amount       decimal.Decimal `json:"amount" binding:"required"`
	Currency     string          `json:"currency" binding:"required,len=3"`
	TargetUserID *string         `json:"target_user_id,omitempty" binding:"omitempty,uuid"`
	Note         *string         `json:"note,omitempty" binding:"omitempty,max=500"`
	Reference    *string         `json:"reference,omitempty" binding:"omitempty,safe_id,max=100"`
	ReturnURL    *string         `json:"return_url,omitempty" binding:"omitempty,safe_url"`
}

// TopoffResponse is the response body for a started top-off: where to send
// the payer's browser.
type TopoffResponse struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Token string `json:"token"`
}

// CreditRequest is the request body for a direct ledger credit or debit.
type CreditRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Note      *string         `json:"note,omitempty" binding:"omitempty,max=500"`
	Reference *string         `json:"reference,omitempty" binding:"omitempty,safe_id,max=100"`
}

// UpdateLimitRequest is the request body for changing a wallet spend limit.
type UpdateLimitRequest struct {
	Limit decimal.Decimal `json:"limit" binding:"required"`
}

// WalletResponse is the public view of a wallet.
type WalletResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	BusinessID *string         `json:"business_id,omitempty"`
	Currency   string          `json:"currency"`
	Balance    decimal.Decimal `json:"balance"`
	Limit      decimal.Decimal `json:"limit"`
	CreatedAt  string          `json:"created_at"`
}

// WalletTransactionResponse is the public view of a ledger entry.
type WalletTransactionResponse struct {
	ID          string          `json:"id"`
	WalletID    string          `json:"wallet_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PerformedBy string          `json:"performed_by"`
	Balance     decimal.Decimal `json:"balance"`
	Note        *string         `json:"note,omitempty"`
	Reference   *string         `json:"reference,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// GatewayRequest is the request body for creating or updating a gateway
// configuration.
type GatewayRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=100"`
	Type        string  `json:"type" binding:"required"`
	TerminalID  *string `json:"terminal_id,omitempty" binding:"omitempty,max=50"`
	MerchantID  *string `json:"merchant_id,omitempty" binding:"omitempty,max=100"`
	MerchantKey *string `json:"merchant_key,omitempty" binding:"omitempty,max=200"`
	Password    *string `json:"password,omitempty" binding:"omitempty,max=200"`
	CallbackURL string  `json:"callback_url" binding:"required,safe_url"`
	BaseURL     string  `json:"base_url" binding:"required,safe_url"`
	Currency    string  `json:"currency" binding:"required,len=3"`
	Priority    int     `json:"priority" binding:"gte=0"`
	IsActive    bool    `json:"is_active"`
}

// GatewayResponse is the public view of a gateway configuration. Credential
// fields are never echoed back.
type GatewayResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	TerminalID  *string `json:"terminal_id,omitempty"`
	MerchantID  *string `json:"merchant_id,omitempty"`
	CallbackURL string  `json:"callback_url"`
	BaseURL     string  `json:"base_url"`
	Currency    string  `json:"currency"`
	Priority    int     `json:"priority"`
	IsActive    bool    `json:"is_active"`
	CreatedAt   string  `json:"created_at"`
}

// GatewayTransactionResponse is the public view of a gateway transaction.
type GatewayTransactionResponse struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"user_id"`
	GatewayID           string          `json:"gateway_id"`
	WalletID            *string         `json:"wallet_id,omitempty"`
	Status              string          `json:"status"`
	Kind                string          `json:"kind"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	CardNumber          *string         `json:"card_number,omitempty"`
	ReferenceID         *string         `json:"reference_id,omitempty"`
	Note                *string         `json:"note,omitempty"`
	ShaparakReferenceID *string         `json:"shaparak_reference_id,omitempty"`
	TraceNumber         *string         `json:"trace_number,omitempty"`
	CreatedAt           string          `json:"created_at"`
	UpdatedAt           string          `json:"updated_at"`
}

// TokenPairResponse is the response body for a successful OTP verification
// or refresh.
type TokenPairResponse struct {
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	TokenType     string `json:"token_type"`
	AccessExpiry  int64  `json:"access_expiry"`
	RefreshExpiry int64  `json:"refresh_expiry"`
}

// FromTokenPair converts a service token pair into its response body.
func FromTokenPair(p *ports.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:   p.AccessToken,
		RefreshToken:  p.RefreshToken,
		TokenType:     p.TokenType,
		AccessExpiry:  p.AccessExpiry.Unix(),
		RefreshExpiry: p.RefreshExpiry.Unix(),
	}
}

// FromUser converts a domain user into its response body.
func FromUser(u *domain.User) UserResponse {
	resp := UserResponse{
		ID:          u.ID.String(),
		PhoneNumber: u.PhoneNumber,
		Email:       u.Email,
		Type:        string(u.Type),
		IsActive:    u.IsActive,
		Scopes:      u.Scopes,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.BusinessID != nil {
		id := u.BusinessID.String()
		resp.BusinessID = &id
	}
	return resp
}

// FromWallet converts a domain wallet into its response body.
func FromWallet(w *domain.Wallet) WalletResponse {
	resp := WalletResponse{
		ID:        w.ID.String(),
		UserID:    w.UserID.String(),
		Currency:  string(w.Currency),
		Balance:   w.Balance,
		Limit:     w.Limit,
		CreatedAt: w.CreatedAt.UTC().Format(time.RFC3339),
	}
	if w.BusinessID != nil {
		id := w.BusinessID.String()
		resp.BusinessID = &id
	}
	return resp
}

// FromWalletTransaction converts a ledger entry into its response body.
func FromWalletTransaction(e *domain.WalletTransaction) WalletTransactionResponse {
	return WalletTransactionResponse{
		ID:          e.ID.String(),
		WalletID:    e.WalletID.String(),
		Amount:      e.Amount,
		Currency:    string(e.Currency),
		PerformedBy: e.PerformedBy.String(),
		Balance:     e.Balance,
		Note:        e.Note,
		Reference:   e.Reference,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// FromGateway converts a gateway configuration into its response body.
func FromGateway(gw *domain.Gateway) GatewayResponse {
	return GatewayResponse{
		ID:          gw.ID.String(),
		Name:        gw.Name,
		Type:        string(gw.Type),
		TerminalID:  gw.TerminalID,
		MerchantID:  gw.MerchantID,
		CallbackURL: gw.CallbackURL,
		BaseURL:     gw.BaseURL,
		Currency:    string(gw.Currency),
		Priority:    gw.Priority,
		IsActive:    gw.IsActive,
		CreatedAt:   gw.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// FromGatewayTransaction converts a gateway transaction into its response
// body.
func FromGatewayTransaction(t *domain.GatewayTransaction) GatewayTransactionResponse {
	resp := GatewayTransactionResponse{
		ID:                  t.ID.String(),
		UserID:              t.UserID.String(),
		GatewayID:           t.GatewayID.String(),
		Status:              string(t.Status),
		Kind:                t.Kind,
		Amount:              t.Amount,
		Currency:            string(t.Currency),
		CardNumber:          t.CardNumber,
		ReferenceID:         t.ReferenceID,
		Note:                t.Note,
		ShaparakReferenceID: t.ShaparakReferenceID,
		TraceNumber:         t.TraceNumber,
		CreatedAt:           t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if t.WalletID != nil {
		id := t.WalletID.String()
		resp.WalletID = &id
	}
	return resp
}
