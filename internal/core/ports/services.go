package ports

import (
	"context"
	"time"

	"wallet-platform/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Gateway client (implemented per provider in internal/gateway) ---

// PaymentHandle is what the caller gets back from a successful initiate:
// a redirect target for the payer's browser plus the provider-issued token.
type PaymentHandle struct {
	Type  string `json:"type"` // always "redirect" for current providers
	URL   string `json:"url"`
	Token string `json:"token"`
}

// InitiateRequest carries the fields every provider needs to open a payment
// session. OrderID is the gateway transaction ID and is echoed back by the
// provider for correlation.
type InitiateRequest struct {
	Amount      decimal.Decimal
	Currency    domain.Currency
	PhoneNumber string
	OrderID     string
	Reference   *string
	Description *string
}

// GatewayClient is the fixed capability set each provider integration
// implements. Verify mutates the transaction's status and verification
// metadata in memory; persisting the result is the caller's responsibility.
type GatewayClient interface {
	Initiate(ctx context.Context, req InitiateRequest) (*PaymentHandle, error)
	Verify(ctx context.Context, txn *domain.GatewayTransaction) error
}

// GatewayClientFactory builds a provider client from a gateway configuration
// record, dispatching on its provider type.
type GatewayClientFactory interface {
	ClientFor(gw *domain.Gateway) (GatewayClient, error)
}

// --- Core services ---

// CreditRequest describes one balance mutation. Amount may be negative;
// non-negativity and spending-limit policy belong to callers, not the ledger.
type CreditRequest struct {
	WalletID    uuid.UUID
	Amount      decimal.Decimal
	Currency    domain.Currency
	PerformedBy uuid.UUID
	Note        *string
	Reference   *string
}

// LedgerService owns wallet balance mutation. Every committed balance change
// is paired 1:1 with a WalletTransaction carrying the post-change snapshot.
type LedgerService interface {
	// Credit runs inside the caller's database transaction; the wallet row is
	// locked for the duration.
	Credit(ctx context.Context, tx pgx.Tx, req CreditRequest) (*domain.WalletTransaction, error)
	// CreditWallet opens its own transaction around Credit. Used by
	// administrative credits and debits.
	CreditWallet(ctx context.Context, req CreditRequest) (*domain.WalletTransaction, error)
}

// GatewaySelector picks the gateway to use for a top-off. Re-evaluated on
// every request so admin changes take effect immediately.
type GatewaySelector interface {
	Select(ctx context.Context, currency domain.Currency) (*domain.Gateway, error)
}

// TopoffRequest carries a wallet top-off order. RequestedBy is the acting
// user; TargetUser owns the wallet to credit (usually the same account).
type TopoffRequest struct {
	RequestedBy *domain.User
	TargetUser  *domain.User
	Amount      decimal.Decimal
	Currency    domain.Currency
	Note        *string
	Reference   *string
	ReturnURL   *string
}

// TopoffService drives the top-off lifecycle up to the provider redirect.
type TopoffService interface {
	Topoff(ctx context.Context, req TopoffRequest) (*PaymentHandle, error)
}

// CallbackRequest is the provider-agnostic form of a gateway callback.
// IPGReferenceID is supplied by providers (SEP) whose verify call needs the
// callback's reference number.
type CallbackRequest struct {
	TransactionID  uuid.UUID
	Token          string
	IPGReferenceID *string
}

// CallbackResult tells the HTTP layer where to send the payer's browser.
type CallbackResult struct {
	Status      domain.TransactionStatus
	RedirectURL string
}

// CallbackService is the reconciler: it settles exactly one terminal state
// per gateway transaction and credits the wallet on SUCCESS.
type CallbackService interface {
	HandleCallback(ctx context.Context, req CallbackRequest) (*CallbackResult, error)
}

// --- Auth ---

// TokenPair bundles the access and refresh tokens issued at login.
type TokenPair struct {
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token"`
	TokenType     string    `json:"token_type"`
	AccessExpiry  time.Time `json:"access_expiry"`
	RefreshExpiry time.Time `json:"refresh_expiry"`
}

// TokenClaims holds the parsed access-token claims.
type TokenClaims struct {
	UserID      uuid.UUID
	PhoneNumber string
	Type        domain.UserType
	BusinessID  *uuid.UUID
	Scopes      []string
}

// TokenService handles JWT issuance and validation.
type TokenService interface {
	Generate(user *domain.User) (*TokenPair, error)
	Validate(tokenString string) (*TokenClaims, error)
	ValidateRefresh(tokenString string) (uuid.UUID, error)
}

// HashService handles password hashing.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// EncryptionService protects secrets at rest (OTP seeds).
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// OTPService generates and checks time-based one-time passwords.
type OTPService interface {
	GenerateSecret() (string, error)
	Code(secret string) (string, error)
	Verify(secret string, code string) bool
}

// OTPStore throttles OTP delivery per phone number.
type OTPStore interface {
	// MarkSent records a delivery and reports whether sending is allowed,
	// i.e. no delivery happened within the resend window.
	MarkSent(ctx context.Context, phoneNumber string, window time.Duration) (bool, error)
}

// SMSSender delivers one-time passwords to users.
type SMSSender interface {
	Send(ctx context.Context, phoneNumber string, message string) error
}

// RegisterRequest holds input for account registration.
type RegisterRequest struct {
	PhoneNumber string
	Email       *string
	Password    string
	Type        domain.UserType
	BusinessID  *uuid.UUID
}

// AuthService defines the password + OTP + JWT authentication flow.
type AuthService interface {
	// Register creates the account and one wallet per supported currency.
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	// Login verifies the password and sends an OTP challenge.
	Login(ctx context.Context, phoneNumber, password string) error
	// VerifyOTP checks the one-time password and issues tokens.
	VerifyOTP(ctx context.Context, phoneNumber, code string) (*TokenPair, error)
	// Refresh exchanges a refresh token for a fresh token pair.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}
