package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency enumerates the currencies a wallet can hold.
type Currency string

const (
	CurrencyIRR Currency = "IRR"
	CurrencyUSD Currency = "USD"
)

// Currencies lists every supported currency. A user account gets one wallet
// per entry at signup.
var Currencies = []Currency{CurrencyIRR, CurrencyUSD}

// Valid reports whether c is a known currency.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyIRR, CurrencyUSD:
		return true
	}
	return false
}

// Wallet holds a balance for exactly one owner (user or business) in one
// currency. At most one wallet exists per (owner, currency) pair. The balance
// is mutated only through the ledger service, never directly.
type Wallet struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	BusinessID *uuid.UUID      `json:"business_id,omitempty"`
	Currency   Currency        `json:"currency"`
	Balance    decimal.Decimal `json:"balance"`
	Limit      decimal.Decimal `json:"limit"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// WalletTransaction is an immutable ledger entry: one balance-affecting
// event, recorded exactly once per committed balance change. Balance carries
// the post-transaction snapshot for audit.
type WalletTransaction struct {
	ID          uuid.UUID       `json:"id"`
	WalletID    uuid.UUID       `json:"wallet_id"`
	Amount      decimal.Decimal `json:"amount"` // signed: negative = debit
	Currency    Currency        `json:"currency"`
	PerformedBy uuid.UUID       `json:"performed_by"`
	Balance     decimal.Decimal `json:"balance"`
	Note        *string         `json:"note,omitempty"`
	Reference   *string         `json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
