package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a gateway transaction.
//
// PENDING transitions exactly once to SUCCESS, FAILED or DISCREPANCY upon
// callback verification. CANCELED, VERIFYING and UNKNOWN are reachable in
// principle but unused by the current provider integrations.
type TransactionStatus string

const (
	TransactionStatusPending     TransactionStatus = "PENDING"
	TransactionStatusSuccess     TransactionStatus = "SUCCESS"
	TransactionStatusFailed      TransactionStatus = "FAILED"
	TransactionStatusDiscrepancy TransactionStatus = "DISCREPANCY"
	TransactionStatusCanceled    TransactionStatus = "CANCELED"
	TransactionStatusVerifying   TransactionStatus = "VERIFYING"
	TransactionStatusUnknown     TransactionStatus = "UNKNOWN"
)

// TransactionKindTopoff marks gateway transactions created by wallet top-offs.
const TransactionKindTopoff = "topoff"

// GatewayTransaction represents one attempt to pay through a gateway. A new
// top-off always creates a new row; a row is never reused across attempts.
type GatewayTransaction struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	GatewayID uuid.UUID         `json:"gateway_id"`
	WalletID  *uuid.UUID        `json:"wallet_id,omitempty"` // set only for top-off flows
	Status    TransactionStatus `json:"status"`
	Kind      string            `json:"kind"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  Currency          `json:"currency"`

	// Verification metadata, filled in by the gateway client.
	CardNumber          *string `json:"card_number,omitempty"` // masked PAN
	CardType            *string `json:"card_type,omitempty"`
	ReferenceID         *string `json:"reference_id,omitempty"` // caller-supplied correlation
	Note                *string `json:"note,omitempty"`
	IPGReferenceID      *string `json:"ipg_reference_id,omitempty"`
	ShaparakReferenceID *string `json:"shaparak_reference_id,omitempty"`
	TraceNumber         *string `json:"trace_number,omitempty"`
	Token               *string `json:"-"` // gateway-issued, correlates the callback
	ReturnURL           *string `json:"return_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the transaction reached a final state.
func (t *GatewayTransaction) IsTerminal() bool {
	switch t.Status {
	case TransactionStatusSuccess, TransactionStatusFailed,
		TransactionStatusDiscrepancy, TransactionStatusCanceled:
		return true
	}
	return false
}

// IsPending reports whether the transaction still awaits verification.
func (t *GatewayTransaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}
