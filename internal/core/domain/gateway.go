package domain

import (
	"time"

	"github.com/google/uuid"
)

// GatewayType enumerates the supported payment provider integrations.
type GatewayType string

const (
	GatewayTypeSep     GatewayType = "SEP"
	GatewayTypeNextPay GatewayType = "NEXTPAY"
)

// Valid reports whether t is a known provider type.
func (t GatewayType) Valid() bool {
	switch t {
	case GatewayTypeSep, GatewayTypeNextPay:
		return true
	}
	return false
}

// Gateway describes one external payment provider (IPG) integration.
// Credential fields are provider-specific and nullable: SEP uses the terminal
// ID, NextPay only the merchant key. Admin-managed; read by the selector on
// every top-off so that priority and active-flag changes apply immediately.
type Gateway struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Type        GatewayType `json:"type"`
	TerminalID  *string     `json:"terminal_id,omitempty"`
	MerchantID  *string     `json:"merchant_id,omitempty"`
	MerchantKey *string     `json:"-"`
	Password    *string     `json:"-"`
	CallbackURL string      `json:"callback_url"`
	BaseURL     string      `json:"base_url"`
	Currency    Currency    `json:"currency"`
	Priority    int         `json:"priority"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
