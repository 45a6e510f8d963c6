package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// UserType is the tier a user account belongs to.
type UserType string

const (
	UserTypeAgency   UserType = "AGENCY"
	UserTypeBusiness UserType = "BUSINESS"
	UserTypeRegular  UserType = "REGULAR"
)

// Valid reports whether t is a known user tier.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeAgency, UserTypeBusiness, UserTypeRegular:
		return true
	}
	return false
}

// Permission scopes carried in access tokens.
const (
	ScopeWalletRead              = "wallet:read"
	ScopeWalletUpdate            = "wallet:update"
	ScopeWalletTransactionCreate = "wallet_transaction:create"
	ScopeWalletTransactionRead   = "wallet_transaction:read"
	ScopeGatewayCreate           = "gateway:create"
	ScopeGatewayRead             = "gateway:read"
	ScopeGatewayUpdate           = "gateway:update"
	ScopeGatewayDelete           = "gateway:delete"
	ScopeGatewayTransactionRead  = "gateway_transaction:read"
)

// User is an account holder. BusinessID is set for BUSINESS-tier users and
// scopes the wallets they can see.
type User struct {
	ID           uuid.UUID  `json:"id"`
	PhoneNumber  string     `json:"phone_number"`
	Email        *string    `json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	OTPSecretEnc string     `json:"-"` // TOTP secret, encrypted at rest
	Type         UserType   `json:"type"`
	BusinessID   *uuid.UUID `json:"business_id,omitempty"`
	IsActive     bool       `json:"is_active"`
	Scopes       []string   `json:"scopes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasScope reports whether the user carries the given permission scope.
func (u *User) HasScope(scope string) bool {
	return slices.Contains(u.Scopes, scope)
}

// IsBusinessSet reports whether the user belongs to the business tier and
// should be resolved to business-owned wallets.
func (u *User) IsBusinessSet() bool {
	return u.Type == UserTypeBusiness
}
