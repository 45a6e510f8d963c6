package ports

import (
	"context"

	"wallet-platform/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByPhone(ctx context.Context, phoneNumber string) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside transaction blocks for pessimistic
// locking; the ForUpdate variants acquire the row lock with a bounded wait.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Wallet, error)
	GetByBusinessID(ctx context.Context, businessID uuid.UUID, currency domain.Currency) (*domain.Wallet, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error)
	ListByBusinessID(ctx context.Context, businessID uuid.UUID) ([]domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
	UpdateLimit(ctx context.Context, walletID uuid.UUID, limit decimal.Decimal) error
}

// WalletTransactionRepository persists immutable ledger entries. Entries are
// only ever created inside the same database transaction that moves the
// wallet balance; there is no update or delete.
type WalletTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.WalletTransaction) error
	ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error)
}

// GatewayRepository defines persistence operations for gateway configurations.
type GatewayRepository interface {
	Create(ctx context.Context, gw *domain.Gateway) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Gateway, error)
	// GetActiveByCurrency returns the highest-priority active gateway for the
	// currency, or nil when none matches.
	GetActiveByCurrency(ctx context.Context, currency domain.Currency) (*domain.Gateway, error)
	List(ctx context.Context, page, pageSize int) ([]domain.Gateway, int64, error)
	Update(ctx context.Context, gw *domain.Gateway) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// GatewayTransactionRepository defines persistence for gateway transactions.
type GatewayTransactionRepository interface {
	Create(ctx context.Context, txn *domain.GatewayTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GatewayTransaction, error)
	// GetByIDAndToken is the callback lookup; the token guards against replay
	// with a forged or stale correlation token. Returns nil when no row
	// matches both.
	GetByIDAndToken(ctx context.Context, id uuid.UUID, token string) (*domain.GatewayTransaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.GatewayTransaction, error)
	SetToken(ctx context.Context, id uuid.UUID, token string) error
	// Finalize persists the terminal status and verification metadata inside
	// the callback's unit of work.
	Finalize(ctx context.Context, tx pgx.Tx, txn *domain.GatewayTransaction) error
	List(ctx context.Context, params GatewayTransactionListParams) ([]domain.GatewayTransaction, int64, error)
}

// GatewayTransactionListParams holds filter + pagination for listing gateway
// transactions.
type GatewayTransactionListParams struct {
	GatewayID *uuid.UUID
	UserID    *uuid.UUID
	WalletID  *uuid.UUID
	Status    *domain.TransactionStatus
	Currency  *domain.Currency
	Page      int
	PageSize  int
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
