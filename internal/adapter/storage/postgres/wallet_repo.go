package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-platform/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const walletColumns = `id, user_id, business_id, currency, balance, spend_limit, created_at, updated_at`

// Create inserts a new wallet into the database.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.UserID, w.BusinessID, w.Currency, w.Balance,
		w.Limit, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, id), "get wallet by id")
}

// GetByUserID fetches a user's personal wallet for a currency.
func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID, currency domain.Currency) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND currency = $2`
	return scanWallet(r.pool.QueryRow(ctx, query, userID, currency), "get wallet by user id")
}

// GetByBusinessID fetches a business's shared wallet for a currency.
func (r *WalletRepo) GetByBusinessID(ctx context.Context, businessID uuid.UUID, currency domain.Currency) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE business_id = $1 AND currency = $2`
	return scanWallet(r.pool.QueryRow(ctx, query, businessID, currency), "get wallet by business id")
}

// ListByUserID returns all wallets owned by the user.
func (r *WalletRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY currency`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets by user: %w", err)
	}
	return collectWallets(rows)
}

// ListByBusinessID returns all wallets owned by the business.
func (r *WalletRepo) ListByBusinessID(ctx context.Context, businessID uuid.UUID) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE business_id = $1 ORDER BY currency`
	rows, err := r.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("list wallets by business: %w", err)
	}
	return collectWallets(rows)
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking. NOWAIT
// turns lock contention into an immediate 55P03 error instead of queueing.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE NOWAIT`
	return scanWallet(tx.QueryRow(ctx, query, id), "get wallet for update")
}

// UpdateBalance updates a wallet's balance within a transaction.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, walletID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

// UpdateLimit updates a wallet's spending limit.
func (r *WalletRepo) UpdateLimit(ctx context.Context, walletID uuid.UUID, limit decimal.Decimal) error {
	query := `UPDATE wallets SET spend_limit = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, limit, walletID)
	if err != nil {
		return fmt.Errorf("update wallet limit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.UserID, &w.BusinessID, &w.Currency, &w.Balance,
		&w.Limit, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

func collectWallets(rows pgx.Rows) ([]domain.Wallet, error) {
	defer rows.Close()
	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.BusinessID, &w.Currency, &w.Balance,
			&w.Limit, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}
