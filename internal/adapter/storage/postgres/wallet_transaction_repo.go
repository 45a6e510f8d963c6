package postgres

import (
	"context"
	"fmt"

	"wallet-platform/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletTransactionRepo implements ports.WalletTransactionRepository. Ledger
// entries are append-only; there is no update or delete path.
type WalletTransactionRepo struct {
	pool Pool
}

// NewWalletTransactionRepo creates a new WalletTransactionRepo.
func NewWalletTransactionRepo(pool Pool) *WalletTransactionRepo {
	return &WalletTransactionRepo{pool: pool}
}

const walletTxnColumns = `id, wallet_id, amount, currency, performed_by, balance, note, reference, created_at`

// Create inserts a ledger entry inside the caller's transaction, the same
// one that moved the wallet balance.
func (r *WalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (` + walletTxnColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.WalletID, e.Amount, e.Currency, e.PerformedBy,
		e.Balance, e.Note, e.Reference, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

// ListByWallet returns a page of ledger entries for the wallet, newest
// first, plus the total count.
func (r *WalletTransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`, walletID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	query := `SELECT ` + walletTxnColumns + ` FROM wallet_transactions
		WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, walletID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var entries []domain.WalletTransaction
	for rows.Next() {
		var e domain.WalletTransaction
		if err := rows.Scan(
			&e.ID, &e.WalletID, &e.Amount, &e.Currency, &e.PerformedBy,
			&e.Balance, &e.Note, &e.Reference, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan wallet transaction row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
