package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GatewayTransactionRepo implements ports.GatewayTransactionRepository.
type GatewayTransactionRepo struct {
	pool Pool
}

// NewGatewayTransactionRepo creates a new GatewayTransactionRepo.
func NewGatewayTransactionRepo(pool Pool) *GatewayTransactionRepo {
	return &GatewayTransactionRepo{pool: pool}
}

const gatewayTxnColumns = `id, user_id, gateway_id, wallet_id, status, kind, amount, currency, card_number, card_type, reference_id, note, ipg_reference_id, shaparak_reference_id, trace_number, token, return_url, created_at, updated_at`

// Create inserts a new gateway transaction.
func (r *GatewayTransactionRepo) Create(ctx context.Context, t *domain.GatewayTransaction) error {
	query := `INSERT INTO gateway_transactions (` + gatewayTxnColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.UserID, t.GatewayID, t.WalletID, t.Status, t.Kind,
		t.Amount, t.Currency, t.CardNumber, t.CardType, t.ReferenceID,
		t.Note, t.IPGReferenceID, t.ShaparakReferenceID, t.TraceNumber,
		t.Token, t.ReturnURL, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert gateway transaction: %w", err)
	}
	return nil
}

// GetByID fetches a gateway transaction by its UUID (without locking).
func (r *GatewayTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.GatewayTransaction, error) {
	query := `SELECT ` + gatewayTxnColumns + ` FROM gateway_transactions WHERE id = $1`
	return scanGatewayTxn(r.pool.QueryRow(ctx, query, id), "get gateway transaction by id")
}

// GetByIDAndToken is the callback lookup: both the transaction ID and the
// provider-issued token must match, so forged or stale callbacks find
// nothing.
func (r *GatewayTransactionRepo) GetByIDAndToken(ctx context.Context, id uuid.UUID, token string) (*domain.GatewayTransaction, error) {
	query := `SELECT ` + gatewayTxnColumns + ` FROM gateway_transactions WHERE id = $1 AND token = $2`
	return scanGatewayTxn(r.pool.QueryRow(ctx, query, id, token), "get gateway transaction by id and token")
}

// GetByIDForUpdate fetches a gateway transaction with pessimistic locking.
// This MUST be called within a transaction.
func (r *GatewayTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.GatewayTransaction, error) {
	query := `SELECT ` + gatewayTxnColumns + ` FROM gateway_transactions WHERE id = $1 FOR UPDATE NOWAIT`
	return scanGatewayTxn(tx.QueryRow(ctx, query, id), "get gateway transaction for update")
}

// SetToken stores the provider-issued token after a successful initiate.
func (r *GatewayTransactionRepo) SetToken(ctx context.Context, id uuid.UUID, token string) error {
	query := `UPDATE gateway_transactions SET token = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, token, id)
	if err != nil {
		return fmt.Errorf("set gateway transaction token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("gateway transaction not found: %s", id)
	}
	return nil
}

// Finalize persists the terminal status and verification metadata inside the
// callback's unit of work.
func (r *GatewayTransactionRepo) Finalize(ctx context.Context, tx pgx.Tx, t *domain.GatewayTransaction) error {
	query := `UPDATE gateway_transactions SET
		status = $1, card_number = $2, card_type = $3, ipg_reference_id = $4,
		shaparak_reference_id = $5, trace_number = $6, updated_at = NOW()
		WHERE id = $7`

	tag, err := tx.Exec(ctx, query,
		t.Status, t.CardNumber, t.CardType, t.IPGReferenceID,
		t.ShaparakReferenceID, t.TraceNumber, t.ID,
	)
	if err != nil {
		return fmt.Errorf("finalize gateway transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("gateway transaction not found: %s", t.ID)
	}
	return nil
}

// List returns a filtered page of gateway transactions plus the total count.
func (r *GatewayTransactionRepo) List(ctx context.Context, params ports.GatewayTransactionListParams) ([]domain.GatewayTransaction, int64, error) {
	where, args := buildGatewayTxnFilter(params)

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM gateway_transactions`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count gateway transactions: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT `+gatewayTxnColumns+` FROM gateway_transactions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list gateway transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.GatewayTransaction
	for rows.Next() {
		var t domain.GatewayTransaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.GatewayID, &t.WalletID, &t.Status, &t.Kind,
			&t.Amount, &t.Currency, &t.CardNumber, &t.CardType, &t.ReferenceID,
			&t.Note, &t.IPGReferenceID, &t.ShaparakReferenceID, &t.TraceNumber,
			&t.Token, &t.ReturnURL, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan gateway transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, total, rows.Err()
}

func buildGatewayTxnFilter(params ports.GatewayTransactionListParams) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.GatewayID != nil {
		add("gateway_id", *params.GatewayID)
	}
	if params.UserID != nil {
		add("user_id", *params.UserID)
	}
	if params.WalletID != nil {
		add("wallet_id", *params.WalletID)
	}
	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Currency != nil {
		add("currency", *params.Currency)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func scanGatewayTxn(row pgx.Row, op string) (*domain.GatewayTransaction, error) {
	t := &domain.GatewayTransaction{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.GatewayID, &t.WalletID, &t.Status, &t.Kind,
		&t.Amount, &t.Currency, &t.CardNumber, &t.CardType, &t.ReferenceID,
		&t.Note, &t.IPGReferenceID, &t.ShaparakReferenceID, &t.TraceNumber,
		&t.Token, &t.ReturnURL, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}
