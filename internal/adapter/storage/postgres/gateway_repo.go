package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-platform/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GatewayRepo implements ports.GatewayRepository.
type GatewayRepo struct {
	pool Pool
}

// NewGatewayRepo creates a new GatewayRepo.
func NewGatewayRepo(pool Pool) *GatewayRepo {
	return &GatewayRepo{pool: pool}
}

const gatewayColumns = `id, name, type, terminal_id, merchant_id, merchant_key, password, callback_url, base_url, currency, priority, is_active, created_at, updated_at`

// Create inserts a new gateway configuration.
func (r *GatewayRepo) Create(ctx context.Context, gw *domain.Gateway) error {
	query := `INSERT INTO gateways (` + gatewayColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		gw.ID, gw.Name, gw.Type, gw.TerminalID, gw.MerchantID,
		gw.MerchantKey, gw.Password, gw.CallbackURL, gw.BaseURL,
		gw.Currency, gw.Priority, gw.IsActive, gw.CreatedAt, gw.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert gateway: %w", err)
	}
	return nil
}

// GetByID fetches a gateway by its UUID.
func (r *GatewayRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Gateway, error) {
	query := `SELECT ` + gatewayColumns + ` FROM gateways WHERE id = $1`
	return scanGateway(r.pool.QueryRow(ctx, query, id), "get gateway by id")
}

// GetActiveByCurrency returns the highest-priority active gateway for the
// currency. Higher priority value wins; id breaks ties deterministically.
func (r *GatewayRepo) GetActiveByCurrency(ctx context.Context, currency domain.Currency) (*domain.Gateway, error) {
	query := `SELECT ` + gatewayColumns + ` FROM gateways
		WHERE currency = $1 AND is_active = TRUE
		ORDER BY priority DESC, id ASC LIMIT 1`
	return scanGateway(r.pool.QueryRow(ctx, query, currency), "get active gateway")
}

// List returns a page of gateway configurations plus the total count.
func (r *GatewayRepo) List(ctx context.Context, page, pageSize int) ([]domain.Gateway, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM gateways`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count gateways: %w", err)
	}

	query := `SELECT ` + gatewayColumns + ` FROM gateways
		ORDER BY priority DESC, created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list gateways: %w", err)
	}
	defer rows.Close()

	var gateways []domain.Gateway
	for rows.Next() {
		var gw domain.Gateway
		if err := rows.Scan(
			&gw.ID, &gw.Name, &gw.Type, &gw.TerminalID, &gw.MerchantID,
			&gw.MerchantKey, &gw.Password, &gw.CallbackURL, &gw.BaseURL,
			&gw.Currency, &gw.Priority, &gw.IsActive, &gw.CreatedAt, &gw.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan gateway row: %w", err)
		}
		gateways = append(gateways, gw)
	}
	return gateways, total, rows.Err()
}

// Update rewrites a gateway configuration.
func (r *GatewayRepo) Update(ctx context.Context, gw *domain.Gateway) error {
	query := `UPDATE gateways SET
		name = $1, type = $2, terminal_id = $3, merchant_id = $4,
		merchant_key = $5, password = $6, callback_url = $7, base_url = $8,
		currency = $9, priority = $10, is_active = $11, updated_at = NOW()
		WHERE id = $12`

	tag, err := r.pool.Exec(ctx, query,
		gw.Name, gw.Type, gw.TerminalID, gw.MerchantID,
		gw.MerchantKey, gw.Password, gw.CallbackURL, gw.BaseURL,
		gw.Currency, gw.Priority, gw.IsActive, gw.ID,
	)
	if err != nil {
		return fmt.Errorf("update gateway: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("gateway not found: %s", gw.ID)
	}
	return nil
}

// Delete removes a gateway configuration.
func (r *GatewayRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM gateways WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete gateway: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("gateway not found: %s", id)
	}
	return nil
}

func scanGateway(row pgx.Row, op string) (*domain.Gateway, error) {
	gw := &domain.Gateway{}
	err := row.Scan(
		&gw.ID, &gw.Name, &gw.Type, &gw.TerminalID, &gw.MerchantID,
		&gw.MerchantKey, &gw.Password, &gw.CallbackURL, &gw.BaseURL,
		&gw.Currency, &gw.Priority, &gw.IsActive, &gw.CreatedAt, &gw.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return gw, nil
}
