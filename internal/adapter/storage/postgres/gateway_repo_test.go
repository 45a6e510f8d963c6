package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-platform/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway() *domain.Gateway {
	terminal := "12345678"
	key := "nextpay-api-key"
	return &domain.Gateway{
		ID:          uuid.New(),
		Name:        "sep-main",
		Type:        domain.GatewayTypeSep,
		TerminalID:  &terminal,
		MerchantKey: &key,
		CallbackURL: "https://pay.example.com/callback",
		BaseURL:     "https://sep.shaparak.ir",
		Currency:    domain.CurrencyIRR,
		Priority:    1,
		IsActive:    true,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func gatewayCols() []string {
	return []string{"id", "name", "type", "terminal_id", "merchant_id", "merchant_key", "password", "callback_url", "base_url", "currency", "priority", "is_active", "created_at", "updated_at"}
}

func gatewayRow(gw *domain.Gateway) *pgxmock.Rows {
	return pgxmock.NewRows(gatewayCols()).AddRow(
		gw.ID, gw.Name, gw.Type, gw.TerminalID, gw.MerchantID,
		gw.MerchantKey, gw.Password, gw.CallbackURL, gw.BaseURL,
		gw.Currency, gw.Priority, gw.IsActive, gw.CreatedAt, gw.UpdatedAt,
	)
}

func TestGatewayRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewGatewayRepo(mock)
	gw := newTestGateway()

	mock.ExpectExec("INSERT INTO gateways").
		WithArgs(gw.ID, gw.Name, gw.Type, gw.TerminalID, gw.MerchantID,
			gw.MerchantKey, gw.Password, gw.CallbackURL, gw.BaseURL,
			gw.Currency, gw.Priority, gw.IsActive, gw.CreatedAt, gw.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), gw)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewGatewayRepo(mock)
	gw := newTestGateway()

	mock.ExpectQuery("SELECT .+ FROM gateways WHERE id").
		WithArgs(gw.ID).
		WillReturnRows(gatewayRow(gw))

	result, err := repo.GetByID(context.Background(), gw.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, gw.Name, result.Name)
	assert.Equal(t, domain.GatewayTypeSep, result.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayRepo_GetActiveByCurrency(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewGatewayRepo(mock)
	gw := newTestGateway()

	mock.ExpectQuery(`SELECT .+ FROM gateways .+ is_active = TRUE\s+ORDER BY priority DESC, id ASC LIMIT 1`).
		WithArgs(domain.CurrencyIRR).
		WillReturnRows(gatewayRow(gw))

	result, err := repo.GetActiveByCurrency(context.Background(), domain.CurrencyIRR)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, gw.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayRepo_GetActiveByCurrency_NoneConfigured(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewGatewayRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM gateways").
		WithArgs(domain.CurrencyUSD).
		WillReturnRows(pgxmock.NewRows(gatewayCols()))

	result, err := repo.GetActiveByCurrency(context.Background(), domain.CurrencyUSD)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewGatewayRepo(mock)
	gw := newTestGateway()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM gateways ").
		WithArgs(20, 0).
		WillReturnRows(gatewayRow(gw))

	result, total, err := repo.List(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, result, 1)
	assert.Equal(t, gw.ID, result[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewGatewayRepo(mock)
	gw := newTestGateway()
	gw.IsActive = false

	mock.ExpectExec("UPDATE gateways SET").
		WithArgs(gw.Name, gw.Type, gw.TerminalID, gw.MerchantID,
			gw.MerchantKey, gw.Password, gw.CallbackURL, gw.BaseURL,
			gw.Currency, gw.Priority, gw.IsActive, gw.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.Update(context.Background(), gw)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayRepo_Delete_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewGatewayRepo(mock)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM gateways").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = repo.Delete(context.Background(), id)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
