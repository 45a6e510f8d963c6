package service

import (
	"context"
	"errors"
	"testing"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports/mocks"
	"wallet-platform/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSelectorService_Select_ReturnsActiveGateway(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gatewayRepo := mocks.NewMockGatewayRepository(ctrl)
	svc := NewSelectorService(gatewayRepo, zerolog.Nop())

	ctx := context.Background()
	gw := &domain.Gateway{ID: uuid.New(), Type: domain.GatewayTypeSep, Currency: domain.CurrencyIRR, Priority: 1, IsActive: true}
	gatewayRepo.EXPECT().GetActiveByCurrency(ctx, domain.CurrencyIRR).Return(gw, nil)

	got, err := svc.Select(ctx, domain.CurrencyIRR)
	require.NoError(t, err)
	assert.Equal(t, gw, got)
}

func TestSelectorService_Select_NoneAvailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gatewayRepo := mocks.NewMockGatewayRepository(ctrl)
	svc := NewSelectorService(gatewayRepo, zerolog.Nop())

	ctx := context.Background()
	gatewayRepo.EXPECT().GetActiveByCurrency(ctx, domain.CurrencyUSD).Return(nil, nil)

	_, err := svc.Select(ctx, domain.CurrencyUSD)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "GTW_001", appErr.Code)
}

func TestSelectorService_Select_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gatewayRepo := mocks.NewMockGatewayRepository(ctrl)
	svc := NewSelectorService(gatewayRepo, zerolog.Nop())

	ctx := context.Background()
	gatewayRepo.EXPECT().GetActiveByCurrency(ctx, domain.CurrencyIRR).Return(nil, errors.New("connection reset"))

	_, err := svc.Select(ctx, domain.CurrencyIRR)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SYS_001", appErr.Code)
}
