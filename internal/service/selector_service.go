package service

import (
	"context"
	"fmt"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"
	"wallet-platform/pkg/apperror"

	"github.com/rs/zerolog"
)

// SelectorServiceImpl implements ports.GatewaySelector. Selection is
// re-evaluated on every call, so priority and active-flag changes made by
// admins take effect on the next top-off without a restart.
type SelectorServiceImpl struct {
	gatewayRepo ports.GatewayRepository
	log         zerolog.Logger
}

// NewSelectorService creates a new SelectorServiceImpl.
func NewSelectorService(gatewayRepo ports.GatewayRepository, log zerolog.Logger) *SelectorServiceImpl {
	return &SelectorServiceImpl{gatewayRepo: gatewayRepo, log: log}
}

// Select returns the highest-priority active gateway for the currency.
func (s *SelectorServiceImpl) Select(ctx context.Context, currency domain.Currency) (*domain.Gateway, error) {
	gw, err := s.gatewayRepo.GetActiveByCurrency(ctx, currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("select gateway: %w", err))
	}
	if gw == nil {
		return nil, apperror.ErrNoGatewayAvailable()
	}

	s.log.Debug().
		Str("gateway_id", gw.ID.String()).
		Str("gateway_type", string(gw.Type)).
		Str("currency", string(currency)).
		Msg("gateway selected")

	return gw, nil
}
