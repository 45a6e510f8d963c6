package gateway

import (
	"net/http"
	"testing"

	"wallet-platform/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_ClientFor(t *testing.T) {
	factory := NewFactory(http.DefaultClient)

	sep, err := factory.ClientFor(&domain.Gateway{Type: domain.GatewayTypeSep})
	require.NoError(t, err)
	assert.IsType(t, &SepClient{}, sep)

	nextpay, err := factory.ClientFor(&domain.Gateway{Type: domain.GatewayTypeNextPay})
	require.NoError(t, err)
	assert.IsType(t, &NextPayClient{}, nextpay)

	_, err = factory.ClientFor(&domain.Gateway{Type: domain.GatewayType("zarinpal")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported gateway type")
}
