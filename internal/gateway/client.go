// Package gateway implements the payment provider (IPG) client integrations.
// Each provider exposes the same two operations, initiate a payment session
// and verify a finished one, behind ports.GatewayClient, so the top-off and
// callback services stay provider-agnostic. Adding a provider means adding
// one client type and one case to the factory.
package gateway

import (
	"fmt"
	"net/http"

	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"
)

// HTTPClient is the outbound HTTP dependency, an interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Factory implements ports.GatewayClientFactory. One shared HTTP client is
// reused across providers; per-call deadlines come from the request context
// and the client's own timeout.
type Factory struct {
	httpClient HTTPClient
}

// NewFactory creates a client factory around the given HTTP client.
func NewFactory(httpClient HTTPClient) *Factory {
	return &Factory{httpClient: httpClient}
}

// ClientFor builds a provider client from the gateway configuration record.
func (f *Factory) ClientFor(gw *domain.Gateway) (ports.GatewayClient, error) {
	switch gw.Type {
	case domain.GatewayTypeSep:
		return NewSepClient(gw, f.httpClient), nil
	case domain.GatewayTypeNextPay:
		return NewNextPayClient(gw, f.httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported gateway type %q", gw.Type)
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string {
	return &s
}
