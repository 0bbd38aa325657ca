package auth

import (
	"crypto/subtle"
	"strings"

	errors "github.com/frahmantamala/payment-reconciliation/internal"
)

const bearerScheme = "Bearer"

// Guard checks the two shared secrets the service trusts: the internal API key
// used by our own callers and the token the payment gateway signs webhooks with.
type Guard struct {
	internalAPIKey []byte
	gatewayAPIKey  []byte
}

func NewGuard(cfg errors.SecurityConfig) *Guard {
	return &Guard{
		internalAPIKey: []byte(cfg.InternalAPIKey),
		gatewayAPIKey:  []byte(cfg.GatewayAPIKey),
	}
}

// CheckInternal validates the x-api-key header value.
func (g *Guard) CheckInternal(apiKey string) error {
	if apiKey == "" {
		return errors.ErrMissingAPIKey
	}
	if !secretMatches(g.internalAPIKey, apiKey) {
		return errors.ErrInvalidAPIKey
	}
	return nil
}

// CheckGateway validates an Authorization header of the form "Bearer <token>".
func (g *Guard) CheckGateway(authorization string) error {
	if strings.TrimSpace(authorization) == "" {
		return errors.ErrMissingGatewayToken
	}

	scheme, token, found := strings.Cut(strings.TrimSpace(authorization), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return errors.ErrInvalidGatewayToken
	}
	token = strings.TrimSpace(token)
	if token == "" || !secretMatches(g.gatewayAPIKey, token) {
		return errors.ErrInvalidGatewayToken
	}
	return nil
}

// an unset secret never matches
func secretMatches(secret []byte, presented string) bool {
	if len(secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(secret, []byte(presented)) == 1
}
