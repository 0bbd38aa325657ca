package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/payment-reconciliation/internal"
	"github.com/frahmantamala/payment-reconciliation/internal/transport"
	"github.com/frahmantamala/payment-reconciliation/pkg/logger"
)

const (
	HeaderAPIKey        = "x-api-key"
	HeaderAuthorization = "Authorization"
)

type AccessGuard interface {
	CheckInternal(apiKey string) error
	CheckGateway(authorization string) error
}

// RequireInternalKey admits only callers presenting the internal API key.
func RequireInternalKey(guard AccessGuard, lg *slog.Logger) func(http.Handler) http.Handler {
	return require(lg, internal.CallerInternal, func(r *http.Request) error {
		return guard.CheckInternal(r.Header.Get(HeaderAPIKey))
	})
}

// RequireGatewayToken admits only the payment gateway's bearer token.
func RequireGatewayToken(guard AccessGuard, lg *slog.Logger) func(http.Handler) http.Handler {
	return require(lg, internal.CallerGateway, func(r *http.Request) error {
		return guard.CheckGateway(r.Header.Get(HeaderAuthorization))
	})
}

func require(lg *slog.Logger, caller internal.Caller, check func(r *http.Request) error) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(r); err != nil {
				logger.FromOr(r.Context(), lg).Warn("request rejected by access guard",
					"caller", caller,
					"method", r.Method,
					"path", r.URL.Path,
					"error", err)
				base.HandleError(w, err)
				return
			}

			ctx := internal.ContextWithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
