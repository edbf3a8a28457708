package middleware

import (
	"net/http"
	"strings"

	"github.com/clearledger/subpay/api/responses"
	pkgauth "github.com/clearledger/subpay/pkg/auth"
	"github.com/clearledger/subpay/pkg/config"
	pkgerrors "github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// caller's account address.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseCallerToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithCaller(r.Context(), claims.Address)
			if logg != nil {
				ctx = logg.WithCallerAddress(ctx, string(claims.Address))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
