package middleware

import (
	"context"

	"github.com/clearledger/subpay/pkg/types"
)

type contextKey string

const ctxCallerAddress contextKey = "caller_address"

// CallerFromContext returns the authenticated caller's account address, or
// the zero address when the request is unauthenticated.
func CallerFromContext(ctx context.Context) types.Address {
	if ctx == nil {
		return types.ZeroAddress
	}
	if v, ok := ctx.Value(ctxCallerAddress).(types.Address); ok {
		return v
	}
	return types.ZeroAddress
}

// WithCaller injects the caller's account address into the context.
func WithCaller(ctx context.Context, address types.Address) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCallerAddress, address)
}
