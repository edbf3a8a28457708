package payments

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/clearledger/subpay/pkg/enums"
	pkgerrors "github.com/clearledger/subpay/pkg/errors"
)

// StableTokenCollector settles charges at face value in a fixed-precision
// stable token. The caller must have pre-authorized at least the full amount;
// there is no refund path.
type StableTokenCollector struct {
	token    TokenTransferor
	decimals int32
}

// NewStableTokenCollector builds the stable-token collection strategy.
func NewStableTokenCollector(token TokenTransferor, decimals int32) (*StableTokenCollector, error) {
	if token == nil {
		return nil, fmt.Errorf("token transferor is required")
	}
	if decimals < 0 {
		return nil, fmt.Errorf("token decimals must not be negative")
	}
	return &StableTokenCollector{token: token, decimals: decimals}, nil
}

// Method implements Collector.
func (c *StableTokenCollector) Method() enums.PaymentMethod {
	return enums.PaymentMethodStableToken
}

// Collect transfers exactly price x 10^decimals from the caller to the treasury.
func (c *StableTokenCollector) Collect(ctx context.Context, charge Charge) (Receipt, error) {
	amount := decimal.NewFromBigInt(new(big.Int).SetUint64(charge.PriceUnits), 0).Shift(c.decimals)

	if err := c.token.TransferFrom(ctx, charge.Caller, charge.Treasury, amount); err != nil {
		return Receipt{}, pkgerrors.Wrap(pkgerrors.CodeTransferFailed, err, "stable token transfer")
	}

	return Receipt{
		Method: enums.PaymentMethodStableToken,
		Amount: amount,
	}, nil
}
