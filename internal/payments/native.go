package payments

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/clearledger/subpay/pkg/enums"
	pkgerrors "github.com/clearledger/subpay/pkg/errors"
)

// nativeDecimals is the precision of the native asset (wei-style).
const nativeDecimals = 18

// NativeAssetCollector sizes charges in the native asset using a fresh
// oracle price, pays the treasury exactly the required amount, and refunds
// any overpayment to the caller.
type NativeAssetCollector struct {
	ledger NativeLedger
	oracle *OracleAdapter
}

// NewNativeAssetCollector builds the native-asset collection strategy.
func NewNativeAssetCollector(ledger NativeLedger, oracle *OracleAdapter) (*NativeAssetCollector, error) {
	if ledger == nil {
		return nil, fmt.Errorf("native ledger is required")
	}
	if oracle == nil {
		return nil, fmt.Errorf("oracle adapter is required")
	}
	return &NativeAssetCollector{ledger: ledger, oracle: oracle}, nil
}

// Method implements Collector.
func (c *NativeAssetCollector) Method() enums.PaymentMethod {
	return enums.PaymentMethodNativeAsset
}

// RequiredAmount converts a USD plan price into the native asset:
// price x 10^18 x 10^oracleDecimals / oraclePrice, truncated.
func RequiredAmount(priceUnits uint64, reading Reading) decimal.Decimal {
	usd := decimal.NewFromBigInt(new(big.Int).SetUint64(priceUnits), 0)
	quotient, _ := usd.Shift(nativeDecimals + reading.Decimals).QuoRem(reading.Price, 0)
	return quotient
}

// Collect settles the charge from the tendered native-asset amount.
func (c *NativeAssetCollector) Collect(ctx context.Context, charge Charge) (Receipt, error) {
	reading, err := c.oracle.FreshReading(ctx)
	if err != nil {
		return Receipt{}, err
	}

	required := RequiredAmount(charge.PriceUnits, reading)

	if charge.Tendered.Cmp(required) < 0 {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "tendered amount below required payment").
			WithDetails(map[string]any{
				"required": required.String(),
				"tendered": charge.Tendered.String(),
			})
	}

	if err := c.ledger.Transfer(ctx, charge.Treasury, required); err != nil {
		return Receipt{}, pkgerrors.Wrap(pkgerrors.CodeTransferFailed, err, "treasury payment")
	}

	refund := charge.Tendered.Sub(required)
	if refund.Sign() > 0 {
		if err := c.ledger.Transfer(ctx, charge.Caller, refund); err != nil {
			return Receipt{}, pkgerrors.Wrap(pkgerrors.CodeTransferFailed, err, "overpayment refund")
		}
	}

	return Receipt{
		Method:   enums.PaymentMethodNativeAsset,
		Amount:   required,
		Refunded: refund,
	}, nil
}
