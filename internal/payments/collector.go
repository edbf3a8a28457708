package payments

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/clearledger/subpay/pkg/enums"
	"github.com/clearledger/subpay/pkg/types"
)

// TokenTransferor moves stable-token balances. It is an external collaborator;
// a failed call means no funds moved.
type TokenTransferor interface {
	TransferFrom(ctx context.Context, from, to types.Address, amount decimal.Decimal) error
}

// NativeLedger moves native-asset balances held with the payment gateway.
type NativeLedger interface {
	Transfer(ctx context.Context, to types.Address, amount decimal.Decimal) error
}

// Charge is a single collection request sized in whole plan-price units.
// Tendered is only meaningful on the native-asset path.
type Charge struct {
	Caller     types.Address
	Treasury   types.Address
	PriceUnits uint64
	Tendered   decimal.Decimal
}

// Receipt reports what a collector settled.
type Receipt struct {
	Method   enums.PaymentMethod
	Amount   decimal.Decimal
	Refunded decimal.Decimal
}

// Collector is the pluggable payment-collection strategy invoked by the
// subscription lifecycle. Implementations must either settle the full charge
// or return an error having moved nothing the caller can observe.
type Collector interface {
	Method() enums.PaymentMethod
	Collect(ctx context.Context, charge Charge) (Receipt, error)
}
