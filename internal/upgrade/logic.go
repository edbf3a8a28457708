package upgrade

import (
	"context"
	"fmt"

	"github.com/clearledger/subpay/internal/payments"
	"github.com/clearledger/subpay/internal/statestore"
	"github.com/clearledger/subpay/pkg/enums"
	"github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/types"
)

// InitArgs carries the one-time configuration a logic version consumes when
// it is activated. Fields a version does not use are ignored by it.
type InitArgs struct {
	Owner        types.Address
	PaymentToken types.Address
	Treasury     types.Address
	PriceOracle  types.Address
}

// Logic is one version of the engine's behavior. A version declares which
// payment strategies it supports and how to initialize the slots it
// introduces. Initialize runs exactly once per version per store; a second
// run must fail without writing.
type Logic interface {
	Version() uint64
	Collector(method enums.PaymentMethod) (payments.Collector, bool)
	Initialize(ctx context.Context, s statestore.Store, args InitArgs) error
}

type v1 struct {
	stable payments.Collector
}

// NewV1 returns the initial logic version: stable-token payments only.
func NewV1(stable payments.Collector) (Logic, error) {
	if stable == nil {
		return nil, fmt.Errorf("v1 logic requires a stable-token collector")
	}
	return &v1{stable: stable}, nil
}

func (l *v1) Version() uint64 { return 1 }

func (l *v1) Collector(method enums.PaymentMethod) (payments.Collector, bool) {
	if method == enums.PaymentMethodStableToken {
		return l.stable, true
	}
	return nil, false
}

func (l *v1) Initialize(ctx context.Context, s statestore.Store, args InitArgs) error {
	_, exists, err := statestore.GetAddress(ctx, s, statestore.KeyOwner)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "reading owner slot")
	}
	if exists {
		return errors.New(errors.CodeAlreadyInitialized, "version 1 already initialized")
	}
	if args.Owner.IsZero() {
		return errors.New(errors.CodeInvalidArgument, "owner cannot be the zero address")
	}
	if args.Treasury.IsZero() {
		return errors.New(errors.CodeInvalidArgument, "treasury cannot be the zero address")
	}
	if args.PaymentToken.IsZero() {
		return errors.New(errors.CodeInvalidArgument, "payment token cannot be the zero address")
	}

	if err := statestore.PutAddress(ctx, s, statestore.KeyOwner, args.Owner); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "writing owner slot")
	}
	if err := statestore.PutAddress(ctx, s, statestore.KeyTreasury, args.Treasury); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "writing treasury slot")
	}
	if err := statestore.PutAddress(ctx, s, statestore.KeyPaymentToken, args.PaymentToken); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "writing payment token slot")
	}
	if err := statestore.PutUint64(ctx, s, statestore.KeyNextPlanID, 1); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "writing plan counter")
	}
	return nil
}

type v2 struct {
	stable payments.Collector
	native payments.Collector
}

// NewV2 returns the second logic version: stable-token payments plus
// native-asset payments priced through an oracle.
func NewV2(stable, native payments.Collector) (Logic, error) {
	if stable == nil || native == nil {
		return nil, fmt.Errorf("v2 logic requires stable-token and native-asset collectors")
	}
	return &v2{stable: stable, native: native}, nil
}

func (l *v2) Version() uint64 { return 2 }

func (l *v2) Collector(method enums.PaymentMethod) (payments.Collector, bool) {
	switch method {
	case enums.PaymentMethodStableToken:
		return l.stable, true
	case enums.PaymentMethodNativeAsset:
		return l.native, true
	default:
		return nil, false
	}
}

func (l *v2) Initialize(ctx context.Context, s statestore.Store, args InitArgs) error {
	_, exists, err := statestore.GetAddress(ctx, s, statestore.KeyPriceOracle)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "reading oracle slot")
	}
	if exists {
		return errors.New(errors.CodeAlreadyInitialized, "version 2 already initialized")
	}
	if args.PriceOracle.IsZero() {
		return errors.New(errors.CodeInvalidArgument, "price oracle cannot be the zero address")
	}
	if err := statestore.PutAddress(ctx, s, statestore.KeyPriceOracle, args.PriceOracle); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "writing oracle slot")
	}
	return nil
}
