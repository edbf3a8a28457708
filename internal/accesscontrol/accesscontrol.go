package accesscontrol

import (
	"context"

	"github.com/clearledger/subpay/internal/statestore"
	"github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/types"
)

// Owner returns the configured owner address, or the zero address when the
// engine has not been initialized.
func Owner(ctx context.Context, s statestore.Store) (types.Address, error) {
	owner, ok, err := statestore.GetAddress(ctx, s, statestore.KeyOwner)
	if err != nil {
		return types.ZeroAddress, errors.Wrap(errors.CodeInternal, err, "reading owner slot")
	}
	if !ok {
		return types.ZeroAddress, nil
	}
	return owner, nil
}

// RequireOwner rejects any caller other than the configured owner. The check
// deliberately does not reveal who the owner is.
func RequireOwner(ctx context.Context, s statestore.Store, caller types.Address) error {
	owner, err := Owner(ctx, s)
	if err != nil {
		return err
	}
	if owner.IsZero() || caller != owner {
		return errors.New(errors.CodeUnauthorized, "caller is not the owner")
	}
	return nil
}
