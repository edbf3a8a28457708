package upgrade

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/clearledger/subpay/internal/accesscontrol"
	"github.com/clearledger/subpay/internal/events"
	"github.com/clearledger/subpay/internal/statestore"
	"github.com/clearledger/subpay/pkg/db"
	"github.com/clearledger/subpay/pkg/enums"
	"github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/types"
)

// ControllerParams wires the upgrade controller's collaborators.
type ControllerParams struct {
	DB       *db.Client
	Store    statestore.Store
	Events   events.Emitter
	Gate     *statestore.Gate
	Registry *Registry
}

// Controller owns the stored version counter. It performs first-time
// initialization (0 -> 1) and owner-gated single-step upgrades; data written
// by earlier versions is never rewritten by either.
type Controller struct {
	db       *db.Client
	store    statestore.Store
	events   events.Emitter
	gate     *statestore.Gate
	registry *Registry
}

// NewController validates collaborators and returns an upgrade controller.
func NewController(p ControllerParams) (*Controller, error) {
	if p.DB == nil || p.Store == nil || p.Events == nil || p.Gate == nil || p.Registry == nil {
		return nil, fmt.Errorf("upgrade controller requires db, store, events, gate and registry")
	}
	return &Controller{db: p.DB, store: p.Store, events: p.Events, gate: p.Gate, registry: p.Registry}, nil
}

// CurrentVersion returns the stored version counter; zero means the engine
// has never been initialized.
func (c *Controller) CurrentVersion(ctx context.Context) (uint64, error) {
	version, _, err := statestore.GetUint64(ctx, c.store, statestore.KeyVersion)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "reading version slot")
	}
	return version, nil
}

// Initialize performs the one-time 0 -> 1 transition: it runs version 1's
// initializer and establishes the owner. There is no caller check; the store
// has no owner yet to check against.
func (c *Controller) Initialize(ctx context.Context, args InitArgs) error {
	logic, ok := c.registry.Logic(1)
	if !ok {
		return errors.New(errors.CodeInternal, "version 1 logic is not registered")
	}
	return c.gate.Do(func() error {
		return c.db.WithTx(ctx, func(tx *gorm.DB) error {
			store := c.store.WithTx(tx)

			version, _, err := statestore.GetUint64(ctx, store, statestore.KeyVersion)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "reading version slot")
			}
			if version != 0 {
				return errors.New(errors.CodeAlreadyInitialized, "engine already initialized").
					WithDetails(map[string]any{"version": version})
			}

			if err := logic.Initialize(ctx, store, args); err != nil {
				return err
			}
			if err := statestore.PutUint64(ctx, store, statestore.KeyVersion, 1); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "writing version slot")
			}

			_, err = c.events.WithTx(tx).Emit(ctx, enums.BillingEventEngineInitialized, statestore.KeyVersion, map[string]any{
				"owner":         args.Owner,
				"treasury":      args.Treasury,
				"payment_token": args.PaymentToken,
			})
			return err
		})
	})
}

// Upgrade moves the engine to the next version. Only the owner may upgrade,
// only by exactly one step, and the target version's initializer runs in the
// same transaction as the version bump.
func (c *Controller) Upgrade(ctx context.Context, caller types.Address, target uint64, args InitArgs) error {
	return c.gate.Do(func() error {
		return c.db.WithTx(ctx, func(tx *gorm.DB) error {
			store := c.store.WithTx(tx)
			if err := accesscontrol.RequireOwner(ctx, store, caller); err != nil {
				return err
			}

			current, _, err := statestore.GetUint64(ctx, store, statestore.KeyVersion)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "reading version slot")
			}
			if current == 0 {
				return errors.New(errors.CodeInvalidArgument, "engine is not initialized")
			}
			if target != current+1 {
				return errors.New(errors.CodeInvalidArgument, "upgrades must advance exactly one version").
					WithDetails(map[string]any{"current": current, "target": target})
			}

			logic, ok := c.registry.Logic(target)
			if !ok {
				return errors.New(errors.CodeNotFound, "target logic version is not registered").
					WithDetails(map[string]any{"target": target})
			}

			if err := statestore.VerifyAppendOnly(statestore.LayoutAt(current), statestore.LayoutAt(target)); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "slot layout check failed")
			}

			if err := logic.Initialize(ctx, store, args); err != nil {
				return err
			}
			if err := statestore.PutUint64(ctx, store, statestore.KeyVersion, target); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "writing version slot")
			}

			_, err = c.events.WithTx(tx).Emit(ctx, enums.BillingEventLogicUpgraded, statestore.KeyVersion, map[string]any{
				"from": current,
				"to":   target,
			})
			return err
		})
	})
}
