package plans

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

// ServiceParams wires the plan registry's collaborators.
type ServiceParams struct {
	DB     *db.Client
	Store  statestore.Store
	Events events.Emitter
	Gate   *statestore.Gate
}

// Service owns the plan catalog and the treasury pointer. All mutations are
// owner-gated and serialized through the engine gate.
type Service struct {
	db     *db.Client
	store  statestore.Store
	events events.Emitter
	gate   *statestore.Gate
}

// NewService validates collaborators and returns a plan registry service.
func NewService(p ServiceParams) (*Service, error) {
	if p.DB == nil || p.Store == nil || p.Events == nil || p.Gate == nil {
		return nil, fmt.Errorf("plans service requires db, store, events and gate")
	}
	return &Service{db: p.DB, store: p.Store, events: p.Events, gate: p.Gate}, nil
}

// Create registers a new plan and returns its id. Plans are born active and
// ids are assigned from a monotone counter that never reuses a value.
func (s *Service) Create(ctx context.Context, caller types.Address, pricePerPeriod uint64) (statestore.PlanRecord, error) {
	if pricePerPeriod == 0 {
		return statestore.PlanRecord{}, errors.New(errors.CodeInvalidArgument, "plan price must be positive")
	}

	var created statestore.PlanRecord
	err := s.gate.Do(func() error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			store := s.store.WithTx(tx)
			if err := accesscontrol.RequireOwner(ctx, store, caller); err != nil {
				return err
			}

			nextID, ok, err := statestore.GetUint64(ctx, store, statestore.KeyNextPlanID)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "reading plan counter")
			}
			if !ok || nextID == 0 {
				return errors.New(errors.CodeInternal, "plan counter is not initialized")
			}

			created = statestore.PlanRecord{
				ID:             nextID,
				PricePerPeriod: pricePerPeriod,
				Active:         true,
			}
			if err := statestore.PutPlan(ctx, store, created); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "writing plan record")
			}
			if err := statestore.PutUint64(ctx, store, statestore.KeyNextPlanID, nextID+1); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "advancing plan counter")
			}

			_, err = s.events.WithTx(tx).Emit(ctx, enums.BillingEventPlanCreated, statestore.PlanKey(nextID), map[string]any{
				"plan_id":          nextID,
				"price_per_period": pricePerPeriod,
			})
			return err
		})
	})
	if err != nil {
		return statestore.PlanRecord{}, err
	}
	return created, nil
}

// SetStatus activates or deactivates an existing plan. Asking for the status
// a plan already has is rejected rather than silently absorbed.
func (s *Service) SetStatus(ctx context.Context, caller types.Address, planID uint64, active bool) (statestore.PlanRecord, error) {
	var updated statestore.PlanRecord
	err := s.gate.Do(func() error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			store := s.store.WithTx(tx)
			if err := accesscontrol.RequireOwner(ctx, store, caller); err != nil {
				return err
			}

			plan, err := s.lookup(ctx, store, planID)
			if err != nil {
				return err
			}
			if plan.Active == active {
				return errors.New(errors.CodeNoOp, "plan already has the requested status").
					WithDetails(map[string]any{"plan_id": planID, "active": active})
			}

			plan.Active = active
			if err := statestore.PutPlan(ctx, store, plan); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "writing plan record")
			}
			updated = plan

			_, err = s.events.WithTx(tx).Emit(ctx, enums.BillingEventPlanStatusChanged, statestore.PlanKey(planID), map[string]any{
				"plan_id": planID,
				"active":  active,
			})
			return err
		})
	})
	if err != nil {
		return statestore.PlanRecord{}, err
	}
	return updated, nil
}

// Get returns one plan record.
func (s *Service) Get(ctx context.Context, planID uint64) (statestore.PlanRecord, error) {
	return s.lookup(ctx, s.store, planID)
}

// Treasury returns the configured payout destination.
func (s *Service) Treasury(ctx context.Context) (types.Address, error) {
	treasury, ok, err := statestore.GetAddress(ctx, s.store, statestore.KeyTreasury)
	if err != nil {
		return types.ZeroAddress, errors.Wrap(errors.CodeInternal, err, "reading treasury slot")
	}
	if !ok {
		return types.ZeroAddress, errors.New(errors.CodeInternal, "treasury is not initialized")
	}
	return treasury, nil
}

// SetTreasury repoints the payout destination. The zero address is rejected;
// it would silently burn every future payment.
func (s *Service) SetTreasury(ctx context.Context, caller, treasury types.Address) error {
	if treasury.IsZero() {
		return errors.New(errors.CodeInvalidArgument, "treasury cannot be the zero address")
	}
	return s.gate.Do(func() error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			store := s.store.WithTx(tx)
			if err := accesscontrol.RequireOwner(ctx, store, caller); err != nil {
				return err
			}

			previous, _, err := statestore.GetAddress(ctx, store, statestore.KeyTreasury)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "reading treasury slot")
			}
			if err := statestore.PutAddress(ctx, store, statestore.KeyTreasury, treasury); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "writing treasury slot")
			}

			_, err = s.events.WithTx(tx).Emit(ctx, enums.BillingEventTreasuryUpdated, statestore.KeyTreasury, map[string]any{
				"previous": previous,
				"current":  treasury,
			})
			return err
		})
	})
}

func (s *Service) lookup(ctx context.Context, store statestore.Store, planID uint64) (statestore.PlanRecord, error) {
	if planID == 0 {
		return statestore.PlanRecord{}, errors.New(errors.CodeNotFound, "plan does not exist")
	}
	plan, ok, err := statestore.GetPlan(ctx, store, planID)
	if err != nil {
		return statestore.PlanRecord{}, errors.Wrap(errors.CodeInternal, err, "reading plan record")
	}
	if !ok {
		return statestore.PlanRecord{}, errors.New(errors.CodeNotFound, "plan does not exist")
	}
	return plan, nil
}
