package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/clearledger/subpay/internal/events"
	"github.com/clearledger/subpay/internal/payments"
	"github.com/clearledger/subpay/internal/statestore"
	"github.com/clearledger/subpay/pkg/db"
	"github.com/clearledger/subpay/pkg/enums"
	"github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/types"
)

// LogicRegistry resolves the payment strategy a stored logic version exposes
// for a method.
type LogicRegistry interface {
	Collector(version uint64, method enums.PaymentMethod) (payments.Collector, bool)
}

// ServiceParams wires the lifecycle service's collaborators.
type ServiceParams struct {
	DB       *db.Client
	Store    statestore.Store
	Events   events.Emitter
	Gate     *statestore.Gate
	Registry LogicRegistry
	Period   time.Duration
	Now      func() time.Time
}

// Service drives the subscription lifecycle. Every mutation collects payment
// and updates state in one transaction under the engine gate: either the
// charge settles and the record advances, or neither happens.
type Service struct {
	db       *db.Client
	store    statestore.Store
	events   events.Emitter
	gate     *statestore.Gate
	registry LogicRegistry
	period   time.Duration
	now      func() time.Time
}

// Status is a user's subscription as reads report it.
type Status struct {
	Record         statestore.SubscriptionRecord
	PaidWithNative bool
}

// NewService validates collaborators and returns a lifecycle service.
func NewService(p ServiceParams) (*Service, error) {
	if p.DB == nil || p.Store == nil || p.Events == nil || p.Gate == nil || p.Registry == nil {
		return nil, fmt.Errorf("subscriptions service requires db, store, events, gate and registry")
	}
	if p.Period <= 0 {
		return nil, fmt.Errorf("billing period must be positive")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Service{
		db:       p.DB,
		store:    p.Store,
		events:   p.Events,
		gate:     p.Gate,
		registry: p.Registry,
		period:   p.Period,
		now:      p.Now,
	}, nil
}

// Subscribe activates a subscription to an active plan, collecting the first
// period's payment up front. The next due date is one period from now.
func (s *Service) Subscribe(ctx context.Context, caller types.Address, planID uint64, method enums.PaymentMethod, tendered decimal.Decimal) (Status, payments.Receipt, error) {
	if !method.IsValid() {
		return Status{}, payments.Receipt{}, errors.New(errors.CodeInvalidArgument, "unknown payment method")
	}

	var (
		status  Status
		receipt payments.Receipt
	)
	err := s.gate.Do(func() error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			store := s.store.WithTx(tx)

			sub, err := statestore.GetSubscription(ctx, store, caller)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "reading subscription record")
			}
			if sub.Active {
				return errors.New(errors.CodeAlreadyActive, "subscription already active")
			}

			plan, err := s.plan(ctx, store, planID)
			if err != nil {
				return err
			}
			// An inactive plan is indistinguishable from an absent one
			// for subscribers.
			if !plan.Active {
				return errors.New(errors.CodeNotFound, "plan does not exist")
			}

			version, collector, err := s.collector(ctx, store, method)
			if err != nil {
				return err
			}
			receipt, err = s.collect(ctx, store, collector, caller, plan.PricePerPeriod, tendered)
			if err != nil {
				return err
			}

			record := statestore.SubscriptionRecord{
				PlanID:         planID,
				NextPaymentDue: s.now().Add(s.period).Unix(),
				Active:         true,
			}
			if err := statestore.PutSubscription(ctx, store, caller, record); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "writing subscription record")
			}
			if err := s.markMethod(ctx, store, version, caller, method); err != nil {
				return err
			}
			status = Status{Record: record, PaidWithNative: method == enums.PaymentMethodNativeAsset}

			_, err = s.events.WithTx(tx).Emit(ctx, enums.BillingEventSubscriptionActivated, statestore.SubscriptionKey(caller), map[string]any{
				"plan_id":          planID,
				"next_payment_due": record.NextPaymentDue,
				"method":           method,
				"amount":           receipt.Amount,
				"refunded":         receipt.Refunded,
			})
			return err
		})
	})
	if err != nil {
		return Status{}, payments.Receipt{}, err
	}
	return status, receipt, nil
}

// Renew collects another period's payment once the current one has lapsed.
// The new due date is one period from the renewal moment, not from the old
// due date; late renewals do not owe back periods.
func (s *Service) Renew(ctx context.Context, caller types.Address, method enums.PaymentMethod, tendered decimal.Decimal) (Status, payments.Receipt, error) {
	if !method.IsValid() {
		return Status{}, payments.Receipt{}, errors.New(errors.CodeInvalidArgument, "unknown payment method")
	}

	var (
		status  Status
		receipt payments.Receipt
	)
	err := s.gate.Do(func() error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			store := s.store.WithTx(tx)

			sub, err := statestore.GetSubscription(ctx, store, caller)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "reading subscription record")
			}
			if !sub.Active {
				return errors.New(errors.CodeNotSubscribed, "no active subscription")
			}
			now := s.now()
			if !now.After(time.Unix(sub.NextPaymentDue, 0)) {
				return errors.New(errors.CodeNotYetDue, "payment is not yet due").
					WithDetails(map[string]any{"next_payment_due": sub.NextPaymentDue})
			}

			plan, err := s.plan(ctx, store, sub.PlanID)
			if err != nil {
				return err
			}

			version, collector, err := s.collector(ctx, store, method)
			if err != nil {
				return err
			}
			receipt, err = s.collect(ctx, store, collector, caller, plan.PricePerPeriod, tendered)
			if err != nil {
				return err
			}

			sub.NextPaymentDue = now.Add(s.period).Unix()
			if err := statestore.PutSubscription(ctx, store, caller, sub); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "writing subscription record")
			}
			if err := s.markMethod(ctx, store, version, caller, method); err != nil {
				return err
			}
			status = Status{Record: sub, PaidWithNative: method == enums.PaymentMethodNativeAsset}

			_, err = s.events.WithTx(tx).Emit(ctx, enums.BillingEventSubscriptionRenewed, statestore.SubscriptionKey(caller), map[string]any{
				"plan_id":          sub.PlanID,
				"next_payment_due": sub.NextPaymentDue,
				"method":           method,
				"amount":           receipt.Amount,
				"refunded":         receipt.Refunded,
			})
			return err
		})
	})
	if err != nil {
		return Status{}, payments.Receipt{}, err
	}
	return status, receipt, nil
}

// Cancel deactivates a subscription immediately. The record collapses to its
// zero value, indistinguishable from never having subscribed; nothing is
// refunded for the unused remainder of the period.
func (s *Service) Cancel(ctx context.Context, caller types.Address) error {
	return s.gate.Do(func() error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			store := s.store.WithTx(tx)

			sub, err := statestore.GetSubscription(ctx, store, caller)
			if err != nil {
				return errors.Wrap(errors.CodeInternal, err, "reading subscription record")
			}
			if !sub.Active {
				return errors.New(errors.CodeNotSubscribed, "no active subscription")
			}

			if err := statestore.PutSubscription(ctx, store, caller, statestore.SubscriptionRecord{}); err != nil {
				return errors.Wrap(errors.CodeInternal, err, "writing subscription record")
			}
			version, err := s.version(ctx, store)
			if err != nil {
				return err
			}
			if version >= 2 {
				if err := statestore.PutNativeFlag(ctx, store, caller, false); err != nil {
					return errors.Wrap(errors.CodeInternal, err, "clearing native flag")
				}
			}

			_, err = s.events.WithTx(tx).Emit(ctx, enums.BillingEventSubscriptionCancelled, statestore.SubscriptionKey(caller), map[string]any{
				"plan_id": sub.PlanID,
			})
			return err
		})
	})
}

// IsDue reports whether a user's next payment has lapsed. Inactive and
// never-subscribed users are never due.
func (s *Service) IsDue(ctx context.Context, user types.Address) (bool, error) {
	sub, err := statestore.GetSubscription(ctx, s.store, user)
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "reading subscription record")
	}
	return sub.Active && s.now().After(time.Unix(sub.NextPaymentDue, 0)), nil
}

// Get returns a user's subscription status. Never-subscribed users get the
// zero record rather than an error.
func (s *Service) Get(ctx context.Context, user types.Address) (Status, error) {
	sub, err := statestore.GetSubscription(ctx, s.store, user)
	if err != nil {
		return Status{}, errors.Wrap(errors.CodeInternal, err, "reading subscription record")
	}
	native, err := statestore.GetNativeFlag(ctx, s.store, user)
	if err != nil {
		return Status{}, errors.Wrap(errors.CodeInternal, err, "reading native flag")
	}
	return Status{Record: sub, PaidWithNative: native}, nil
}

func (s *Service) plan(ctx context.Context, store statestore.Store, planID uint64) (statestore.PlanRecord, error) {
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

func (s *Service) version(ctx context.Context, store statestore.Store) (uint64, error) {
	version, _, err := statestore.GetUint64(ctx, store, statestore.KeyVersion)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "reading version slot")
	}
	if version == 0 {
		return 0, errors.New(errors.CodeInternal, "engine is not initialized")
	}
	return version, nil
}

func (s *Service) collector(ctx context.Context, store statestore.Store, method enums.PaymentMethod) (uint64, payments.Collector, error) {
	version, err := s.version(ctx, store)
	if err != nil {
		return 0, nil, err
	}
	collector, ok := s.registry.Collector(version, method)
	if !ok {
		return 0, nil, errors.New(errors.CodeNotFound, "payment method is not available at the current version").
			WithDetails(map[string]any{"method": method, "version": version})
	}
	return version, collector, nil
}

func (s *Service) collect(ctx context.Context, store statestore.Store, collector payments.Collector, caller types.Address, priceUnits uint64, tendered decimal.Decimal) (payments.Receipt, error) {
	treasury, ok, err := statestore.GetAddress(ctx, store, statestore.KeyTreasury)
	if err != nil {
		return payments.Receipt{}, errors.Wrap(errors.CodeInternal, err, "reading treasury slot")
	}
	if !ok || treasury.IsZero() {
		return payments.Receipt{}, errors.New(errors.CodeInternal, "treasury is not initialized")
	}
	return collector.Collect(ctx, payments.Charge{
		Caller:     caller,
		Treasury:   treasury,
		PriceUnits: priceUnits,
		Tendered:   tendered,
	})
}

// markMethod records which payment path settled the latest charge. The flag
// family only exists from version 2 on; version 1 stores nothing.
func (s *Service) markMethod(ctx context.Context, store statestore.Store, version uint64, caller types.Address, method enums.PaymentMethod) error {
	if version < 2 {
		return nil
	}
	if err := statestore.PutNativeFlag(ctx, store, caller, method == enums.PaymentMethodNativeAsset); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "writing native flag")
	}
	return nil
}
