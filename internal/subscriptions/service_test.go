package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clearledger/subpay/internal/events"
	"github.com/clearledger/subpay/internal/payments"
	"github.com/clearledger/subpay/internal/statestore"
	"github.com/clearledger/subpay/pkg/db"
	"github.com/clearledger/subpay/pkg/db/models"
	"github.com/clearledger/subpay/pkg/enums"
	"github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/types"
)

const (
	userAddr     = types.Address("0xab5801a7d398351b8be11c439e05c5b3259aec9b")
	treasuryAddr = types.Address("0x000000000000000000000000000000000000beef")

	billingPeriod = 30 * 24 * time.Hour
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type stubCollector struct {
	method  enums.PaymentMethod
	fail    error
	charges []payments.Charge
}

func (s *stubCollector) Method() enums.PaymentMethod { return s.method }

func (s *stubCollector) Collect(_ context.Context, charge payments.Charge) (payments.Receipt, error) {
	if s.fail != nil {
		return payments.Receipt{}, s.fail
	}
	s.charges = append(s.charges, charge)
	return payments.Receipt{
		Method: s.method,
		Amount: decimal.NewFromUint64(charge.PriceUnits),
	}, nil
}

type stubRegistry struct {
	collectors map[uint64]map[enums.PaymentMethod]payments.Collector
}

func (r *stubRegistry) Collector(version uint64, method enums.PaymentMethod) (payments.Collector, bool) {
	byMethod, ok := r.collectors[version]
	if !ok {
		return nil, false
	}
	c, ok := byMethod[method]
	return c, ok
}

type fixture struct {
	svc     *Service
	store   statestore.Store
	emitter events.Emitter
	clock   *clock
	stable  *stubCollector
	native  *stubCollector
}

func newFixture(t *testing.T, version uint64) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.StateSlot{}, &models.BillingEvent{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	// The shared cache keeps one database per process; start each test clean.
	if err := conn.Exec("DELETE FROM state_slots").Error; err != nil {
		t.Fatalf("failed to reset state: %v", err)
	}
	if err := conn.Exec("DELETE FROM billing_events").Error; err != nil {
		t.Fatalf("failed to reset events: %v", err)
	}
	client, err := db.NewWithConn(conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store := statestore.New(conn)
	emitter, err := events.NewEmitter(conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := statestore.PutUint64(ctx, store, statestore.KeyVersion, version); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := statestore.PutAddress(ctx, store, statestore.KeyTreasury, treasuryAddr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := statestore.PutUint64(ctx, store, statestore.KeyNextPlanID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := statestore.PutPlan(ctx, store, statestore.PlanRecord{ID: 1, PricePerPeriod: 50, Active: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stable := &stubCollector{method: enums.PaymentMethodStableToken}
	native := &stubCollector{method: enums.PaymentMethodNativeAsset}
	registry := &stubRegistry{collectors: map[uint64]map[enums.PaymentMethod]payments.Collector{
		1: {enums.PaymentMethodStableToken: stable},
		2: {
			enums.PaymentMethodStableToken: stable,
			enums.PaymentMethodNativeAsset: native,
		},
	}}

	clk := &clock{t: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		DB:       client,
		Store:    store,
		Events:   emitter,
		Gate:     statestore.NewGate(),
		Registry: registry,
		Period:   billingPeriod,
		Now:      clk.now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &fixture{svc: svc, store: store, emitter: emitter, clock: clk, stable: stable, native: native}
}

func TestSubscribeActivates(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	status, receipt, err := f.svc.Subscribe(ctx, userAddr, 1, enums.PaymentMethodStableToken, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDue := f.clock.now().Add(billingPeriod).Unix()
	if !status.Record.Active || status.Record.PlanID != 1 || status.Record.NextPaymentDue != wantDue {
		t.Fatalf("unexpected record %+v", status.Record)
	}
	if receipt.Method != enums.PaymentMethodStableToken {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	if len(f.stable.charges) != 1 {
		t.Fatalf("expected one charge, got %d", len(f.stable.charges))
	}
	charge := f.stable.charges[0]
	if charge.Caller != userAddr || charge.Treasury != treasuryAddr || charge.PriceUnits != 50 {
		t.Fatalf("unexpected charge %+v", charge)
	}

	emitted, err := f.emitter.ListByAggregate(ctx, statestore.SubscriptionKey(userAddr))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emitted) != 1 || emitted[0].EventType != enums.BillingEventSubscriptionActivated {
		t.Fatalf("expected one activation event, got %+v", emitted)
	}
}

func TestSubscribeRejections(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	if _, _, err := f.svc.Subscribe(ctx, userAddr, 99, enums.PaymentMethodStableToken, decimal.Zero); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found for unknown plan, got %v", err)
	}
	if _, _, err := f.svc.Subscribe(ctx, userAddr, 1, enums.PaymentMethod("cheque"), decimal.Zero); !errors.HasCode(err, errors.CodeInvalidArgument) {
		t.Fatalf("expected invalid method rejection, got %v", err)
	}
	if _, _, err := f.svc.Subscribe(ctx, userAddr, 1, enums.PaymentMethodNativeAsset, decimal.Zero); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("native payments should not exist before version 2, got %v", err)
	}

	inactive := statestore.PlanRecord{ID: 2, PricePerPeriod: 10, Active: false}
	if err := statestore.PutPlan(ctx, f.store, inactive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := f.svc.Subscribe(ctx, userAddr, 2, enums.PaymentMethodStableToken, decimal.Zero); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected inactive plan to read as absent, got %v", err)
	}

	if _, _, err := f.svc.Subscribe(ctx, userAddr, 1, enums.PaymentMethodStableToken, decimal.Zero); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := f.svc.Subscribe(ctx, userAddr, 1, enums.PaymentMethodStableToken, decimal.Zero); !errors.HasCode(err, errors.CodeAlreadyActive) {
		t.Fatalf("expected already active, got %v", err)
	}
}

func TestSubscribeRollsBackOnPaymentFailure(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	f.stable.fail = errors.New(errors.CodeTransferFailed, "payment gateway rejected the transfer")
	if _, _, err := f.svc.Subscribe(ctx, userAddr, 1, enums.PaymentMethodStableToken, decimal.Zero); !errors.HasCode(err, errors.CodeTransferFailed) {
		t.Fatalf("expected transfer failure, got %v", err)
	}

	status, err := f.svc.Get(ctx, userAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Record != (statestore.SubscriptionRecord{}) {
		t.Fatalf("failed payment should leave no record, got %+v", status.Record)
	}

	emitted, err := f.emitter.ListByAggregate(ctx, statestore.SubscriptionKey(userAddr))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emitted) != 0 {
		t.Fatalf("failed payment should emit nothing, got %+v", emitted)
	}
}

func TestRenewTiming(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	if _, _, err := f.svc.Renew(ctx, userAddr, enums.PaymentMethodStableToken, decimal.Zero); !errors.HasCode(err, errors.CodeNotSubscribed) {
		t.Fatalf("expected not subscribed, got %v", err)
	}

	status, _, err := f.svc.Subscribe(ctx, userAddr, 1, enums.PaymentMethodStableToken, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := f.svc.Renew(ctx, userAddr, enums.PaymentMethodStableToken, decimal.Zero); !errors.HasCode(err, errors.CodeNotYetDue) {
		t.Fatalf("expected not yet due, got %v", err)
	}

	// Exactly at the due instant is still not due; due-ness is strict.
	f.clock.t = time.Unix(status.Record.NextPaymentDue, 0)
	if _, _, err := f.svc.Renew(ctx, userAddr, enums.PaymentMethodStableToken, decimal.Zero); !errors.HasCode(err, errors.CodeNotYetDue) {
		t.Fatalf("expected not yet due at the boundary, got %v", err)
	}

	f.clock.advance(time.Second)
	renewed, _, err := f.svc.Renew(ctx, userAddr, enums.PaymentMethodStableToken, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantDue := f.clock.now().Add(billingPeriod).Unix()
	if renewed.Record.NextPaymentDue != wantDue {
		t.Fatalf("renewal should extend from now: got %d want %d", renewed.Record.NextPaymentDue, wantDue)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	if err := f.svc.Cancel(ctx, userAddr); !errors.HasCode(err, errors.CodeNotSubscribed) {
		t.Fatalf("expected not subscribed, got %v", err)
	}

	if _, _, err := f.svc.Subscribe(ctx, userAddr, 1, enums.PaymentMethodStableToken, decimal.Zero); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.Cancel(ctx, userAddr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err := f.svc.Get(ctx, userAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Record != (statestore.SubscriptionRecord{}) {
		t.Fatalf("cancel should collapse to the zero record, got %+v", status.Record)
	}

	if err := f.svc.Cancel(ctx, userAddr); !errors.HasCode(err, errors.CodeNotSubscribed) {
		t.Fatalf("expected not subscribed after cancel, got %v", err)
	}
}

func TestNativeFlagTracksLatestMethod(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	if _, _, err := f.svc.Subscribe(ctx, userAddr, 1, enums.PaymentMethodNativeAsset, decimal.NewFromInt(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, err := f.svc.Get(ctx, userAddr)
	if err != nil || !status.PaidWithNative {
		t.Fatalf("expected native flag set, got %+v err=%v", status, err)
	}

	f.clock.advance(billingPeriod + time.Hour)
	if _, _, err := f.svc.Renew(ctx, userAddr, enums.PaymentMethodStableToken, decimal.Zero); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, err = f.svc.Get(ctx, userAddr)
	if err != nil || status.PaidWithNative {
		t.Fatalf("stable renewal should clear the flag, got %+v err=%v", status, err)
	}

	if err := f.svc.Cancel(ctx, userAddr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, err = f.svc.Get(ctx, userAddr)
	if err != nil || status.PaidWithNative {
		t.Fatalf("cancel should clear the flag, got %+v err=%v", status, err)
	}
}

func TestLifecycleOverOnePeriod(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	if _, _, err := f.svc.Subscribe(ctx, userAddr, 1, enums.PaymentMethodStableToken, decimal.Zero); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	due, err := f.svc.IsDue(ctx, userAddr)
	if err != nil || due {
		t.Fatalf("fresh subscription should not be due, got %v err=%v", due, err)
	}

	f.clock.advance(31 * 24 * time.Hour)
	due, err = f.svc.IsDue(ctx, userAddr)
	if err != nil || !due {
		t.Fatalf("lapsed subscription should be due, got %v err=%v", due, err)
	}

	renewed, _, err := f.svc.Renew(ctx, userAddr, enums.PaymentMethodStableToken, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if renewed.Record.NextPaymentDue != f.clock.now().Add(billingPeriod).Unix() {
		t.Fatalf("unexpected due date %d", renewed.Record.NextPaymentDue)
	}
	if len(f.stable.charges) != 2 {
		t.Fatalf("expected two charges, got %d", len(f.stable.charges))
	}

	if err := f.svc.Cancel(ctx, userAddr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	due, err = f.svc.IsDue(ctx, userAddr)
	if err != nil || due {
		t.Fatalf("cancelled subscription should never be due, got %v err=%v", due, err)
	}
}
