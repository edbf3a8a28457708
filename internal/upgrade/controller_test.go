package upgrade

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

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
	ownerAddr    = types.Address("0xab5801a7d398351b8be11c439e05c5b3259aec9b")
	strangerAddr = types.Address("0x00000000000000000000000000000000000000fe")
	treasuryAddr = types.Address("0x000000000000000000000000000000000000beef")
	tokenAddr    = types.Address("0x000000000000000000000000000000000000f00d")
	oracleAddr   = types.Address("0x000000000000000000000000000000000000face")
	userAddr     = types.Address("0x00000000000000000000000000000000000000aa")
)

type stubCollector struct {
	method enums.PaymentMethod
}

func (s stubCollector) Method() enums.PaymentMethod { return s.method }

func (s stubCollector) Collect(_ context.Context, _ payments.Charge) (payments.Receipt, error) {
	return payments.Receipt{Method: s.method}, nil
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	v1, err := NewV1(stubCollector{method: enums.PaymentMethodStableToken})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := NewV2(
		stubCollector{method: enums.PaymentMethodStableToken},
		stubCollector{method: enums.PaymentMethodNativeAsset},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	registry, err := NewRegistry(v1, v2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return registry
}

func newTestController(t *testing.T) (*Controller, statestore.Store) {
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
	emitter, err := events.NewEmitter(conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store := statestore.New(conn)
	ctrl, err := NewController(ControllerParams{
		DB:       client,
		Store:    store,
		Events:   emitter,
		Gate:     statestore.NewGate(),
		Registry: newRegistry(t),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ctrl, store
}

func initArgs() InitArgs {
	return InitArgs{
		Owner:        ownerAddr,
		PaymentToken: tokenAddr,
		Treasury:     treasuryAddr,
		PriceOracle:  oracleAddr,
	}
}

func TestInitializeEstablishesVersionOne(t *testing.T) {
	ctrl, store := newTestController(t)
	ctx := context.Background()

	if err := ctrl.Initialize(ctx, initArgs()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	version, err := ctrl.CurrentVersion(ctx)
	if err != nil || version != 1 {
		t.Fatalf("expected version 1, got %d err=%v", version, err)
	}

	owner, ok, err := statestore.GetAddress(ctx, store, statestore.KeyOwner)
	if err != nil || !ok || owner != ownerAddr {
		t.Fatalf("owner not established: %s ok=%v err=%v", owner, ok, err)
	}
	nextID, ok, err := statestore.GetUint64(ctx, store, statestore.KeyNextPlanID)
	if err != nil || !ok || nextID != 1 {
		t.Fatalf("plan counter not seeded: %d ok=%v err=%v", nextID, ok, err)
	}

	if err := ctrl.Initialize(ctx, initArgs()); !errors.HasCode(err, errors.CodeAlreadyInitialized) {
		t.Fatalf("expected already initialized, got %v", err)
	}
}

func TestInitializeRejectsZeroAddresses(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		mutate func(*InitArgs)
	}{
		{"owner", func(a *InitArgs) { a.Owner = types.ZeroAddress }},
		{"treasury", func(a *InitArgs) { a.Treasury = types.ZeroAddress }},
		{"payment token", func(a *InitArgs) { a.PaymentToken = types.ZeroAddress }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl, _ := newTestController(t)
			args := initArgs()
			tc.mutate(&args)
			if err := ctrl.Initialize(ctx, args); !errors.HasCode(err, errors.CodeInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
		})
	}
}

func TestUpgradeSingleStep(t *testing.T) {
	ctrl, store := newTestController(t)
	ctx := context.Background()

	if err := ctrl.Initialize(ctx, initArgs()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ctrl.Upgrade(ctx, strangerAddr, 2, initArgs()); !errors.HasCode(err, errors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := ctrl.Upgrade(ctx, ownerAddr, 3, initArgs()); !errors.HasCode(err, errors.CodeInvalidArgument) {
		t.Fatalf("expected single-step rejection, got %v", err)
	}

	if err := ctrl.Upgrade(ctx, ownerAddr, 2, initArgs()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	version, err := ctrl.CurrentVersion(ctx)
	if err != nil || version != 2 {
		t.Fatalf("expected version 2, got %d err=%v", version, err)
	}
	oracle, ok, err := statestore.GetAddress(ctx, store, statestore.KeyPriceOracle)
	if err != nil || !ok || oracle != oracleAddr {
		t.Fatalf("oracle not established: %s ok=%v err=%v", oracle, ok, err)
	}

	if err := ctrl.Upgrade(ctx, ownerAddr, 2, initArgs()); !errors.HasCode(err, errors.CodeInvalidArgument) {
		t.Fatalf("expected repeat upgrade rejection, got %v", err)
	}
}

func TestUpgradeRejectsZeroOracle(t *testing.T) {
	ctrl, _ := newTestController(t)
	ctx := context.Background()

	if err := ctrl.Initialize(ctx, initArgs()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args := initArgs()
	args.PriceOracle = types.ZeroAddress
	if err := ctrl.Upgrade(ctx, ownerAddr, 2, args); !errors.HasCode(err, errors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestVersionTwoInitializerRunsOnce(t *testing.T) {
	ctrl, store := newTestController(t)
	ctx := context.Background()

	if err := ctrl.Initialize(ctx, initArgs()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ctrl.Upgrade(ctx, ownerAddr, 2, initArgs()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logic, _ := newRegistry(t).Logic(2)
	if err := logic.Initialize(ctx, store, initArgs()); !errors.HasCode(err, errors.CodeAlreadyInitialized) {
		t.Fatalf("expected already initialized, got %v", err)
	}
}

func TestUpgradeLeavesPriorRecordsByteIdentical(t *testing.T) {
	ctrl, store := newTestController(t)
	ctx := context.Background()

	if err := ctrl.Initialize(ctx, initArgs()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw := json.RawMessage(`{"plan_id":1,"next_payment_due":1700000000,"active":true}`)
	if err := store.Put(ctx, statestore.SubscriptionKey(userAddr), raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ctrl.Upgrade(ctx, ownerAddr, 2, initArgs()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := store.Get(ctx, statestore.SubscriptionKey(userAddr))
	if err != nil || !ok {
		t.Fatalf("expected record, ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("record bytes changed across upgrade: %s != %s", got, raw)
	}
}
