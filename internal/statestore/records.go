package statestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clearledger/subpay/pkg/types"
)

// PlanRecord is the stored shape of a billing plan. Field order is part of
// the storage contract; new fields may only be appended.
type PlanRecord struct {
	ID             uint64 `json:"id"`
	PricePerPeriod uint64 `json:"price_per_period"`
	Active         bool   `json:"active"`
}

// SubscriptionRecord is the stored shape of a user's subscription.
// NextPaymentDue is a unix timestamp in seconds. The zero record doubles as
// "never subscribed" and "cancelled"; the two are indistinguishable on
// purpose.
type SubscriptionRecord struct {
	PlanID         uint64 `json:"plan_id"`
	NextPaymentDue int64  `json:"next_payment_due"`
	Active         bool   `json:"active"`
}

func getJSON(ctx context.Context, s Store, key string, dest any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decoding slot %q: %w", key, err)
	}
	return true, nil
}

func putJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding slot %q: %w", key, err)
	}
	return s.Put(ctx, key, raw)
}

// GetPlan reads one plan record.
func GetPlan(ctx context.Context, s Store, id uint64) (PlanRecord, bool, error) {
	var rec PlanRecord
	ok, err := getJSON(ctx, s, PlanKey(id), &rec)
	return rec, ok, err
}

// PutPlan writes one plan record.
func PutPlan(ctx context.Context, s Store, rec PlanRecord) error {
	return putJSON(ctx, s, PlanKey(rec.ID), rec)
}

// GetSubscription reads a user's subscription, returning the zero record
// when the user has never subscribed.
func GetSubscription(ctx context.Context, s Store, user types.Address) (SubscriptionRecord, error) {
	var rec SubscriptionRecord
	if _, err := getJSON(ctx, s, SubscriptionKey(user), &rec); err != nil {
		return SubscriptionRecord{}, err
	}
	return rec, nil
}

// PutSubscription writes a user's subscription record.
func PutSubscription(ctx context.Context, s Store, user types.Address, rec SubscriptionRecord) error {
	return putJSON(ctx, s, SubscriptionKey(user), rec)
}

// GetNativeFlag reads a user's paid-with-native-asset flag.
func GetNativeFlag(ctx context.Context, s Store, user types.Address) (bool, error) {
	var flag bool
	if _, err := getJSON(ctx, s, NativeFlagKey(user), &flag); err != nil {
		return false, err
	}
	return flag, nil
}

// PutNativeFlag writes a user's paid-with-native-asset flag.
func PutNativeFlag(ctx context.Context, s Store, user types.Address, flag bool) error {
	return putJSON(ctx, s, NativeFlagKey(user), flag)
}

// GetUint64 reads an unsigned counter slot.
func GetUint64(ctx context.Context, s Store, key string) (uint64, bool, error) {
	var n uint64
	ok, err := getJSON(ctx, s, key, &n)
	return n, ok, err
}

// PutUint64 writes an unsigned counter slot.
func PutUint64(ctx context.Context, s Store, key string, n uint64) error {
	return putJSON(ctx, s, key, n)
}

// GetAddress reads an address slot.
func GetAddress(ctx context.Context, s Store, key string) (types.Address, bool, error) {
	var addr types.Address
	ok, err := getJSON(ctx, s, key, &addr)
	return addr, ok, err
}

// PutAddress writes an address slot.
func PutAddress(ctx context.Context, s Store, key string, addr types.Address) error {
	return putJSON(ctx, s, key, addr)
}
