package statestore

import (
	"fmt"
	"strings"

	"github.com/clearledger/subpay/pkg/types"
)

// Slot keys. These are a wire-compatibility contract shared by every logic
// version against one store instance; renaming or reordering any of them
// corrupts state written by earlier versions.
const (
	KeyVersion      = "version"
	KeyOwner        = "config/owner"
	KeyTreasury     = "config/treasury"
	KeyPaymentToken = "config/payment_token"
	KeyNextPlanID   = "config/next_plan_id"
	KeyPriceOracle  = "config/price_oracle"

	planPrefix       = "plan/"
	subPrefix        = "sub/"
	nativeFlagPrefix = "subnative/"
)

// Family declares one slot family: either a single fixed key or, when Prefix
// ends in "/", a keyed mapping. Since records the logic version that
// introduced it.
type Family struct {
	Prefix string
	Since  uint64
}

// Layout returns the full declared arena in storage order. New families are
// appended after all existing ones, never interleaved.
func Layout() []Family {
	return []Family{
		{Prefix: KeyVersion, Since: 1},
		{Prefix: KeyOwner, Since: 1},
		{Prefix: KeyTreasury, Since: 1},
		{Prefix: KeyPaymentToken, Since: 1},
		{Prefix: KeyNextPlanID, Since: 1},
		{Prefix: planPrefix, Since: 1},
		{Prefix: subPrefix, Since: 1},
		{Prefix: KeyPriceOracle, Since: 2},
		{Prefix: nativeFlagPrefix, Since: 2},
	}
}

// LayoutAt returns the arena as a given logic version declares it.
func LayoutAt(version uint64) []Family {
	var families []Family
	for _, f := range Layout() {
		if f.Since <= version {
			families = append(families, f)
		}
	}
	return families
}

// VerifyAppendOnly checks that current extends prior without renaming,
// removing, or reordering any declared family.
func VerifyAppendOnly(prior, current []Family) error {
	if len(current) < len(prior) {
		return fmt.Errorf("slot layout shrank from %d to %d families", len(prior), len(current))
	}
	for i, f := range prior {
		if current[i].Prefix != f.Prefix {
			return fmt.Errorf("slot family %q moved or renamed (position %d now holds %q)", f.Prefix, i, current[i].Prefix)
		}
		if current[i].Since != f.Since {
			return fmt.Errorf("slot family %q changed introduction version %d -> %d", f.Prefix, f.Since, current[i].Since)
		}
	}
	for i := len(prior); i < len(current); i++ {
		appended := current[i]
		if len(prior) > 0 && appended.Since <= prior[len(prior)-1].Since {
			return fmt.Errorf("appended slot family %q claims version %d, which predates the prior layout", appended.Prefix, appended.Since)
		}
	}
	return nil
}

// familyPosition resolves a concrete slot key to its declared family index.
func familyPosition(key string) (int64, bool) {
	for i, f := range Layout() {
		if strings.HasSuffix(f.Prefix, "/") && f.Prefix != key {
			if strings.HasPrefix(key, f.Prefix) && len(key) > len(f.Prefix) {
				return int64(i), true
			}
			continue
		}
		if key == f.Prefix {
			return int64(i), true
		}
	}
	return 0, false
}

// PlanKey addresses one plan record.
func PlanKey(id uint64) string {
	return fmt.Sprintf("%s%d", planPrefix, id)
}

// SubscriptionKey addresses one user's subscription record.
func SubscriptionKey(user types.Address) string {
	return subPrefix + string(user)
}

// NativeFlagKey addresses one user's paid-with-native-asset flag.
// Introduced by logic version 2; lives in its own appended family so that
// version-1 subscription records stay byte-identical across the upgrade.
func NativeFlagKey(user types.Address) string {
	return nativeFlagPrefix + string(user)
}
