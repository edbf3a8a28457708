package enums

import "fmt"

// BillingEventType names the observable state transitions the engine emits.
type BillingEventType string

const (
	BillingEventPlanCreated           BillingEventType = "plan_created"
	BillingEventPlanStatusChanged     BillingEventType = "plan_status_changed"
	BillingEventTreasuryUpdated       BillingEventType = "treasury_updated"
	BillingEventSubscriptionActivated BillingEventType = "subscription_activated"
	BillingEventSubscriptionRenewed   BillingEventType = "subscription_renewed"
	BillingEventSubscriptionCancelled BillingEventType = "subscription_cancelled"
	BillingEventEngineInitialized     BillingEventType = "engine_initialized"
	BillingEventLogicUpgraded         BillingEventType = "logic_upgraded"
)

var validBillingEventTypes = []BillingEventType{
	BillingEventPlanCreated,
	BillingEventPlanStatusChanged,
	BillingEventTreasuryUpdated,
	BillingEventSubscriptionActivated,
	BillingEventSubscriptionRenewed,
	BillingEventSubscriptionCancelled,
	BillingEventEngineInitialized,
	BillingEventLogicUpgraded,
}

// String implements fmt.Stringer.
func (b BillingEventType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingEventType.
func (b BillingEventType) IsValid() bool {
	for _, candidate := range validBillingEventTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBillingEventType converts raw input into a BillingEventType.
func ParseBillingEventType(value string) (BillingEventType, error) {
	for _, candidate := range validBillingEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing event type %q", value)
}
