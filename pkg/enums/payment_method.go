package enums

import "fmt"

// PaymentMethod identifies which collection strategy settled a charge.
type PaymentMethod string

const (
	PaymentMethodStableToken PaymentMethod = "stable_token"
	PaymentMethodNativeAsset PaymentMethod = "native_asset"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodStableToken,
	PaymentMethodNativeAsset,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
