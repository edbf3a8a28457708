// Package env reads process environment variables with fallbacks.
package env

import "os"

// Get returns the value for key, preferring the SUBPAY_-prefixed variant
// so service-scoped overrides win over host-wide ones.
func Get(key, fallback string) string {
	if val := os.Getenv("SUBPAY_" + key); val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
