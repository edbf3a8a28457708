package upgrade

import (
	"fmt"

	"github.com/clearledger/subpay/internal/payments"
	"github.com/clearledger/subpay/pkg/enums"
)

// Registry holds every logic version this binary ships. Versions must be
// contiguous starting at 1 so the controller can only ever step forward one
// version at a time.
type Registry struct {
	logics map[uint64]Logic
	latest uint64
}

// NewRegistry indexes the provided logic versions.
func NewRegistry(logics ...Logic) (*Registry, error) {
	if len(logics) == 0 {
		return nil, fmt.Errorf("registry requires at least one logic version")
	}
	indexed := make(map[uint64]Logic, len(logics))
	var latest uint64
	for _, l := range logics {
		v := l.Version()
		if v == 0 {
			return nil, fmt.Errorf("logic version 0 is reserved for the uninitialized state")
		}
		if _, dup := indexed[v]; dup {
			return nil, fmt.Errorf("duplicate logic version %d", v)
		}
		indexed[v] = l
		if v > latest {
			latest = v
		}
	}
	for v := uint64(1); v <= latest; v++ {
		if _, ok := indexed[v]; !ok {
			return nil, fmt.Errorf("logic versions must be contiguous, missing %d", v)
		}
	}
	return &Registry{logics: indexed, latest: latest}, nil
}

// Logic returns the implementation of one version.
func (r *Registry) Logic(version uint64) (Logic, bool) {
	l, ok := r.logics[version]
	return l, ok
}

// Latest returns the highest version the registry knows.
func (r *Registry) Latest() uint64 {
	return r.latest
}

// Collector resolves the payment strategy a version exposes for a method.
func (r *Registry) Collector(version uint64, method enums.PaymentMethod) (payments.Collector, bool) {
	l, ok := r.logics[version]
	if !ok {
		return nil, false
	}
	return l.Collector(method)
}
