package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/clearledger/subpay/pkg/errors"
)

// Reading is one sample from the external price feed. Price is the raw
// feed integer, scaled by 10^Decimals.
type Reading struct {
	Price     decimal.Decimal
	UpdatedAt time.Time
	Decimals  int32
}

// PriceFeed is the external oracle boundary.
type PriceFeed interface {
	Latest(ctx context.Context) (Reading, error)
}

// OracleAdapter validates feed samples before they are used to size a
// payment. Prices are fetched fresh on every call; a cached price is unsafe
// for payment sizing.
type OracleAdapter struct {
	feed       PriceFeed
	staleAfter time.Duration
	now        func() time.Time
}

// NewOracleAdapter wraps a price feed with sign and freshness validation.
func NewOracleAdapter(feed PriceFeed, staleAfter time.Duration) (*OracleAdapter, error) {
	if feed == nil {
		return nil, fmt.Errorf("price feed is required")
	}
	if staleAfter <= 0 {
		return nil, fmt.Errorf("staleness window must be positive")
	}
	return &OracleAdapter{feed: feed, staleAfter: staleAfter, now: time.Now}, nil
}

// FreshReading fetches the latest sample and rejects unusable data.
func (o *OracleAdapter) FreshReading(ctx context.Context) (Reading, error) {
	reading, err := o.feed.Latest(ctx)
	if err != nil {
		return Reading{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetching oracle price")
	}

	// A zero price would make the conversion divide by zero; it is as
	// unusable as a negative one.
	if reading.Price.Sign() <= 0 {
		return Reading{}, pkgerrors.New(pkgerrors.CodeInvalidPrice, "oracle price is not positive").
			WithDetails(map[string]any{"price": reading.Price.String()})
	}

	age := o.now().Sub(reading.UpdatedAt)
	if age > o.staleAfter {
		return Reading{}, pkgerrors.New(pkgerrors.CodeStalePrice, "oracle reading exceeds staleness window").
			WithDetails(map[string]any{
				"updated_at": reading.UpdatedAt.UTC().Format(time.RFC3339),
				"age":        age.String(),
				"max_age":    o.staleAfter.String(),
			})
	}

	return reading, nil
}
