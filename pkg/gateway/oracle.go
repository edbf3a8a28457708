package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/subpay/internal/payments"
	pkgerrors "github.com/clearledger/subpay/pkg/errors"
)

// OracleClient reads the external price feed.
type OracleClient struct {
	client   *Client
	endpoint string
}

// NewOracleClient binds the shared transport to the price feed endpoint.
func NewOracleClient(client *Client, endpoint string) (*OracleClient, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errEndpointRequired
	}
	return &OracleClient{client: client, endpoint: endpoint}, nil
}

type oracleResponse struct {
	Price     string `json:"price"`
	Decimals  int32  `json:"decimals"`
	UpdatedAt int64  `json:"updated_at"`
}

// Latest fetches the feed's most recent sample. Validation of sign and
// freshness is the adapter's job, not the transport's.
func (o *OracleClient) Latest(ctx context.Context) (payments.Reading, error) {
	var resp oracleResponse
	if err := o.client.get(ctx, o.endpoint, "oracle_latest", &resp); err != nil {
		return payments.Reading{}, err
	}

	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return payments.Reading{}, pkgerrors.Wrap(pkgerrors.CodeInvalidPrice, err, "parsing oracle price")
	}
	return payments.Reading{
		Price:     price,
		UpdatedAt: time.Unix(resp.UpdatedAt, 0),
		Decimals:  resp.Decimals,
	}, nil
}
