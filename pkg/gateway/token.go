package gateway

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clearledger/subpay/pkg/types"
)

// TokenClient moves stable-token balances through the gateway's transfer API.
type TokenClient struct {
	client   *Client
	endpoint string
}

// NewTokenClient binds the shared transport to the stable-token endpoint.
func NewTokenClient(client *Client, endpoint string) (*TokenClient, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errEndpointRequired
	}
	return &TokenClient{client: client, endpoint: endpoint}, nil
}

type tokenTransferRequest struct {
	From   types.Address `json:"from"`
	To     types.Address `json:"to"`
	Amount string        `json:"amount"`
}

// TransferFrom pulls tokens from one address to another. Amounts travel as
// decimal strings; the gateway owns the precision.
func (t *TokenClient) TransferFrom(ctx context.Context, from, to types.Address, amount decimal.Decimal) error {
	return t.client.post(ctx, t.endpoint, "token_transfer", tokenTransferRequest{
		From:   from,
		To:     to,
		Amount: amount.String(),
	}, nil)
}
