package gateway

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clearledger/subpay/pkg/types"
)

// NativeClient moves native-asset balances held with the gateway.
type NativeClient struct {
	client   *Client
	endpoint string
}

// NewNativeClient binds the shared transport to the native-asset endpoint.
func NewNativeClient(client *Client, endpoint string) (*NativeClient, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errEndpointRequired
	}
	return &NativeClient{client: client, endpoint: endpoint}, nil
}

type nativeTransferRequest struct {
	To     types.Address `json:"to"`
	Amount string        `json:"amount"`
}

// Transfer pays out from the amount the caller tendered with the request.
func (n *NativeClient) Transfer(ctx context.Context, to types.Address, amount decimal.Decimal) error {
	return n.client.post(ctx, n.endpoint, "native_transfer", nativeTransferRequest{
		To:     to,
		Amount: amount.String(),
	}, nil)
}
