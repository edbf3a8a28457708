package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/clearledger/subpay/pkg/config"
	pkgerrors "github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/logger"
)

var (
	errLoggerRequired   = errors.New("gateway logger is required")
	errEndpointRequired = errors.New("gateway endpoint is required")
)

// Client is the shared plumbing for the payment gateway's HTTP APIs:
// request encoding, per-call idempotency keys, logging and error mapping.
type Client struct {
	http   *http.Client
	logger *logger.Logger
}

// NewClient builds the shared gateway transport.
func NewClient(cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logg,
	}, nil
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, endpoint, op string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("encoding %s request", op))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("building %s request", op))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	return c.do(req, op, out)
}

func (c *Client) get(ctx context.Context, endpoint, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("building %s request", op))
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	c.log(req.Context(), "request", op, nil)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log(req.Context(), "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("gateway %s failed", op))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.log(req.Context(), "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("reading gateway %s response", op))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log(req.Context(), "error", op, map[string]any{"status": resp.StatusCode})
		return c.mapGatewayError(resp.StatusCode, raw, op)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			c.log(req.Context(), "error", op, map[string]any{"error": err.Error()})
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decoding gateway %s response", op))
		}
	}

	c.log(req.Context(), "response", op, map[string]any{"status": resp.StatusCode})
	return nil
}

func (c *Client) mapGatewayError(status int, raw []byte, op string) error {
	var body gatewayError
	_ = json.Unmarshal(raw, &body)

	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = fmt.Sprintf("gateway %s returned status %d", op, status)
	}

	code := pkgerrors.CodeDependency
	switch {
	case status == http.StatusPaymentRequired:
		code = pkgerrors.CodeInsufficientFunds
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = pkgerrors.CodeUnauthorized
	case status >= 400 && status < 500:
		code = pkgerrors.CodeInvalidArgument
	}
	return pkgerrors.New(code, message).WithDetails(map[string]any{
		"status":       status,
		"gateway_code": body.Code,
	})
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("gateway %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", phase))
	}
}
