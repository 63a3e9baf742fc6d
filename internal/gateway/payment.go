package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"tutor-booking/pkg/utils"
)

// ErrGatewayRejected wraps non-2xx gateway responses so callers can tell an
// upstream rejection apart from transport failures.
var ErrGatewayRejected = errors.New("payment gateway rejected the request")

// Payment-intent references issued by the gateway. Anything else is treated
// as invalid/legacy data and never sent back to the gateway.
var paymentRefPattern = regexp.MustCompile(`^pi_[A-Za-z0-9_]+$`)

// IsValidPaymentRef reports whether ref has the gateway's identifier shape.
func IsValidPaymentRef(ref string) bool {
	return paymentRefPattern.MatchString(ref)
}

// PaymentGateway is the external payment network. Every mutating call takes
// an idempotency key so a repeated request has no duplicate effect.
type PaymentGateway interface {
	// CreateAuthorization places a hold on funds without transferring them.
	CreateAuthorization(ctx context.Context, amount int64, currency, customerRef, idempotencyKey string) (string, error)
	// Capture completes the transfer of previously authorized funds.
	Capture(ctx context.Context, ref, idempotencyKey string) error
	// Charge authorizes and captures in one step (immediate_charge path).
	Charge(ctx context.Context, amount int64, currency, customerRef, idempotencyKey string) (string, error)
	// CancelAuthorization releases a hold without a charge.
	CancelAuthorization(ctx context.Context, ref string) error
	// Refund returns captured funds; yields the refund reference.
	Refund(ctx context.Context, ref, reason string) (string, error)
}

type paymentClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewPaymentGateway(config utils.PaymentConfig) PaymentGateway {
	return &paymentClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}
}

type intentRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	CustomerRef string `json:"customer_ref"`
	CaptureNow  bool   `json:"capture_now"`
}

type intentResponse struct {
	Ref string `json:"ref"`
}

type refundRequest struct {
	Reason string `json:"reason"`
}

type refundResponse struct {
	RefundRef string `json:"refund_ref"`
}

func (c *paymentClient) CreateAuthorization(ctx context.Context, amount int64, currency, customerRef, idempotencyKey string) (string, error) {
	body := intentRequest{Amount: amount, Currency: currency, CustomerRef: customerRef}

	var resp intentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/intents", idempotencyKey, body, &resp); err != nil {
		return "", fmt.Errorf("create authorization: %w", err)
	}

	return resp.Ref, nil
}

func (c *paymentClient) Capture(ctx context.Context, ref, idempotencyKey string) error {
	path := fmt.Sprintf("/v1/intents/%s/capture", ref)

	if err := c.do(ctx, http.MethodPost, path, idempotencyKey, struct{}{}, nil); err != nil {
		return fmt.Errorf("capture %s: %w", ref, err)
	}

	return nil
}

func (c *paymentClient) Charge(ctx context.Context, amount int64, currency, customerRef, idempotencyKey string) (string, error) {
	body := intentRequest{Amount: amount, Currency: currency, CustomerRef: customerRef, CaptureNow: true}

	var resp intentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/intents", idempotencyKey, body, &resp); err != nil {
		return "", fmt.Errorf("charge: %w", err)
	}

	return resp.Ref, nil
}

func (c *paymentClient) CancelAuthorization(ctx context.Context, ref string) error {
	path := fmt.Sprintf("/v1/intents/%s/cancel", ref)

	if err := c.do(ctx, http.MethodPost, path, "", struct{}{}, nil); err != nil {
		return fmt.Errorf("cancel authorization %s: %w", ref, err)
	}

	return nil
}

func (c *paymentClient) Refund(ctx context.Context, ref, reason string) (string, error) {
	path := fmt.Sprintf("/v1/intents/%s/refund", ref)

	var resp refundResponse
	if err := c.do(ctx, http.MethodPost, path, "", refundRequest{Reason: reason}, &resp); err != nil {
		return "", fmt.Errorf("refund %s: %w", ref, err)
	}

	return resp.RefundRef, nil
}

func (c *paymentClient) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
