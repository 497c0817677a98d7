package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultGatewayTimeout = 10 * time.Second

type gatewayRequest struct {
	WorkerID  string `json:"worker_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

type gatewayResponse struct {
	PayoutID string `json:"payout_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// GatewayProvider sends payouts to an HTTP money-movement gateway. The
// gateway de-duplicates on Reference, so resending the same reference after
// an ambiguous failure is safe.
type GatewayProvider struct {
	client   *resty.Client
	endpoint string
	currency string
}

func NewGatewayProvider(endpoint, apiKey, currency string) (*GatewayProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return NewGatewayProviderWithClient(endpoint, currency, client)
}

func NewGatewayProviderWithClient(endpoint, currency string, client *resty.Client) (*GatewayProvider, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid gateway endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	if currency == "" {
		currency = "KES"
	}

	return &GatewayProvider{
		client:   client,
		endpoint: trimmedEndpoint,
		currency: currency,
	}, nil
}

func (p *GatewayProvider) Pay(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if req.WorkerID == "" || req.Reference == "" {
		return nil, &PayoutError{
			Code:    "INVALID_REQUEST",
			Message: "worker id and reference are required",
		}
	}
	if !req.Amount.IsPositive() {
		return nil, &PayoutError{
			Code:    "INVALID_AMOUNT",
			Message: fmt.Sprintf("amount %s is not payable", req.Amount.String()),
		}
	}

	reqBody := gatewayRequest{
		WorkerID:  req.WorkerID,
		Amount:    req.Amount.StringFixed(2),
		Currency:  p.currency,
		Reference: req.Reference,
	}

	var body gatewayResponse
	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&body).
		Post(p.endpoint)
	if err != nil {
		return nil, &PayoutError{
			Code:      "GATEWAY_UNREACHABLE",
			Message:   "gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &PayoutError{
			Code:      "GATEWAY_EMPTY_RESPONSE",
			Message:   "gateway returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &PayoutReceipt{ProviderRef: body.PayoutID}, nil
	}

	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = fmt.Sprintf("gateway returned status %d", statusCode)
	}

	return nil, &PayoutError{
		Code:      fmt.Sprintf("GATEWAY_HTTP_%d", statusCode),
		Message:   message,
		Transient: isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
