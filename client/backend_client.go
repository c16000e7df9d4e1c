package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"loan-widget/apperr"
	"loan-widget/domain"
)

// BackendClient talks to the loan service over HTTPS. It performs no retries.
type BackendClient struct {
	baseURL     string
	credentials CredentialProvider
	httpClient  *http.Client
}

// NewBackendClient creates a client for baseURL. A zero timeout leaves the
// transport defaults in place.
func NewBackendClient(baseURL string, credentials CredentialProvider, timeout time.Duration) *BackendClient {
	return &BackendClient{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		credentials: credentials,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type initiatePaymentBody struct {
	LoanID string      `json:"loanId"`
	Amount json.Number `json:"amount"`
}

// InitiatePayment submits a payment. A 2xx response is returned as is, even
// when it reports success=false.
func (c *BackendClient) InitiatePayment(ctx context.Context, loanID string, amount decimal.Decimal) (domain.PaymentResponse, error) {
	const op = "initiate payment"

	body := initiatePaymentBody{LoanID: loanID, Amount: json.Number(amount.String())}

	var out domain.PaymentResponse
	raw, err := c.do(ctx, op, http.MethodPost, "/payments/initiate", body)
	if err != nil {
		return out, err
	}
	if err := decodeOptional(raw, &out); err != nil {
		return out, &apperr.DeserializationError{What: "payment response", Err: err}
	}
	return out, nil
}

// GetLoanProgress fetches the current loan record. It returns nil when the
// server has no record.
func (c *BackendClient) GetLoanProgress(ctx context.Context) (*domain.LoanProgress, error) {
	const op = "get loan progress"

	raw, err := c.do(ctx, op, http.MethodGet, "/loans/progress", nil)
	if err != nil {
		return nil, err
	}

	var p *domain.LoanProgress
	if err := decodeOptional(raw, &p); err != nil {
		return nil, &apperr.DeserializationError{What: "loan progress", Err: err}
	}
	if p == nil {
		return nil, nil
	}
	if err := p.Validate(); err != nil {
		return nil, &apperr.DeserializationError{What: "loan progress", Err: err}
	}
	return p, nil
}

// RegisterDeviceToken sends the push-notification token to the server.
func (c *BackendClient) RegisterDeviceToken(ctx context.Context, token string) (domain.TokenResponse, error) {
	const op = "update device token"

	var out domain.TokenResponse
	raw, err := c.do(ctx, op, http.MethodPost, "/devices/updateToken", domain.TokenRequest{DeviceToken: token})
	if err != nil {
		return out, err
	}
	if err := decodeOptional(raw, &out); err != nil {
		return out, &apperr.DeserializationError{What: "token response", Err: err}
	}
	return out, nil
}

func (c *BackendClient) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	token, err := c.credentials.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: obtain credentials: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperr.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperr.ServerError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	return raw, nil
}

// decodeOptional leaves v untouched for an empty body.
func decodeOptional(raw []byte, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
