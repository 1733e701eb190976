package pinet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/cassiomorais/settlement/internal/infrastructure/observability"
	"github.com/cassiomorais/settlement/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

const (
	// MainnetURL is the production platform API endpoint.
	MainnetURL = "https://api.minepi.com"
	// SandboxURL is the sandbox platform API endpoint.
	SandboxURL = "https://api.sandbox.minepi.com"
)

// UserMe is the identity returned by GET /v2/me for a bearer access token.
type UserMe struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

// PaymentStatus mirrors the provider's payment status flags.
type PaymentStatus struct {
	DeveloperApproved   bool `json:"developer_approved"`
	TransactionVerified bool `json:"transaction_verified"`
	DeveloperCompleted  bool `json:"developer_completed"`
	Cancelled           bool `json:"cancelled"`
	UserCancelled       bool `json:"user_cancelled"`
}

// PaymentTransaction mirrors the provider's on-chain transaction reference.
type PaymentTransaction struct {
	TxID     string `json:"txid"`
	Verified bool   `json:"verified"`
	Link     string `json:"_link"`
}

// Payment mirrors the provider's payment resource.
type Payment struct {
	Identifier  string              `json:"identifier"`
	UserUID     string              `json:"user_uid"`
	Amount      decimal.Decimal     `json:"amount"`
	Memo        string              `json:"memo"`
	Metadata    map[string]any      `json:"metadata"`
	Status      PaymentStatus       `json:"status"`
	Transaction *PaymentTransaction `json:"transaction"`
}

// CreatePaymentRequest is the body for an app-to-user disbursement.
type CreatePaymentRequest struct {
	Amount    decimal.Decimal
	Memo      string
	Recipient string // recipient uid or wallet address
	// IdempotencyKey makes the provider reject duplicate submissions for the
	// same disbursement.
	IdempotencyKey string
	Metadata       map[string]any
}

// APIError is a non-success provider response. The raw payload is preserved
// for the audit trail.
type APIError struct {
	StatusCode int
	Message    string
	Raw        json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth retrying.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// AlreadyApproved reports whether the provider rejected an approve call
// because a prior call already approved the payment. A benign race.
func (e *APIError) AlreadyApproved() bool {
	return strings.Contains(strings.ToLower(e.Message), "already approved")
}

// Client talks to the Pi platform API. All app-level calls go through a
// circuit breaker so a degraded provider does not pile up blocked settlements.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics enables provider request and circuit breaker metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a platform client for the given base URL and API key.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "pi-platform",
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			if c.metrics != nil {
				c.metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			}
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Client-side rejections (4xx) do not indicate provider trouble.
			if apiErr, ok := err.(*APIError); ok {
				return !apiErr.Transient()
			}
			return err == nil
		},
	})
	return c
}

// VerifyAccessToken verifies a user's bearer credential against the platform
// identity endpoint. Transient failures are retried up to 3 times with
// exponential backoff (1s base, doubling); exhausting the attempts yields
// ErrIdentityUnverified.
func (c *Client) VerifyAccessToken(ctx context.Context, accessToken string) (*UserMe, error) {
	cfg := retry.Config{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		RetryIf: func(err error) bool {
			if apiErr, ok := err.(*APIError); ok {
				return apiErr.Transient()
			}
			return true // network-level failure
		},
	}

	me, err := retry.DoWithResult(ctx, cfg, func() (*UserMe, error) {
		body, err := c.doRaw(ctx, http.MethodGet, "/v2/me", "Bearer "+accessToken, nil)
		if err != nil {
			return nil, err
		}
		var me UserMe
		if err := json.Unmarshal(body, &me); err != nil {
			return nil, fmt.Errorf("decode /v2/me response: %w", err)
		}
		return &me, nil
	})
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && !apiErr.Transient() {
			return nil, fmt.Errorf("%w: %v", domainErrors.ErrUnauthorized, apiErr)
		}
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrIdentityUnverified, err)
	}
	return me, nil
}

// ApprovePayment tells the platform the app accepts the payment.
// An "already approved" rejection is a benign race and treated as success.
func (c *Client) ApprovePayment(ctx context.Context, paymentID string) (*Payment, error) {
	body, err := c.do(ctx, "approve_payment", http.MethodPost, "/v2/payments/"+paymentID+"/approve", nil)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.AlreadyApproved() {
			c.logger.Debug().Str("payment_id", paymentID).Msg("payment already approved, treating as success")
			return c.GetPayment(ctx, paymentID)
		}
		return nil, err
	}
	return decodePayment(body)
}

// CompletePayment confirms the payment's on-chain transaction.
func (c *Client) CompletePayment(ctx context.Context, paymentID, txID string) (*Payment, error) {
	body, err := c.do(ctx, "complete_payment", http.MethodPost, "/v2/payments/"+paymentID+"/complete", map[string]any{"txid": txID})
	if err != nil {
		return nil, err
	}
	return decodePayment(body)
}

// GetPayment fetches the full payment resource.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	body, err := c.do(ctx, "get_payment", http.MethodGet, "/v2/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	return decodePayment(body)
}

// CreatePayment creates an app-to-user disbursement and returns its
// identifier, which doubles as the transaction reference.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (string, error) {
	payload := map[string]any{
		"payment": map[string]any{
			"amount":           req.Amount,
			"memo":             req.Memo,
			"recipient":        req.Recipient,
			"metadata":         req.Metadata,
			"from_app_to_user": true,
		},
		"idem": req.IdempotencyKey,
	}
	body, err := c.do(ctx, "create_payment", http.MethodPost, "/v2/payments", payload)
	if err != nil {
		return "", err
	}
	p, err := decodePayment(body)
	if err != nil {
		return "", err
	}
	if p.Identifier == "" {
		return "", fmt.Errorf("provider response missing payment identifier")
	}
	return p.Identifier, nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// do runs an app-authenticated request through the circuit breaker.
func (c *Client) do(ctx context.Context, endpoint, method, path string, payload any) ([]byte, error) {
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRaw(ctx, method, path, "Key "+c.apiKey, payload)
	})

	if c.metrics != nil {
		status := "success"
		switch {
		case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests:
			status = "rejected"
		case err != nil:
			status = "error"
		}
		c.metrics.ProviderRequests.WithLabelValues(endpoint, status).Inc()
		c.metrics.ProviderDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		c.metrics.CircuitBreakerRequests.WithLabelValues("pi-platform", status).Inc()
	}

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrProviderUnavailable, err)
	}
	return body, err
}

func (c *Client) doRaw(ctx context.Context, method, path, authorization string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Raw: json.RawMessage(body)}
	var parsed struct {
		Error        string `json:"error"`
		ErrorMessage string `json:"error_message"`
		Message      string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.ErrorMessage != "":
			apiErr.Message = parsed.ErrorMessage
		case parsed.Message != "":
			apiErr.Message = parsed.Message
		default:
			apiErr.Message = parsed.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func decodePayment(body []byte) (*Payment, error) {
	var p Payment
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	return &p, nil
}
