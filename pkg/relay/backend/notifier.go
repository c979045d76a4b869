// Package backend implements the outbound client for the internal commerce
// backend. Every webhook handler funnels its normalized payload through the
// Notifier; failures surface as relay.ErrBackendUnavailable so the payment
// provider's redelivery mechanism can recover the event.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/payrelay/payrelay/pkg/relay"
)

const defaultHTTPTimeout = 10 * time.Second

// Config holds Notifier configuration.
type Config struct {
	// BaseURL is the commerce backend base URL (required).
	BaseURL string

	// APIKey is the shared service-to-service secret sent as x-api-key (required).
	APIKey string

	// HTTPClient is an optional HTTP client. If nil, a default client with a
	// 10s timeout is used. The timeout bounds the whole notification including
	// body read; there is no retry loop here - redelivery is the provider's job.
	HTTPClient *http.Client

	// Metrics is an optional metrics collector. If nil, metrics are discarded.
	Metrics relay.Metrics

	// Logger is an optional structured logger. If nil, logging is discarded.
	Logger relay.Logger
}

// Notifier performs authenticated notification calls to the commerce backend.
type Notifier struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    relay.Metrics
	logger     relay.Logger
}

// NewNotifier creates a Notifier from config.
func NewNotifier(config Config) (*Notifier, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: backend base URL is required", relay.ErrNotConfigured)
	}
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: backend API key is required", relay.ErrNotConfigured)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &relay.NoopMetrics{}
	}
	logger := config.Logger
	if logger == nil {
		logger = relay.NopLogger{}
	}

	return &Notifier{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// SubscriptionUpdate reports subscription state to the backend.
func (n *Notifier) SubscriptionUpdate(ctx context.Context, payload *SubscriptionUpdate) error {
	return n.post(ctx, PathSubscriptionUpdate, payload)
}

// SubscriptionCancel reports a subscription deletion to the backend.
func (n *Notifier) SubscriptionCancel(ctx context.Context, payload *SubscriptionCancel) error {
	return n.post(ctx, PathSubscriptionCancel, payload)
}

// SessionCompleted reports a completed one-time checkout to the backend.
func (n *Notifier) SessionCompleted(ctx context.Context, payload *SessionCompleted) error {
	return n.post(ctx, PathSessionCompleted, payload)
}

// PaymentSuccess reports a succeeded payment intent to the backend.
func (n *Notifier) PaymentSuccess(ctx context.Context, payload *PaymentSuccess) error {
	return n.post(ctx, PathPaymentSuccess, payload)
}

func (n *Notifier) post(ctx context.Context, path string, payload interface{}) error {
	startTime := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode backend payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.metrics.RecordBackendCall(path, "error")
		n.metrics.RecordBackendCallDuration(path, time.Since(startTime))
		return fmt.Errorf("%w: %s: %v", relay.ErrBackendUnavailable, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	n.metrics.RecordBackendCall(path, strconv.Itoa(resp.StatusCode))
	n.metrics.RecordBackendCallDuration(path, time.Since(startTime))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		n.logger.Warn("backend notification rejected",
			relay.Field{Key: "path", Value: path},
			relay.Field{Key: "status", Value: resp.StatusCode},
		)
		return fmt.Errorf("%w: %s returned %d", relay.ErrBackendUnavailable, path, resp.StatusCode)
	}

	n.logger.Debug("backend notified",
		relay.Field{Key: "path", Value: path},
		relay.Field{Key: "status", Value: resp.StatusCode},
	)
	return nil
}
