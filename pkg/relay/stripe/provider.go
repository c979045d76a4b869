// Package stripe implements the Stripe-facing side of payrelay: webhook
// signature verification, event classification and dispatch, and checkout
// session creation. Verified events are normalized and forwarded to the
// commerce backend through a backend.Notifier.
package stripe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/payrelay/payrelay/pkg/relay"
	"github.com/payrelay/payrelay/pkg/relay/backend"
	"github.com/payrelay/payrelay/pkg/relay/internal"
)

const (
	providerName             = "stripe"
	envProduction            = "production"
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
	maxWebhookBodyBytes      = 256 * 1024
)

// Notifier is the outbound contract to the commerce backend. It is satisfied
// by *backend.Notifier and substituted with a fake in tests.
type Notifier interface {
	SubscriptionUpdate(ctx context.Context, payload *backend.SubscriptionUpdate) error
	SubscriptionCancel(ctx context.Context, payload *backend.SubscriptionCancel) error
	SessionCompleted(ctx context.Context, payload *backend.SessionCompleted) error
	PaymentSuccess(ctx context.Context, payload *backend.PaymentSuccess) error
}

// sessionCreator is the slice of the Stripe client the checkout path needs.
// Kept as an interface so tests can substitute a fake provider.
type sessionCreator interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
}

// Config holds Provider configuration.
type Config struct {
	// StripeAPIKey is the secret key for outbound Stripe API calls (required).
	StripeAPIKey string

	// StripeWebhookSecret is the webhook signing secret. Without it the
	// webhook endpoint rejects every delivery; it never reports success
	// unconfigured.
	StripeWebhookSecret string

	// Notifier forwards normalized event state to the commerce backend (required).
	Notifier Notifier

	// Events optionally marks processed deliveries so duplicates are
	// acknowledged without re-notifying the backend. If nil, every delivery
	// is dispatched; the backend's idempotent upserts make duplicates harmless.
	Events relay.EventStore

	// SuccessURL and CancelURL are the default checkout redirect targets.
	// When empty, the create-session handler derives them from the request
	// Origin header.
	SuccessURL string
	CancelURL  string

	// Environment gates error detail in checkout responses: in "production"
	// provider error messages are replaced with a generic message.
	Environment string

	// Metrics is an optional metrics collector. If nil, metrics are discarded.
	Metrics relay.Metrics

	// Logger is an optional structured logger. If nil, logging is discarded.
	Logger relay.Logger
}

// Provider relays Stripe checkout and webhook traffic.
type Provider struct {
	notifier      Notifier
	events        relay.EventStore
	webhookSecret []byte
	apiKey        string
	stripeClient  *stripe.Client
	sessions      sessionCreator
	rateLimiter   *internal.RateLimiter
	successURL    string
	cancelURL     string
	production    bool
	metrics       relay.Metrics
	logger        relay.Logger
}

// NewProvider creates a Stripe relay provider.
func NewProvider(config Config) (*Provider, error) {
	apiKey := strings.TrimSpace(config.StripeAPIKey)
	if apiKey == "" {
		return nil, relay.ErrNotConfigured
	}
	if config.Notifier == nil {
		return nil, relay.ErrNotConfigured
	}

	stripeClient := stripe.NewClient(apiKey)

	metrics := config.Metrics
	if metrics == nil {
		metrics = &relay.NoopMetrics{}
	}
	logger := config.Logger
	if logger == nil {
		logger = relay.NopLogger{}
	}

	return &Provider{
		notifier:      config.Notifier,
		events:        config.Events,
		webhookSecret: []byte(strings.TrimSpace(config.StripeWebhookSecret)),
		apiKey:        apiKey,
		stripeClient:  stripeClient,
		sessions:      stripeClient.V1CheckoutSessions,
		rateLimiter:   internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow),
		successURL:    strings.TrimSpace(config.SuccessURL),
		cancelURL:     strings.TrimSpace(config.CancelURL),
		production:    strings.EqualFold(strings.TrimSpace(config.Environment), envProduction),
		metrics:       metrics,
		logger:        logger,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for the inbound Stripe webhook
// endpoint, wrapped with per-IP rate limiting.
func (p *Provider) WebhookHandler() http.Handler {
	return p.rateLimiter.Middleware(http.HandlerFunc(p.handleWebhook))
}

// CheckoutHandler returns the HTTP handler for the checkout session
// creation endpoint.
func (p *Provider) CheckoutHandler() http.Handler {
	return http.HandlerFunc(p.handleCreateSession)
}
