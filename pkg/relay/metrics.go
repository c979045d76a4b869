package relay

import "time"

// Metrics defines the interface for tracking relay operations.
// All methods are optional - components should gracefully handle nil metrics.
type Metrics interface {
	// RecordWebhookEvent records a webhook event received from the payment provider.
	// eventType: The provider event type (e.g., "checkout.session.completed")
	// status: "success", "error", or "duplicate"
	RecordWebhookEvent(provider, eventType, status string)

	// RecordWebhookProcessingDuration records how long it took to process a webhook.
	RecordWebhookProcessingDuration(provider, eventType string, duration time.Duration)

	// RecordWebhookError records a webhook processing error.
	// errorType: The type of error (e.g., "auth_failed", "invalid_payload", "processing_error")
	RecordWebhookError(provider, errorType string)

	// RecordBackendCall records an outbound notification to the commerce backend.
	// endpoint: The backend path called (e.g., "/api/Subscription/webhook-update")
	// status: HTTP status code as string, or "error" when the call never completed
	RecordBackendCall(endpoint, status string)

	// RecordBackendCallDuration records how long a backend notification took.
	RecordBackendCallDuration(endpoint string, duration time.Duration)

	// RecordAPICall records an API call to the payment provider.
	// endpoint: The API endpoint called (e.g., "/checkout/sessions")
	// status: "success" or an error classification
	RecordAPICall(provider, endpoint, status string)

	// RecordAPICallDuration records how long a provider API call took.
	RecordAPICallDuration(provider, endpoint string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(_, _, _ string)                            {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(_, _ string, _ time.Duration) {}
func (n *NoopMetrics) RecordWebhookError(_, _ string)                               {}
func (n *NoopMetrics) RecordBackendCall(_, _ string)                                {}
func (n *NoopMetrics) RecordBackendCallDuration(_ string, _ time.Duration)          {}
func (n *NoopMetrics) RecordAPICall(_, _, _ string)                                 {}
func (n *NoopMetrics) RecordAPICallDuration(_, _ string, _ time.Duration)           {}
