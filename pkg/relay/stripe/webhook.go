package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/payrelay/payrelay/pkg/relay"
	"github.com/payrelay/payrelay/pkg/relay/backend"
	"github.com/payrelay/payrelay/pkg/relay/internal"
)

const metadataUserIDKey = "userId"

// handleWebhook processes one inbound Stripe webhook delivery.
//
// The body must reach signature verification in its original byte form; the
// signature is computed over exact bytes, so nothing may parse or re-serialize
// the payload first.
//
// ConstructEvent also rejects events whose api_version belongs to a different
// Stripe release train than the SDK's pinned version. A webhook endpoint
// configured on a mismatched API version is answered 400 until the endpoint
// or the SDK dependency is realigned; keep the two in step when upgrading
// either.
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	internal.SetSecurityHeaders(w)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(p.webhookSecret) == 0 {
		// Without a signing secret no delivery can be trusted; this route
		// must never report success while unconfigured.
		http.Error(w, "Webhook Error: webhook signing secret not configured", http.StatusBadRequest)
		p.metrics.RecordWebhookError(providerName, "not_configured")
		return
	}

	body, err := internal.ReadBodyStrict(w, r, maxWebhookBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			p.metrics.RecordWebhookError(providerName, "payload_too_large")
		} else {
			http.Error(w, fmt.Sprintf("Webhook Error: %v", err), http.StatusBadRequest)
			p.metrics.RecordWebhookError(providerName, "invalid_payload")
		}
		return
	}

	sig := r.Header.Get("Stripe-Signature")

	event, err := stripe.ConstructEvent(body, sig, string(p.webhookSecret))
	if err != nil {
		err = fmt.Errorf("%w: %v", relay.ErrInvalidSignature, err)
		http.Error(w, fmt.Sprintf("Webhook Error: %v", err), http.StatusBadRequest)
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		p.logger.Warn("webhook signature verification failed",
			relay.Field{Key: "error", Value: err.Error()},
			relay.Field{Key: "remote", Value: internal.ClientIP(r)},
		)
		return
	}

	eventType := string(event.Type)
	if eventType == "" {
		eventType = "UNKNOWN"
	}

	if p.alreadyProcessed(r.Context(), &event) {
		_ = internal.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		p.metrics.RecordWebhookEvent(providerName, eventType, "duplicate")
		return
	}

	if err := p.processWebhookEvent(r.Context(), &event); err != nil {
		_ = internal.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Webhook handler failed"})
		p.metrics.RecordWebhookEvent(providerName, eventType, "error")
		p.metrics.RecordWebhookError(providerName, "processing_error")
		p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
		p.logger.Error("webhook handler failed",
			relay.Field{Key: "event_type", Value: eventType},
			relay.Field{Key: "event_id", Value: event.ID},
			relay.Field{Key: "error", Value: err.Error()},
		)
		return
	}

	_ = internal.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
	p.metrics.RecordWebhookEvent(providerName, eventType, "success")
	p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
}

// alreadyProcessed consults the optional event store. Store failures never
// fail the delivery: the backend treats repeated notifications as idempotent
// upserts, so processing a duplicate is harmless while dropping a first
// delivery is not.
func (p *Provider) alreadyProcessed(ctx context.Context, event *stripe.Event) bool {
	if p.events == nil || event.ID == "" {
		return false
	}
	seen, err := p.events.MarkProcessed(ctx, event.ID)
	if err != nil {
		p.logger.Warn("event store unavailable, processing anyway",
			relay.Field{Key: "event_id", Value: event.ID},
			relay.Field{Key: "error", Value: err.Error()},
		)
		return false
	}
	if seen {
		p.logger.Info("duplicate delivery acknowledged",
			relay.Field{Key: "event_id", Value: event.ID},
			relay.Field{Key: "event_type", Value: string(event.Type)},
		)
	}
	return seen
}

// processWebhookEvent dispatches a verified event to exactly one handler.
// Event types without business meaning here are acknowledged as success:
// Stripe interprets any non-2xx response as "retry me", so rejecting
// uninteresting types would only cause needless redeliveries.
func (p *Provider) processWebhookEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return p.handleCheckoutSessionCompleted(ctx, event)
	case "invoice.payment_succeeded":
		return p.handleInvoicePaymentSucceeded(ctx, event)
	case "customer.subscription.updated":
		return p.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return p.handleSubscriptionDeleted(ctx, event)
	case "payment_intent.succeeded":
		return p.handlePaymentIntentSucceeded(ctx, event)
	default:
		p.logger.Debug("unhandled event type acknowledged",
			relay.Field{Key: "event_type", Value: string(event.Type)},
		)
		return nil
	}
}

// handleCheckoutSessionCompleted processes checkout.session.completed events.
// Subscription-mode sessions require the internal user id stamped on the
// session metadata at creation time; one-time payments are reported at order
// level without one.
func (p *Provider) handleCheckoutSessionCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	if session.Mode == stripe.CheckoutSessionModeSubscription {
		userID := session.Metadata[metadataUserIDKey]
		if userID == "" {
			return fmt.Errorf("%w: metadata.%s missing on checkout session %s",
				relay.ErrMissingCorrelationID, metadataUserIDKey, session.ID)
		}

		subscriptionID := ""
		if session.Subscription != nil {
			subscriptionID = session.Subscription.ID
		}

		return p.notifier.SubscriptionUpdate(ctx, &backend.SubscriptionUpdate{
			UserID:         userID,
			SessionID:      session.ID,
			SubscriptionID: subscriptionID,
			Status:         "active",
			CustomerID:     customerID(session.Customer),
			Metadata:       session.Metadata,
		})
	}

	email := ""
	if session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}

	return p.notifier.SessionCompleted(ctx, &backend.SessionCompleted{
		SessionID:     session.ID,
		PaymentStatus: string(session.PaymentStatus),
		AmountTotal:   minorToMajor(session.AmountTotal),
		CustomerEmail: email,
		CustomerID:    customerID(session.Customer),
		Metadata:      session.Metadata,
	})
}

// handleInvoicePaymentSucceeded processes invoice.payment_succeeded events.
// Invoices without a subscription reference are not subscription renewals
// and are acknowledged without a backend call.
func (p *Provider) handleInvoicePaymentSucceeded(ctx context.Context, event *stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	subscriptionID := subscriptionIDFromRaw(event.Data.Raw)
	if subscriptionID == "" {
		p.logger.Debug("invoice without subscription ignored",
			relay.Field{Key: "invoice_id", Value: invoice.ID},
		)
		return nil
	}

	paymentDate := time.Now().UTC()
	return p.notifier.SubscriptionUpdate(ctx, &backend.SubscriptionUpdate{
		SubscriptionID: subscriptionID,
		Status:         "active",
		InvoiceID:      invoice.ID,
		Amount:         minorToMajor(invoice.AmountPaid),
		PaymentDate:    &paymentDate,
	})
}

// handleSubscriptionUpdated processes customer.subscription.updated events.
func (p *Provider) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	if sub.ID == "" {
		return fmt.Errorf("%w: subscription id missing on update event", relay.ErrMissingCorrelationID)
	}

	return p.notifier.SubscriptionUpdate(ctx, &backend.SubscriptionUpdate{
		UserID:            sub.Metadata[metadataUserIDKey],
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		CurrentPeriodEnd:  epochSecondsFromRaw(event.Data.Raw, "current_period_end"),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CustomerID:        customerID(sub.Customer),
		Metadata:          sub.Metadata,
	})
}

// handleSubscriptionDeleted processes customer.subscription.deleted events.
func (p *Provider) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	if sub.ID == "" {
		return fmt.Errorf("%w: subscription id missing on delete event", relay.ErrMissingCorrelationID)
	}

	return p.notifier.SubscriptionCancel(ctx, &backend.SubscriptionCancel{
		SubscriptionID: sub.ID,
		CustomerID:     customerID(sub.Customer),
		UserID:         sub.Metadata[metadataUserIDKey],
		Metadata:       sub.Metadata,
	})
}

// handlePaymentIntentSucceeded processes payment_intent.succeeded events.
// Intents without an orderId in metadata belong to flows this relay does not
// track and are acknowledged without a backend call.
func (p *Provider) handlePaymentIntentSucceeded(ctx context.Context, event *stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}

	orderID := intent.Metadata["orderId"]
	if orderID == "" {
		p.logger.Debug("payment intent without orderId ignored",
			relay.Field{Key: "payment_intent_id", Value: intent.ID},
		)
		return nil
	}

	return p.notifier.PaymentSuccess(ctx, &backend.PaymentSuccess{
		PaymentIntentID: intent.ID,
		OrderID:         orderID,
		Amount:          minorToMajor(intent.Amount),
		Status:          string(intent.Status),
	})
}

// Helper functions

// minorToMajor converts a Stripe amount in minor currency units (cents) to
// major units. The conversion happens exactly once, here at the boundary;
// nothing downstream converts again.
func minorToMajor(amount int64) float64 {
	return float64(amount) / 100
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// subscriptionIDFromRaw extracts the subscription reference from raw invoice
// JSON. The v83 Invoice struct no longer carries the field directly, and the
// wire form is either a bare id string or an expanded object.
func subscriptionIDFromRaw(raw json.RawMessage) string {
	var rawData map[string]interface{}
	if err := json.Unmarshal(raw, &rawData); err != nil {
		return ""
	}
	switch v := rawData["subscription"].(type) {
	case string:
		return v
	case map[string]interface{}:
		if id, ok := v["id"].(string); ok {
			return id
		}
	}
	return ""
}

// epochSecondsFromRaw extracts an epoch-seconds field from raw event JSON and
// converts it to a UTC timestamp. Returns nil when the field is absent or
// zero. Used for current_period_end, which the v83 Subscription struct does
// not expose.
func epochSecondsFromRaw(raw json.RawMessage, key string) *time.Time {
	var rawData map[string]interface{}
	if err := json.Unmarshal(raw, &rawData); err != nil {
		return nil
	}
	secs, ok := rawData[key].(float64)
	if !ok || secs == 0 {
		return nil
	}
	t := time.Unix(int64(secs), 0).UTC()
	return &t
}
