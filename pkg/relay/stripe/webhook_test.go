package stripe

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/payrelay/payrelay/pkg/relay"
)

func TestHandleCheckoutSessionCompleted_Subscription(t *testing.T) {
	notifier := &fakeNotifier{}
	provider := newTestProvider(t, notifier)

	event := newTestEvent("checkout.session.completed", fmt.Sprintf(`{
		"id": %q,
		"mode": "subscription",
		"metadata": {"userId": %q, "plan": "pro"},
		"subscription": %q,
		"customer": %q
	}`, testSessionID, testUserID, testSubscriptionID, testCustomerID))

	if err := provider.processWebhookEvent(context.Background(), event); err != nil {
		t.Fatalf("processWebhookEvent failed: %v", err)
	}

	if len(notifier.updates) != 1 {
		t.Fatalf("Expected 1 subscription update, got %d", len(notifier.updates))
	}
	got := notifier.updates[0]
	if got.UserID != testUserID {
		t.Errorf("Expected userId %q, got %q", testUserID, got.UserID)
	}
	if got.SessionID != testSessionID {
		t.Errorf("Expected sessionId %q, got %q", testSessionID, got.SessionID)
	}
	if got.SubscriptionID != testSubscriptionID {
		t.Errorf("Expected subscriptionId %q, got %q", testSubscriptionID, got.SubscriptionID)
	}
	if got.Status != "active" {
		t.Errorf("Expected status active, got %q", got.Status)
	}
	if got.CustomerID != testCustomerID {
		t.Errorf("Expected customerId %q, got %q", testCustomerID, got.CustomerID)
	}
	if got.Metadata["plan"] != "pro" {
		t.Error("Expected session metadata to be forwarded")
	}
}

func TestHandleCheckoutSessionCompleted_SubscriptionMissingUserID(t *testing.T) {
	notifier := &fakeNotifier{}
	provider := newTestProvider(t, notifier)

	event := newTestEvent("checkout.session.completed", fmt.Sprintf(`{
		"id": %q,
		"mode": "subscription",
		"subscription": %q
	}`, testSessionID, testSubscriptionID))

	err := provider.processWebhookEvent(context.Background(), event)
	if !errors.Is(err, relay.ErrMissingCorrelationID) {
		t.Fatalf("Expected ErrMissingCorrelationID, got %v", err)
	}
	if notifier.totalCalls() != 0 {
		t.Errorf("Expected zero backend calls before correlation failure, got %d", notifier.totalCalls())
	}
}

func TestHandleCheckoutSessionCompleted_OneTimePayment(t *testing.T) {
	notifier := &fakeNotifier{}
	provider := newTestProvider(t, notifier)

	event := newTestEvent("checkout.session.completed", fmt.Sprintf(`{
		"id": %q,
		"mode": "payment",
		"payment_status": "paid",
		"amount_total": 4999,
		"customer_details": {"email": "shopper@example.com"},
		"customer": %q,
		"metadata": {"orderId": "order_1"}
	}`, testSessionID, testCustomerID))

	if err := provider.processWebhookEvent(context.Background(), event); err != nil {
		t.Fatalf("processWebhookEvent failed: %v", err)
	}

	if len(notifier.completed) != 1 {
		t.Fatalf("Expected 1 session-completed call, got %d", len(notifier.completed))
	}
	got := notifier.completed[0]
	if got.PaymentStatus != "paid" {
		t.Errorf("Expected paymentStatus paid, got %q", got.PaymentStatus)
	}
	if got.AmountTotal != 49.99 {
		t.Errorf("Expected amountTotal 49.99, got %v", got.AmountTotal)
	}
	if got.CustomerEmail != "shopper@example.com" {
		t.Errorf("Expected customer email to be forwarded, got %q", got.CustomerEmail)
	}
	// One-time checkouts are order-level; no userId is required.
	if notifier.totalCalls() != 1 {
		t.Errorf("Expected exactly 1 backend call, got %d", notifier.totalCalls())
	}
}

func TestHandleInvoicePaymentSucceeded(t *testing.T) {
	tests := []struct {
		name       string
		rawInvoice string
		wantSubID  string
		wantCalls  int
	}{
		{
			name:       "subscription as id string",
			rawInvoice: `{"id": "in_1", "amount_paid": 4999, "subscription": "sub_1"}`,
			wantSubID:  "sub_1",
			wantCalls:  1,
		},
		{
			name:       "subscription as expanded object",
			rawInvoice: `{"id": "in_1", "amount_paid": 4999, "subscription": {"id": "sub_1"}}`,
			wantSubID:  "sub_1",
			wantCalls:  1,
		},
		{
			name:       "no subscription is acknowledged without backend call",
			rawInvoice: `{"id": "in_1", "amount_paid": 4999}`,
			wantCalls:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			provider := newTestProvider(t, notifier)

			before := time.Now().UTC()
			event := newTestEvent("invoice.payment_succeeded", tt.rawInvoice)
			if err := provider.processWebhookEvent(context.Background(), event); err != nil {
				t.Fatalf("processWebhookEvent failed: %v", err)
			}

			if len(notifier.updates) != tt.wantCalls {
				t.Fatalf("Expected %d backend calls, got %d", tt.wantCalls, len(notifier.updates))
			}
			if tt.wantCalls == 0 {
				return
			}

			got := notifier.updates[0]
			if got.SubscriptionID != tt.wantSubID {
				t.Errorf("Expected subscriptionId %q, got %q", tt.wantSubID, got.SubscriptionID)
			}
			if got.Status != "active" {
				t.Errorf("Expected status active, got %q", got.Status)
			}
			if got.InvoiceID != "in_1" {
				t.Errorf("Expected invoiceId in_1, got %q", got.InvoiceID)
			}
			if got.Amount != 49.99 {
				t.Errorf("Expected amount 49.99, got %v", got.Amount)
			}
			if got.PaymentDate == nil || got.PaymentDate.Before(before) {
				t.Error("Expected paymentDate to be set to call time")
			}
		})
	}
}

func TestHandleSubscriptionUpdated(t *testing.T) {
	notifier := &fakeNotifier{}
	provider := newTestProvider(t, notifier)

	periodEnd := int64(1767225600) // 2026-01-01T00:00:00Z
	event := newTestEvent("customer.subscription.updated", fmt.Sprintf(`{
		"id": %q,
		"status": "past_due",
		"cancel_at_period_end": true,
		"current_period_end": %d,
		"customer": %q,
		"metadata": {"userId": %q}
	}`, testSubscriptionID, periodEnd, testCustomerID, testUserID))

	if err := provider.processWebhookEvent(context.Background(), event); err != nil {
		t.Fatalf("processWebhookEvent failed: %v", err)
	}

	if len(notifier.updates) != 1 {
		t.Fatalf("Expected 1 subscription update, got %d", len(notifier.updates))
	}
	got := notifier.updates[0]
	if got.SubscriptionID != testSubscriptionID {
		t.Errorf("Expected subscriptionId %q, got %q", testSubscriptionID, got.SubscriptionID)
	}
	if got.Status != "past_due" {
		t.Errorf("Expected status past_due, got %q", got.Status)
	}
	if !got.CancelAtPeriodEnd {
		t.Error("Expected cancelAtPeriodEnd to be true")
	}
	if got.UserID != testUserID {
		t.Errorf("Expected userId %q forwarded from metadata, got %q", testUserID, got.UserID)
	}
	if got.CurrentPeriodEnd == nil {
		t.Fatal("Expected currentPeriodEnd to be set")
	}
	if want := time.Unix(periodEnd, 0).UTC(); !got.CurrentPeriodEnd.Equal(want) {
		t.Errorf("Expected currentPeriodEnd %v, got %v", want, got.CurrentPeriodEnd)
	}
}

func TestHandleSubscriptionUpdated_NoPeriodEnd(t *testing.T) {
	notifier := &fakeNotifier{}
	provider := newTestProvider(t, notifier)

	event := newTestEvent("customer.subscription.updated", fmt.Sprintf(`{
		"id": %q,
		"status": "trialing"
	}`, testSubscriptionID))

	if err := provider.processWebhookEvent(context.Background(), event); err != nil {
		t.Fatalf("processWebhookEvent failed: %v", err)
	}
	if got := notifier.updates[0]; got.CurrentPeriodEnd != nil {
		t.Errorf("Expected nil currentPeriodEnd when absent, got %v", got.CurrentPeriodEnd)
	}
}

func TestHandleSubscriptionDeleted(t *testing.T) {
	notifier := &fakeNotifier{}
	provider := newTestProvider(t, notifier)

	event := newTestEvent("customer.subscription.deleted", fmt.Sprintf(`{
		"id": %q,
		"customer": %q,
		"metadata": {"userId": %q}
	}`, testSubscriptionID, testCustomerID, testUserID))

	if err := provider.processWebhookEvent(context.Background(), event); err != nil {
		t.Fatalf("processWebhookEvent failed: %v", err)
	}

	if len(notifier.cancels) != 1 {
		t.Fatalf("Expected 1 cancel call, got %d", len(notifier.cancels))
	}
	got := notifier.cancels[0]
	if got.SubscriptionID != testSubscriptionID {
		t.Errorf("Expected subscriptionId %q, got %q", testSubscriptionID, got.SubscriptionID)
	}
	if got.CustomerID != testCustomerID {
		t.Errorf("Expected customerId %q, got %q", testCustomerID, got.CustomerID)
	}
	if got.UserID != testUserID {
		t.Errorf("Expected userId %q, got %q", testUserID, got.UserID)
	}
}

func TestHandleSubscriptionDeleted_MissingID(t *testing.T) {
	notifier := &fakeNotifier{}
	provider := newTestProvider(t, notifier)

	event := newTestEvent("customer.subscription.deleted", `{"status": "canceled"}`)
	err := provider.processWebhookEvent(context.Background(), event)
	if !errors.Is(err, relay.ErrMissingCorrelationID) {
		t.Fatalf("Expected ErrMissingCorrelationID, got %v", err)
	}
	if notifier.totalCalls() != 0 {
		t.Errorf("Expected zero backend calls, got %d", notifier.totalCalls())
	}
}

func TestHandlePaymentIntentSucceeded(t *testing.T) {
	notifier := &fakeNotifier{}
	provider := newTestProvider(t, notifier)

	event := newTestEvent("payment_intent.succeeded", `{
		"id": "pi_1",
		"amount": 1250,
		"status": "succeeded",
		"metadata": {"orderId": "order_1"}
	}`)

	if err := provider.processWebhookEvent(context.Background(), event); err != nil {
		t.Fatalf("processWebhookEvent failed: %v", err)
	}

	if len(notifier.payments) != 1 {
		t.Fatalf("Expected 1 payment-success call, got %d", len(notifier.payments))
	}
	got := notifier.payments[0]
	if got.PaymentIntentID != "pi_1" {
		t.Errorf("Expected paymentIntentId pi_1, got %q", got.PaymentIntentID)
	}
	if got.OrderID != "order_1" {
		t.Errorf("Expected orderId order_1, got %q", got.OrderID)
	}
	if got.Amount != 12.5 {
		t.Errorf("Expected amount 12.5, got %v", got.Amount)
	}
	if got.Status != "succeeded" {
		t.Errorf("Expected status succeeded, got %q", got.Status)
	}
}

func TestHandlePaymentIntentSucceeded_NoOrderID(t *testing.T) {
	notifier := &fakeNotifier{}
	provider := newTestProvider(t, notifier)

	event := newTestEvent("payment_intent.succeeded", `{
		"id": "pi_1",
		"amount": 1250,
		"status": "succeeded"
	}`)

	if err := provider.processWebhookEvent(context.Background(), event); err != nil {
		t.Fatalf("Expected intent without orderId to be acknowledged, got %v", err)
	}
	if notifier.totalCalls() != 0 {
		t.Errorf("Expected zero backend calls, got %d", notifier.totalCalls())
	}
}

// TestRedelivery_ProducesIdenticalPayloads verifies that processing the same
// event twice sends two full-state notifications with identical content; the
// relay never computes diffs, so the backend's idempotent upsert absorbs
// redeliveries safely.
func TestRedelivery_ProducesIdenticalPayloads(t *testing.T) {
	notifier := &fakeNotifier{}
	provider := newTestProvider(t, notifier)

	raw := fmt.Sprintf(`{
		"id": %q,
		"mode": "subscription",
		"metadata": {"userId": %q},
		"subscription": %q
	}`, testSessionID, testUserID, testSubscriptionID)

	for i := 0; i < 2; i++ {
		event := newTestEvent("checkout.session.completed", raw)
		if err := provider.processWebhookEvent(context.Background(), event); err != nil {
			t.Fatalf("delivery %d failed: %v", i+1, err)
		}
	}

	if len(notifier.updates) != 2 {
		t.Fatalf("Expected 2 backend calls, got %d", len(notifier.updates))
	}
	first, second := notifier.updates[0], notifier.updates[1]
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical payloads, got %+v and %+v", first, second)
	}
}

func TestHandlerError_Propagates(t *testing.T) {
	notifier := &fakeNotifier{err: relay.ErrBackendUnavailable}
	provider := newTestProvider(t, notifier)

	event := newTestEvent("customer.subscription.deleted", fmt.Sprintf(`{"id": %q}`, testSubscriptionID))
	err := provider.processWebhookEvent(context.Background(), event)
	if !errors.Is(err, relay.ErrBackendUnavailable) {
		t.Fatalf("Expected backend failure to propagate, got %v", err)
	}
}

func TestMinorToMajor(t *testing.T) {
	tests := []struct {
		minor int64
		want  float64
	}{
		{4999, 49.99},
		{100, 1},
		{0, 0},
		{1, 0.01},
		{250000, 2500},
	}
	for _, tt := range tests {
		if got := minorToMajor(tt.minor); got != tt.want {
			t.Errorf("minorToMajor(%d) = %v, want %v", tt.minor, got, tt.want)
		}
	}
}
