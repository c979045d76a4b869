package backend

import "time"

// Backend notification paths. The commerce backend treats repeated
// notifications carrying the same sessionId/subscriptionId/invoiceId as
// idempotent upserts, so every payload carries full current state rather
// than a delta.
const (
	PathSubscriptionUpdate = "/api/Subscription/webhook-update"
	PathSubscriptionCancel = "/api/Subscription/webhook-cancel"
	PathSessionCompleted   = "/api/Checkout/session-completed"
	PathPaymentSuccess     = "/api/Checkout/payment-success"
)

// SubscriptionUpdate notifies the backend that a subscription is (still)
// active or has changed state. Depending on the triggering event, some
// optional fields are left empty.
type SubscriptionUpdate struct {
	// UserID is the internal user identifier carried in checkout session
	// metadata. Present on checkout completion, optional on renewals and
	// provider-side updates where the subscription id is the correlation key.
	UserID string `json:"userId,omitempty"`

	SubscriptionID string `json:"subscriptionId"`
	SessionID      string `json:"sessionId,omitempty"`
	Status         string `json:"status"`
	CustomerID     string `json:"customerId,omitempty"`

	// InvoiceID, Amount and PaymentDate are set on invoice payments.
	// Amount is in major currency units.
	InvoiceID   string     `json:"invoiceId,omitempty"`
	Amount      float64    `json:"amount,omitempty"`
	PaymentDate *time.Time `json:"paymentDate,omitempty"`

	// CurrentPeriodEnd and CancelAtPeriodEnd are set on subscription updates.
	CurrentPeriodEnd  *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// SubscriptionCancel notifies the backend that a subscription was deleted.
type SubscriptionCancel struct {
	SubscriptionID string            `json:"subscriptionId"`
	CustomerID     string            `json:"customerId,omitempty"`
	UserID         string            `json:"userId,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// SessionCompleted notifies the backend that a one-time payment checkout
// finished. AmountTotal is in major currency units.
type SessionCompleted struct {
	SessionID     string            `json:"sessionId"`
	PaymentStatus string            `json:"paymentStatus"`
	AmountTotal   float64           `json:"amountTotal"`
	CustomerEmail string            `json:"customerEmail,omitempty"`
	CustomerID    string            `json:"customerId,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// PaymentSuccess notifies the backend that a payment intent carrying an
// order id succeeded. Amount is in major currency units.
type PaymentSuccess struct {
	PaymentIntentID string  `json:"paymentIntentId"`
	OrderID         string  `json:"orderId"`
	Amount          float64 `json:"amount"`
	Status          string  `json:"status"`
}
