package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/payrelay/payrelay/pkg/relay"
	"github.com/payrelay/payrelay/pkg/relay/internal"
)

const checkoutEndpoint = "/checkout/sessions"

// LineItem is one priced entry of a checkout request. Either Price (an
// existing Stripe price id) or PriceData (an ad-hoc price) must be set.
type LineItem struct {
	Price     string     `json:"price,omitempty"`
	Quantity  int64      `json:"quantity"`
	PriceData *PriceData `json:"priceData,omitempty"`
}

// PriceData describes an ad-hoc price for a line item. UnitAmount is in
// minor currency units, exactly as Stripe expects it.
type PriceData struct {
	Currency    string `json:"currency"`
	ProductName string `json:"productName"`
	UnitAmount  int64  `json:"unitAmount"`
}

// CheckoutParams is the request body of the create-session endpoint.
type CheckoutParams struct {
	// Mode is "payment" (default) or "subscription".
	Mode string `json:"mode,omitempty"`

	Items []LineItem `json:"items"`

	// SuccessURL and CancelURL override the provider defaults.
	SuccessURL string `json:"successUrl,omitempty"`
	CancelURL  string `json:"cancelUrl,omitempty"`

	// UserID and OrderID are stamped on the session metadata so webhook
	// handlers can correlate the completed payment back to an internal
	// record. They are the only sanctioned way to carry identifiers across
	// the payment provider boundary.
	UserID  string `json:"userId,omitempty"`
	OrderID string `json:"orderId,omitempty"`
}

// CreateSession requests a new hosted checkout session from Stripe and
// returns it. The relay stores nothing locally; Stripe owns the session
// lifecycle from here on.
func (p *Provider) CreateSession(ctx context.Context, params *CheckoutParams) (*stripe.CheckoutSession, error) {
	startTime := time.Now()

	if len(params.Items) == 0 {
		p.metrics.RecordAPICall(providerName, checkoutEndpoint, "empty_items")
		return nil, fmt.Errorf("%w: at least one line item is required", relay.ErrSessionCreationFailed)
	}

	mode := stripe.CheckoutSessionModePayment
	if params.Mode == string(stripe.CheckoutSessionModeSubscription) {
		mode = stripe.CheckoutSessionModeSubscription
	}

	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(params.Items))
	for i, item := range params.Items {
		quantity := item.Quantity
		if quantity == 0 {
			quantity = 1
		}
		lineItem := &stripe.CheckoutSessionCreateLineItemParams{
			Quantity: stripe.Int64(quantity),
		}
		switch {
		case item.Price != "":
			lineItem.Price = stripe.String(item.Price)
		case item.PriceData != nil:
			lineItem.PriceData = &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:   stripe.String(item.PriceData.Currency),
				UnitAmount: stripe.Int64(item.PriceData.UnitAmount),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(item.PriceData.ProductName),
				},
			}
		default:
			p.metrics.RecordAPICall(providerName, checkoutEndpoint, "invalid_item")
			return nil, fmt.Errorf("%w: item %d has neither price nor priceData", relay.ErrSessionCreationFailed, i)
		}
		lineItems = append(lineItems, lineItem)
	}

	createParams := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(mode)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(params.SuccessURL),
		CancelURL:          stripe.String(params.CancelURL),
	}

	// Stamp correlation ids on the session so webhook handlers can find
	// them again after the round trip through Stripe.
	if params.UserID != "" {
		createParams.AddMetadata(metadataUserIDKey, params.UserID)
		createParams.ClientReferenceID = stripe.String(params.UserID)
	}
	if params.OrderID != "" {
		createParams.AddMetadata("orderId", params.OrderID)
	}
	if mode == stripe.CheckoutSessionModeSubscription && params.UserID != "" {
		createParams.SubscriptionData = &stripe.CheckoutSessionCreateSubscriptionDataParams{}
		createParams.SubscriptionData.AddMetadata(metadataUserIDKey, params.UserID)
	}

	session, err := p.sessions.Create(ctx, createParams)
	if err != nil {
		p.metrics.RecordAPICall(providerName, checkoutEndpoint, "error")
		p.metrics.RecordAPICallDuration(providerName, checkoutEndpoint, time.Since(startTime))
		return nil, fmt.Errorf("%w: %v", relay.ErrSessionCreationFailed, err)
	}

	p.metrics.RecordAPICall(providerName, checkoutEndpoint, "success")
	p.metrics.RecordAPICallDuration(providerName, checkoutEndpoint, time.Since(startTime))

	return session, nil
}

// handleCreateSession is the HTTP handler for the checkout session creation
// endpoint: POST with a CheckoutParams body, responding
// 200 {"sessionId": "..."} or 500 {"error": "..."}.
func (p *Provider) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	internal.SetSecurityHeaders(w)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var params CheckoutParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		_ = internal.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": p.checkoutErrorMessage(fmt.Errorf("invalid request body: %w", err)),
		})
		return
	}

	p.applyRedirectDefaults(&params, r)

	session, err := p.CreateSession(r.Context(), &params)
	if err != nil {
		p.logger.Warn("checkout session creation failed",
			relay.Field{Key: "error", Value: err.Error()},
		)
		_ = internal.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": p.checkoutErrorMessage(err),
		})
		return
	}

	_ = internal.WriteJSON(w, http.StatusOK, map[string]string{"sessionId": session.ID})
}

// applyRedirectDefaults fills missing success/cancel URLs from the provider
// config, falling back to the storefront origin of the request.
func (p *Provider) applyRedirectDefaults(params *CheckoutParams, r *http.Request) {
	if params.SuccessURL == "" {
		params.SuccessURL = p.successURL
	}
	if params.CancelURL == "" {
		params.CancelURL = p.cancelURL
	}
	origin := r.Header.Get("Origin")
	if params.SuccessURL == "" && origin != "" {
		params.SuccessURL = origin + "/success?session_id={CHECKOUT_SESSION_ID}"
	}
	if params.CancelURL == "" && origin != "" {
		params.CancelURL = origin + "/cancel"
	}
}

// checkoutErrorMessage hides provider error detail from shoppers in
// production; other environments surface the underlying message.
func (p *Provider) checkoutErrorMessage(err error) string {
	if p.production {
		return "checkout session could not be created"
	}
	return err.Error()
}
