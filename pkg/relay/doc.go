// Package relay defines the shared contracts for the payrelay module:
// sentinel errors, the Metrics and Logger interfaces, and the EventStore
// used for duplicate webhook delivery detection.
//
// The Stripe-facing implementation lives in pkg/relay/stripe, the outbound
// commerce-backend client in pkg/relay/backend.
package relay
