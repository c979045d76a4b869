package relay

import "context"

// EventStore marks webhook deliveries as processed so duplicate redeliveries
// can be acknowledged without re-notifying the backend.
//
// The payment provider delivers each event at least once; the backend treats
// repeated notifications as idempotent upserts, so the store is a best-effort
// optimization, not a correctness requirement. Implementations must be safe
// for concurrent use.
type EventStore interface {
	// MarkProcessed records eventID as processed. It returns true when the
	// event was already recorded by an earlier delivery.
	MarkProcessed(ctx context.Context, eventID string) (alreadySeen bool, err error)
}
