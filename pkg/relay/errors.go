package relay

import "errors"

var (
	// ErrNotConfigured is returned when a component is missing required configuration
	ErrNotConfigured = errors.New("relay not configured")

	// ErrInvalidSignature is returned when webhook signature verification
	// fails. Deliveries failing this check are rejected outright and never
	// dispatched.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMissingCorrelationID is returned when an event payload carries no
	// usable user or order identifier. The handler aborts before any backend
	// call is made.
	ErrMissingCorrelationID = errors.New("missing correlation id in event payload")

	// ErrBackendUnavailable is returned when the commerce backend responds
	// with a non-2xx status. The failure propagates as a server error so the
	// payment provider redelivers the event later.
	ErrBackendUnavailable = errors.New("commerce backend unavailable")

	// ErrSessionCreationFailed is returned when the payment provider rejects
	// a checkout session request.
	ErrSessionCreationFailed = errors.New("checkout session creation failed")
)
