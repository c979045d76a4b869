// Package fiber mounts the payrelay endpoints on a Fiber app.
package fiber

import (
	gofiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/payrelay/payrelay/pkg/relay/stripe"
)

// WebhookPath and CheckoutPath are the routes registered by RegisterRoutes,
// relative to the router passed in.
const (
	WebhookPath  = "/webhook"
	CheckoutPath = "/checkout/create-session"
)

// RegisterRoutes mounts the webhook and checkout endpoints on the given
// router. Register on a group to prefix the paths:
//
//	api := app.Group("/api")
//	fiber.RegisterRoutes(api, provider)
//
// Fiber does not serve net/http handlers natively, so both endpoints go
// through the fasthttp adaptor, which replays the raw body unchanged; the
// webhook signature check still sees the exact bytes Stripe sent.
func RegisterRoutes(router gofiber.Router, provider *stripe.Provider) {
	router.Post(WebhookPath, adaptor.HTTPHandler(provider.WebhookHandler()))
	router.Post(CheckoutPath, adaptor.HTTPHandler(provider.CheckoutHandler()))
}
