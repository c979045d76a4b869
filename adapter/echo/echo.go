// Package echo mounts the payrelay endpoints on an Echo router.
package echo

import (
	goecho "github.com/labstack/echo/v4"

	"github.com/payrelay/payrelay/pkg/relay/stripe"
)

// WebhookPath and CheckoutPath are the routes registered by RegisterRoutes,
// relative to the router passed in.
const (
	WebhookPath  = "/webhook"
	CheckoutPath = "/checkout/create-session"
)

// Router is the slice of Echo's API the adapter needs; both *echo.Echo and
// *echo.Group satisfy it.
type Router interface {
	POST(path string, h goecho.HandlerFunc, m ...goecho.MiddlewareFunc) *goecho.Route
}

// RegisterRoutes mounts the webhook and checkout endpoints on the given
// router. Register on a group to prefix the paths:
//
//	api := e.Group("/api")
//	echo.RegisterRoutes(api, provider)
//
// The webhook handler reads the raw request body for signature verification,
// so no body-consuming middleware may run before it.
func RegisterRoutes(router Router, provider *stripe.Provider) {
	router.POST(WebhookPath, goecho.WrapHandler(provider.WebhookHandler()))
	router.POST(CheckoutPath, goecho.WrapHandler(provider.CheckoutHandler()))
}
