// Package gin mounts the payrelay endpoints on a Gin router.
package gin

import (
	gongin "github.com/gin-gonic/gin"

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
//	api := router.Group("/api")
//	gin.RegisterRoutes(api, provider)
//
// The webhook handler reads the raw request body for signature verification,
// so no body-consuming middleware may run before it.
func RegisterRoutes(router gongin.IRouter, provider *stripe.Provider) {
	router.POST(WebhookPath, gongin.WrapH(provider.WebhookHandler()))
	router.POST(CheckoutPath, gongin.WrapH(provider.CheckoutHandler()))
}
