package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursekit/storefront/handlers"
	"github.com/coursekit/storefront/middleware"
)

func CheckoutRoutes(app *fiber.App, h *handlers.CheckoutHandler, jwtSecret string) {
	api := app.Group("/api/v1")

	checkout := api.Group("/checkout", middleware.OptionalIdentity(jwtSecret))
	checkout.Post("/", h.Checkout)
	checkout.Post("/preview", h.Preview)
}
