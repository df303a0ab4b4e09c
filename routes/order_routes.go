package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursekit/storefront/handlers"
	"github.com/coursekit/storefront/middleware"
)

func OrderRoutes(app *fiber.App, h *handlers.OrderHandler, jwtSecret string) {
	api := app.Group("/api/v1")

	orders := api.Group("/orders", middleware.Protected(jwtSecret))
	orders.Get("/", h.ListMyOrders)
}
