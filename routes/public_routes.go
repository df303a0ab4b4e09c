package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursekit/storefront/handlers"
)

func PublicRoutes(app *fiber.App, h *handlers.CourseHandler) {
	api := app.Group("/api/v1")

	api.Get("/courses", h.ListCourses)
	api.Get("/courses/:slug", h.GetCourse)
}
