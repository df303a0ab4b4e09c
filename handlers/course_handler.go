package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coursekit/storefront/models"
)

type CourseHandler struct {
	courses CourseStore
}

func NewCourseHandler(courses CourseStore) *CourseHandler {
	return &CourseHandler{courses: courses}
}

func courseView(c *models.Course, now time.Time) fiber.Map {
	view := fiber.Map{
		"id":              c.ID,
		"slug":            c.Slug,
		"title":           c.Title,
		"description":     c.Description,
		"price":           c.Price.StringFixed(2),
		"effective_price": c.EffectivePriceAt(now).StringFixed(2),
	}
	if c.OriginalPrice != nil {
		view["original_price"] = c.OriginalPrice.StringFixed(2)
	}
	if c.EarlyBirdPrice != nil && c.EarlyBirdDeadline != nil {
		view["early_bird_price"] = c.EarlyBirdPrice.StringFixed(2)
		view["early_bird_deadline"] = c.EarlyBirdDeadline
	}
	return view
}

func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	courses, err := h.courses.ListActive()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load courses"})
	}

	now := time.Now()
	views := make([]fiber.Map, 0, len(courses))
	for i := range courses {
		views = append(views, courseView(&courses[i], now))
	}
	return c.JSON(fiber.Map{"courses": views})
}

func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	course, err := h.courses.FindBySlug(c.Params("slug"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
	}
	return c.JSON(courseView(course, time.Now()))
}
