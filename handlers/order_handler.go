package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/coursekit/storefront/middleware"
)

type OrderHandler struct {
	orders OrderStore
}

func NewOrderHandler(orders OrderStore) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// ListMyOrders returns the authenticated buyer's order history.
func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	buyer := middleware.UserRefFromClaims(c)
	if buyer == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing buyer identity"})
	}

	orders, err := h.orders.ListByBuyer(buyer)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load orders"})
	}

	return c.JSON(fiber.Map{"orders": orders})
}
