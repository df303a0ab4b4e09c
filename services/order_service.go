package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursekit/storefront/models"
	"github.com/coursekit/storefront/utils"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderService owns the durable Order record for the span of one payment
// transaction. Status writes are conditional updates against the allowed
// transition table, so a replayed callback can never move an order out of a
// terminal state.
type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// Create assigns the generated order id and persists the draft. The order
// row must exist before the buyer is redirected to the gateway; a creation
// failure aborts the whole checkout.
func (s *OrderService) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = utils.GenerateOrderID()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if err := s.db.Create(order).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *OrderService) FindByID(id string) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Course").Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByProviderRef resolves an order from the gateway's own token: either
// the payment id it issued or the checkout nonce it echoes back.
func (s *OrderService) FindByProviderRef(ref string) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Course").
		Where("provider_payment_id = ? OR provider_order_ref = ?", ref, ref).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// MarkCompleted transitions pending → completed. An already-completed order
// is a no-op so replayed success callbacks converge; a failed order stays
// failed.
func (s *OrderService) MarkCompleted(id string, providerPaymentID string) error {
	updates := map[string]interface{}{
		"status": models.OrderStatusCompleted,
	}
	if providerPaymentID != "" {
		updates["provider_payment_id"] = providerPaymentID
	}
	res := s.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		order, err := s.FindByID(id)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusCompleted {
			return nil
		}
		return fmt.Errorf("order %s cannot transition from %s to %s", id, order.Status, models.OrderStatusCompleted)
	}
	return nil
}

// MarkFailed transitions pending → failed; terminal orders are left alone.
func (s *OrderService) MarkFailed(id string, reason string) error {
	res := s.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":         models.OrderStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func (s *OrderService) AttachEnrollment(id string, enrollmentID uuid.UUID) error {
	return s.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"enrollment_id":      enrollmentID,
			"enrollment_created": true,
		}).Error
}

// SetProviderOrderRef stores the checkout nonce so the gateway's token can
// later be resolved back to the order.
func (s *OrderService) SetProviderOrderRef(id string, ref string) error {
	return s.db.Model(&models.Order{}).
		Where("id = ?", id).
		Update("provider_order_ref", ref).Error
}

func (s *OrderService) ListByBuyer(buyerRef string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Course").
		Where("buyer_ref = ?", buyerRef).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}
