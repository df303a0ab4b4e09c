package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/coursekit/storefront/models"
)

// StaleOrderSweep fails pending orders whose gateway callback never
// arrived. The update is conditional on the order still being pending, so a
// callback racing the sweep wins.
type StaleOrderSweep struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewStaleOrderSweep(db *gorm.DB, timeout time.Duration) *StaleOrderSweep {
	return &StaleOrderSweep{db: db, timeout: timeout}
}

func (s *StaleOrderSweep) Run() {
	cutoff := time.Now().Add(-s.timeout)

	res := s.db.Model(&models.Order{}).
		Where("status = ? AND created_at < ?", models.OrderStatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":         models.OrderStatusFailed,
			"failure_reason": "callback_timeout",
		})
	if res.Error != nil {
		log.Printf("🔥 Stale order sweep failed: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("✅ Stale order sweep failed %d abandoned pending order(s)", res.RowsAffected)
	}
}
