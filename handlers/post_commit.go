package handlers

import (
	"log"

	"github.com/coursekit/storefront/models"
)

// postCommitEvent is one best-effort side effect to run after the critical
// transaction has committed. Each event is wrapped individually: a failure
// is logged and the rest still run, and nothing here can alter the
// committed order or the buyer's redirect.
type postCommitEvent struct {
	name string
	run  func() error
}

func runPostCommitEvents(order *models.Order, course *models.Course, buyerName string, referrals ReferralLedger, mailer Mailer) {
	courseTitle := "your course"
	if course != nil {
		courseTitle = course.Title
	}

	// Events run in order: the reward issued for this order's referral
	// redemption rides along in the confirmation email.
	var rewardCode string
	events := []postCommitEvent{
		{
			name: "referral-usage-increment",
			run: func() error {
				return referrals.IncrementUsage(order.ID)
			},
		},
		{
			name: "reward-issuance",
			run: func() error {
				code, err := referrals.IssueRewardCode(order.ID)
				if err != nil {
					return err
				}
				if code != "" {
					rewardCode = code
					log.Printf("✅ Reward code issued for order %s", order.ID)
				}
				return nil
			},
		},
		{
			name: "referral-code-minting",
			run: func() error {
				_, err := referrals.EnsureOwnCode(order.BuyerRef, order.BuyerEmail, buyerName)
				return err
			},
		},
		{
			name: "confirmation-email",
			run: func() error {
				mailer.SendEmail(buyerName, order.BuyerEmail, "Your Purchase is Confirmed!", purchaseEmailBody(courseTitle, order.ID, rewardCode))
				return nil
			},
		},
	}

	for _, ev := range events {
		if err := ev.run(); err != nil {
			log.Printf("🔥 Post-commit event %s failed for order %s: %v", ev.name, order.ID, err)
		}
	}
}
