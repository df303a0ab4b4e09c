package database

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/coursekit/storefront/models"
)

func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		DisableNestedTransaction:                 true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	fmt.Println("✅ Database connected successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Course{},
		&models.User{},
		&models.DiscountCode{},
		&models.ReferralCode{},
		&models.ReferralRedemption{},
		&models.Order{},
		&models.Enrollment{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	fmt.Println("✅ Database migration successful")
	return nil
}

// SeedDemo inserts a demo course and discount codes so a fresh install has
// something to check out against. Skipped when the course already exists.
func SeedDemo(db *gorm.DB) {
	var count int64
	if err := db.Model(&models.Course{}).Where("slug = ?", "go-for-backend-engineers").Count(&count).Error; err != nil {
		log.Printf("🔥 Failed to check for demo course: %v", err)
		return
	}
	if count > 0 {
		log.Println("Demo data already seeded.")
		return
	}

	deadline := time.Now().AddDate(0, 1, 0)
	early := decimal.NewFromInt(60)
	original := decimal.NewFromInt(150)
	course := models.Course{
		Slug:              "go-for-backend-engineers",
		Title:             "Go for Backend Engineers",
		Description:       "From net/http to production services.",
		Price:             decimal.NewFromInt(100),
		OriginalPrice:     &original,
		EarlyBirdPrice:    &early,
		EarlyBirdDeadline: &deadline,
		IsActive:          true,
	}
	if err := db.Create(&course).Error; err != nil {
		log.Printf("🔥 Failed to seed demo course: %v", err)
		return
	}

	codes := []models.DiscountCode{
		{
			Code:       "SAVE20",
			Kind:       models.DiscountKindPercentage,
			Value:      decimal.NewFromInt(20),
			ValidUntil: time.Now().AddDate(1, 0, 0),
			MaxUsage:   100,
		},
		{
			Code:             "WELCOME30",
			Kind:             models.DiscountKindBalance,
			Value:            decimal.Zero,
			ValidUntil:       time.Now().AddDate(1, 0, 0),
			MaxUsage:         10,
			HasBalanceLimit:  true,
			RemainingBalance: decimal.NewFromInt(30),
		},
	}
	for i := range codes {
		if err := db.Create(&codes[i]).Error; err != nil {
			log.Printf("🔥 Failed to seed discount code %s: %v", codes[i].Code, err)
		}
	}

	referral := models.ReferralCode{Code: "GOFRIEND", OwnerRef: "demo@coursekit.dev"}
	if err := db.Create(&referral).Error; err != nil {
		log.Printf("🔥 Failed to seed referral code %s: %v", referral.Code, err)
	} else {
		owner := models.User{
			ExternalRef:    "demo@coursekit.dev",
			Email:          "demo@coursekit.dev",
			FullName:       "Demo Owner",
			ReferralCodeID: &referral.ID,
		}
		if err := db.Create(&owner).Error; err != nil {
			log.Printf("🔥 Failed to seed referral owner: %v", err)
		}
	}

	log.Println("✅ Demo data seeded successfully")
}
