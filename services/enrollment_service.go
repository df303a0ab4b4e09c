package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursekit/storefront/models"
)

// EnrollmentOutcome says what EnsureEnrolled actually did.
type EnrollmentOutcome string

const (
	OutcomeNew             EnrollmentOutcome = "new"
	OutcomeReactivated     EnrollmentOutcome = "reactivated"
	OutcomeAlreadyEnrolled EnrollmentOutcome = "already_enrolled"
)

// EnrollOutcomeFor is the pure transition table over the (user, course)
// enrollment state: absent → new, inactive → reactivated, active → no-op.
func EnrollOutcomeFor(existing *models.Enrollment) EnrollmentOutcome {
	switch {
	case existing == nil:
		return OutcomeNew
	case !existing.IsActive:
		return OutcomeReactivated
	default:
		return OutcomeAlreadyEnrolled
	}
}

// EnrollmentService grants course access idempotently. All state lives in
// the store; replayed callbacks converge on the same single active row.
type EnrollmentService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEnrollmentService(db *gorm.DB) *EnrollmentService {
	return &EnrollmentService{db: db, now: time.Now}
}

// EnsureEnrolled makes sure exactly one active enrollment row exists for
// (userRef, courseID) and reports whether it was created, reactivated, or
// already there. Reactivation resets progress and the enrolled-at stamp: a
// repurchase starts the course fresh.
func (s *EnrollmentService) EnsureEnrolled(userRef string, courseID uuid.UUID) (uuid.UUID, EnrollmentOutcome, error) {
	var id uuid.UUID
	var outcome EnrollmentOutcome

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Enrollment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_ref = ? AND course_id = ?", userRef, courseID).
			First(&existing).Error

		var current *models.Enrollment
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		} else {
			current = &existing
		}

		outcome = EnrollOutcomeFor(current)
		switch outcome {
		case OutcomeNew:
			enrollment := models.Enrollment{
				UserRef:            userRef,
				CourseID:           courseID,
				IsActive:           true,
				ProgressPercentage: 0,
				EnrolledAt:         s.now(),
			}
			if err := tx.Create(&enrollment).Error; err != nil {
				return err
			}
			id = enrollment.ID
		case OutcomeReactivated:
			existing.IsActive = true
			existing.ProgressPercentage = 0
			existing.EnrolledAt = s.now()
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			id = existing.ID
		case OutcomeAlreadyEnrolled:
			id = existing.ID
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, outcome, nil
}
