package models

import (
	"time"

	"github.com/google/uuid"
)

type Enrollment struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`

	UserRef  string    `gorm:"size:255;not null;uniqueIndex:idx_enrollment_user_course" json:"user_ref"`
	CourseID uuid.UUID `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"course_id"`
	Course   Course    `gorm:"foreignkey:CourseID" json:"-"`

	IsActive           bool      `gorm:"default:true" json:"is_active"`
	ProgressPercentage int       `gorm:"default:0" json:"progress_percentage"`
	EnrolledAt         time.Time `gorm:"not null" json:"enrolled_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
