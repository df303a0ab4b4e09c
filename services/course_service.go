package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursekit/storefront/models"
)

var ErrCourseNotFound = errors.New("course not found")

type CourseService struct {
	db *gorm.DB
}

func NewCourseService(db *gorm.DB) *CourseService {
	return &CourseService{db: db}
}

func (s *CourseService) ListActive() ([]models.Course, error) {
	var courses []models.Course
	err := s.db.Where("is_active = ?", true).Order("created_at DESC").Find(&courses).Error
	return courses, err
}

func (s *CourseService) FindBySlug(slug string) (*models.Course, error) {
	var course models.Course
	err := s.db.Where("slug = ? AND is_active = ?", slug, true).First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return &course, nil
}

func (s *CourseService) FindByID(id uuid.UUID) (*models.Course, error) {
	var course models.Course
	err := s.db.Where("id = ? AND is_active = ?", id, true).First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return &course, nil
}
