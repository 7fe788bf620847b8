package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
)

type subjectRepo interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByCode(ctx context.Context, code string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
}

// CreateSubjectRequest registers a catalog subject.
type CreateSubjectRequest struct {
	Code     string  `json:"code" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Credits  float64 `json:"credits" validate:"min=0"`
	Semester int     `json:"semester" validate:"required,min=1,max=8"`
	Type     string  `json:"type" validate:"required,oneof=THEORY LAB INTEGRATED"`
}

// SubjectService manages the shared subject catalog.
type SubjectService struct {
	subjects subjectRepo
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSubjectService constructs SubjectService.
func NewSubjectService(subjects subjectRepo, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{subjects: subjects, validate: validate, logger: logger}
}

// List returns catalog subjects with pagination metadata.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.subjects.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return subjects, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetByCode loads a subject by its unique code.
func (s *SubjectService) GetByCode(ctx context.Context, code string) (*models.Subject, error) {
	subject, err := s.subjects.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found", code))
		}
		return nil, fmt.Errorf("load subject: %w", err)
	}
	return subject, nil
}

// Create registers a subject. Codes are unique; a duplicate surfaces as a
// conflict.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	if _, err := s.subjects.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("subject %s already exists", req.Code))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check subject code: %w", err)
	}

	subject := &models.Subject{
		Code:     req.Code,
		Name:     req.Name,
		Credits:  req.Credits,
		Semester: req.Semester,
		Type:     models.SubjectType(req.Type),
	}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, err
	}
	s.logger.Info("subject created", zap.String("subject_id", subject.ID), zap.String("code", subject.Code))
	return subject, nil
}
