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

type academicYearStore interface {
	FindCurrent(ctx context.Context) (*models.AcademicYear, error)
	List(ctx context.Context) ([]models.AcademicYear, error)
	Create(ctx context.Context, year *models.AcademicYear) error
}

// CreateAcademicYearRequest registers a calendar year entry.
type CreateAcademicYearRequest struct {
	Label     string `json:"label" validate:"required"`
	StartYear int    `json:"start_year" validate:"required,min=2000,max=2100"`
	IsCurrent bool   `json:"is_current"`
}

// AcademicYearService manages the shared academic calendar entries that
// scope subject allocations.
type AcademicYearService struct {
	years    academicYearStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAcademicYearService constructs AcademicYearService.
func NewAcademicYearService(years academicYearStore, validate *validator.Validate, logger *zap.Logger) *AcademicYearService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicYearService{years: years, validate: validate, logger: logger}
}

// List returns all academic years, newest first.
func (s *AcademicYearService) List(ctx context.Context) ([]models.AcademicYear, error) {
	return s.years.List(ctx)
}

// Current returns the year flagged as current. Allocations created without an
// explicit year attach to this one.
func (s *AcademicYearService) Current(ctx context.Context) (*models.AcademicYear, error) {
	year, err := s.years.FindCurrent(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current academic year configured")
		}
		return nil, fmt.Errorf("load current academic year: %w", err)
	}
	return year, nil
}

// Create registers an academic year. Marking it current demotes the previous
// current year inside the repository transaction.
func (s *AcademicYearService) Create(ctx context.Context, req CreateAcademicYearRequest) (*models.AcademicYear, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid academic year payload")
	}

	year := &models.AcademicYear{
		Label:     req.Label,
		StartYear: req.StartYear,
		IsCurrent: req.IsCurrent,
	}
	if err := s.years.Create(ctx, year); err != nil {
		return nil, err
	}
	s.logger.Info("academic year created",
		zap.String("academic_year_id", year.ID),
		zap.String("label", year.Label),
		zap.Bool("is_current", year.IsCurrent))
	return year, nil
}
