package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
)

type allocationRepo interface {
	Find(ctx context.Context, exec sqlx.ExtContext, subjectID, facultyID string, sectionID *string) (*models.Allocation, error)
	Create(ctx context.Context, exec sqlx.ExtContext, alloc *models.Allocation) error
	Activate(ctx context.Context, exec sqlx.ExtContext, id string) error
	ReplaceGeneral(ctx context.Context, subjectID, academicYearID string, facultyIDs []string) error
	ListForSection(ctx context.Context, sectionID string, activeOnly bool) ([]models.Allocation, error)
}

type academicYearReader interface {
	FindCurrent(ctx context.Context) (*models.AcademicYear, error)
}

type allocationSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// ReplaceGeneralRequest swaps the full set of section-less allocations for
// one subject.
type ReplaceGeneralRequest struct {
	SubjectID  string   `json:"subject_id" validate:"required"`
	FacultyIDs []string `json:"faculty_ids" validate:"required,min=1,dive,required"`
}

// AllocationService resolves and manages subject allocations. Allocations
// are the binding between a subject, a faculty member and an optional
// section scope; a nil section means the binding covers every section of
// the batch.
type AllocationService struct {
	allocs   allocationRepo
	years    academicYearReader
	subjects allocationSubjectReader
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAllocationService constructs AllocationService.
func NewAllocationService(allocs allocationRepo, years academicYearReader, subjects allocationSubjectReader, validate *validator.Validate, logger *zap.Logger) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{
		allocs:   allocs,
		years:    years,
		subjects: subjects,
		validate: validate,
		logger:   logger,
	}
}

// ResolveOrCreate returns the allocation for (subject, faculty, section
// scope), creating it when absent and reactivating it when it exists but
// was retired. Callers placing timetable slots go through this path so a
// placement never dangles without a binding. The exec parameter lets the
// caller run the resolution inside its own transaction.
func (s *AllocationService) ResolveOrCreate(ctx context.Context, exec sqlx.ExtContext, subjectID, facultyID string, sectionID *string, academicYearID string) (*models.Allocation, error) {
	existing, err := s.allocs.Find(ctx, exec, subjectID, facultyID, sectionID)
	if err == nil {
		if !existing.IsActive {
			if err := s.allocs.Activate(ctx, exec, existing.ID); err != nil {
				return nil, err
			}
			existing.IsActive = true
			s.logger.Info("allocation reactivated", zap.String("allocation_id", existing.ID))
		}
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolve allocation: %w", err)
	}

	alloc := &models.Allocation{
		SubjectID:      subjectID,
		FacultyID:      facultyID,
		SectionID:      sectionID,
		AcademicYearID: academicYearID,
		IsActive:       true,
	}
	if err := s.allocs.Create(ctx, exec, alloc); err != nil {
		return nil, err
	}
	s.logger.Info("allocation created",
		zap.String("allocation_id", alloc.ID),
		zap.String("subject_id", subjectID),
		zap.String("faculty_id", facultyID))
	return alloc, nil
}

// ReplaceGeneralAllocations replaces the complete general-faculty set for a
// subject under the current academic year. The operation is a full swap:
// faculty omitted from the request lose the general binding.
func (s *AllocationService) ReplaceGeneralAllocations(ctx context.Context, req ReplaceGeneralRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}

	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return fmt.Errorf("load subject: %w", err)
	}

	year, err := s.years.FindCurrent(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no current academic year configured")
		}
		return fmt.Errorf("load current academic year: %w", err)
	}

	if err := s.allocs.ReplaceGeneral(ctx, req.SubjectID, year.ID, req.FacultyIDs); err != nil {
		return err
	}
	s.logger.Info("general allocations replaced",
		zap.String("subject_id", req.SubjectID),
		zap.Int("faculty_count", len(req.FacultyIDs)))
	return nil
}

// ListForSection returns the allocations covering a section, scoped rows
// plus general rows.
func (s *AllocationService) ListForSection(ctx context.Context, sectionID string, activeOnly bool) ([]models.Allocation, error) {
	return s.allocs.ListForSection(ctx, sectionID, activeOnly)
}
