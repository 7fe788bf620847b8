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

type tutorAssignmentRepo interface {
	FindActiveForSection(ctx context.Context, facultyID, sectionID string) (*models.TutorAssignment, error)
	ListByFaculty(ctx context.Context, facultyID string) ([]models.TutorAssignment, error)
	Create(ctx context.Context, assignment *models.TutorAssignment) error
	Deactivate(ctx context.Context, facultyID, sectionID string) error
}

// AssignTutorRequest grants or replaces a tutor's verification range over a
// section. Bounds are kept as submitted; non-numeric or empty values act as
// zero and a 0/0 pair means the whole roster.
type AssignTutorRequest struct {
	FacultyID  string `json:"faculty_id" validate:"required"`
	SectionID  string `json:"section_id" validate:"required"`
	RangeStart string `json:"range_start"`
	RangeEnd   string `json:"range_end"`
}

// TutorAssignmentService manages tutor authorization ranges.
type TutorAssignmentService struct {
	assignments tutorAssignmentRepo
	sections    timetableSectionReader
	faculty     facultyReader
	validate    *validator.Validate
	logger      *zap.Logger
}

type facultyReader interface {
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
}

// NewTutorAssignmentService constructs TutorAssignmentService.
func NewTutorAssignmentService(assignments tutorAssignmentRepo, sections timetableSectionReader, faculty facultyReader, validate *validator.Validate, logger *zap.Logger) *TutorAssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorAssignmentService{
		assignments: assignments,
		sections:    sections,
		faculty:     faculty,
		validate:    validate,
		logger:      logger,
	}
}

// Assign replaces the tutor's active range for a section. Any previous
// active range for the pair is retired first, so a tutor holds at most one
// live range per section.
func (s *TutorAssignmentService) Assign(ctx context.Context, req AssignTutorRequest) (*models.TutorAssignment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, fmt.Errorf("load section: %w", err)
	}
	if _, err := s.faculty.FindByID(ctx, req.FacultyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, fmt.Errorf("load faculty: %w", err)
	}

	if err := s.assignments.Deactivate(ctx, req.FacultyID, req.SectionID); err != nil {
		return nil, err
	}

	assignment := &models.TutorAssignment{
		FacultyID:  req.FacultyID,
		BatchID:    section.BatchID,
		SectionID:  req.SectionID,
		RangeStart: req.RangeStart,
		RangeEnd:   req.RangeEnd,
		IsActive:   true,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, err
	}
	s.logger.Info("tutor assigned",
		zap.String("faculty_id", req.FacultyID),
		zap.String("section_id", req.SectionID),
		zap.String("range_start", req.RangeStart),
		zap.String("range_end", req.RangeEnd))
	return assignment, nil
}

// ListForFaculty returns the tutor's active ranges.
func (s *TutorAssignmentService) ListForFaculty(ctx context.Context, facultyID string) ([]models.TutorAssignment, error) {
	return s.assignments.ListByFaculty(ctx, facultyID)
}

// Revoke retires the tutor's active range for a section.
func (s *TutorAssignmentService) Revoke(ctx context.Context, facultyID, sectionID string) error {
	if _, err := s.assignments.FindActiveForSection(ctx, facultyID, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "tutor assignment not found")
		}
		return fmt.Errorf("load tutor assignment: %w", err)
	}
	return s.assignments.Deactivate(ctx, facultyID, sectionID)
}
