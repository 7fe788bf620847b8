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

type rosterSectionRepo interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.Section, error)
	Create(ctx context.Context, section *models.Section) error
}

type rosterStudentRepo interface {
	ListBySection(ctx context.Context, sectionID string) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

type rosterFacultyRepo interface {
	List(ctx context.Context) ([]models.Faculty, error)
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
	Create(ctx context.Context, faculty *models.Faculty) error
}

// CreateSectionRequest registers a section under a batch.
type CreateSectionRequest struct {
	BatchID string `json:"batch_id" validate:"required"`
	Name    string `json:"name" validate:"required"`
}

// CreateStudentRequest adds a student to a section roster.
type CreateStudentRequest struct {
	SectionID string `json:"section_id" validate:"required"`
	RollNo    string `json:"roll_no" validate:"required"`
	FullName  string `json:"full_name" validate:"required"`
}

// CreateFacultyRequest registers a faculty member.
type CreateFacultyRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// RosterService manages sections, students and faculty reference data.
type RosterService struct {
	sections rosterSectionRepo
	students rosterStudentRepo
	faculty  rosterFacultyRepo
	batches  timetableBatchReader
	validate *validator.Validate
	logger   *zap.Logger
}

// NewRosterService constructs RosterService.
func NewRosterService(sections rosterSectionRepo, students rosterStudentRepo, faculty rosterFacultyRepo, batches timetableBatchReader, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		sections: sections,
		students: students,
		faculty:  faculty,
		batches:  batches,
		validate: validate,
		logger:   logger,
	}
}

// SectionsForBatch lists a batch's sections.
func (s *RosterService) SectionsForBatch(ctx context.Context, batchID string) ([]models.Section, error) {
	if _, err := s.batches.FindByID(ctx, batchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, fmt.Errorf("load batch: %w", err)
	}
	return s.sections.ListByBatch(ctx, batchID)
}

// CreateSection registers a section for a batch.
func (s *RosterService) CreateSection(ctx context.Context, req CreateSectionRequest) (*models.Section, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if _, err := s.batches.FindByID(ctx, req.BatchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, fmt.Errorf("load batch: %w", err)
	}

	section := &models.Section{BatchID: req.BatchID, Name: req.Name}
	if err := s.sections.Create(ctx, section); err != nil {
		return nil, err
	}
	s.logger.Info("section created", zap.String("section_id", section.ID), zap.String("batch_id", req.BatchID))
	return section, nil
}

// Roster lists a section's students sorted by roll number.
func (s *RosterService) Roster(ctx context.Context, sectionID string) ([]models.Student, error) {
	if _, err := s.sections.FindByID(ctx, sectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, fmt.Errorf("load section: %w", err)
	}
	return s.students.ListBySection(ctx, sectionID)
}

// AddStudent registers a student on a section roster.
func (s *RosterService) AddStudent(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.sections.FindByID(ctx, req.SectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, fmt.Errorf("load section: %w", err)
	}

	student := &models.Student{SectionID: req.SectionID, RollNo: req.RollNo, FullName: req.FullName}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// Faculty lists active faculty.
func (s *RosterService) Faculty(ctx context.Context) ([]models.Faculty, error) {
	return s.faculty.List(ctx)
}

// AddFaculty registers a faculty member.
func (s *RosterService) AddFaculty(ctx context.Context, req CreateFacultyRequest) (*models.Faculty, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}

	member := &models.Faculty{FullName: req.FullName, Email: req.Email, Active: true}
	if err := s.faculty.Create(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}
