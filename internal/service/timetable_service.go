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

type timetableRepo interface {
	DeleteAt(ctx context.Context, exec sqlx.ExtContext, sectionID string, day, period, semester int) error
	Insert(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error
	GridBySection(ctx context.Context, sectionID string, semester int) ([]models.TimetableEntry, error)
	WeekByFaculty(ctx context.Context, facultyID string) ([]models.TimetableEntry, error)
}

type timetableAllocationRepo interface {
	LockFacultySlot(ctx context.Context, exec sqlx.ExtContext, facultyID string, day, period int) error
	FindFacultyClash(ctx context.Context, exec sqlx.ExtContext, facultyID string, day, period int, excludeSectionID string) (*models.SlotClash, error)
}

type allocationResolver interface {
	ResolveOrCreate(ctx context.Context, exec sqlx.ExtContext, subjectID, facultyID string, sectionID *string, academicYearID string) (*models.Allocation, error)
}

type timetableSectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type timetableBatchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

type timetableSubjectReader interface {
	FindByCode(ctx context.Context, code string) (*models.Subject, error)
}

// PlaceSlotRequest assigns or clears one weekly period for a section. An
// empty subject code clears the period.
type PlaceSlotRequest struct {
	SectionID   string  `json:"section_id" validate:"required"`
	DayOfWeek   int     `json:"day_of_week" validate:"required,min=1,max=6"`
	Period      int     `json:"period" validate:"required,min=1,max=8"`
	SubjectCode string  `json:"subject_code"`
	FacultyID   string  `json:"faculty_id" validate:"required_with=SubjectCode"`
	Room        *string `json:"room"`
	SlotType    string  `json:"slot_type" validate:"omitempty,oneof=REGULAR LAB FREE"`
}

// TimetableService places and reads weekly timetable slots. Placements are
// replace-on-write: at most one slot exists per (section, day, period,
// semester), and a faculty member is never double-booked at the same day
// and period across sections.
type TimetableService struct {
	db       *sqlx.DB
	slots    timetableRepo
	allocs   timetableAllocationRepo
	resolver allocationResolver
	sections timetableSectionReader
	batches  timetableBatchReader
	subjects timetableSubjectReader
	years    academicYearReader
	validate *validator.Validate
	logger   *zap.Logger
}

// NewTimetableService constructs TimetableService.
func NewTimetableService(db *sqlx.DB, slots timetableRepo, allocs timetableAllocationRepo, resolver allocationResolver, sections timetableSectionReader, batches timetableBatchReader, subjects timetableSubjectReader, years academicYearReader, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		db:       db,
		slots:    slots,
		allocs:   allocs,
		resolver: resolver,
		sections: sections,
		batches:  batches,
		subjects: subjects,
		years:    years,
		validate: validate,
		logger:   logger,
	}
}

// PlaceSlot writes one period of a section's timetable for the batch's
// current semester. The clash check, the delete of any existing slot and
// the insert run in one transaction so a rejected placement leaves the
// grid untouched.
func (s *TimetableService) PlaceSlot(ctx context.Context, req PlaceSlotRequest) (*models.TimetableSlot, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}

	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, fmt.Errorf("load section: %w", err)
	}
	batch, err := s.batches.FindByID(ctx, section.BatchID)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	semester := batch.CurrentSemester

	if req.SubjectCode == "" {
		// Pure clear. No allocation resolution, no clash check.
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin clear tx: %w", err)
		}
		defer tx.Rollback()
		if err := s.slots.DeleteAt(ctx, tx, req.SectionID, req.DayOfWeek, req.Period, semester); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit clear: %w", err)
		}
		return nil, nil
	}

	subject, err := s.subjects.FindByCode(ctx, req.SubjectCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found", req.SubjectCode))
		}
		return nil, fmt.Errorf("load subject: %w", err)
	}

	year, err := s.years.FindCurrent(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current academic year configured")
		}
		return nil, fmt.Errorf("load current academic year: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin place tx: %w", err)
	}
	defer tx.Rollback()

	// Serialize on the faculty's day/period before the clash check so two
	// concurrent placements cannot both read a clash-free grid.
	if err := s.allocs.LockFacultySlot(ctx, tx, req.FacultyID, req.DayOfWeek, req.Period); err != nil {
		return nil, err
	}

	clash, err := s.allocs.FindFacultyClash(ctx, tx, req.FacultyID, req.DayOfWeek, req.Period, req.SectionID)
	if err != nil {
		return nil, err
	}
	if clash != nil {
		conflict := &models.SlotConflictError{
			Message: fmt.Sprintf("faculty already engaged with section %s (semester %d) at day %d period %d",
				clash.SectionName, clash.Semester, clash.DayOfWeek, clash.Period),
			Clash: *clash,
		}
		return nil, appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Message)
	}

	sectionID := req.SectionID
	alloc, err := s.resolver.ResolveOrCreate(ctx, tx, subject.ID, req.FacultyID, &sectionID, year.ID)
	if err != nil {
		return nil, err
	}

	if err := s.slots.DeleteAt(ctx, tx, req.SectionID, req.DayOfWeek, req.Period, semester); err != nil {
		return nil, err
	}

	slotType := req.SlotType
	if slotType == "" {
		slotType = "REGULAR"
		if subject.Type == models.SubjectLab {
			slotType = "LAB"
		}
	}
	slot := &models.TimetableSlot{
		SectionID:    req.SectionID,
		DayOfWeek:    req.DayOfWeek,
		Period:       req.Period,
		Semester:     semester,
		AllocationID: &alloc.ID,
		Room:         req.Room,
		SlotType:     slotType,
	}
	if err := s.slots.Insert(ctx, tx, slot); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit place: %w", err)
	}

	s.logger.Info("timetable slot placed",
		zap.String("section_id", req.SectionID),
		zap.Int("day", req.DayOfWeek),
		zap.Int("period", req.Period),
		zap.String("subject_code", req.SubjectCode))
	return slot, nil
}

// SectionGrid returns the section's timetable for a semester. A zero
// semester means the batch's current one.
func (s *TimetableService) SectionGrid(ctx context.Context, sectionID string, semester int) ([]models.TimetableEntry, error) {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, fmt.Errorf("load section: %w", err)
	}
	if semester == 0 {
		batch, err := s.batches.FindByID(ctx, section.BatchID)
		if err != nil {
			return nil, fmt.Errorf("load batch: %w", err)
		}
		semester = batch.CurrentSemester
	}
	return s.slots.GridBySection(ctx, sectionID, semester)
}

// FacultyWeek returns every slot backed by a faculty member's active
// allocations.
func (s *TimetableService) FacultyWeek(ctx context.Context, facultyID string) ([]models.TimetableEntry, error) {
	return s.slots.WeekByFaculty(ctx, facultyID)
}
