package service

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
)

type slotTuple struct {
	sectionID string
	day       int
	period    int
	semester  int
}

type stubTimetableRepo struct {
	deleted  []slotTuple
	inserted []*models.TimetableSlot
	grid     []models.TimetableEntry
}

func (s *stubTimetableRepo) DeleteAt(ctx context.Context, exec sqlx.ExtContext, sectionID string, day, period, semester int) error {
	s.deleted = append(s.deleted, slotTuple{sectionID, day, period, semester})
	return nil
}

func (s *stubTimetableRepo) Insert(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error {
	s.inserted = append(s.inserted, slot)
	return nil
}

func (s *stubTimetableRepo) GridBySection(ctx context.Context, sectionID string, semester int) ([]models.TimetableEntry, error) {
	return s.grid, nil
}

func (s *stubTimetableRepo) WeekByFaculty(ctx context.Context, facultyID string) ([]models.TimetableEntry, error) {
	return s.grid, nil
}

type stubClashFinder struct {
	clash *models.SlotClash
	calls []string
}

func (s *stubClashFinder) LockFacultySlot(ctx context.Context, exec sqlx.ExtContext, facultyID string, day, period int) error {
	s.calls = append(s.calls, "lock")
	return nil
}

func (s *stubClashFinder) FindFacultyClash(ctx context.Context, exec sqlx.ExtContext, facultyID string, day, period int, excludeSectionID string) (*models.SlotClash, error) {
	s.calls = append(s.calls, "clash")
	return s.clash, nil
}

type stubResolver struct {
	resolved *models.Allocation
	calls    int
}

func (s *stubResolver) ResolveOrCreate(ctx context.Context, exec sqlx.ExtContext, subjectID, facultyID string, sectionID *string, academicYearID string) (*models.Allocation, error) {
	s.calls++
	if s.resolved != nil {
		return s.resolved, nil
	}
	return &models.Allocation{ID: "alloc1", SubjectID: subjectID, FacultyID: facultyID, SectionID: sectionID, AcademicYearID: academicYearID, IsActive: true}, nil
}

type stubBatchReader struct {
	batches map[string]*models.Batch
}

func (s *stubBatchReader) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	if b, ok := s.batches[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

type stubYearReader struct {
	current *models.AcademicYear
}

func (s *stubYearReader) FindCurrent(ctx context.Context) (*models.AcademicYear, error) {
	if s.current != nil {
		return s.current, nil
	}
	return nil, sql.ErrNoRows
}

func newTimetableService(t *testing.T, slots *stubTimetableRepo, clashes *stubClashFinder, resolver *stubResolver) (*TimetableService, sqlmock.Sqlmock, func()) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "sqlmock")

	sections := &stubSectionReader{sections: map[string]*models.Section{"sec1": {ID: "sec1", BatchID: "b1", Name: "A"}}}
	batches := &stubBatchReader{batches: map[string]*models.Batch{"b1": {ID: "b1", CurrentSemester: 3}}}
	subjects := &stubSubjectReader{subjects: map[string]*models.Subject{
		"CS301": {ID: "subj1", Code: "CS301", Name: "Operating Systems", Semester: 3, Type: models.SubjectTheory},
	}}
	years := &stubYearReader{current: &models.AcademicYear{ID: "ay1", Label: "2025-26", StartYear: 2025, IsCurrent: true}}

	svc := NewTimetableService(db, slots, clashes, resolver, sections, batches, subjects, years, nil, zap.NewNop())
	return svc, mock, func() { raw.Close() }
}

func TestPlaceSlotReplacesExisting(t *testing.T) {
	slots := &stubTimetableRepo{}
	resolver := &stubResolver{}
	clashes := &stubClashFinder{}
	svc, mock, cleanup := newTimetableService(t, slots, clashes, resolver)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	slot, err := svc.PlaceSlot(context.Background(), PlaceSlotRequest{
		SectionID: "sec1", DayOfWeek: 2, Period: 4, SubjectCode: "CS301", FacultyID: "fac1",
	})
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, 3, slot.Semester)
	require.NotNil(t, slot.AllocationID)
	assert.Equal(t, "alloc1", *slot.AllocationID)
	assert.Equal(t, "REGULAR", slot.SlotType)

	// Replace-on-write: the occupant at the tuple is deleted first.
	require.Len(t, slots.deleted, 1)
	assert.Equal(t, slotTuple{"sec1", 2, 4, 3}, slots.deleted[0])
	require.Len(t, slots.inserted, 1)
	assert.Equal(t, 1, resolver.calls)
	// The faculty's day/period is locked before the clash check runs.
	assert.Equal(t, []string{"lock", "clash"}, clashes.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceSlotFacultyDoubleBooked(t *testing.T) {
	slots := &stubTimetableRepo{}
	clashes := &stubClashFinder{clash: &models.SlotClash{
		SlotID: "slot9", SectionID: "sec2", SectionName: "B", Semester: 5, DayOfWeek: 2, Period: 4, FacultyID: "fac1",
	}}
	svc, mock, cleanup := newTimetableService(t, slots, clashes, &stubResolver{})
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.PlaceSlot(context.Background(), PlaceSlotRequest{
		SectionID: "sec1", DayOfWeek: 2, Period: 4, SubjectCode: "CS301", FacultyID: "fac1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "section B")
	assert.Contains(t, appErr.Message, "semester 5")

	// Rejected placements leave the grid untouched; the lock was still
	// taken ahead of the check.
	assert.Empty(t, slots.deleted)
	assert.Empty(t, slots.inserted)
	assert.Equal(t, []string{"lock", "clash"}, clashes.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceSlotClearPeriod(t *testing.T) {
	slots := &stubTimetableRepo{}
	resolver := &stubResolver{}
	svc, mock, cleanup := newTimetableService(t, slots, &stubClashFinder{}, resolver)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	slot, err := svc.PlaceSlot(context.Background(), PlaceSlotRequest{
		SectionID: "sec1", DayOfWeek: 2, Period: 4,
	})
	require.NoError(t, err)
	assert.Nil(t, slot)
	require.Len(t, slots.deleted, 1)
	assert.Empty(t, slots.inserted)
	assert.Zero(t, resolver.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceSlotUnknownSubject(t *testing.T) {
	svc, _, cleanup := newTimetableService(t, &stubTimetableRepo{}, &stubClashFinder{}, &stubResolver{})
	defer cleanup()

	_, err := svc.PlaceSlot(context.Background(), PlaceSlotRequest{
		SectionID: "sec1", DayOfWeek: 2, Period: 4, SubjectCode: "NOPE101", FacultyID: "fac1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSectionGridDefaultsToCurrentSemester(t *testing.T) {
	slots := &stubTimetableRepo{grid: []models.TimetableEntry{{TimetableSlot: models.TimetableSlot{ID: "slot1", Semester: 3}}}}
	svc, _, cleanup := newTimetableService(t, slots, &stubClashFinder{}, &stubResolver{})
	defer cleanup()

	entries, err := svc.SectionGrid(context.Background(), "sec1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
