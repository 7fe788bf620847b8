package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
)

type allocScope struct {
	subjectID string
	facultyID string
	sectionID string
}

func scopeOf(subjectID, facultyID string, sectionID *string) allocScope {
	scope := allocScope{subjectID: subjectID, facultyID: facultyID}
	if sectionID != nil {
		scope.sectionID = *sectionID
	}
	return scope
}

type stubAllocationRepo struct {
	allocs     map[allocScope]*models.Allocation
	created    int
	activated  []string
	replaced   map[string][]string
	forSection []models.Allocation
}

func (s *stubAllocationRepo) Find(ctx context.Context, exec sqlx.ExtContext, subjectID, facultyID string, sectionID *string) (*models.Allocation, error) {
	if alloc, ok := s.allocs[scopeOf(subjectID, facultyID, sectionID)]; ok {
		return alloc, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubAllocationRepo) Create(ctx context.Context, exec sqlx.ExtContext, alloc *models.Allocation) error {
	if s.allocs == nil {
		s.allocs = make(map[allocScope]*models.Allocation)
	}
	s.created++
	alloc.ID = "alloc-new"
	s.allocs[scopeOf(alloc.SubjectID, alloc.FacultyID, alloc.SectionID)] = alloc
	return nil
}

func (s *stubAllocationRepo) Activate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	s.activated = append(s.activated, id)
	return nil
}

func (s *stubAllocationRepo) ReplaceGeneral(ctx context.Context, subjectID, academicYearID string, facultyIDs []string) error {
	if s.replaced == nil {
		s.replaced = make(map[string][]string)
	}
	s.replaced[subjectID+"/"+academicYearID] = facultyIDs
	return nil
}

func (s *stubAllocationRepo) ListForSection(ctx context.Context, sectionID string, activeOnly bool) ([]models.Allocation, error) {
	return s.forSection, nil
}

func newAllocationService(repo *stubAllocationRepo, year *models.AcademicYear) *AllocationService {
	subjects := &stubSubjectReader{subjects: map[string]*models.Subject{
		"CS301": {ID: "subj1", Code: "CS301", Name: "Operating Systems", Semester: 3},
	}}
	return NewAllocationService(repo, &stubYearReader{current: year}, subjects, nil, zap.NewNop())
}

func TestResolveOrCreateCreatesWhenMissing(t *testing.T) {
	repo := &stubAllocationRepo{}
	svc := newAllocationService(repo, &models.AcademicYear{ID: "ay1"})

	sectionID := "sec1"
	alloc, err := svc.ResolveOrCreate(context.Background(), nil, "subj1", "fac1", &sectionID, "ay1")
	require.NoError(t, err)
	assert.True(t, alloc.IsActive)
	assert.Equal(t, 1, repo.created)
	require.NotNil(t, alloc.SectionID)
	assert.Equal(t, "sec1", *alloc.SectionID)
}

func TestResolveOrCreateIdempotent(t *testing.T) {
	sectionID := "sec1"
	existing := &models.Allocation{ID: "alloc1", SubjectID: "subj1", FacultyID: "fac1", SectionID: &sectionID, IsActive: true}
	repo := &stubAllocationRepo{allocs: map[allocScope]*models.Allocation{
		scopeOf("subj1", "fac1", &sectionID): existing,
	}}
	svc := newAllocationService(repo, &models.AcademicYear{ID: "ay1"})

	alloc, err := svc.ResolveOrCreate(context.Background(), nil, "subj1", "fac1", &sectionID, "ay1")
	require.NoError(t, err)
	assert.Equal(t, "alloc1", alloc.ID)
	assert.Zero(t, repo.created)
	assert.Empty(t, repo.activated)
}

func TestResolveOrCreateReactivatesRetired(t *testing.T) {
	sectionID := "sec1"
	existing := &models.Allocation{ID: "alloc1", SubjectID: "subj1", FacultyID: "fac1", SectionID: &sectionID, IsActive: false}
	repo := &stubAllocationRepo{allocs: map[allocScope]*models.Allocation{
		scopeOf("subj1", "fac1", &sectionID): existing,
	}}
	svc := newAllocationService(repo, &models.AcademicYear{ID: "ay1"})

	alloc, err := svc.ResolveOrCreate(context.Background(), nil, "subj1", "fac1", &sectionID, "ay1")
	require.NoError(t, err)
	assert.True(t, alloc.IsActive)
	assert.Equal(t, []string{"alloc1"}, repo.activated)
	assert.Zero(t, repo.created)
}

func TestResolveOrCreateGeneralScope(t *testing.T) {
	repo := &stubAllocationRepo{}
	svc := newAllocationService(repo, &models.AcademicYear{ID: "ay1"})

	alloc, err := svc.ResolveOrCreate(context.Background(), nil, "subj1", "fac1", nil, "ay1")
	require.NoError(t, err)
	assert.True(t, alloc.General())
	assert.True(t, alloc.CoversSection("any-section"))
}

func TestReplaceGeneralAllocations(t *testing.T) {
	repo := &stubAllocationRepo{}
	svc := newAllocationService(repo, &models.AcademicYear{ID: "ay1", IsCurrent: true})

	err := svc.ReplaceGeneralAllocations(context.Background(), ReplaceGeneralRequest{
		SubjectID:  "subj1",
		FacultyIDs: []string{"fac1", "fac2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fac1", "fac2"}, repo.replaced["subj1/ay1"])
}

func TestReplaceGeneralAllocationsNoCurrentYear(t *testing.T) {
	repo := &stubAllocationRepo{}
	svc := newAllocationService(repo, nil)

	err := svc.ReplaceGeneralAllocations(context.Background(), ReplaceGeneralRequest{
		SubjectID:  "subj1",
		FacultyIDs: []string{"fac1"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReplaceGeneralAllocationsUnknownSubject(t *testing.T) {
	repo := &stubAllocationRepo{}
	svc := newAllocationService(repo, &models.AcademicYear{ID: "ay1"})

	err := svc.ReplaceGeneralAllocations(context.Background(), ReplaceGeneralRequest{
		SubjectID:  "ghost",
		FacultyIDs: []string{"fac1"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
