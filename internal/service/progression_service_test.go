package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
)

func ts(value string) time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func TestExpectedSemester(t *testing.T) {
	cases := []struct {
		name      string
		startYear int
		now       string
		want      int
	}{
		{"first semester start", 2025, "2025-08-15", 1},
		{"before june of start year", 2025, "2025-03-01", 1},
		{"second semester", 2025, "2026-01-10", 2},
		{"third semester", 2025, "2026-07-01", 3},
		{"seventh semester", 2022, "2025-08-29", 7},
		{"clamped at eight", 2015, "2025-08-29", 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExpectedSemester(tc.startYear, ts(tc.now)))
		})
	}
}

func TestPlanAdvanceNoOp(t *testing.T) {
	start := ts("2025-06-01")
	end := ts("2025-11-30")
	batch := &models.Batch{ID: "b1", StartYear: 2025, CurrentSemester: 1, SemStartDate: &start, SemEndDate: &end}

	plan := PlanAdvance(batch, ts("2025-09-01"))
	assert.Equal(t, ActionNone, plan.Action)
	assert.Equal(t, 1, plan.From)
	assert.Equal(t, 1, plan.To)
}

func TestPlanAdvanceRollOver(t *testing.T) {
	start := ts("2025-06-01")
	end := ts("2025-11-30")
	batch := &models.Batch{ID: "b1", StartYear: 2025, CurrentSemester: 1, SemStartDate: &start, SemEndDate: &end}

	plan := PlanAdvance(batch, ts("2025-12-05"))
	assert.Equal(t, ActionRollOver, plan.Action)
	assert.Equal(t, 1, plan.From)
	assert.Equal(t, 2, plan.To)
}

func TestPlanAdvanceRollOverBlockedByPendingDates(t *testing.T) {
	start := ts("2025-06-01")
	end := ts("2025-11-30")
	batch := &models.Batch{ID: "b1", StartYear: 2025, CurrentSemester: 2, SemStartDate: &start, SemEndDate: &end, DatesPending: true}

	plan := PlanAdvance(batch, ts("2025-12-05"))
	assert.Equal(t, ActionNone, plan.Action)
}

func TestPlanAdvanceRollOverNeedsWindow(t *testing.T) {
	batch := &models.Batch{ID: "b1", StartYear: 2025, CurrentSemester: 1}

	plan := PlanAdvance(batch, ts("2025-12-05"))
	assert.Equal(t, ActionNone, plan.Action)
}

func TestPlanAdvanceCatchUpJump(t *testing.T) {
	// A 2022 cohort stuck at semester 3 should land directly on 7 in
	// August 2025, not step one at a time.
	batch := &models.Batch{ID: "b1", StartYear: 2022, CurrentSemester: 3}

	plan := PlanAdvance(batch, ts("2025-08-29"))
	assert.Equal(t, ActionCatchUp, plan.Action)
	assert.Equal(t, 3, plan.From)
	assert.Equal(t, 7, plan.To)
}

func TestPlanAdvanceCatchUpClamped(t *testing.T) {
	batch := &models.Batch{ID: "b1", StartYear: 2015, CurrentSemester: 5}

	plan := PlanAdvance(batch, ts("2025-08-29"))
	assert.Equal(t, ActionCatchUp, plan.Action)
	assert.Equal(t, 8, plan.To)
}

func TestPlanAdvanceFinalSemesterNeverMoves(t *testing.T) {
	start := ts("2025-01-01")
	end := ts("2025-05-31")
	batch := &models.Batch{ID: "b1", StartYear: 2018, CurrentSemester: 8, SemStartDate: &start, SemEndDate: &end}

	plan := PlanAdvance(batch, ts("2025-08-29"))
	assert.Equal(t, ActionNone, plan.Action)
	assert.Equal(t, 8, plan.To)
}

func TestPlanAdvanceIdempotent(t *testing.T) {
	batch := &models.Batch{ID: "b1", StartYear: 2022, CurrentSemester: 3}
	now := ts("2025-08-29")

	first := PlanAdvance(batch, now)
	require.Equal(t, ActionCatchUp, first.Action)

	// After applying, the batch sits at the expected semester with the
	// window cleared and dates pending; a second pass must be a no-op.
	batch.CurrentSemester = first.To
	batch.SemStartDate = nil
	batch.SemEndDate = nil
	batch.DatesPending = true

	second := PlanAdvance(batch, now)
	assert.Equal(t, ActionNone, second.Action)
}

type stubProgressionBatchRepo struct {
	batches  map[string]*models.Batch
	ids      []string
	advanced map[string]int
	windows  map[string][2]time.Time
}

func (s *stubProgressionBatchRepo) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	if b, ok := s.batches[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubProgressionBatchRepo) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Batch, error) {
	return s.FindByID(ctx, id)
}

func (s *stubProgressionBatchRepo) ListIDs(ctx context.Context) ([]string, error) {
	return s.ids, nil
}

func (s *stubProgressionBatchRepo) ApplyAdvance(ctx context.Context, exec sqlx.ExtContext, id string, target int) error {
	if s.advanced == nil {
		s.advanced = make(map[string]int)
	}
	s.advanced[id] = target
	if b, ok := s.batches[id]; ok {
		b.CurrentSemester = target
		b.SemStartDate = nil
		b.SemEndDate = nil
		b.DatesPending = true
	}
	return nil
}

func (s *stubProgressionBatchRepo) SetWindow(ctx context.Context, id string, start, end time.Time) error {
	if s.windows == nil {
		s.windows = make(map[string][2]time.Time)
	}
	s.windows[id] = [2]time.Time{start, end}
	if b, ok := s.batches[id]; ok {
		b.SemStartDate = &start
		b.SemEndDate = &end
		b.DatesPending = false
	}
	return nil
}

type stubAllocationDeactivator struct {
	below map[string]int
	at    map[string]int
}

func (s *stubAllocationDeactivator) DeactivateBelowSemester(ctx context.Context, exec sqlx.ExtContext, batchID string, semester int) (int64, error) {
	if s.below == nil {
		s.below = make(map[string]int)
	}
	s.below[batchID] = semester
	return 2, nil
}

func (s *stubAllocationDeactivator) DeactivateAtSemester(ctx context.Context, exec sqlx.ExtContext, batchID string, semester int) (int64, error) {
	if s.at == nil {
		s.at = make(map[string]int)
	}
	s.at[batchID] = semester
	return 1, nil
}

type stubLocker struct {
	held     bool
	acquired []string
	released []string
}

func (s *stubLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.acquired = append(s.acquired, key)
	return !s.held, nil
}

func (s *stubLocker) Release(ctx context.Context, key string) error {
	s.released = append(s.released, key)
	return nil
}

func newSweepMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestProgressionSweepAdvancesLaggingBatch(t *testing.T) {
	db, mock, cleanup := newSweepMockDB(t)
	defer cleanup()

	batches := &stubProgressionBatchRepo{
		batches: map[string]*models.Batch{
			"lagging": {ID: "lagging", StartYear: 2022, CurrentSemester: 3},
			"current": {ID: "current", StartYear: 2025, CurrentSemester: 1},
		},
		ids: []string{"lagging", "current"},
	}
	allocs := &stubAllocationDeactivator{}
	locker := &stubLocker{}

	svc := NewProgressionService(db, batches, allocs, locker, time.Minute, zap.NewNop())
	svc.now = func() time.Time { return ts("2025-08-29") }

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Advanced)
	assert.Equal(t, 7, batches.advanced["lagging"])
	assert.Equal(t, 7, allocs.below["lagging"])
	assert.NotContains(t, batches.advanced, "current")
	assert.Equal(t, []string{sweepLockKey}, locker.acquired)
	assert.Equal(t, []string{sweepLockKey}, locker.released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressionSweepSkipsWhenLockHeld(t *testing.T) {
	db, _, cleanup := newSweepMockDB(t)
	defer cleanup()

	batches := &stubProgressionBatchRepo{ids: []string{"b1"}}
	locker := &stubLocker{held: true}
	svc := NewProgressionService(db, batches, &stubAllocationDeactivator{}, locker, time.Minute, zap.NewNop())

	result, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
	assert.Empty(t, locker.released)
}

func TestProgressionRollOverDeactivatesOldSemester(t *testing.T) {
	db, mock, cleanup := newSweepMockDB(t)
	defer cleanup()

	start := ts("2025-06-01")
	end := ts("2025-11-30")
	batches := &stubProgressionBatchRepo{
		batches: map[string]*models.Batch{
			"b1": {ID: "b1", StartYear: 2025, CurrentSemester: 1, SemStartDate: &start, SemEndDate: &end},
		},
	}
	allocs := &stubAllocationDeactivator{}
	svc := NewProgressionService(db, batches, allocs, nil, time.Minute, zap.NewNop())
	svc.now = func() time.Time { return ts("2025-12-05") }

	mock.ExpectBegin()
	mock.ExpectCommit()

	plan, err := svc.AdvanceBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, ActionRollOver, plan.Action)
	assert.Equal(t, 2, batches.advanced["b1"])
	assert.Equal(t, 1, allocs.at["b1"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetTermWindowRejectsInvertedRange(t *testing.T) {
	svc := NewProgressionService(nil, &stubProgressionBatchRepo{}, &stubAllocationDeactivator{}, nil, time.Minute, zap.NewNop())

	_, err := svc.SetTermWindow(context.Background(), "b1", ts("2025-12-01"), ts("2025-06-01"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidRange.Code, appErr.Code)
}

func TestSetTermWindowStoresWindow(t *testing.T) {
	batches := &stubProgressionBatchRepo{
		batches: map[string]*models.Batch{"b1": {ID: "b1", StartYear: 2025, CurrentSemester: 1, DatesPending: true}},
	}
	svc := NewProgressionService(nil, batches, &stubAllocationDeactivator{}, nil, time.Minute, zap.NewNop())

	batch, err := svc.SetTermWindow(context.Background(), "b1", ts("2025-06-01"), ts("2025-11-30"))
	require.NoError(t, err)
	assert.False(t, batch.DatesPending)
	require.NotNil(t, batch.SemStartDate)
	assert.Equal(t, ts("2025-06-01"), *batch.SemStartDate)
}

func TestSetTermWindowUnknownBatch(t *testing.T) {
	svc := NewProgressionService(nil, &stubProgressionBatchRepo{}, &stubAllocationDeactivator{}, nil, time.Minute, zap.NewNop())

	_, err := svc.SetTermWindow(context.Background(), "missing", ts("2025-06-01"), ts("2025-11-30"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
