package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
	"github.com/noah-isme/college-admin-api/pkg/lock"
)

type progressionBatchRepo interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Batch, error)
	ListIDs(ctx context.Context) ([]string, error)
	ApplyAdvance(ctx context.Context, exec sqlx.ExtContext, id string, target int) error
	SetWindow(ctx context.Context, id string, start, end time.Time) error
}

type progressionAllocationRepo interface {
	DeactivateBelowSemester(ctx context.Context, exec sqlx.ExtContext, batchID string, semester int) (int64, error)
	DeactivateAtSemester(ctx context.Context, exec sqlx.ExtContext, batchID string, semester int) (int64, error)
}

// AdvanceAction names the kind of semester move a plan prescribes.
type AdvanceAction string

const (
	// ActionNone leaves the batch untouched.
	ActionNone AdvanceAction = "none"
	// ActionCatchUp jumps the batch to its calendar-expected semester.
	ActionCatchUp AdvanceAction = "catch_up"
	// ActionRollOver advances a single semester after the window lapses.
	ActionRollOver AdvanceAction = "roll_over"
)

// AdvancePlan is the computed diff for one batch. Planning is pure so the
// decision can be tested without a database; Apply executes it.
type AdvancePlan struct {
	BatchID string        `json:"batch_id"`
	Action  AdvanceAction `json:"action"`
	From    int           `json:"from"`
	To      int           `json:"to"`
}

// SweepResult summarises one pass over all batches.
type SweepResult struct {
	Scanned  int           `json:"scanned"`
	Advanced int           `json:"advanced"`
	Plans    []AdvancePlan `json:"plans,omitempty"`
}

const sweepLockKey = "term-sweep"

// ProgressionService drives semester progression for batches. The semester
// pointer is monotonic; it only ever moves forward, in one of two ways:
// a catch-up jump when the calendar says the batch fell behind (missed
// sweeps, restored backups), or a single-step roll-over once the recorded
// semester window has passed.
type ProgressionService struct {
	db      *sqlx.DB
	batches progressionBatchRepo
	allocs  progressionAllocationRepo
	locker  lock.Locker
	lockTTL time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewProgressionService constructs ProgressionService.
func NewProgressionService(db *sqlx.DB, batches progressionBatchRepo, allocs progressionAllocationRepo, locker lock.Locker, lockTTL time.Duration, logger *zap.Logger) *ProgressionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &ProgressionService{
		db:      db,
		batches: batches,
		allocs:  allocs,
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
		now:     time.Now,
	}
}

// ExpectedSemester derives the semester a batch should be in from the
// calendar alone. Odd semesters begin in June, even semesters in the
// following calendar year, clamped to the 1..8 programme span.
func ExpectedSemester(startYear int, now time.Time) int {
	sem := 2 * (now.Year() - startYear)
	if now.Month() >= time.June {
		sem++
	}
	if sem < 1 {
		return 1
	}
	if sem > 8 {
		return 8
	}
	return sem
}

// PlanAdvance computes the move for a batch without touching storage.
// Catch-up wins over roll-over: when the stored semester trails the
// calendar-expected one the batch jumps straight to expected, regardless
// of window state. Roll-over fires only when a complete window has lapsed
// and no replacement dates are pending. Batches at semester 8 never move.
func PlanAdvance(batch *models.Batch, now time.Time) AdvancePlan {
	plan := AdvancePlan{
		BatchID: batch.ID,
		Action:  ActionNone,
		From:    batch.CurrentSemester,
		To:      batch.CurrentSemester,
	}

	expected := ExpectedSemester(batch.StartYear, now)
	if batch.CurrentSemester < expected {
		plan.Action = ActionCatchUp
		plan.To = expected
		return plan
	}

	if batch.CurrentSemester >= 8 {
		return plan
	}
	if batch.DatesPending || batch.SemStartDate == nil || batch.SemEndDate == nil {
		return plan
	}
	if !now.After(*batch.SemEndDate) {
		return plan
	}

	plan.Action = ActionRollOver
	plan.To = batch.CurrentSemester + 1
	return plan
}

// Sweep runs one progression pass over every batch. A distributed lock
// serializes concurrent sweeps across instances; when another holder has
// the lock the pass is skipped without error.
func (s *ProgressionService) Sweep(ctx context.Context) (*SweepResult, error) {
	if s.locker != nil {
		ok, err := s.locker.Acquire(ctx, sweepLockKey, s.lockTTL)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "sweep lock unavailable")
		}
		if !ok {
			s.logger.Info("progression sweep already running elsewhere, skipping")
			return &SweepResult{}, nil
		}
		defer func() {
			if err := s.locker.Release(ctx, sweepLockKey); err != nil {
				s.logger.Warn("release sweep lock", zap.Error(err))
			}
		}()
	}

	ids, err := s.batches.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list batches for sweep: %w", err)
	}

	result := &SweepResult{}
	for _, id := range ids {
		result.Scanned++
		plan, err := s.advanceOne(ctx, id)
		if err != nil {
			s.logger.Error("sweep batch failed", zap.String("batch_id", id), zap.Error(err))
			continue
		}
		if plan.Action != ActionNone {
			result.Advanced++
			result.Plans = append(result.Plans, plan)
		}
	}

	s.logger.Info("progression sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("advanced", result.Advanced))
	return result, nil
}

// AdvanceBatch evaluates and applies progression for a single batch,
// the manual-trigger path.
func (s *ProgressionService) AdvanceBatch(ctx context.Context, batchID string) (*AdvancePlan, error) {
	plan, err := s.advanceOne(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, err
	}
	return &plan, nil
}

// advanceOne locks the batch row, re-plans against the locked state and
// applies the plan, all in one transaction. Planning before locking would
// let two sweepers apply the same jump twice.
func (s *ProgressionService) advanceOne(ctx context.Context, batchID string) (AdvancePlan, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return AdvancePlan{}, fmt.Errorf("begin advance tx: %w", err)
	}
	defer tx.Rollback()

	batch, err := s.batches.FindByIDForUpdate(ctx, tx, batchID)
	if err != nil {
		return AdvancePlan{}, err
	}

	plan := PlanAdvance(batch, s.now())
	if plan.Action == ActionNone {
		return plan, tx.Commit()
	}

	if err := s.batches.ApplyAdvance(ctx, tx, batchID, plan.To); err != nil {
		return AdvancePlan{}, err
	}

	var deactivated int64
	switch plan.Action {
	case ActionCatchUp:
		deactivated, err = s.allocs.DeactivateBelowSemester(ctx, tx, batchID, plan.To)
	case ActionRollOver:
		deactivated, err = s.allocs.DeactivateAtSemester(ctx, tx, batchID, plan.From)
	}
	if err != nil {
		return AdvancePlan{}, err
	}

	if err := tx.Commit(); err != nil {
		return AdvancePlan{}, fmt.Errorf("commit advance: %w", err)
	}

	s.logger.Info("batch advanced",
		zap.String("batch_id", batchID),
		zap.String("action", string(plan.Action)),
		zap.Int("from", plan.From),
		zap.Int("to", plan.To),
		zap.Int64("allocations_deactivated", deactivated))
	return plan, nil
}

// SetTermWindow records the semester date window for a batch and clears
// the pending flag. Start must fall strictly before end.
func (s *ProgressionService) SetTermWindow(ctx context.Context, batchID string, start, end time.Time) (*models.Batch, error) {
	if !start.Before(end) {
		return nil, appErrors.Clone(appErrors.ErrInvalidRange, "semester start must be before end")
	}

	if _, err := s.batches.FindByID(ctx, batchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, fmt.Errorf("load batch: %w", err)
	}

	if err := s.batches.SetWindow(ctx, batchID, start, end); err != nil {
		return nil, err
	}
	return s.batches.FindByID(ctx, batchID)
}
