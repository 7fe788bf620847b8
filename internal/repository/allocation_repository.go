package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-admin-api/internal/models"
)

// AllocationRepository provides persistence for subject allocations.
type AllocationRepository struct {
	db *sqlx.DB
}

// NewAllocationRepository creates a new allocation repository.
func NewAllocationRepository(db *sqlx.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

func (r *AllocationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const allocationColumns = "id, subject_id, faculty_id, section_id, academic_year_id, is_active, created_at"

// Find looks up the allocation matching subject, faculty and section scope.
// A nil sectionID matches the general (section-less) row only.
func (r *AllocationRepository) Find(ctx context.Context, exec sqlx.ExtContext, subjectID, facultyID string, sectionID *string) (*models.Allocation, error) {
	var query string
	args := []interface{}{subjectID, facultyID}
	if sectionID == nil {
		query = fmt.Sprintf("SELECT %s FROM subject_allocations WHERE subject_id = $1 AND faculty_id = $2 AND section_id IS NULL LIMIT 1", allocationColumns)
	} else {
		query = fmt.Sprintf("SELECT %s FROM subject_allocations WHERE subject_id = $1 AND faculty_id = $2 AND section_id = $3 LIMIT 1", allocationColumns)
		args = append(args, *sectionID)
	}

	var alloc models.Allocation
	if err := sqlx.GetContext(ctx, r.exec(exec), &alloc, query, args...); err != nil {
		return nil, err
	}
	return &alloc, nil
}

// Create inserts an allocation, active by default.
func (r *AllocationRepository) Create(ctx context.Context, exec sqlx.ExtContext, alloc *models.Allocation) error {
	if alloc.ID == "" {
		alloc.ID = uuid.NewString()
	}
	if alloc.CreatedAt.IsZero() {
		alloc.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO subject_allocations (id, subject_id, faculty_id, section_id, academic_year_id, is_active, created_at) VALUES (:id, :subject_id, :faculty_id, :section_id, :academic_year_id, :is_active, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, alloc); err != nil {
		return fmt.Errorf("create allocation: %w", err)
	}
	return nil
}

// Activate flips an existing allocation back to active.
func (r *AllocationRepository) Activate(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `UPDATE subject_allocations SET is_active = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("activate allocation: %w", err)
	}
	return nil
}

// DeactivateBelowSemester deactivates allocations for a batch whose subject
// sits below the given semester. Used by the catch-up jump. General rows
// (null section) belonging to the batch are included.
func (r *AllocationRepository) DeactivateBelowSemester(ctx context.Context, exec sqlx.ExtContext, batchID string, semester int) (int64, error) {
	return r.deactivateBand(ctx, exec, batchID, semester, "<")
}

// DeactivateAtSemester deactivates allocations whose subject semester
// equals the value, the single-step roll-over case.
func (r *AllocationRepository) DeactivateAtSemester(ctx context.Context, exec sqlx.ExtContext, batchID string, semester int) (int64, error) {
	return r.deactivateBand(ctx, exec, batchID, semester, "=")
}

func (r *AllocationRepository) deactivateBand(ctx context.Context, exec sqlx.ExtContext, batchID string, semester int, op string) (int64, error) {
	query := fmt.Sprintf(`UPDATE subject_allocations sa SET is_active = FALSE
FROM subjects s
WHERE s.id = sa.subject_id
  AND s.semester %s $2
  AND sa.is_active = TRUE
  AND (sa.section_id IN (SELECT id FROM sections WHERE batch_id = $1) OR sa.section_id IS NULL)`, op)

	res, err := r.exec(exec).ExecContext(ctx, query, batchID, semester)
	if err != nil {
		return 0, fmt.Errorf("deactivate allocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate allocations rows: %w", err)
	}
	return n, nil
}

// LockFacultySlot takes a transaction-scoped advisory lock on the
// (faculty, day, period) tuple. Concurrent placements of the same faculty
// at the same period serialize here before the clash check; the slot
// uniqueness constraint only covers identical (section, day, period,
// semester) tuples and cannot catch two sections claiming one faculty.
// The lock is released when the transaction commits or rolls back.
func (r *AllocationRepository) LockFacultySlot(ctx context.Context, exec sqlx.ExtContext, facultyID string, day, period int) error {
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), $2)`, facultyID, day*10+period); err != nil {
		return fmt.Errorf("lock faculty slot: %w", err)
	}
	return nil
}

// FindFacultyClash reports an active booking that would double-book the
// faculty member at the same day/period from another section's timetable.
func (r *AllocationRepository) FindFacultyClash(ctx context.Context, exec sqlx.ExtContext, facultyID string, day, period int, excludeSectionID string) (*models.SlotClash, error) {
	const query = `SELECT ts.id AS slot_id, ts.section_id, sec.name AS section_name, ts.semester, ts.day_of_week, ts.period, sa.faculty_id
FROM timetable_slots ts
JOIN subject_allocations sa ON sa.id = ts.allocation_id
JOIN sections sec ON sec.id = ts.section_id
WHERE sa.faculty_id = $1
  AND sa.is_active = TRUE
  AND ts.day_of_week = $2
  AND ts.period = $3
  AND ts.section_id <> $4
LIMIT 1`

	var clash models.SlotClash
	err := sqlx.GetContext(ctx, r.exec(exec), &clash, query, facultyID, day, period, excludeSectionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find faculty clash: %w", err)
	}
	return &clash, nil
}

// ReplaceGeneral deletes every general (section-less) allocation for the
// subject and inserts one active row per faculty id. Full replace, not a
// merge.
func (r *AllocationRepository) ReplaceGeneral(ctx context.Context, subjectID, academicYearID string, facultyIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace general allocations: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM subject_allocations WHERE subject_id = $1 AND section_id IS NULL`, subjectID); err != nil {
		return fmt.Errorf("delete general allocations: %w", err)
	}

	now := time.Now().UTC()
	for _, facultyID := range facultyIDs {
		alloc := models.Allocation{
			ID:             uuid.NewString(),
			SubjectID:      subjectID,
			FacultyID:      facultyID,
			AcademicYearID: academicYearID,
			IsActive:       true,
			CreatedAt:      now,
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, `INSERT INTO subject_allocations (id, subject_id, faculty_id, section_id, academic_year_id, is_active, created_at) VALUES (:id, :subject_id, :faculty_id, :section_id, :academic_year_id, :is_active, :created_at)`, &alloc); err != nil {
			return fmt.Errorf("insert general allocation: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace general allocations: %w", err)
	}
	return nil
}

// ListForSection returns allocations covering the section: rows scoped to
// it plus general rows whose subject belongs to the owning batch's current
// semester. A general binding applies to every section sitting in that
// semester, not to other cohorts.
func (r *AllocationRepository) ListForSection(ctx context.Context, sectionID string, activeOnly bool) ([]models.Allocation, error) {
	query := `SELECT sa.id, sa.subject_id, sa.faculty_id, sa.section_id, sa.academic_year_id, sa.is_active, sa.created_at
FROM subject_allocations sa
JOIN subjects s ON s.id = sa.subject_id
WHERE (sa.section_id = $1
   OR (sa.section_id IS NULL AND s.semester = (
        SELECT b.current_semester FROM sections sec JOIN batches b ON b.id = sec.batch_id WHERE sec.id = $1)))`
	if activeOnly {
		query += " AND sa.is_active = TRUE"
	}
	query += " ORDER BY sa.created_at ASC"

	var allocs []models.Allocation
	if err := r.db.SelectContext(ctx, &allocs, query, sectionID); err != nil {
		return nil, fmt.Errorf("list allocations for section: %w", err)
	}
	return allocs, nil
}

// FindByID loads an allocation by id.
func (r *AllocationRepository) FindByID(ctx context.Context, id string) (*models.Allocation, error) {
	query := fmt.Sprintf("SELECT %s FROM subject_allocations WHERE id = $1", allocationColumns)
	var alloc models.Allocation
	if err := r.db.GetContext(ctx, &alloc, query, id); err != nil {
		return nil, err
	}
	return &alloc, nil
}
