package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-admin-api/internal/models"
)

// TimetableRepository manages weekly timetable slots.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository builds repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// DeleteAt removes the slot occupying the placement tuple, the replace
// step that keeps at most one slot per (section, day, period, semester).
func (r *TimetableRepository) DeleteAt(ctx context.Context, exec sqlx.ExtContext, sectionID string, day, period, semester int) error {
	const query = `DELETE FROM timetable_slots WHERE section_id = $1 AND day_of_week = $2 AND period = $3 AND semester = $4`
	if _, err := r.exec(exec).ExecContext(ctx, query, sectionID, day, period, semester); err != nil {
		return fmt.Errorf("delete timetable slot: %w", err)
	}
	return nil
}

// Insert stores a new slot.
func (r *TimetableRepository) Insert(ctx context.Context, exec sqlx.ExtContext, slot *models.TimetableSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO timetable_slots (id, section_id, day_of_week, period, semester, allocation_id, room, slot_type, created_at) VALUES (:id, :section_id, :day_of_week, :period, :semester, :allocation_id, :room, :slot_type, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, slot); err != nil {
		return fmt.Errorf("insert timetable slot: %w", err)
	}
	return nil
}

const entryColumns = `ts.id, ts.section_id, ts.day_of_week, ts.period, ts.semester, ts.allocation_id, ts.room, ts.slot_type, ts.created_at,
sub.code AS subject_code, sub.name AS subject_name, sa.faculty_id, f.full_name AS faculty_name`

// GridBySection returns the section's slots for one semester ordered for
// display.
func (r *TimetableRepository) GridBySection(ctx context.Context, sectionID string, semester int) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf(`SELECT %s
FROM timetable_slots ts
LEFT JOIN subject_allocations sa ON sa.id = ts.allocation_id
LEFT JOIN subjects sub ON sub.id = sa.subject_id
LEFT JOIN faculty f ON f.id = sa.faculty_id
WHERE ts.section_id = $1 AND ts.semester = $2
ORDER BY ts.day_of_week ASC, ts.period ASC`, entryColumns)

	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, sectionID, semester); err != nil {
		return nil, fmt.Errorf("list section timetable: %w", err)
	}
	return entries, nil
}

// WeekByFaculty returns slots backed by the faculty member's active
// allocations across all sections.
func (r *TimetableRepository) WeekByFaculty(ctx context.Context, facultyID string) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf(`SELECT %s
FROM timetable_slots ts
JOIN subject_allocations sa ON sa.id = ts.allocation_id
JOIN subjects sub ON sub.id = sa.subject_id
JOIN faculty f ON f.id = sa.faculty_id
WHERE sa.faculty_id = $1 AND sa.is_active = TRUE
ORDER BY ts.day_of_week ASC, ts.period ASC`, entryColumns)

	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, facultyID); err != nil {
		return nil, fmt.Errorf("list faculty timetable: %w", err)
	}
	return entries, nil
}
