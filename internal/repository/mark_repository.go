package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-admin-api/internal/models"
)

// MarkRepository provides persistence for assessment records.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository creates a new mark repository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

func (r *MarkRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const markColumns = "id, exam_schedule_id, student_id, subject_id, score, max_score, grade, status, entered_by, verified_by, approved_by, created_at"

// Upsert writes a mark keyed by (exam schedule, student, subject). An
// existing row is updated in place; the entering faculty id is stamped on
// update as well as insert.
func (r *MarkRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, mark *models.Mark) error {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO marks (id, exam_schedule_id, student_id, subject_id, score, max_score, grade, status, entered_by, verified_by, approved_by, created_at)
VALUES (:id, :exam_schedule_id, :student_id, :subject_id, :score, :max_score, :grade, :status, :entered_by, :verified_by, :approved_by, :created_at)
ON CONFLICT (exam_schedule_id, student_id, subject_id) DO UPDATE
SET score = EXCLUDED.score,
    max_score = EXCLUDED.max_score,
    grade = EXCLUDED.grade,
    status = EXCLUDED.status,
    entered_by = EXCLUDED.entered_by`

	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, mark); err != nil {
		return fmt.Errorf("upsert mark: %w", err)
	}
	return nil
}

// VerifyBySection moves every matching record for the section's students to
// pending_admin and stamps the verifying tutor. Filtering is by section
// membership only, not by the tutor's ordinal range.
func (r *MarkRepository) VerifyBySection(ctx context.Context, exec sqlx.ExtContext, scheduleID, subjectID, sectionID, tutorID string) (int64, error) {
	const query = `UPDATE marks SET status = $4, verified_by = $5
WHERE exam_schedule_id = $1 AND subject_id = $2
  AND student_id IN (SELECT id FROM students WHERE section_id = $3)`

	res, err := r.exec(exec).ExecContext(ctx, query, scheduleID, subjectID, sectionID, models.MarkPendingAdmin, tutorID)
	if err != nil {
		return 0, fmt.Errorf("verify marks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("verify marks rows: %w", err)
	}
	return n, nil
}

// ApproveBySection moves matching records to approved and stamps the admin.
func (r *MarkRepository) ApproveBySection(ctx context.Context, exec sqlx.ExtContext, scheduleID, subjectID, sectionID, adminID string) (int64, error) {
	const query = `UPDATE marks SET status = $4, approved_by = $5
WHERE exam_schedule_id = $1 AND subject_id = $2
  AND student_id IN (SELECT id FROM students WHERE section_id = $3)`

	res, err := r.exec(exec).ExecContext(ctx, query, scheduleID, subjectID, sectionID, models.MarkApproved, adminID)
	if err != nil {
		return 0, fmt.Errorf("approve marks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("approve marks rows: %w", err)
	}
	return n, nil
}

// RejectBySection moves matching non-approved records to rejected. A
// rejected record stays in place; re-entering marks over it through the
// upsert path is the resubmission route.
func (r *MarkRepository) RejectBySection(ctx context.Context, exec sqlx.ExtContext, scheduleID, subjectID, sectionID string) (int64, error) {
	const query = `UPDATE marks SET status = $4
WHERE exam_schedule_id = $1 AND subject_id = $2
  AND status <> 'approved'
  AND student_id IN (SELECT id FROM students WHERE section_id = $3)`

	res, err := r.exec(exec).ExecContext(ctx, query, scheduleID, subjectID, sectionID, models.MarkRejected)
	if err != nil {
		return 0, fmt.Errorf("reject marks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reject marks rows: %w", err)
	}
	return n, nil
}

// ListDetails returns marks joined with roster fields for one schedule,
// subject and section, ordered by roll number.
func (r *MarkRepository) ListDetails(ctx context.Context, scheduleID, subjectID, sectionID string) ([]models.MarkDetail, error) {
	const query = `SELECT m.id, m.exam_schedule_id, m.student_id, m.subject_id, m.score, m.max_score, m.grade, m.status, m.entered_by, m.verified_by, m.approved_by, m.created_at,
st.roll_no, st.full_name AS student_name
FROM marks m
JOIN students st ON st.id = m.student_id
WHERE m.exam_schedule_id = $1 AND m.subject_id = $2 AND st.section_id = $3
ORDER BY st.roll_no ASC`

	var details []models.MarkDetail
	if err := r.db.SelectContext(ctx, &details, query, scheduleID, subjectID, sectionID); err != nil {
		return nil, fmt.Errorf("list mark details: %w", err)
	}
	return details, nil
}

// StatusCounts aggregates record counts for a subject and section. An
// empty examType spans every exam window ("mixed").
func (r *MarkRepository) StatusCounts(ctx context.Context, subjectID, sectionID, examType string) (models.MarkStatusCounts, error) {
	query := `SELECT
COUNT(*) AS total_records,
COUNT(*) FILTER (WHERE m.status = 'approved') AS approved_count,
COUNT(*) FILTER (WHERE m.status = 'pending_admin') AS pending_admin_count,
COUNT(*) FILTER (WHERE m.status = 'pending_tutor') AS pending_tutor_count,
COUNT(DISTINCT m.student_id) AS distinct_students
FROM marks m
JOIN students st ON st.id = m.student_id
JOIN exam_schedules es ON es.id = m.exam_schedule_id
WHERE m.subject_id = $1 AND st.section_id = $2`
	args := []interface{}{subjectID, sectionID}
	if examType != "" {
		query += " AND es.exam_type = $3"
		args = append(args, examType)
	}

	var counts models.MarkStatusCounts
	if err := r.db.GetContext(ctx, &counts, query, args...); err != nil {
		return models.MarkStatusCounts{}, fmt.Errorf("mark status counts: %w", err)
	}
	return counts, nil
}

// ApprovedByExamType returns the student's approved marks for the subject
// keyed by exam category. Categories without an approved record are absent.
func (r *MarkRepository) ApprovedByExamType(ctx context.Context, studentID, subjectID string, examTypes []string) (map[string]models.Mark, error) {
	query, args, err := sqlx.In(`SELECT m.id, m.exam_schedule_id, m.student_id, m.subject_id, m.score, m.max_score, m.grade, m.status, m.entered_by, m.verified_by, m.approved_by, m.created_at, es.exam_type
FROM marks m
JOIN exam_schedules es ON es.id = m.exam_schedule_id
WHERE m.student_id = ? AND m.subject_id = ? AND m.status = 'approved' AND es.exam_type IN (?)`, studentID, subjectID, examTypes)
	if err != nil {
		return nil, fmt.Errorf("build approved marks query: %w", err)
	}
	query = r.db.Rebind(query)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approved marks: %w", err)
	}
	defer rows.Close()

	result := make(map[string]models.Mark)
	for rows.Next() {
		var row struct {
			models.Mark
			ExamType string `db:"exam_type"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan approved mark: %w", err)
		}
		result[row.ExamType] = row.Mark
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approved marks: %w", err)
	}
	return result, nil
}
