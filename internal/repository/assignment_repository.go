package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AssignmentRepository provides counts over coursework assignments, used by
// the composite internal score.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// CountBySubjectSection returns how many assignments were issued for the
// subject in the section.
func (r *AssignmentRepository) CountBySubjectSection(ctx context.Context, subjectID, sectionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments WHERE subject_id = $1 AND section_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, subjectID, sectionID); err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return count, nil
}

// CountSubmissions returns how many of the subject's assignments the student
// has submitted.
func (r *AssignmentRepository) CountSubmissions(ctx context.Context, studentID, subjectID string) (int, error) {
	const query = `SELECT COUNT(*) FROM assignment_submissions s
JOIN assignments a ON a.id = s.assignment_id
WHERE s.student_id = $1 AND a.subject_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, subjectID); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}
