package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-admin-api/internal/models"
)

// TutorAssignmentRepository provides persistence for tutor authorization ranges.
type TutorAssignmentRepository struct {
	db *sqlx.DB
}

// NewTutorAssignmentRepository creates a new tutor assignment repository.
func NewTutorAssignmentRepository(db *sqlx.DB) *TutorAssignmentRepository {
	return &TutorAssignmentRepository{db: db}
}

const tutorAssignmentColumns = "id, faculty_id, batch_id, section_id, range_start, range_end, is_active, created_at"

// FindActiveForSection returns the tutor's active range for a section, or
// sql.ErrNoRows when none exists.
func (r *TutorAssignmentRepository) FindActiveForSection(ctx context.Context, facultyID, sectionID string) (*models.TutorAssignment, error) {
	query := fmt.Sprintf("SELECT %s FROM tutor_assignments WHERE faculty_id = $1 AND section_id = $2 AND is_active = TRUE LIMIT 1", tutorAssignmentColumns)
	var assignment models.TutorAssignment
	if err := r.db.GetContext(ctx, &assignment, query, facultyID, sectionID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByFaculty returns every active range held by a tutor.
func (r *TutorAssignmentRepository) ListByFaculty(ctx context.Context, facultyID string) ([]models.TutorAssignment, error) {
	query := fmt.Sprintf("SELECT %s FROM tutor_assignments WHERE faculty_id = $1 AND is_active = TRUE ORDER BY created_at ASC", tutorAssignmentColumns)
	var assignments []models.TutorAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, facultyID); err != nil {
		return nil, fmt.Errorf("list tutor assignments: %w", err)
	}
	return assignments, nil
}

// Create stores a new assignment record.
func (r *TutorAssignmentRepository) Create(ctx context.Context, assignment *models.TutorAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO tutor_assignments (id, faculty_id, batch_id, section_id, range_start, range_end, is_active, created_at) VALUES (:id, :faculty_id, :batch_id, :section_id, :range_start, :range_end, :is_active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create tutor assignment: %w", err)
	}
	return nil
}

// Deactivate retires existing active ranges for the tutor and section so a
// replacement can take effect.
func (r *TutorAssignmentRepository) Deactivate(ctx context.Context, facultyID, sectionID string) error {
	const query = `UPDATE tutor_assignments SET is_active = FALSE WHERE faculty_id = $1 AND section_id = $2 AND is_active = TRUE`
	if _, err := r.db.ExecContext(ctx, query, facultyID, sectionID); err != nil {
		return fmt.Errorf("deactivate tutor assignment: %w", err)
	}
	return nil
}
