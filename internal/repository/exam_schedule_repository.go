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

// ExamScheduleRepository manages the lazily-created exam windows.
type ExamScheduleRepository struct {
	db *sqlx.DB
}

// NewExamScheduleRepository builds repository.
func NewExamScheduleRepository(db *sqlx.DB) *ExamScheduleRepository {
	return &ExamScheduleRepository{db: db}
}

func (r *ExamScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const examScheduleColumns = "id, batch_id, title, exam_type, start_date, end_date, created_at"

// FindOrCreate returns the schedule for (batch, exam type), inserting it on
// first use. The insert is ON CONFLICT DO NOTHING so two racing callers
// converge on the same row.
func (r *ExamScheduleRepository) FindOrCreate(ctx context.Context, exec sqlx.ExtContext, batchID, examType, title string) (*models.ExamSchedule, error) {
	target := r.exec(exec)
	query := fmt.Sprintf("SELECT %s FROM exam_schedules WHERE batch_id = $1 AND exam_type = $2 LIMIT 1", examScheduleColumns)

	var schedule models.ExamSchedule
	err := sqlx.GetContext(ctx, target, &schedule, query, batchID, examType)
	if err == nil {
		return &schedule, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("find exam schedule: %w", err)
	}

	fresh := models.ExamSchedule{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		Title:     title,
		ExamType:  examType,
		CreatedAt: time.Now().UTC(),
	}
	const insert = `INSERT INTO exam_schedules (id, batch_id, title, exam_type, start_date, end_date, created_at) VALUES (:id, :batch_id, :title, :exam_type, :start_date, :end_date, :created_at) ON CONFLICT (batch_id, exam_type) DO NOTHING`
	if _, err := sqlx.NamedExecContext(ctx, target, insert, &fresh); err != nil {
		return nil, fmt.Errorf("create exam schedule: %w", err)
	}

	if err := sqlx.GetContext(ctx, target, &schedule, query, batchID, examType); err != nil {
		return nil, fmt.Errorf("reload exam schedule: %w", err)
	}
	return &schedule, nil
}

// FindByID loads a schedule by id.
func (r *ExamScheduleRepository) FindByID(ctx context.Context, id string) (*models.ExamSchedule, error) {
	query := fmt.Sprintf("SELECT %s FROM exam_schedules WHERE id = $1", examScheduleColumns)
	var schedule models.ExamSchedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListByBatch returns the batch's exam windows ordered by creation.
func (r *ExamScheduleRepository) ListByBatch(ctx context.Context, batchID string) ([]models.ExamSchedule, error) {
	query := fmt.Sprintf("SELECT %s FROM exam_schedules WHERE batch_id = $1 ORDER BY created_at ASC", examScheduleColumns)
	var schedules []models.ExamSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, batchID); err != nil {
		return nil, fmt.Errorf("list exam schedules: %w", err)
	}
	return schedules, nil
}
