package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-admin-api/internal/models"
)

// BatchRepository handles persistence for cohort batches.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository instantiates a batch repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const batchColumns = "id, name, start_year, end_year, current_semester, sem_start_date, sem_end_date, dates_pending, created_at, updated_at"

// List returns batches matching provided filters.
func (r *BatchRepository) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error) {
	base := "FROM batches WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.StartYear > 0 {
		conditions = append(conditions, fmt.Sprintf("start_year = $%d", len(args)+1))
		args = append(args, filter.StartYear)
	}
	if filter.Active != nil {
		if *filter.Active {
			conditions = append(conditions, "current_semester < 8")
		} else {
			conditions = append(conditions, "current_semester >= 8")
		}
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"start_year": true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "start_year"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", batchColumns, base, sortBy, order, size, offset)

	var batches []models.Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	return batches, total, nil
}

// FindByID loads a batch by identifier.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	query := fmt.Sprintf("SELECT %s FROM batches WHERE id = $1", batchColumns)
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// FindByIDForUpdate loads a batch inside a transaction holding a row lock,
// serializing the check-then-act in the progression sweep.
func (r *BatchRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Batch, error) {
	query := fmt.Sprintf("SELECT %s FROM batches WHERE id = $1 FOR UPDATE", batchColumns)
	var batch models.Batch
	if err := tx.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListIDs returns every batch id, oldest cohorts first, for sweep iteration.
func (r *BatchRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM batches ORDER BY start_year ASC, name ASC`); err != nil {
		return nil, fmt.Errorf("list batch ids: %w", err)
	}
	return ids, nil
}

// Create inserts a new batch record.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now
	if batch.CurrentSemester < 1 {
		batch.CurrentSemester = 1
	}

	const query = `INSERT INTO batches (id, name, start_year, end_year, current_semester, sem_start_date, sem_end_date, dates_pending, created_at, updated_at) VALUES (:id, :name, :start_year, :end_year, :current_semester, :sem_start_date, :sem_end_date, :dates_pending, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// ApplyAdvance moves the semester pointer forward, clears the window and
// raises dates_pending. Only ever called with a target above the stored
// semester; the monotonic invariant is re-checked in SQL as a guard.
func (r *BatchRepository) ApplyAdvance(ctx context.Context, exec sqlx.ExtContext, id string, target int) error {
	const query = `UPDATE batches SET current_semester = $2, sem_start_date = NULL, sem_end_date = NULL, dates_pending = TRUE, updated_at = $3 WHERE id = $1 AND current_semester < $2`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, target, time.Now().UTC()); err != nil {
		return fmt.Errorf("advance batch: %w", err)
	}
	return nil
}

// SetWindow stores the semester date window and clears dates_pending.
func (r *BatchRepository) SetWindow(ctx context.Context, id string, start, end time.Time) error {
	const query = `UPDATE batches SET sem_start_date = $2, sem_end_date = $3, dates_pending = FALSE, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, start, end, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set batch window: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set batch window: batch %s not found", id)
	}
	return nil
}

// Delete removes a batch permanently. Sections and allocations cascade at
// the schema level.
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}
