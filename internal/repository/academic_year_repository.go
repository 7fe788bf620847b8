package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-admin-api/internal/models"
)

// AcademicYearRepository provides persistence for academic years.
type AcademicYearRepository struct {
	db *sqlx.DB
}

// NewAcademicYearRepository creates a new academic year repository.
func NewAcademicYearRepository(db *sqlx.DB) *AcademicYearRepository {
	return &AcademicYearRepository{db: db}
}

// FindCurrent returns the academic year flagged as current.
func (r *AcademicYearRepository) FindCurrent(ctx context.Context) (*models.AcademicYear, error) {
	const query = `SELECT id, label, start_year, is_current, created_at FROM academic_years WHERE is_current = TRUE LIMIT 1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query); err != nil {
		return nil, err
	}
	return &year, nil
}

// List returns academic years newest first.
func (r *AcademicYearRepository) List(ctx context.Context) ([]models.AcademicYear, error) {
	const query = `SELECT id, label, start_year, is_current, created_at FROM academic_years ORDER BY start_year DESC`
	var years []models.AcademicYear
	if err := r.db.SelectContext(ctx, &years, query); err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	return years, nil
}

// Create stores a new academic year. When marked current, previous years are
// unflagged first.
func (r *AcademicYearRepository) Create(ctx context.Context, year *models.AcademicYear) error {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	if year.CreatedAt.IsZero() {
		year.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin academic year tx: %w", err)
	}
	defer tx.Rollback()

	if year.IsCurrent {
		if _, err := tx.ExecContext(ctx, `UPDATE academic_years SET is_current = FALSE WHERE is_current = TRUE`); err != nil {
			return fmt.Errorf("unset current academic year: %w", err)
		}
	}

	const query = `INSERT INTO academic_years (id, label, start_year, is_current, created_at) VALUES (:id, :label, :start_year, :is_current, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, year); err != nil {
		return fmt.Errorf("create academic year: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit academic year: %w", err)
	}
	return nil
}
