package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
)

type batchRepo interface {
	List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error)
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	Create(ctx context.Context, batch *models.Batch) error
	Delete(ctx context.Context, id string) error
}

// CreateBatchRequest registers a new cohort. The batch starts at the
// semester the calendar implies for its start year, with no date window
// recorded yet.
type CreateBatchRequest struct {
	Name      string `json:"name" validate:"required"`
	StartYear int    `json:"start_year" validate:"required,min=2000,max=2100"`
	EndYear   int    `json:"end_year" validate:"required,gtfield=StartYear"`
}

// BatchService manages cohort batches.
type BatchService struct {
	batches  batchRepo
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewBatchService constructs BatchService.
func NewBatchService(batches batchRepo, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{batches: batches, validate: validate, logger: logger, now: time.Now}
}

// List returns batches with pagination metadata.
func (s *BatchService) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, *models.Pagination, error) {
	batches, total, err := s.batches.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return batches, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one batch.
func (s *BatchService) Get(ctx context.Context, id string) (*models.Batch, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, fmt.Errorf("load batch: %w", err)
	}
	return batch, nil
}

// Create registers a cohort, seeding its semester from the calendar so a
// batch created mid-programme lands on the right pointer immediately.
func (s *BatchService) Create(ctx context.Context, req CreateBatchRequest) (*models.Batch, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	batch := &models.Batch{
		Name:            req.Name,
		StartYear:       req.StartYear,
		EndYear:         req.EndYear,
		CurrentSemester: ExpectedSemester(req.StartYear, s.now()),
		DatesPending:    true,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}
	s.logger.Info("batch created",
		zap.String("batch_id", batch.ID),
		zap.String("name", batch.Name),
		zap.Int("semester", batch.CurrentSemester))
	return batch, nil
}

// Delete removes a batch and its dependents.
func (s *BatchService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.batches.Delete(ctx, id)
}
