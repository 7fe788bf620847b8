package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
)

type stubBatchCRUDRepo struct {
	batches map[string]*models.Batch
	created *models.Batch
	deleted []string
}

func (s *stubBatchCRUDRepo) List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, int, error) {
	var out []models.Batch
	for _, b := range s.batches {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (s *stubBatchCRUDRepo) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	if b, ok := s.batches[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubBatchCRUDRepo) Create(ctx context.Context, batch *models.Batch) error {
	batch.ID = "b-new"
	s.created = batch
	return nil
}

func (s *stubBatchCRUDRepo) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func TestCreateBatchSeedsSemesterFromCalendar(t *testing.T) {
	repo := &stubBatchCRUDRepo{}
	svc := NewBatchService(repo, nil, zap.NewNop())
	svc.now = func() time.Time { return ts("2025-08-29") }

	batch, err := svc.Create(context.Background(), CreateBatchRequest{
		Name: "2022 CSE", StartYear: 2022, EndYear: 2026,
	})
	require.NoError(t, err)
	// August 2025 puts a 2022 cohort in its seventh semester.
	assert.Equal(t, 7, batch.CurrentSemester)
	assert.True(t, batch.DatesPending)
	require.NotNil(t, repo.created)
}

func TestCreateBatchFreshCohortStartsAtOne(t *testing.T) {
	repo := &stubBatchCRUDRepo{}
	svc := NewBatchService(repo, nil, zap.NewNop())
	svc.now = func() time.Time { return ts("2025-07-01") }

	batch, err := svc.Create(context.Background(), CreateBatchRequest{
		Name: "2025 CSE", StartYear: 2025, EndYear: 2029,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.CurrentSemester)
}

func TestCreateBatchRejectsInvertedYears(t *testing.T) {
	svc := NewBatchService(&stubBatchCRUDRepo{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateBatchRequest{
		Name: "broken", StartYear: 2026, EndYear: 2024,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteBatchUnknownID(t *testing.T) {
	repo := &stubBatchCRUDRepo{}
	svc := NewBatchService(repo, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}
