package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
)

type stubAcademicYearStore struct {
	current *models.AcademicYear
	years   []models.AcademicYear
	created *models.AcademicYear
}

func (s *stubAcademicYearStore) FindCurrent(ctx context.Context) (*models.AcademicYear, error) {
	if s.current == nil {
		return nil, sql.ErrNoRows
	}
	return s.current, nil
}

func (s *stubAcademicYearStore) List(ctx context.Context) ([]models.AcademicYear, error) {
	return s.years, nil
}

func (s *stubAcademicYearStore) Create(ctx context.Context, year *models.AcademicYear) error {
	year.ID = "y-new"
	s.created = year
	return nil
}

func TestAcademicYearCurrentMissing(t *testing.T) {
	svc := NewAcademicYearService(&stubAcademicYearStore{}, nil, zap.NewNop())

	_, err := svc.Current(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAcademicYearCreate(t *testing.T) {
	store := &stubAcademicYearStore{}
	svc := NewAcademicYearService(store, nil, zap.NewNop())

	year, err := svc.Create(context.Background(), CreateAcademicYearRequest{
		Label: "2025-26", StartYear: 2025, IsCurrent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "y-new", year.ID)
	require.NotNil(t, store.created)
	assert.True(t, store.created.IsCurrent)
}

func TestAcademicYearCreateRejectsBadStartYear(t *testing.T) {
	svc := NewAcademicYearService(&stubAcademicYearStore{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateAcademicYearRequest{
		Label: "bad", StartYear: 1825,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
