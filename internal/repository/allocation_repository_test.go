package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockFacultySlotTakesAdvisoryLock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
		WithArgs("fac1", 24).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.LockFacultySlot(context.Background(), nil, "fac1", 2, 4)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForSectionScopesGeneralRowsToCurrentSemester(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAllocationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "subject_id", "faculty_id", "section_id", "academic_year_id", "is_active", "created_at"}).
		AddRow("a1", "subj1", "fac1", "sec1", "ay1", true, time.Now()).
		AddRow("a2", "subj2", "fac2", nil, "ay1", true, time.Now())

	// General rows join through subjects against the owning batch's
	// current semester rather than matching every cohort.
	mock.ExpectQuery(`SELECT(?s).+FROM subject_allocations sa(?s).+JOIN subjects s(?s).+current_semester`).
		WithArgs("sec1").
		WillReturnRows(rows)

	allocs, err := repo.ListForSection(context.Background(), "sec1", true)
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	assert.Nil(t, allocs[1].SectionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
