package models

import "time"

// Batch models a cohort progressing through semesters 1..8.
// CurrentSemester only ever moves forward; SemStartDate/SemEndDate are
// either both set or both null, and DatesPending is raised whenever an
// advance clears the window.
type Batch struct {
	ID              string     `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	StartYear       int        `db:"start_year" json:"start_year"`
	EndYear         int        `db:"end_year" json:"end_year"`
	CurrentSemester int        `db:"current_semester" json:"current_semester"`
	SemStartDate    *time.Time `db:"sem_start_date" json:"sem_start_date,omitempty"`
	SemEndDate      *time.Time `db:"sem_end_date" json:"sem_end_date,omitempty"`
	DatesPending    bool       `db:"dates_pending" json:"dates_pending"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// BatchFilter defines filters supported by list endpoints.
type BatchFilter struct {
	StartYear int
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AcademicYear is a shared calendar year entry owning subject allocations.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Label     string    `db:"label" json:"label"`
	StartYear int       `db:"start_year" json:"start_year"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
