package models

import "time"

// SubjectType distinguishes grading behaviour per subject.
type SubjectType string

const (
	SubjectTheory     SubjectType = "THEORY"
	SubjectLab        SubjectType = "LAB"
	SubjectIntegrated SubjectType = "INTEGRATED"
)

// Subject is a shared catalog entry reused across cohorts. Semester is the
// stage (1..8) the subject belongs to, independent of any one batch.
type Subject struct {
	ID        string      `db:"id" json:"id"`
	Code      string      `db:"code" json:"code"`
	Name      string      `db:"name" json:"name"`
	Credits   float64     `db:"credits" json:"credits"`
	Semester  int         `db:"semester" json:"semester"`
	Type      SubjectType `db:"type" json:"type"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Semester  int
	Type      SubjectType
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
