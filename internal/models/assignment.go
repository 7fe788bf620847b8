package models

import "time"

// Assignment is per-subject coursework feeding the internal composite
// score (submitted/total * 5).
type Assignment struct {
	ID        string    `db:"id" json:"id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	SectionID string    `db:"section_id" json:"section_id"`
	Title     string    `db:"title" json:"title"`
	DueDate   *time.Time `db:"due_date" json:"due_date,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AssignmentSubmission records that a student handed in an assignment.
type AssignmentSubmission struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
}
