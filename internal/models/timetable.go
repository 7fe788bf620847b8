package models

import "time"

// TimetableSlot is one weekly period for a section. Slots are versioned by
// semester so older timetables survive a batch advancing. A nil
// AllocationID marks an explicitly free period. At most one slot exists
// per (section, day, period, semester); placements replace rather than
// duplicate.
type TimetableSlot struct {
	ID           string    `db:"id" json:"id"`
	SectionID    string    `db:"section_id" json:"section_id"`
	DayOfWeek    int       `db:"day_of_week" json:"day_of_week"`
	Period       int       `db:"period" json:"period"`
	Semester     int       `db:"semester" json:"semester"`
	AllocationID *string   `db:"allocation_id" json:"allocation_id,omitempty"`
	Room         *string   `db:"room" json:"room,omitempty"`
	SlotType     string    `db:"slot_type" json:"slot_type"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TimetableEntry is a slot joined with its allocation for display.
type TimetableEntry struct {
	TimetableSlot
	SubjectCode *string `db:"subject_code" json:"subject_code,omitempty"`
	SubjectName *string `db:"subject_name" json:"subject_name,omitempty"`
	FacultyID   *string `db:"faculty_id" json:"faculty_id,omitempty"`
	FacultyName *string `db:"faculty_name" json:"faculty_name,omitempty"`
}
