package models

import "time"

// Allocation binds a subject and faculty member to a section for one
// academic year. A nil SectionID marks a general allocation covering every
// section of the owning batch; both general and scoped rows satisfy
// faculty lookups. Allocations are deactivated, never deleted, when a
// batch moves past the subject's semester, so historical attribution of
// who taught what is retained.
type Allocation struct {
	ID             string    `db:"id" json:"id"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	FacultyID      string    `db:"faculty_id" json:"faculty_id"`
	SectionID      *string   `db:"section_id" json:"section_id,omitempty"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// General reports whether the allocation applies to all sections.
func (a Allocation) General() bool {
	return a.SectionID == nil
}

// CoversSection reports whether the allocation satisfies a lookup for the
// given section, the general-or-scoped branch callers must not skip.
func (a Allocation) CoversSection(sectionID string) bool {
	return a.SectionID == nil || *a.SectionID == sectionID
}

// SlotClash describes the existing placement that blocks a timetable write.
type SlotClash struct {
	SlotID      string `db:"slot_id" json:"slot_id"`
	SectionID   string `db:"section_id" json:"section_id"`
	SectionName string `db:"section_name" json:"section_name"`
	Semester    int    `db:"semester" json:"semester"`
	DayOfWeek   int    `db:"day_of_week" json:"day_of_week"`
	Period      int    `db:"period" json:"period"`
	FacultyID   string `db:"faculty_id" json:"faculty_id"`
}

// SlotConflictError is returned when a faculty member is already booked.
type SlotConflictError struct {
	Message string    `json:"message"`
	Clash   SlotClash `json:"clash"`
}

// Error implements the error interface for conflict errors.
func (e *SlotConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
