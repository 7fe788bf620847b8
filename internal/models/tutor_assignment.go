package models

import (
	"strconv"
	"time"
)

// TutorAssignment grants a faculty member verification scope over a span
// of a section's roster. The bounds are compared against a student's
// 1-based ordinal rank when the roster is sorted by ascending roll number,
// not against roll number values. Bounds are kept as raw text; anything
// non-numeric parses to 0, and 0/0 means unrestricted, mirroring the
// legacy portal exactly.
type TutorAssignment struct {
	ID         string    `db:"id" json:"id"`
	FacultyID  string    `db:"faculty_id" json:"faculty_id"`
	BatchID    string    `db:"batch_id" json:"batch_id"`
	SectionID  string    `db:"section_id" json:"section_id"`
	RangeStart string    `db:"range_start" json:"range_start"`
	RangeEnd   string    `db:"range_end" json:"range_end"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Bounds returns the parsed ordinal bounds with the fallback-to-zero
// behaviour for missing or non-numeric values.
func (t TutorAssignment) Bounds() (int, int) {
	return parseBound(t.RangeStart), parseBound(t.RangeEnd)
}

// Unrestricted reports whether the assignment carries no rank restriction.
func (t TutorAssignment) Unrestricted() bool {
	start, end := t.Bounds()
	return start == 0 && end == 0
}

// InRange reports whether a 1-based ordinal rank falls inside the span.
func (t TutorAssignment) InRange(rank int) bool {
	if t.Unrestricted() {
		return true
	}
	start, end := t.Bounds()
	return start <= rank && rank <= end
}

func parseBound(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
