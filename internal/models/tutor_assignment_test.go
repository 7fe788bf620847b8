package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTutorAssignmentBounds(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
		wantStart  int
		wantEnd    int
	}{
		{"numeric", "3", "5", 3, 5},
		{"empty acts as zero", "", "", 0, 0},
		{"non-numeric acts as zero", "first", "last", 0, 0},
		{"mixed", "2", "oops", 2, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := TutorAssignment{RangeStart: tc.start, RangeEnd: tc.end}
			start, end := a.Bounds()
			assert.Equal(t, tc.wantStart, start)
			assert.Equal(t, tc.wantEnd, end)
		})
	}
}

func TestTutorAssignmentInRange(t *testing.T) {
	restricted := TutorAssignment{RangeStart: "3", RangeEnd: "5"}
	assert.False(t, restricted.InRange(2))
	assert.True(t, restricted.InRange(3))
	assert.True(t, restricted.InRange(5))
	assert.False(t, restricted.InRange(6))

	unrestricted := TutorAssignment{RangeStart: "0", RangeEnd: "0"}
	assert.True(t, unrestricted.Unrestricted())
	assert.True(t, unrestricted.InRange(1))
	assert.True(t, unrestricted.InRange(999))
}
