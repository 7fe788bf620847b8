package models

import "time"

// Exam categories grouping assessment records.
const (
	ExamUT1      = "UT1"
	ExamUT2      = "UT2"
	ExamUT3      = "UT3"
	ExamModel    = "MODEL"
	ExamSemester = "SEMESTER"
)

// ExamSchedule groups marks for one batch and exam category. At most one
// schedule exists per (batch, exam type); it is created lazily on first use.
type ExamSchedule struct {
	ID        string     `db:"id" json:"id"`
	BatchID   string     `db:"batch_id" json:"batch_id"`
	Title     string     `db:"title" json:"title"`
	ExamType  string     `db:"exam_type" json:"exam_type"`
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// MarkStatus is the approval stage of one assessment record.
type MarkStatus string

// Marks move draft -> pending_tutor -> pending_admin -> approved.
// Rejected is terminal; re-entering marks over a rejected record (the
// upsert path) is the resubmission route.
const (
	MarkDraft        MarkStatus = "draft"
	MarkPendingTutor MarkStatus = "pending_tutor"
	MarkPendingAdmin MarkStatus = "pending_admin"
	MarkApproved     MarkStatus = "approved"
	MarkRejected     MarkStatus = "rejected"
)

// Valid reports whether the status is a known stage.
func (s MarkStatus) Valid() bool {
	switch s {
	case MarkDraft, MarkPendingTutor, MarkPendingAdmin, MarkApproved, MarkRejected:
		return true
	}
	return false
}

// Mark is one student's score for one subject within one exam schedule.
// Unique per (exam schedule, student, subject); writes are upserts.
type Mark struct {
	ID             string     `db:"id" json:"id"`
	ExamScheduleID string     `db:"exam_schedule_id" json:"exam_schedule_id"`
	StudentID      string     `db:"student_id" json:"student_id"`
	SubjectID      string     `db:"subject_id" json:"subject_id"`
	Score          float64    `db:"score" json:"score"`
	MaxScore       float64    `db:"max_score" json:"max_score"`
	Grade          *string    `db:"grade" json:"grade,omitempty"`
	Status         MarkStatus `db:"status" json:"status"`
	EnteredBy      string     `db:"entered_by" json:"entered_by"`
	VerifiedBy     *string    `db:"verified_by" json:"verified_by,omitempty"`
	ApprovedBy     *string    `db:"approved_by" json:"approved_by,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// MarkDetail joins a mark with roster fields for listings.
type MarkDetail struct {
	Mark
	RollNo      string `db:"roll_no" json:"roll_no"`
	StudentName string `db:"student_name" json:"student_name"`
}

// Aggregated status labels in precedence order.
const (
	StatusLabelPending   = "Pending"
	StatusLabelSubmitted = "Submitted"
	StatusLabelForwarded = "Forwarded"
	StatusLabelVerified  = "Verified"
)

// MarkStatusCounts holds the raw counts behind a status label.
type MarkStatusCounts struct {
	TotalRecords     int `db:"total_records" json:"total_records"`
	ApprovedCount    int `db:"approved_count" json:"approved_count"`
	PendingAdmin     int `db:"pending_admin_count" json:"pending_admin_count"`
	PendingTutor     int `db:"pending_tutor_count" json:"pending_tutor_count"`
	DistinctStudents int `db:"distinct_students" json:"distinct_students"`
	TotalSlots       int `json:"total_slots"`
}

// MarkStatusReport is the aggregation payload for one subject/section scope.
type MarkStatusReport struct {
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	SectionID   string `json:"section_id"`
	ExamType    string `json:"exam_type"`
	MarkStatusCounts
	Label string `json:"label"`
}

// InternalScore is the derived composite for one student and subject.
// Rounded values are for display; Total carries the unrounded sum.
type InternalScore struct {
	StudentID       string  `json:"student_id"`
	SubjectID       string  `json:"subject_id"`
	UnitTests       float64 `json:"unit_tests"`
	ModelExam       float64 `json:"model_exam"`
	AssignmentScore float64 `json:"assignment_score"`
	Total           float64 `json:"-"`
	Rounded         float64 `json:"total"`
}
