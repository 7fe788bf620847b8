package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
)

type markRepo interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, mark *models.Mark) error
	VerifyBySection(ctx context.Context, exec sqlx.ExtContext, scheduleID, subjectID, sectionID, tutorID string) (int64, error)
	ApproveBySection(ctx context.Context, exec sqlx.ExtContext, scheduleID, subjectID, sectionID, adminID string) (int64, error)
	RejectBySection(ctx context.Context, exec sqlx.ExtContext, scheduleID, subjectID, sectionID string) (int64, error)
	ListDetails(ctx context.Context, scheduleID, subjectID, sectionID string) ([]models.MarkDetail, error)
	StatusCounts(ctx context.Context, subjectID, sectionID, examType string) (models.MarkStatusCounts, error)
	ApprovedByExamType(ctx context.Context, studentID, subjectID string, examTypes []string) (map[string]models.Mark, error)
}

type examScheduleRepo interface {
	FindOrCreate(ctx context.Context, exec sqlx.ExtContext, batchID, examType, title string) (*models.ExamSchedule, error)
	FindByID(ctx context.Context, id string) (*models.ExamSchedule, error)
}

type assessmentSectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type assessmentSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	FindByCode(ctx context.Context, code string) (*models.Subject, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListBySection(ctx context.Context, sectionID string) ([]models.Student, error)
	CountBySection(ctx context.Context, sectionID string) (int, error)
}

type tutorAssignmentReader interface {
	FindActiveForSection(ctx context.Context, facultyID, sectionID string) (*models.TutorAssignment, error)
}

type assignmentCounter interface {
	CountBySubjectSection(ctx context.Context, subjectID, sectionID string) (int, error)
	CountSubmissions(ctx context.Context, studentID, subjectID string) (int, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const statusReportTTL = time.Minute

// MarkEntry is one student's score within an EnterMarksRequest. Status,
// when set, overrides the request-level default for that record.
type MarkEntry struct {
	StudentID string            `json:"student_id" validate:"required"`
	Score     float64           `json:"score" validate:"min=0"`
	MaxScore  float64           `json:"max_score" validate:"required,gt=0"`
	Grade     *string           `json:"grade"`
	Status    models.MarkStatus `json:"status" validate:"omitempty,oneof=draft pending_tutor pending_admin approved rejected"`
}

// EnterMarksRequest records scores for one section, subject and exam
// category. Submit moves the records straight to the tutor's queue;
// otherwise they stay as drafts. Entries carrying their own status tag
// keep it.
type EnterMarksRequest struct {
	SectionID   string      `json:"section_id" validate:"required"`
	SubjectCode string      `json:"subject_code" validate:"required"`
	ExamType    string      `json:"exam_type" validate:"required,oneof=UT1 UT2 UT3 MODEL SEMESTER"`
	Submit      bool        `json:"submit"`
	Entries     []MarkEntry `json:"entries" validate:"required,min=1,dive"`
}

// ReviewMarksRequest identifies a section/subject scope within one exam
// schedule for the tutor and admin transitions.
type ReviewMarksRequest struct {
	ExamScheduleID string `json:"exam_schedule_id" validate:"required"`
	SubjectCode    string `json:"subject_code" validate:"required"`
	SectionID      string `json:"section_id" validate:"required"`
}

// unit test and model exam categories feeding the internal composite.
var internalExamTypes = []string{models.ExamUT1, models.ExamUT2, models.ExamUT3, models.ExamModel}

// AssessmentService runs the three-stage mark approval pipeline: faculty
// enter scores, the section tutor verifies, an admin approves. Records are
// keyed per (exam schedule, student, subject) and written as upserts, so
// re-entry after a rejection reuses the same rows.
type AssessmentService struct {
	db          *sqlx.DB
	marks       markRepo
	schedules   examScheduleRepo
	sections    assessmentSectionReader
	subjects    assessmentSubjectReader
	students    studentReader
	tutors      tutorAssignmentReader
	assignments assignmentCounter
	cache       reportCache
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewAssessmentService constructs AssessmentService.
func NewAssessmentService(db *sqlx.DB, marks markRepo, schedules examScheduleRepo, sections assessmentSectionReader, subjects assessmentSubjectReader, students studentReader, tutors tutorAssignmentReader, assignments assignmentCounter, cache reportCache, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentService{
		db:          db,
		marks:       marks,
		schedules:   schedules,
		sections:    sections,
		subjects:    subjects,
		students:    students,
		tutors:      tutors,
		assignments: assignments,
		cache:       cache,
		validate:    validate,
		logger:      logger,
	}
}

func statusReportKey(subjectCode, sectionID, examType string) string {
	if examType == "" {
		examType = "mixed"
	}
	return fmt.Sprintf("marks:status:%s:%s:%s", subjectCode, sectionID, examType)
}

// invalidateStatusReport drops cached reports for the scope. Failures are
// logged and swallowed; a stale label for one TTL beats failing the write.
func (s *AssessmentService) invalidateStatusReport(ctx context.Context, subjectCode, sectionID string) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("marks:status:%s:%s:*", subjectCode, sectionID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("invalidate status report cache", zap.String("pattern", pattern), zap.Error(err))
	}
}

// EnterMarks upserts score records for a section and exam category. The
// exam schedule for (batch, exam type) is created lazily on first entry.
// The entering faculty id is stamped on every written row, including
// updates of rows someone else entered earlier.
func (s *AssessmentService) EnterMarks(ctx context.Context, req EnterMarksRequest, enteredBy string) (*models.ExamSchedule, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marks payload")
	}
	for _, entry := range req.Entries {
		if entry.Score > entry.MaxScore {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score exceeds max for student %s", entry.StudentID))
		}
	}

	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, fmt.Errorf("load section: %w", err)
	}
	subject, err := s.subjects.FindByCode(ctx, req.SubjectCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found", req.SubjectCode))
		}
		return nil, fmt.Errorf("load subject: %w", err)
	}

	defaultStatus := models.MarkDraft
	if req.Submit {
		defaultStatus = models.MarkPendingTutor
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin marks tx: %w", err)
	}
	defer tx.Rollback()

	schedule, err := s.schedules.FindOrCreate(ctx, tx, section.BatchID, req.ExamType, req.ExamType)
	if err != nil {
		return nil, err
	}

	for _, entry := range req.Entries {
		status := defaultStatus
		if entry.Status != "" {
			status = entry.Status
		}
		mark := &models.Mark{
			ExamScheduleID: schedule.ID,
			StudentID:      entry.StudentID,
			SubjectID:      subject.ID,
			Score:          entry.Score,
			MaxScore:       entry.MaxScore,
			Grade:          entry.Grade,
			Status:         status,
			EnteredBy:      enteredBy,
		}
		if err := s.marks.Upsert(ctx, tx, mark); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit marks: %w", err)
	}

	s.invalidateStatusReport(ctx, req.SubjectCode, req.SectionID)
	s.logger.Info("marks entered",
		zap.String("section_id", req.SectionID),
		zap.String("subject_code", req.SubjectCode),
		zap.String("exam_type", req.ExamType),
		zap.Int("count", len(req.Entries)),
		zap.Bool("submitted", req.Submit))
	return schedule, nil
}

// VerifyMarks moves a section's records to the admin queue. Only the
// section's active tutor may verify, and the transition covers every
// record for the section regardless of the tutor's roster range; the
// range restricts what the tutor sees, not what the bulk transition
// touches.
func (s *AssessmentService) VerifyMarks(ctx context.Context, req ReviewMarksRequest, tutorFacultyID string) (int64, error) {
	scope, err := s.resolveReviewScope(ctx, req)
	if err != nil {
		return 0, err
	}

	if _, err := s.tutors.FindActiveForSection(ctx, tutorFacultyID, req.SectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrForbidden, "no active tutor assignment for this section")
		}
		return 0, fmt.Errorf("load tutor assignment: %w", err)
	}

	n, err := s.marks.VerifyBySection(ctx, nil, scope.scheduleID, scope.subjectID, req.SectionID, tutorFacultyID)
	if err != nil {
		return 0, err
	}
	s.invalidateStatusReport(ctx, req.SubjectCode, req.SectionID)
	s.logger.Info("marks verified",
		zap.String("section_id", req.SectionID),
		zap.String("subject_code", req.SubjectCode),
		zap.Int64("count", n))
	return n, nil
}

// ApproveMarks finalises a section's records.
func (s *AssessmentService) ApproveMarks(ctx context.Context, req ReviewMarksRequest, adminUserID string) (int64, error) {
	scope, err := s.resolveReviewScope(ctx, req)
	if err != nil {
		return 0, err
	}

	n, err := s.marks.ApproveBySection(ctx, nil, scope.scheduleID, scope.subjectID, req.SectionID, adminUserID)
	if err != nil {
		return 0, err
	}
	s.invalidateStatusReport(ctx, req.SubjectCode, req.SectionID)
	s.logger.Info("marks approved",
		zap.String("section_id", req.SectionID),
		zap.String("subject_code", req.SubjectCode),
		zap.Int64("count", n))
	return n, nil
}

// RejectMarks sends a section's non-approved records back to the entering
// faculty. Resubmission happens through EnterMarks, which upserts over the
// rejected rows.
func (s *AssessmentService) RejectMarks(ctx context.Context, req ReviewMarksRequest) (int64, error) {
	scope, err := s.resolveReviewScope(ctx, req)
	if err != nil {
		return 0, err
	}

	n, err := s.marks.RejectBySection(ctx, nil, scope.scheduleID, scope.subjectID, req.SectionID)
	if err != nil {
		return 0, err
	}
	s.invalidateStatusReport(ctx, req.SubjectCode, req.SectionID)
	s.logger.Info("marks rejected",
		zap.String("section_id", req.SectionID),
		zap.String("subject_code", req.SubjectCode),
		zap.Int64("count", n))
	return n, nil
}

type reviewScope struct {
	scheduleID string
	subjectID  string
}

func (s *AssessmentService) resolveReviewScope(ctx context.Context, req ReviewMarksRequest) (reviewScope, error) {
	if err := s.validate.Struct(req); err != nil {
		return reviewScope{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	schedule, err := s.schedules.FindByID(ctx, req.ExamScheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reviewScope{}, appErrors.Clone(appErrors.ErrNotFound, "exam schedule not found")
		}
		return reviewScope{}, fmt.Errorf("load exam schedule: %w", err)
	}
	subject, err := s.subjects.FindByCode(ctx, req.SubjectCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reviewScope{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found", req.SubjectCode))
		}
		return reviewScope{}, fmt.Errorf("load subject: %w", err)
	}
	return reviewScope{scheduleID: schedule.ID, subjectID: subject.ID}, nil
}

// ListMarks returns the section's records for one schedule and subject,
// ordered by roll number.
func (s *AssessmentService) ListMarks(ctx context.Context, scheduleID, subjectCode, sectionID string) ([]models.MarkDetail, error) {
	subject, err := s.subjects.FindByCode(ctx, subjectCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found", subjectCode))
		}
		return nil, fmt.Errorf("load subject: %w", err)
	}
	return s.marks.ListDetails(ctx, scheduleID, subject.ID, sectionID)
}

// ListMarksForTutor returns the section's records restricted to the
// tutor's roster range. Ranks are 1-based ordinals over the roster sorted
// by ascending roll number; a 0/0 range means unrestricted.
func (s *AssessmentService) ListMarksForTutor(ctx context.Context, scheduleID, subjectCode, sectionID, tutorFacultyID string) ([]models.MarkDetail, error) {
	assignment, err := s.tutors.FindActiveForSection(ctx, tutorFacultyID, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no active tutor assignment for this section")
		}
		return nil, fmt.Errorf("load tutor assignment: %w", err)
	}

	details, err := s.ListMarks(ctx, scheduleID, subjectCode, sectionID)
	if err != nil {
		return nil, err
	}
	if assignment.Unrestricted() {
		return details, nil
	}

	ranks, err := s.ordinalRanks(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	filtered := details[:0]
	for _, d := range details {
		if assignment.InRange(ranks[d.StudentID]) {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// ordinalRanks maps student ids to 1-based positions in the roll-number
// sorted roster.
func (s *AssessmentService) ordinalRanks(ctx context.Context, sectionID string) (map[string]int, error) {
	roster, err := s.students.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	ranks := make(map[string]int, len(roster))
	for i, st := range roster {
		ranks[st.ID] = i + 1
	}
	return ranks, nil
}

// StatusReport aggregates mark progress for a subject and section into a
// single label. An empty examType mixes every exam window into one scope.
func (s *AssessmentService) StatusReport(ctx context.Context, subjectCode, sectionID, examType string) (*models.MarkStatusReport, error) {
	key := statusReportKey(subjectCode, sectionID, examType)
	if s.cache != nil {
		var cached models.MarkStatusReport
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("status report cache read", zap.String("key", key), zap.Error(err))
		}
	}

	subject, err := s.subjects.FindByCode(ctx, subjectCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found", subjectCode))
		}
		return nil, fmt.Errorf("load subject: %w", err)
	}

	counts, err := s.marks.StatusCounts(ctx, subject.ID, sectionID, examType)
	if err != nil {
		return nil, err
	}
	counts.TotalSlots, err = s.students.CountBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	report := &models.MarkStatusReport{
		SubjectCode:      subject.Code,
		SubjectName:      subject.Name,
		SectionID:        sectionID,
		ExamType:         examType,
		MarkStatusCounts: counts,
		Label:            StatusLabel(counts),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, statusReportTTL); err != nil {
			s.logger.Warn("status report cache write", zap.String("key", key), zap.Error(err))
		}
	}
	return report, nil
}

// StatusLabel collapses raw counts into the display label. The guards run
// in strict precedence order; with mixed statuses the first matching label
// wins.
func StatusLabel(c models.MarkStatusCounts) string {
	switch {
	case c.TotalRecords == 0:
		return models.StatusLabelPending
	case c.ApprovedCount == c.TotalRecords:
		return models.StatusLabelVerified
	case c.PendingAdmin > 0:
		return models.StatusLabelForwarded
	case c.PendingTutor > 0 || c.TotalRecords < c.TotalSlots:
		return models.StatusLabelSubmitted
	default:
		return models.StatusLabelPending
	}
}

// InternalScore computes the composite internal assessment for one student
// and a theory subject. Only approved records count: each unit test
// contributes score/max scaled to 10, the model exam contributes score/max
// scaled to 5, and assignments contribute submitted/total scaled to 5
// (zero when no assignments were issued). The rounded total is
// display-only. Lab and integrated subjects have no internal composite.
func (s *AssessmentService) InternalScore(ctx context.Context, studentID, subjectCode string) (*models.InternalScore, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	subject, err := s.subjects.FindByCode(ctx, subjectCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found", subjectCode))
		}
		return nil, fmt.Errorf("load subject: %w", err)
	}
	if subject.Type != models.SubjectTheory {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("internal score is defined for theory subjects only, %s is %s", subject.Code, subject.Type))
	}

	approved, err := s.marks.ApprovedByExamType(ctx, studentID, subject.ID, internalExamTypes)
	if err != nil {
		return nil, err
	}

	score := &models.InternalScore{StudentID: studentID, SubjectID: subject.ID}
	for _, ut := range []string{models.ExamUT1, models.ExamUT2, models.ExamUT3} {
		if m, ok := approved[ut]; ok && m.MaxScore > 0 {
			score.UnitTests += m.Score / m.MaxScore * 10
		}
	}
	if m, ok := approved[models.ExamModel]; ok && m.MaxScore > 0 {
		score.ModelExam = m.Score / m.MaxScore * 5
	}

	totalAssignments, err := s.assignments.CountBySubjectSection(ctx, subject.ID, student.SectionID)
	if err != nil {
		return nil, err
	}
	if totalAssignments > 0 {
		submitted, err := s.assignments.CountSubmissions(ctx, studentID, subject.ID)
		if err != nil {
			return nil, err
		}
		score.AssignmentScore = float64(submitted) / float64(totalAssignments) * 5
	}

	score.Total = score.UnitTests + score.ModelExam + score.AssignmentScore
	score.Rounded = math.Round(score.Total*100) / 100
	return score, nil
}
