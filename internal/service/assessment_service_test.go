package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-admin-api/internal/models"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
)

type markKey struct {
	scheduleID string
	studentID  string
	subjectID  string
}

type stubMarkRepo struct {
	marks    map[markKey]*models.Mark
	approved map[string]models.Mark
	details  []models.MarkDetail
	counts   models.MarkStatusCounts
	verified int64
	rejected int64
}

func (s *stubMarkRepo) Upsert(ctx context.Context, exec sqlx.ExtContext, mark *models.Mark) error {
	if s.marks == nil {
		s.marks = make(map[markKey]*models.Mark)
	}
	key := markKey{mark.ExamScheduleID, mark.StudentID, mark.SubjectID}
	if existing, ok := s.marks[key]; ok {
		existing.Score = mark.Score
		existing.MaxScore = mark.MaxScore
		existing.Grade = mark.Grade
		existing.Status = mark.Status
		existing.EnteredBy = mark.EnteredBy
		return nil
	}
	clone := *mark
	s.marks[key] = &clone
	return nil
}

func (s *stubMarkRepo) VerifyBySection(ctx context.Context, exec sqlx.ExtContext, scheduleID, subjectID, sectionID, tutorID string) (int64, error) {
	return s.verified, nil
}

func (s *stubMarkRepo) ApproveBySection(ctx context.Context, exec sqlx.ExtContext, scheduleID, subjectID, sectionID, adminID string) (int64, error) {
	return s.verified, nil
}

func (s *stubMarkRepo) RejectBySection(ctx context.Context, exec sqlx.ExtContext, scheduleID, subjectID, sectionID string) (int64, error) {
	return s.rejected, nil
}

func (s *stubMarkRepo) ListDetails(ctx context.Context, scheduleID, subjectID, sectionID string) ([]models.MarkDetail, error) {
	return s.details, nil
}

func (s *stubMarkRepo) StatusCounts(ctx context.Context, subjectID, sectionID, examType string) (models.MarkStatusCounts, error) {
	return s.counts, nil
}

func (s *stubMarkRepo) ApprovedByExamType(ctx context.Context, studentID, subjectID string, examTypes []string) (map[string]models.Mark, error) {
	return s.approved, nil
}

type stubScheduleRepo struct {
	schedules map[string]*models.ExamSchedule
	created   int
}

func (s *stubScheduleRepo) FindOrCreate(ctx context.Context, exec sqlx.ExtContext, batchID, examType, title string) (*models.ExamSchedule, error) {
	if s.schedules == nil {
		s.schedules = make(map[string]*models.ExamSchedule)
	}
	key := batchID + "/" + examType
	if schedule, ok := s.schedules[key]; ok {
		return schedule, nil
	}
	s.created++
	schedule := &models.ExamSchedule{ID: fmt.Sprintf("sched%d", s.created), BatchID: batchID, ExamType: examType, Title: title}
	s.schedules[key] = schedule
	return schedule, nil
}

func (s *stubScheduleRepo) FindByID(ctx context.Context, id string) (*models.ExamSchedule, error) {
	for _, schedule := range s.schedules {
		if schedule.ID == id {
			return schedule, nil
		}
	}
	return nil, sql.ErrNoRows
}

type stubSectionReader struct {
	sections map[string]*models.Section
}

func (s *stubSectionReader) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if section, ok := s.sections[id]; ok {
		return section, nil
	}
	return nil, sql.ErrNoRows
}

type stubSubjectReader struct {
	subjects map[string]*models.Subject
}

func (s *stubSubjectReader) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	for _, subject := range s.subjects {
		if subject.ID == id {
			return subject, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubSubjectReader) FindByCode(ctx context.Context, code string) (*models.Subject, error) {
	if subject, ok := s.subjects[code]; ok {
		return subject, nil
	}
	return nil, sql.ErrNoRows
}

type stubStudentReader struct {
	roster []models.Student
}

func (s *stubStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for i := range s.roster {
		if s.roster[i].ID == id {
			return &s.roster[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubStudentReader) ListBySection(ctx context.Context, sectionID string) ([]models.Student, error) {
	return s.roster, nil
}

func (s *stubStudentReader) CountBySection(ctx context.Context, sectionID string) (int, error) {
	return len(s.roster), nil
}

type stubTutorReader struct {
	assignments map[string]*models.TutorAssignment
}

func (s *stubTutorReader) FindActiveForSection(ctx context.Context, facultyID, sectionID string) (*models.TutorAssignment, error) {
	if a, ok := s.assignments[facultyID+"/"+sectionID]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

type stubAssignmentCounter struct {
	total     int
	submitted int
}

func (s *stubAssignmentCounter) CountBySubjectSection(ctx context.Context, subjectID, sectionID string) (int, error) {
	return s.total, nil
}

func (s *stubAssignmentCounter) CountSubmissions(ctx context.Context, studentID, subjectID string) (int, error) {
	return s.submitted, nil
}

func rosterOf(n int) []models.Student {
	students := make([]models.Student, n)
	for i := range students {
		students[i] = models.Student{
			ID:        fmt.Sprintf("s%d", i+1),
			SectionID: "sec1",
			RollNo:    fmt.Sprintf("23CS%02d", i+1),
			FullName:  fmt.Sprintf("Student %d", i+1),
		}
	}
	return students
}

func newAssessmentService(t *testing.T, marks *stubMarkRepo, schedules *stubScheduleRepo, tutors *stubTutorReader, assignments *stubAssignmentCounter, withDB bool) (*AssessmentService, sqlmock.Sqlmock, func()) {
	sections := &stubSectionReader{sections: map[string]*models.Section{"sec1": {ID: "sec1", BatchID: "b1", Name: "A"}}}
	subjects := &stubSubjectReader{subjects: map[string]*models.Subject{
		"CS301": {ID: "subj1", Code: "CS301", Name: "Operating Systems", Semester: 3, Type: models.SubjectTheory},
		"CS351": {ID: "subj2", Code: "CS351", Name: "Operating Systems Lab", Semester: 3, Type: models.SubjectLab},
	}}
	students := &stubStudentReader{roster: rosterOf(10)}

	var db *sqlx.DB
	var mock sqlmock.Sqlmock
	cleanup := func() {}
	if withDB {
		raw, m, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
		require.NoError(t, err)
		db = sqlx.NewDb(raw, "sqlmock")
		mock = m
		cleanup = func() { raw.Close() }
	}

	svc := NewAssessmentService(db, marks, schedules, sections, subjects, students, tutors, assignments, nil, nil, zap.NewNop())
	return svc, mock, cleanup
}

func TestEnterMarksSecondWriteWins(t *testing.T) {
	marks := &stubMarkRepo{}
	schedules := &stubScheduleRepo{}
	svc, mock, cleanup := newAssessmentService(t, marks, schedules, &stubTutorReader{}, &stubAssignmentCounter{}, true)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	first := EnterMarksRequest{
		SectionID: "sec1", SubjectCode: "CS301", ExamType: models.ExamUT1,
		Entries: []MarkEntry{{StudentID: "s1", Score: 12, MaxScore: 20}},
	}
	_, err := svc.EnterMarks(context.Background(), first, "fac1")
	require.NoError(t, err)

	second := first
	second.Entries = []MarkEntry{{StudentID: "s1", Score: 17, MaxScore: 20}}
	second.Submit = true
	schedule, err := svc.EnterMarks(context.Background(), second, "fac2")
	require.NoError(t, err)

	// Same (batch, exam type) reuses the lazily created schedule.
	assert.Equal(t, 1, schedules.created)

	stored := marks.marks[markKey{schedule.ID, "s1", "subj1"}]
	require.NotNil(t, stored)
	assert.Equal(t, 17.0, stored.Score)
	assert.Equal(t, models.MarkPendingTutor, stored.Status)
	assert.Equal(t, "fac2", stored.EnteredBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnterMarksPerEntryStatusOverride(t *testing.T) {
	marks := &stubMarkRepo{}
	schedules := &stubScheduleRepo{}
	svc, mock, cleanup := newAssessmentService(t, marks, schedules, &stubTutorReader{}, &stubAssignmentCounter{}, true)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	schedule, err := svc.EnterMarks(context.Background(), EnterMarksRequest{
		SectionID: "sec1", SubjectCode: "CS301", ExamType: models.ExamUT1,
		Entries: []MarkEntry{
			{StudentID: "s1", Score: 12, MaxScore: 20},
			{StudentID: "s2", Score: 15, MaxScore: 20, Status: models.MarkPendingTutor},
		},
	}, "fac1")
	require.NoError(t, err)

	// The untagged entry takes the request default, the tagged one keeps
	// its own status.
	assert.Equal(t, models.MarkDraft, marks.marks[markKey{schedule.ID, "s1", "subj1"}].Status)
	assert.Equal(t, models.MarkPendingTutor, marks.marks[markKey{schedule.ID, "s2", "subj1"}].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnterMarksRejectsScoreAboveMax(t *testing.T) {
	svc, _, cleanup := newAssessmentService(t, &stubMarkRepo{}, &stubScheduleRepo{}, &stubTutorReader{}, &stubAssignmentCounter{}, false)
	defer cleanup()

	_, err := svc.EnterMarks(context.Background(), EnterMarksRequest{
		SectionID: "sec1", SubjectCode: "CS301", ExamType: models.ExamUT1,
		Entries: []MarkEntry{{StudentID: "s1", Score: 25, MaxScore: 20}},
	}, "fac1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVerifyMarksRequiresTutorAssignment(t *testing.T) {
	schedules := &stubScheduleRepo{schedules: map[string]*models.ExamSchedule{
		"b1/UT1": {ID: "sched1", BatchID: "b1", ExamType: models.ExamUT1},
	}}
	svc, _, cleanup := newAssessmentService(t, &stubMarkRepo{}, schedules, &stubTutorReader{}, &stubAssignmentCounter{}, false)
	defer cleanup()

	_, err := svc.VerifyMarks(context.Background(), ReviewMarksRequest{
		ExamScheduleID: "sched1", SubjectCode: "CS301", SectionID: "sec1",
	}, "fac1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestVerifyMarksCoversWholeSection(t *testing.T) {
	schedules := &stubScheduleRepo{schedules: map[string]*models.ExamSchedule{
		"b1/UT1": {ID: "sched1", BatchID: "b1", ExamType: models.ExamUT1},
	}}
	tutors := &stubTutorReader{assignments: map[string]*models.TutorAssignment{
		"fac1/sec1": {FacultyID: "fac1", SectionID: "sec1", RangeStart: "3", RangeEnd: "5", IsActive: true},
	}}
	marks := &stubMarkRepo{verified: 10}
	svc, _, cleanup := newAssessmentService(t, marks, schedules, tutors, &stubAssignmentCounter{}, false)
	defer cleanup()

	// The 3..5 range limits the tutor's listing, not the bulk verify.
	n, err := svc.VerifyMarks(context.Background(), ReviewMarksRequest{
		ExamScheduleID: "sched1", SubjectCode: "CS301", SectionID: "sec1",
	}, "fac1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func detailsFor(roster []models.Student) []models.MarkDetail {
	details := make([]models.MarkDetail, len(roster))
	for i, st := range roster {
		details[i] = models.MarkDetail{
			Mark:        models.Mark{ID: fmt.Sprintf("m%d", i+1), StudentID: st.ID},
			RollNo:      st.RollNo,
			StudentName: st.FullName,
		}
	}
	return details
}

func TestListMarksForTutorRangeFilter(t *testing.T) {
	roster := rosterOf(10)
	schedules := &stubScheduleRepo{schedules: map[string]*models.ExamSchedule{
		"b1/UT1": {ID: "sched1", BatchID: "b1", ExamType: models.ExamUT1},
	}}
	tutors := &stubTutorReader{assignments: map[string]*models.TutorAssignment{
		"fac1/sec1": {FacultyID: "fac1", SectionID: "sec1", RangeStart: "3", RangeEnd: "5", IsActive: true},
	}}
	marks := &stubMarkRepo{details: detailsFor(roster)}
	svc, _, cleanup := newAssessmentService(t, marks, schedules, tutors, &stubAssignmentCounter{}, false)
	defer cleanup()

	details, err := svc.ListMarksForTutor(context.Background(), "sched1", "CS301", "sec1", "fac1")
	require.NoError(t, err)
	require.Len(t, details, 3)
	assert.Equal(t, "s3", details[0].StudentID)
	assert.Equal(t, "s5", details[2].StudentID)
}

func TestListMarksForTutorZeroRangeUnrestricted(t *testing.T) {
	roster := rosterOf(10)
	schedules := &stubScheduleRepo{schedules: map[string]*models.ExamSchedule{
		"b1/UT1": {ID: "sched1", BatchID: "b1", ExamType: models.ExamUT1},
	}}
	tutors := &stubTutorReader{assignments: map[string]*models.TutorAssignment{
		"fac1/sec1": {FacultyID: "fac1", SectionID: "sec1", RangeStart: "0", RangeEnd: "0", IsActive: true},
	}}
	marks := &stubMarkRepo{details: detailsFor(roster)}
	svc, _, cleanup := newAssessmentService(t, marks, schedules, tutors, &stubAssignmentCounter{}, false)
	defer cleanup()

	details, err := svc.ListMarksForTutor(context.Background(), "sched1", "CS301", "sec1", "fac1")
	require.NoError(t, err)
	assert.Len(t, details, 10)
}

func TestListMarksForTutorNonNumericBoundsActAsZero(t *testing.T) {
	roster := rosterOf(4)
	schedules := &stubScheduleRepo{schedules: map[string]*models.ExamSchedule{
		"b1/UT1": {ID: "sched1", BatchID: "b1", ExamType: models.ExamUT1},
	}}
	tutors := &stubTutorReader{assignments: map[string]*models.TutorAssignment{
		"fac1/sec1": {FacultyID: "fac1", SectionID: "sec1", RangeStart: "first", RangeEnd: "last", IsActive: true},
	}}
	marks := &stubMarkRepo{details: detailsFor(roster)}
	svc, _, cleanup := newAssessmentService(t, marks, schedules, tutors, &stubAssignmentCounter{}, false)
	defer cleanup()

	details, err := svc.ListMarksForTutor(context.Background(), "sched1", "CS301", "sec1", "fac1")
	require.NoError(t, err)
	assert.Len(t, details, 4)
}

func TestStatusLabelPrecedence(t *testing.T) {
	cases := []struct {
		name   string
		counts models.MarkStatusCounts
		want   string
	}{
		{"no records", models.MarkStatusCounts{TotalSlots: 60}, models.StatusLabelPending},
		{"all approved", models.MarkStatusCounts{TotalRecords: 60, ApprovedCount: 60, TotalSlots: 60}, models.StatusLabelVerified},
		{"forwarded wins over pending tutor", models.MarkStatusCounts{TotalRecords: 60, PendingAdmin: 10, PendingTutor: 20, TotalSlots: 60}, models.StatusLabelForwarded},
		{"pending tutor", models.MarkStatusCounts{TotalRecords: 60, PendingTutor: 60, TotalSlots: 60}, models.StatusLabelSubmitted},
		{"partial entry counts as submitted", models.MarkStatusCounts{TotalRecords: 30, TotalSlots: 60}, models.StatusLabelSubmitted},
		{"drafts only", models.MarkStatusCounts{TotalRecords: 60, TotalSlots: 60}, models.StatusLabelPending},
		{"approved subset with forwarded", models.MarkStatusCounts{TotalRecords: 60, ApprovedCount: 40, PendingAdmin: 20, TotalSlots: 60}, models.StatusLabelForwarded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusLabel(tc.counts))
		})
	}
}

func TestInternalScoreComposite(t *testing.T) {
	approved := map[string]models.Mark{
		models.ExamUT1:   {Score: 18, MaxScore: 20, Status: models.MarkApproved},
		models.ExamUT2:   {Score: 14, MaxScore: 20, Status: models.MarkApproved},
		models.ExamModel: {Score: 90, MaxScore: 100, Status: models.MarkApproved},
	}
	marks := &stubMarkRepo{approved: approved}
	assignments := &stubAssignmentCounter{total: 4, submitted: 3}
	svc, _, cleanup := newAssessmentService(t, marks, &stubScheduleRepo{}, &stubTutorReader{}, assignments, false)
	defer cleanup()

	score, err := svc.InternalScore(context.Background(), "s1", "CS301")
	require.NoError(t, err)
	// UT1 9.0 + UT2 7.0, UT3 absent contributes nothing.
	assert.InDelta(t, 16.0, score.UnitTests, 1e-9)
	assert.InDelta(t, 4.5, score.ModelExam, 1e-9)
	assert.InDelta(t, 3.75, score.AssignmentScore, 1e-9)
	assert.InDelta(t, 24.25, score.Rounded, 1e-9)
}

func TestInternalScoreRejectsLabSubject(t *testing.T) {
	marks := &stubMarkRepo{approved: map[string]models.Mark{
		models.ExamUT1: {Score: 10, MaxScore: 10, Status: models.MarkApproved},
	}}
	svc, _, cleanup := newAssessmentService(t, marks, &stubScheduleRepo{}, &stubTutorReader{}, &stubAssignmentCounter{}, false)
	defer cleanup()

	_, err := svc.InternalScore(context.Background(), "s1", "CS351")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestInternalScoreNoAssignmentsIssued(t *testing.T) {
	marks := &stubMarkRepo{approved: map[string]models.Mark{}}
	svc, _, cleanup := newAssessmentService(t, marks, &stubScheduleRepo{}, &stubTutorReader{}, &stubAssignmentCounter{total: 0}, false)
	defer cleanup()

	score, err := svc.InternalScore(context.Background(), "s1", "CS301")
	require.NoError(t, err)
	assert.Zero(t, score.AssignmentScore)
	assert.Zero(t, score.Rounded)
}
