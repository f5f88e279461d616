package exam

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service enforces the attempt lifecycle: window checks, one attempt
// per (student, exam), frozen samples, grading at submission. Time is
// always taken from the injected clock; nothing a client reports about
// elapsed time is ever trusted.
type Service struct {
	store  Store
	roster Enrollments
	grace  time.Duration
	now    func() time.Time
}

func NewService(store Store, roster Enrollments, grace time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if grace < 0 {
		grace = 0
	}
	return &Service{store: store, roster: roster, grace: grace, now: now}
}

// StartResult is the student-facing payload for a started (or resumed)
// attempt. Questions are sanitized; the correct answer never leaves the
// server here.
type StartResult struct {
	AttemptID        string     `json:"attempt_id"`
	Exam             Exam       `json:"exam"`
	Questions        []Question `json:"questions"`
	StartTime        time.Time  `json:"start_time"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	Resumed          bool       `json:"resumed"`
}

// StartAttempt applies the preconditions in spec order: existence,
// enrollment, pool gate, window, uniqueness. A second start for an
// in-progress attempt resumes it; a submitted one fails.
func (s *Service) StartAttempt(ctx context.Context, studentID, examID string) (*StartResult, error) {
	ex, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.roster.IsEnrolled(ctx, studentID, ex.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, Errf(KindForbidden, "not enrolled in this course")
	}
	if !ex.Published() {
		return nil, Errf(KindExamNotReady, "exam needs at least %d questions", MinPoolSize)
	}
	now := s.now().UTC()
	if now.Before(ex.StartTime) {
		return nil, Errf(KindNotYetOpen, "exam opens at %s", ex.StartTime.Format(time.RFC3339))
	}
	if now.After(ex.EndTime) {
		return nil, Errf(KindWindowClosed, "exam closed at %s", ex.EndTime.Format(time.RFC3339))
	}

	existing, err := s.store.GetAttemptByStudentExam(ctx, studentID, examID)
	switch {
	case err == nil:
		return s.resume(ctx, ex, existing, now)
	case !IsKind(err, KindNotFound):
		return nil, err
	}

	pool, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	sampled, err := DrawSample(pool, SampleSize)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(sampled))
	for i, q := range sampled {
		ids[i] = q.ID
	}
	att, created, err := s.store.CreateAttempt(ctx, Attempt{
		ID:          uuid.NewString(),
		ExamID:      examID,
		StudentID:   studentID,
		Status:      StatusInProgress,
		QuestionIDs: ids,
		Answers:     map[string]string{},
		StartedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost a concurrent-start race; the stored attempt wins.
		return s.resume(ctx, ex, att, now)
	}
	return &StartResult{
		AttemptID:        att.ID,
		Exam:             ex,
		Questions:        sanitize(sampled),
		StartTime:        att.StartedAt,
		RemainingSeconds: att.RemainingSeconds(ex, now),
	}, nil
}

func (s *Service) resume(ctx context.Context, ex Exam, att Attempt, now time.Time) (*StartResult, error) {
	if att.Submitted() {
		return nil, Errf(KindAlreadyCompleted, "exam already completed")
	}
	qs, err := s.questionsInSampleOrder(ctx, att)
	if err != nil {
		return nil, err
	}
	return &StartResult{
		AttemptID:        att.ID,
		Exam:             ex,
		Questions:        sanitize(qs),
		StartTime:        att.StartedAt,
		RemainingSeconds: att.RemainingSeconds(ex, now),
		Resumed:          true,
	}, nil
}

// SubmitAttempt grades and finalizes an in-progress attempt. Answers
// outside the frozen sample are dropped, not rejected. A submission
// past the duration-plus-grace deadline is still accepted and scored,
// but flagged late for audit. Resubmission returns the stored attempt
// without re-grading.
func (s *Service) SubmitAttempt(ctx context.Context, studentID, examID string, answers map[string]string) (Attempt, error) {
	att, err := s.store.GetAttemptByStudentExam(ctx, studentID, examID)
	if err != nil {
		return Attempt{}, err
	}
	if att.Submitted() {
		return att, nil
	}
	ex, err := s.store.GetExam(ctx, att.ExamID)
	if err != nil {
		return Attempt{}, err
	}
	qs, err := s.questionsInSampleOrder(ctx, att)
	if err != nil {
		return Attempt{}, err
	}

	sampled := map[string]bool{}
	for _, id := range att.QuestionIDs {
		sampled[id] = true
	}
	kept := map[string]string{}
	for id, sel := range answers {
		if !sampled[id] {
			continue // stale client state
		}
		if letter := NormalizeLetter(sel); letter != "" {
			kept[id] = letter
		}
	}

	now := s.now().UTC()
	score := Score(qs, kept)
	allowed := time.Duration(ex.DurationMinutes)*time.Minute + s.grace

	att.Answers = kept
	att.Score = &score
	att.Status = StatusSubmitted
	att.SubmittedAt = &now
	att.Late = now.Sub(att.StartedAt) > allowed
	return s.store.FinalizeAttempt(ctx, att)
}

// CreateExam validates and stores a new exam definition.
func (s *Service) CreateExam(ctx context.Context, e Exam) (Exam, error) {
	if e.ExamType != TypeMidterm && e.ExamType != TypeFinal {
		return Exam{}, Errf(KindInvalid, "exam type must be midterm or final")
	}
	if e.WeightPercent < 1 || e.WeightPercent > 100 {
		return Exam{}, Errf(KindInvalid, "weight must be between 1 and 100")
	}
	if !e.EndTime.After(e.StartTime) {
		return Exam{}, Errf(KindInvalid, "end time must be after start time")
	}
	if e.DurationMinutes < 1 {
		return Exam{}, Errf(KindInvalid, "duration must be at least one minute")
	}
	e.ID = uuid.NewString()
	e.StartTime = e.StartTime.UTC()
	e.EndTime = e.EndTime.UTC()
	e.CreatedAt = s.now().UTC().Unix()
	if err := s.store.PutExam(ctx, e); err != nil {
		return Exam{}, err
	}
	return e, nil
}

// Exam returns an exam definition with its pool count.
func (s *Service) Exam(ctx context.Context, examID string) (Exam, error) {
	return s.store.GetExam(ctx, examID)
}

// ExamsByCourse is the instructor view: every exam, published or not.
func (s *Service) ExamsByCourse(ctx context.Context, courseID string) ([]Exam, error) {
	return s.store.ListExamsByCourse(ctx, courseID)
}

func (s *Service) DeleteExam(ctx context.Context, examID string) error {
	return s.store.DeleteExam(ctx, examID)
}

// Question returns a pool row including the answer key; callers gate
// access to instructors.
func (s *Service) Question(ctx context.Context, questionID string) (Question, error) {
	return s.store.GetQuestion(ctx, questionID)
}

// Questions returns an exam's full pool including answer keys.
func (s *Service) Questions(ctx context.Context, examID string) ([]Question, error) {
	if _, err := s.store.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	return s.store.ListQuestions(ctx, examID)
}

// AddQuestion grows an exam's pool. Pools lock once the window opens.
func (s *Service) AddQuestion(ctx context.Context, q Question) (Question, error) {
	if err := ValidateQuestion(q); err != nil {
		return Question{}, err
	}
	ex, err := s.store.GetExam(ctx, q.ExamID)
	if err != nil {
		return Question{}, err
	}
	if !s.now().UTC().Before(ex.StartTime) {
		return Question{}, Errf(KindWindowLocked, "question pool is locked once the exam starts")
	}
	q.ID = uuid.NewString()
	q.CorrectAnswer = NormalizeLetter(q.CorrectAnswer)
	q.CreatedAt = s.now().UTC().Unix()
	return s.store.AddQuestion(ctx, q)
}

// DeleteQuestion shrinks a pool pre-window and reports the remaining
// pool size so callers can warn when an exam drops below the gate.
func (s *Service) DeleteQuestion(ctx context.Context, questionID string) (remaining int, err error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return 0, err
	}
	ex, err := s.store.GetExam(ctx, q.ExamID)
	if err != nil {
		return 0, err
	}
	if !s.now().UTC().Before(ex.StartTime) {
		return 0, Errf(KindWindowLocked, "question pool is locked once the exam starts")
	}
	if err := s.store.DeleteQuestion(ctx, questionID); err != nil {
		return 0, err
	}
	return s.store.CountQuestions(ctx, q.ExamID)
}

// StudentExam is an exam row as a student sees it in a course listing.
type StudentExam struct {
	Exam
	IsAvailable  bool     `json:"is_available"`
	HasAttempted bool     `json:"has_attempted"`
	Attempt      *Attempt `json:"attempt,omitempty"`
}

// ListForStudent returns the course's exams a student may know about:
// unpublished exams (pool below the gate) are omitted entirely, the
// same rule StartAttempt applies.
func (s *Service) ListForStudent(ctx context.Context, studentID, courseID string) ([]StudentExam, error) {
	enrolled, err := s.roster.IsEnrolled(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, Errf(KindForbidden, "not enrolled in this course")
	}
	exams, err := s.store.ListExamsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	out := []StudentExam{}
	for _, ex := range exams {
		if !ex.Published() {
			continue
		}
		row := StudentExam{Exam: ex, IsAvailable: ex.Open(now)}
		att, err := s.store.GetAttemptByStudentExam(ctx, studentID, ex.ID)
		switch {
		case err == nil:
			row.HasAttempted = true
			att.QuestionIDs = nil
			att.Answers = nil
			row.Attempt = &att
		case !IsKind(err, KindNotFound):
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Result returns the submitted attempt for a (student, exam) pair.
func (s *Service) Result(ctx context.Context, studentID, examID string) (Attempt, error) {
	att, err := s.store.GetAttemptByStudentExam(ctx, studentID, examID)
	if err != nil {
		return Attempt{}, err
	}
	if !att.Submitted() {
		return Attempt{}, Errf(KindNotFound, "no completed attempt for this exam")
	}
	return att, nil
}

func (s *Service) questionsInSampleOrder(ctx context.Context, att Attempt) ([]Question, error) {
	qs, err := s.store.GetQuestionsByIDs(ctx, att.QuestionIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	ordered := make([]Question, 0, len(att.QuestionIDs))
	for _, id := range att.QuestionIDs {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}

func sanitize(qs []Question) []Question {
	out := make([]Question, len(qs))
	for i, q := range qs {
		out[i] = q.Sanitized()
	}
	return out
}
