package exam

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeRoster struct {
	enrolled map[string]bool
}

func (f *fakeRoster) IsEnrolled(_ context.Context, studentID, courseID string) (bool, error) {
	return f.enrolled[studentID+"|"+courseID], nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var (
	windowOpen  = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	windowClose = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
)

// seedService builds a service over the in-memory store with one exam
// (10-minute duration, 9:00-10:00 window) and poolSize questions whose
// correct answer is always "A". The clock starts at window open.
func seedService(t *testing.T, poolSize int) (*Service, Store, *fakeClock, Exam) {
	t.Helper()
	store := NewInMemoryStore()
	clk := &fakeClock{t: windowOpen}
	roster := &fakeRoster{enrolled: map[string]bool{"stu-1|course-1": true, "stu-2|course-1": true}}
	svc := NewService(store, roster, 30*time.Second, clk.Now)

	ex := Exam{
		ID:              "exam-1",
		CourseID:        "course-1",
		ExamType:        TypeMidterm,
		WeightPercent:   40,
		StartTime:       windowOpen,
		EndTime:         windowClose,
		DurationMinutes: 10,
	}
	if err := store.PutExam(context.Background(), ex); err != nil {
		t.Fatalf("seed exam: %v", err)
	}
	for i := 0; i < poolSize; i++ {
		q := Question{
			ID:            fmt.Sprintf("q%02d", i),
			ExamID:        ex.ID,
			Text:          fmt.Sprintf("question %d", i),
			OptionA:       "right",
			OptionB:       "wrong b",
			OptionC:       "wrong c",
			OptionD:       "wrong d",
			OptionE:       "wrong e",
			CorrectAnswer: "A",
		}
		if _, err := store.AddQuestion(context.Background(), q); err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
	return svc, store, clk, ex
}

func TestStartAttempt_WindowEdges(t *testing.T) {
	svc, _, clk, _ := seedService(t, 8)
	ctx := context.Background()

	clk.Set(windowOpen.Add(-1 * time.Second))
	if _, err := svc.StartAttempt(ctx, "stu-1", "exam-1"); !IsKind(err, KindNotYetOpen) {
		t.Fatalf("before window: got %v, want not_yet_open", err)
	}

	clk.Set(windowClose.Add(1 * time.Second))
	if _, err := svc.StartAttempt(ctx, "stu-1", "exam-1"); !IsKind(err, KindWindowClosed) {
		t.Fatalf("after window: got %v, want window_closed", err)
	}

	clk.Set(windowOpen)
	if _, err := svc.StartAttempt(ctx, "stu-1", "exam-1"); err != nil {
		t.Fatalf("at open: %v", err)
	}
}

func TestStartAttempt_PoolGate(t *testing.T) {
	svc, _, _, _ := seedService(t, 4)
	if _, err := svc.StartAttempt(context.Background(), "stu-1", "exam-1"); !IsKind(err, KindExamNotReady) {
		t.Fatalf("got %v, want exam_not_ready", err)
	}

	// The same gate hides the exam from listings.
	list, err := svc.ListForStudent(context.Background(), "stu-1", "course-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("unpublished exam leaked into listing: %+v", list)
	}
}

func TestStartAttempt_NotEnrolled(t *testing.T) {
	svc, _, _, _ := seedService(t, 8)
	if _, err := svc.StartAttempt(context.Background(), "stranger", "exam-1"); !IsKind(err, KindForbidden) {
		t.Fatalf("got %v, want forbidden", err)
	}
}

func TestStartAttempt_UnknownExam(t *testing.T) {
	svc, _, _, _ := seedService(t, 8)
	if _, err := svc.StartAttempt(context.Background(), "stu-1", "nope"); !IsKind(err, KindNotFound) {
		t.Fatalf("got %v, want not_found", err)
	}
}

func TestStartAttempt_SamplesFiveWithoutAnswerKeys(t *testing.T) {
	svc, _, _, _ := seedService(t, 9)
	res, err := svc.StartAttempt(context.Background(), "stu-1", "exam-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(res.Questions) != SampleSize {
		t.Fatalf("got %d questions, want %d", len(res.Questions), SampleSize)
	}
	seen := map[string]bool{}
	for _, q := range res.Questions {
		if q.CorrectAnswer != "" {
			t.Fatalf("correct answer leaked in start payload for %s", q.ID)
		}
		if seen[q.ID] {
			t.Fatalf("question %s sampled twice", q.ID)
		}
		seen[q.ID] = true
	}
	if res.RemainingSeconds != 600 {
		t.Fatalf("remaining = %d, want 600", res.RemainingSeconds)
	}
}

func TestStartAttempt_ResumeKeepsFrozenSample(t *testing.T) {
	svc, _, clk, _ := seedService(t, 8)
	ctx := context.Background()

	first, err := svc.StartAttempt(ctx, "stu-1", "exam-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	clk.Advance(3 * time.Minute)
	second, err := svc.StartAttempt(ctx, "stu-1", "exam-1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !second.Resumed {
		t.Fatalf("expected resumed attempt")
	}
	if second.AttemptID != first.AttemptID {
		t.Fatalf("resume created a new attempt: %s vs %s", second.AttemptID, first.AttemptID)
	}
	if second.RemainingSeconds != 7*60 {
		t.Fatalf("remaining = %d, want %d (recomputed from stored start)", second.RemainingSeconds, 7*60)
	}
	if len(second.Questions) != len(first.Questions) {
		t.Fatalf("sample size changed on resume")
	}
	firstIDs := map[string]bool{}
	for _, q := range first.Questions {
		firstIDs[q.ID] = true
	}
	for _, q := range second.Questions {
		if !firstIDs[q.ID] {
			t.Fatalf("resume re-drew the sample: %s not in original draw", q.ID)
		}
	}
}

func TestStartAttempt_ConcurrentSingleWinner(t *testing.T) {
	svc, _, _, _ := seedService(t, 8)
	ctx := context.Background()

	const workers = 16
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.StartAttempt(ctx, "stu-1", "exam-1")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = res.AttemptID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("two attempts created: %s vs %s", ids[i], ids[0])
		}
	}
}

// answerSample builds an answer map hitting exactly `correct` right
// answers for an attempt whose questions all key on "A".
func answerSample(t *testing.T, store Store, studentID, examID string, correct int) map[string]string {
	t.Helper()
	att, err := store.GetAttemptByStudentExam(context.Background(), studentID, examID)
	if err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	answers := map[string]string{}
	for i, id := range att.QuestionIDs {
		if i < correct {
			answers[id] = "A"
		} else {
			answers[id] = "B"
		}
	}
	return answers
}

func TestSubmitAttempt_ScoreRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		correct int
		want    int
	}{{0, 0}, {3, 60}, {5, 100}} {
		svc, store, _, _ := seedService(t, 8)
		ctx := context.Background()
		if _, err := svc.StartAttempt(ctx, "stu-1", "exam-1"); err != nil {
			t.Fatalf("start: %v", err)
		}
		att, err := svc.SubmitAttempt(ctx, "stu-1", "exam-1", answerSample(t, store, "stu-1", "exam-1", tc.correct))
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if att.Score == nil || *att.Score != tc.want {
			t.Fatalf("%d correct: score = %v, want %d", tc.correct, att.Score, tc.want)
		}
		if att.Status != StatusSubmitted || att.SubmittedAt == nil {
			t.Fatalf("attempt not finalized: %+v", att)
		}
	}
}

func TestSubmitAttempt_IgnoresStaleQuestionIDs(t *testing.T) {
	svc, store, _, _ := seedService(t, 8)
	ctx := context.Background()
	if _, err := svc.StartAttempt(ctx, "stu-1", "exam-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	answers := answerSample(t, store, "stu-1", "exam-1", 2)
	answers["ghost-question"] = "A"
	answers["another-ghost"] = "E"

	att, err := svc.SubmitAttempt(ctx, "stu-1", "exam-1", answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if *att.Score != 40 {
		t.Fatalf("score = %d, want 40 (stale ids must not count)", *att.Score)
	}
	if _, ok := att.Answers["ghost-question"]; ok {
		t.Fatalf("stale answer persisted")
	}
}

func TestSubmitAttempt_Idempotent(t *testing.T) {
	svc, store, _, _ := seedService(t, 8)
	ctx := context.Background()
	if _, err := svc.StartAttempt(ctx, "stu-1", "exam-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	answers := answerSample(t, store, "stu-1", "exam-1", 3)

	first, err := svc.SubmitAttempt(ctx, "stu-1", "exam-1", answers)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	// Second submit with different answers must not re-grade.
	second, err := svc.SubmitAttempt(ctx, "stu-1", "exam-1", answerSample(t, store, "stu-1", "exam-1", 5))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if *second.Score != *first.Score {
		t.Fatalf("resubmission changed score: %d -> %d", *first.Score, *second.Score)
	}
	if !second.SubmittedAt.Equal(*first.SubmittedAt) {
		t.Fatalf("resubmission changed submitted_at")
	}
}

func TestSubmitAttempt_LateWithinGraceIsOnTime(t *testing.T) {
	svc, store, clk, _ := seedService(t, 8)
	ctx := context.Background()
	if _, err := svc.StartAttempt(ctx, "stu-1", "exam-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// 10-minute duration, 3 seconds over: latency on the auto-submit.
	clk.Advance(10*time.Minute + 3*time.Second)
	att, err := svc.SubmitAttempt(ctx, "stu-1", "exam-1", answerSample(t, store, "stu-1", "exam-1", 4))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if att.Late {
		t.Fatalf("3s over duration is inside the grace bound, must not be late")
	}
	if *att.Score != 80 {
		t.Fatalf("late-but-in-grace submission scored %d, want 80", *att.Score)
	}
}

func TestSubmitAttempt_BeyondGraceAcceptedButFlagged(t *testing.T) {
	svc, store, clk, _ := seedService(t, 8)
	ctx := context.Background()
	if _, err := svc.StartAttempt(ctx, "stu-1", "exam-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	clk.Advance(12 * time.Minute)
	att, err := svc.SubmitAttempt(ctx, "stu-1", "exam-1", answerSample(t, store, "stu-1", "exam-1", 5))
	if err != nil {
		t.Fatalf("late submission must be accepted, got %v", err)
	}
	if !att.Late {
		t.Fatalf("submission beyond grace not flagged late")
	}
	if *att.Score != 100 {
		t.Fatalf("late submission scored %d, want 100 (scoring is identical)", *att.Score)
	}
}

func TestSubmitAttempt_NoPriorStart(t *testing.T) {
	svc, _, _, _ := seedService(t, 8)
	if _, err := svc.SubmitAttempt(context.Background(), "stu-1", "exam-1", nil); !IsKind(err, KindNotFound) {
		t.Fatalf("got %v, want not_found", err)
	}
}

func TestStartAttempt_AfterSubmitFails(t *testing.T) {
	svc, store, _, _ := seedService(t, 8)
	ctx := context.Background()
	if _, err := svc.StartAttempt(ctx, "stu-1", "exam-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.SubmitAttempt(ctx, "stu-1", "exam-1", answerSample(t, store, "stu-1", "exam-1", 3)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.StartAttempt(ctx, "stu-1", "exam-1"); !IsKind(err, KindAlreadyCompleted) {
		t.Fatalf("got %v, want already_completed", err)
	}
}

func TestAddQuestion_PoolLocksAtWindowOpen(t *testing.T) {
	svc, _, clk, ex := seedService(t, 8)
	ctx := context.Background()
	q := Question{
		ExamID: ex.ID, Text: "new question",
		OptionA: "1", OptionB: "2", OptionC: "3", OptionD: "4", OptionE: "5",
		CorrectAnswer: "c",
	}

	// Window already open in the seed clock.
	if _, err := svc.AddQuestion(ctx, q); !IsKind(err, KindWindowLocked) {
		t.Fatalf("got %v, want window_locked", err)
	}

	clk.Set(windowOpen.Add(-time.Hour))
	added, err := svc.AddQuestion(ctx, q)
	if err != nil {
		t.Fatalf("pre-window add: %v", err)
	}
	if added.CorrectAnswer != "C" {
		t.Fatalf("correct answer not normalized: %q", added.CorrectAnswer)
	}

	// Duplicate text in the same pool is a conflict.
	q.Text = "  NEW QUESTION "
	if _, err := svc.AddQuestion(ctx, q); !IsKind(err, KindConflict) {
		t.Fatalf("got %v, want conflict on duplicate text", err)
	}
}

func TestAddQuestion_RejectsDuplicateOptions(t *testing.T) {
	svc, _, clk, ex := seedService(t, 8)
	clk.Set(windowOpen.Add(-time.Hour))
	q := Question{
		ExamID: ex.ID, Text: "dup options",
		OptionA: "same", OptionB: "Same", OptionC: "3", OptionD: "4", OptionE: "5",
		CorrectAnswer: "A",
	}
	if _, err := svc.AddQuestion(context.Background(), q); !IsKind(err, KindConflict) {
		t.Fatalf("got %v, want conflict on duplicate options", err)
	}
}

func TestDeleteQuestion_PreWindowOnly(t *testing.T) {
	svc, store, clk, _ := seedService(t, 6)
	ctx := context.Background()

	if _, err := svc.DeleteQuestion(ctx, "q00"); !IsKind(err, KindWindowLocked) {
		t.Fatalf("got %v, want window_locked after start", err)
	}

	clk.Set(windowOpen.Add(-time.Hour))
	remaining, err := svc.DeleteQuestion(ctx, "q00")
	if err != nil {
		t.Fatalf("pre-window delete: %v", err)
	}
	if remaining != 5 {
		t.Fatalf("remaining = %d, want 5", remaining)
	}
	if _, err := store.GetQuestion(ctx, "q00"); !IsKind(err, KindNotFound) {
		t.Fatalf("question still present after delete")
	}
}

func TestListForStudent_AnnotatesAttempts(t *testing.T) {
	svc, store, _, _ := seedService(t, 8)
	ctx := context.Background()
	if _, err := svc.StartAttempt(ctx, "stu-1", "exam-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.SubmitAttempt(ctx, "stu-1", "exam-1", answerSample(t, store, "stu-1", "exam-1", 3)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	list, err := svc.ListForStudent(ctx, "stu-1", "course-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d exams, want 1", len(list))
	}
	row := list[0]
	if !row.HasAttempted || row.Attempt == nil {
		t.Fatalf("attempt not annotated: %+v", row)
	}
	if row.Attempt.Score == nil || *row.Attempt.Score != 60 {
		t.Fatalf("annotated score = %v, want 60", row.Attempt.Score)
	}
	if len(row.Attempt.QuestionIDs) != 0 || len(row.Attempt.Answers) != 0 {
		t.Fatalf("listing leaked per-attempt question/answer detail")
	}

	// The other enrolled student sees no attempt.
	list2, err := svc.ListForStudent(ctx, "stu-2", "course-1")
	if err != nil {
		t.Fatalf("list stu-2: %v", err)
	}
	if list2[0].HasAttempted {
		t.Fatalf("attempt leaked across students")
	}
}

func TestCreateExam_Validation(t *testing.T) {
	svc, _, _, _ := seedService(t, 0)
	ctx := context.Background()
	base := Exam{
		CourseID:        "course-1",
		ExamType:        TypeFinal,
		WeightPercent:   60,
		StartTime:       windowOpen,
		EndTime:         windowClose,
		DurationMinutes: 30,
	}

	if _, err := svc.CreateExam(ctx, base); err != nil {
		t.Fatalf("valid exam rejected: %v", err)
	}

	bad := base
	bad.ExamType = "quiz"
	if _, err := svc.CreateExam(ctx, bad); !IsKind(err, KindInvalid) {
		t.Fatalf("bad type: got %v", err)
	}
	bad = base
	bad.WeightPercent = 0
	if _, err := svc.CreateExam(ctx, bad); !IsKind(err, KindInvalid) {
		t.Fatalf("bad weight: got %v", err)
	}
	bad = base
	bad.EndTime = bad.StartTime
	if _, err := svc.CreateExam(ctx, bad); !IsKind(err, KindInvalid) {
		t.Fatalf("end<=start: got %v", err)
	}
}
