package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore works against both sqlite (modernc) and postgres (pgx
// stdlib); every statement sticks to the $N placeholder and ON CONFLICT
// syntax both drivers accept.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO exams
		(id, course_id, exam_type, weight_percentage, start_time, end_time, duration_minutes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.CourseID, e.ExamType, e.WeightPercent,
		e.StartTime.UTC().Unix(), e.EndTime.UTC().Unix(), e.DurationMinutes, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

const examColumns = `e.id, e.course_id, e.exam_type, e.weight_percentage, e.start_time, e.end_time, e.duration_minutes, e.created_at,
	(SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id) AS question_count`

func scanExam(row interface{ Scan(...interface{}) error }) (Exam, error) {
	var e Exam
	var start, end int64
	err := row.Scan(&e.ID, &e.CourseID, &e.ExamType, &e.WeightPercent,
		&start, &end, &e.DurationMinutes, &e.CreatedAt, &e.QuestionCount)
	if err != nil {
		return Exam{}, err
	}
	e.StartTime = time.Unix(start, 0).UTC()
	e.EndTime = time.Unix(end, 0).UTC()
	return e, nil
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+examColumns+` FROM exams e WHERE e.id=$1`, id)
	e, err := scanExam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, Errf(KindNotFound, "exam not found")
	}
	if err != nil {
		return Exam{}, fmt.Errorf("get exam: %w", err)
	}
	return e, nil
}

func (s *SQLStore) ListExamsByCourse(ctx context.Context, courseID string) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+examColumns+` FROM exams e WHERE e.course_id=$1 ORDER BY e.start_time`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()
	out := []Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Errf(KindNotFound, "exam not found")
	}
	return nil
}

func (s *SQLStore) AddQuestion(ctx context.Context, q Question) (Question, error) {
	// Duplicate-submission guard: same text (case/space-insensitive)
	// within one pool.
	var dup int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM questions WHERE exam_id=$1 AND LOWER(TRIM(question_text))=LOWER(TRIM($2))`,
		q.ExamID, q.Text).Scan(&dup)
	if err == nil {
		return Question{}, Errf(KindConflict, "this exam already has a question with the same text")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Question{}, fmt.Errorf("check duplicate question: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO questions
		(id, exam_id, question_text, option_a, option_b, option_c, option_d, option_e, correct_answer, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		q.ID, q.ExamID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.OptionE, q.CorrectAnswer, q.CreatedAt)
	if err != nil {
		return Question{}, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

const questionColumns = `id, exam_id, question_text, option_a, option_b, option_c, option_d, option_e, correct_answer, created_at`

func scanQuestion(row interface{ Scan(...interface{}) error }) (Question, error) {
	var q Question
	err := row.Scan(&q.ID, &q.ExamID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.OptionE, &q.CorrectAnswer, &q.CreatedAt)
	return q, err
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, Errf(KindNotFound, "question not found")
	}
	if err != nil {
		return Question{}, fmt.Errorf("get question: %w", err)
	}
	return q, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, examID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE exam_id=$1 ORDER BY created_at, id`, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetQuestionsByIDs(ctx context.Context, ids []string) ([]Question, error) {
	out := []Question{}
	for _, id := range ids {
		q, err := s.GetQuestion(ctx, id)
		if IsKind(err, KindNotFound) {
			continue // pool row removed pre-window; the frozen sample tolerates gaps
		}
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *SQLStore) CountQuestions(ctx context.Context, examID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE exam_id=$1`, examID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Errf(KindNotFound, "question not found")
	}
	return nil
}

// CreateAttempt is the platform's single serialization point. The
// UNIQUE(student_id, exam_id) index plus ON CONFLICT DO NOTHING closes
// the race between concurrent start requests without an application
// lock, so it stays correct across multiple service instances.
func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) (Attempt, bool, error) {
	qids, err := json.Marshal(a.QuestionIDs)
	if err != nil {
		return Attempt{}, false, err
	}
	ans, err := json.Marshal(a.Answers)
	if err != nil {
		return Attempt{}, false, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO attempts
		(id, exam_id, student_id, status, question_ids, answers, late, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (student_id, exam_id) DO NOTHING`,
		a.ID, a.ExamID, a.StudentID, a.Status, string(qids), string(ans), a.Late, a.StartedAt.UTC().Unix())
	if err != nil {
		return Attempt{}, false, fmt.Errorf("insert attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return a, true, nil
	}
	existing, err := s.GetAttemptByStudentExam(ctx, a.StudentID, a.ExamID)
	if err != nil {
		return Attempt{}, false, err
	}
	return existing, false, nil
}

const attemptColumns = `id, exam_id, student_id, status, question_ids, answers, score, late, started_at, submitted_at`

func scanAttempt(row interface{ Scan(...interface{}) error }) (Attempt, error) {
	var a Attempt
	var qids, ans string
	var score sql.NullInt64
	var started int64
	var submitted sql.NullInt64
	err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.Status, &qids, &ans, &score, &a.Late, &started, &submitted)
	if err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(qids), &a.QuestionIDs); err != nil {
		a.QuestionIDs = nil
	}
	if err := json.Unmarshal([]byte(ans), &a.Answers); err != nil {
		a.Answers = map[string]string{}
	}
	if score.Valid {
		v := int(score.Int64)
		a.Score = &v
	}
	a.StartedAt = time.Unix(started, 0).UTC()
	if submitted.Valid {
		t := time.Unix(submitted.Int64, 0).UTC()
		a.SubmittedAt = &t
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, Errf(KindNotFound, "attempt not found")
	}
	if err != nil {
		return Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return a, nil
}

func (s *SQLStore) GetAttemptByStudentExam(ctx context.Context, studentID, examID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE student_id=$1 AND exam_id=$2`, studentID, examID)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, Errf(KindNotFound, "attempt not found")
	}
	if err != nil {
		return Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return a, nil
}

// FinalizeAttempt transitions to submitted exactly once; a concurrent
// double-submit loses the conditional update and reads back the stored
// result instead.
func (s *SQLStore) FinalizeAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	ans, err := json.Marshal(a.Answers)
	if err != nil {
		return Attempt{}, err
	}
	var score interface{}
	if a.Score != nil {
		score = *a.Score
	}
	var submitted interface{}
	if a.SubmittedAt != nil {
		submitted = a.SubmittedAt.UTC().Unix()
	}
	_, err = s.db.ExecContext(ctx, `UPDATE attempts
		SET status=$1, answers=$2, score=$3, late=$4, submitted_at=$5
		WHERE id=$6 AND status=$7`,
		StatusSubmitted, string(ans), score, a.Late, submitted, a.ID, StatusInProgress)
	if err != nil {
		return Attempt{}, fmt.Errorf("finalize attempt: %w", err)
	}
	return s.GetAttempt(ctx, a.ID)
}

func (s *SQLStore) ListSubmittedByExam(ctx context.Context, examID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE exam_id=$1 AND status=$2 ORDER BY submitted_at DESC`,
		examID, StatusSubmitted)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountExams(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exams`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count exams: %w", err)
	}
	return n, nil
}

func (s *SQLStore) CountSubmittedAttempts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE status=$1`, StatusSubmitted).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}
