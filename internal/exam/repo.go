package exam

import "context"

// Store is the durable home of exams, question pools and attempts.
// Implementations must make CreateAttempt a single conditional insert:
// the (student, exam) uniqueness check and the insert happen atomically
// at the storage layer, not in application code.
type Store interface {
	PutExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error)
	ListExamsByCourse(ctx context.Context, courseID string) ([]Exam, error)
	DeleteExam(ctx context.Context, id string) error

	// AddQuestion rejects duplicate question text within one pool.
	AddQuestion(ctx context.Context, q Question) (Question, error)
	GetQuestion(ctx context.Context, id string) (Question, error)
	ListQuestions(ctx context.Context, examID string) ([]Question, error)
	GetQuestionsByIDs(ctx context.Context, ids []string) ([]Question, error)
	CountQuestions(ctx context.Context, examID string) (int, error)
	DeleteQuestion(ctx context.Context, id string) error

	// CreateAttempt inserts a unless an attempt for the same
	// (student, exam) pair already exists, in which case the stored
	// attempt is returned with created=false.
	CreateAttempt(ctx context.Context, a Attempt) (att Attempt, created bool, err error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	GetAttemptByStudentExam(ctx context.Context, studentID, examID string) (Attempt, error)
	// FinalizeAttempt persists the submitted state: answers, score,
	// submitted_at, late flag.
	FinalizeAttempt(ctx context.Context, a Attempt) (Attempt, error)
	ListSubmittedByExam(ctx context.Context, examID string) ([]Attempt, error)

	CountExams(ctx context.Context) (int, error)
	CountSubmittedAttempts(ctx context.Context) (int, error)
}

// Enrollments is the slice of the roster the exam core needs.
type Enrollments interface {
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
}
