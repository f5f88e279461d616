package exam

import (
	"strings"
	"time"
)

const (
	// MinPoolSize is the number of pooled questions an exam needs before
	// students can see or start it.
	MinPoolSize = 5
	// SampleSize is the number of questions drawn into every attempt.
	SampleSize = 5
)

const (
	TypeMidterm = "midterm"
	TypeFinal   = "final"
)

const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
)

type Exam struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course_id"`
	ExamType        string    `json:"exam_type"`
	WeightPercent   int       `json:"weight_percentage"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       int64     `json:"created_at,omitempty"`

	// QuestionCount is filled by listings; not a stored column.
	QuestionCount int `json:"question_count"`
}

// Published reports whether the exam is visible to students at all.
func (e Exam) Published() bool { return e.QuestionCount >= MinPoolSize }

// Open reports whether now falls inside the exam window.
func (e Exam) Open(now time.Time) bool {
	return !now.Before(e.StartTime) && !now.After(e.EndTime)
}

type Question struct {
	ID            string `json:"id"`
	ExamID        string `json:"exam_id"`
	Text          string `json:"question_text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	OptionE       string `json:"option_e"`
	CorrectAnswer string `json:"correct_answer,omitempty"` // stripped in student payloads
	CreatedAt     int64  `json:"created_at,omitempty"`
}

func (q Question) options() [5]string {
	return [5]string{q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.OptionE}
}

// Sanitized returns a copy safe to send to students.
func (q Question) Sanitized() Question {
	q.CorrectAnswer = ""
	return q
}

type Attempt struct {
	ID          string            `json:"id"`
	ExamID      string            `json:"exam_id"`
	StudentID   string            `json:"student_id"`
	Status      string            `json:"status"`
	QuestionIDs []string          `json:"question_ids"`
	Answers     map[string]string `json:"answers"` // question id -> selected letter
	Score       *int              `json:"score"`
	Late        bool              `json:"late"`
	StartedAt   time.Time         `json:"started_at"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
}

func (a Attempt) Submitted() bool { return a.Status == StatusSubmitted }

// RemainingSeconds computes the authoritative time left, clamped at zero.
// The stored StartedAt is the only input; client elapsed time is never used.
func (a Attempt) RemainingSeconds(e Exam, now time.Time) int64 {
	deadline := a.StartedAt.Add(time.Duration(e.DurationMinutes) * time.Minute)
	left := int64(deadline.Sub(now) / time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// NormalizeLetter uppercases and trims a selected option; returns "" when
// the value is not one of A-E.
func NormalizeLetter(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "A", "B", "C", "D", "E":
		return s
	}
	return ""
}

// ValidateQuestion enforces the authoring gates: non-empty text, five
// distinct non-empty options, a valid correct letter.
func ValidateQuestion(q Question) *Error {
	if strings.TrimSpace(q.Text) == "" {
		return Errf(KindInvalid, "question text required")
	}
	if NormalizeLetter(q.CorrectAnswer) == "" {
		return Errf(KindInvalid, "correct answer must be A, B, C, D or E")
	}
	seen := map[string]string{}
	letters := [5]string{"A", "B", "C", "D", "E"}
	for i, opt := range q.options() {
		v := strings.ToLower(strings.TrimSpace(opt))
		if v == "" {
			return Errf(KindInvalid, "option %s must not be empty", letters[i])
		}
		if prev, dup := seen[v]; dup {
			return Errf(KindConflict, "options %s and %s are identical", prev, letters[i])
		}
		seen[v] = letters[i]
	}
	return nil
}
