package exam

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memoryStore mirrors SQLStore semantics for tests and single-node dev
// runs, including the atomic (student, exam) conditional insert.
type memoryStore struct {
	mu        sync.Mutex
	exams     map[string]Exam
	questions map[string]Question
	attempts  map[string]Attempt // key: studentID + "|" + examID
}

func NewInMemoryStore() Store {
	return &memoryStore{
		exams:     map[string]Exam{},
		questions: map[string]Question{},
		attempts:  map[string]Attempt{},
	}
}

func attemptKey(studentID, examID string) string { return studentID + "|" + examID }

func (m *memoryStore) poolSize(examID string) int {
	n := 0
	for _, q := range m.questions {
		if q.ExamID == examID {
			n++
		}
	}
	return n
}

func (m *memoryStore) PutExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[e.ID] = e
	return nil
}

func (m *memoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, Errf(KindNotFound, "exam not found")
	}
	e.QuestionCount = m.poolSize(id)
	return e, nil
}

func (m *memoryStore) ListExamsByCourse(_ context.Context, courseID string) ([]Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Exam{}
	for _, e := range m.exams {
		if e.CourseID == courseID {
			e.QuestionCount = m.poolSize(e.ID)
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memoryStore) DeleteExam(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[id]; !ok {
		return Errf(KindNotFound, "exam not found")
	}
	delete(m.exams, id)
	for qid, q := range m.questions {
		if q.ExamID == id {
			delete(m.questions, qid)
		}
	}
	for k, a := range m.attempts {
		if a.ExamID == id {
			delete(m.attempts, k)
		}
	}
	return nil
}

func (m *memoryStore) AddQuestion(_ context.Context, q Question) (Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := strings.ToLower(strings.TrimSpace(q.Text))
	for _, existing := range m.questions {
		if existing.ExamID == q.ExamID && strings.ToLower(strings.TrimSpace(existing.Text)) == want {
			return Question{}, Errf(KindConflict, "this exam already has a question with the same text")
		}
	}
	m.questions[q.ID] = q
	return q, nil
}

func (m *memoryStore) GetQuestion(_ context.Context, id string) (Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, Errf(KindNotFound, "question not found")
	}
	return q, nil
}

func (m *memoryStore) ListQuestions(_ context.Context, examID string) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Question{}
	for _, q := range m.questions {
		if q.ExamID == examID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) GetQuestionsByIDs(_ context.Context, ids []string) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Question{}
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memoryStore) CountQuestions(_ context.Context, examID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poolSize(examID), nil
}

func (m *memoryStore) DeleteQuestion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return Errf(KindNotFound, "question not found")
	}
	delete(m.questions, id)
	return nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt) (Attempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := attemptKey(a.StudentID, a.ExamID)
	if existing, ok := m.attempts[k]; ok {
		return existing, false, nil
	}
	m.attempts[k] = a
	return a, true, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ID == id {
			return a, nil
		}
	}
	return Attempt{}, Errf(KindNotFound, "attempt not found")
}

func (m *memoryStore) GetAttemptByStudentExam(_ context.Context, studentID, examID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptKey(studentID, examID)]
	if !ok {
		return Attempt{}, Errf(KindNotFound, "attempt not found")
	}
	return a, nil
}

func (m *memoryStore) FinalizeAttempt(_ context.Context, a Attempt) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := attemptKey(a.StudentID, a.ExamID)
	stored, ok := m.attempts[k]
	if !ok {
		return Attempt{}, Errf(KindNotFound, "attempt not found")
	}
	if stored.Status == StatusSubmitted {
		return stored, nil
	}
	m.attempts[k] = a
	return a, nil
}

func (m *memoryStore) ListSubmittedByExam(_ context.Context, examID string) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if a.ExamID == examID && a.Status == StatusSubmitted {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) CountExams(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.exams), nil
}

func (m *memoryStore) CountSubmittedAttempts(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.Status == StatusSubmitted {
			n++
		}
	}
	return n, nil
}
