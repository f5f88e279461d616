package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campusworks/examportal/internal/exam"
	"github.com/campusworks/examportal/internal/roster"
)

func (h *Handler) InstructorCourses(w http.ResponseWriter, r *http.Request) {
	in, err := h.currentInstructor(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	courses, err := h.roster.Store().ListCoursesByInstructor(r.Context(), in.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// ownCourse loads a course and verifies the caller teaches it.
func (h *Handler) ownCourse(r *http.Request, courseID string) (roster.Course, error) {
	in, err := h.currentInstructor(r)
	if err != nil {
		return roster.Course{}, err
	}
	c, err := h.roster.Store().GetCourse(r.Context(), courseID)
	if err != nil {
		return roster.Course{}, err
	}
	if c.InstructorID != in.ID {
		return roster.Course{}, exam.Errf(exam.KindForbidden, "course belongs to another instructor")
	}
	return c, nil
}

// ownExam verifies the caller teaches the course behind an exam.
func (h *Handler) ownExam(r *http.Request, examID string) (exam.Exam, error) {
	ex, err := h.exams.Exam(r.Context(), examID)
	if err != nil {
		return exam.Exam{}, err
	}
	if _, err := h.ownCourse(r, ex.CourseID); err != nil {
		return exam.Exam{}, err
	}
	return ex, nil
}

func (h *Handler) CourseStudents(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownCourse(r, chi.URLParam(r, "courseID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	enrollments, err := h.roster.Store().ListEnrollmentsByCourse(r.Context(), c.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	type row struct {
		StudentID     string   `json:"student_id"`
		StudentName   string   `json:"student_name"`
		StudentNumber string   `json:"student_number"`
		Grade         *float64 `json:"grade"`
	}
	out := make([]row, 0, len(enrollments))
	for _, e := range enrollments {
		cg, err := h.grades.CourseGrade(r.Context(), e.StudentID, c.ID)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		out = append(out, row{
			StudentID:     e.StudentID,
			StudentName:   e.StudentName,
			StudentNumber: e.StudentNumber,
			Grade:         cg.Grade,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateExam(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownCourse(r, chi.URLParam(r, "courseID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var req struct {
		ExamType        string    `json:"exam_type"`
		WeightPercent   int       `json:"weight_percentage"`
		StartTime       time.Time `json:"start_time"`
		EndTime         time.Time `json:"end_time"`
		DurationMinutes int       `json:"duration_minutes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	ex, err := h.exams.CreateExam(r.Context(), exam.Exam{
		CourseID:        c.ID,
		ExamType:        req.ExamType,
		WeightPercent:   req.WeightPercent,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ex)
}

func (h *Handler) CourseExams(w http.ResponseWriter, r *http.Request) {
	c, err := h.ownCourse(r, chi.URLParam(r, "courseID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	exams, err := h.exams.ExamsByCourse(r.Context(), c.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) DeleteExam(w http.ResponseWriter, r *http.Request) {
	ex, err := h.ownExam(r, chi.URLParam(r, "examID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.exams.DeleteExam(r.Context(), ex.ID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "exam deleted"})
}

func (h *Handler) AddQuestion(w http.ResponseWriter, r *http.Request) {
	ex, err := h.ownExam(r, chi.URLParam(r, "examID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var req struct {
		Text          string `json:"question_text"`
		OptionA       string `json:"option_a"`
		OptionB       string `json:"option_b"`
		OptionC       string `json:"option_c"`
		OptionD       string `json:"option_d"`
		OptionE       string `json:"option_e"`
		CorrectAnswer string `json:"correct_answer"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	q, err := h.exams.AddQuestion(r.Context(), exam.Question{
		ExamID:        ex.ID,
		Text:          req.Text,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		OptionE:       req.OptionE,
		CorrectAnswer: req.CorrectAnswer,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) ExamQuestions(w http.ResponseWriter, r *http.Request) {
	ex, err := h.ownExam(r, chi.URLParam(r, "examID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	questions, err := h.exams.Questions(r.Context(), ex.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.exams.Question(r.Context(), chi.URLParam(r, "questionID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if _, err := h.ownExam(r, q.ExamID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	remaining, err := h.exams.DeleteQuestion(r.Context(), q.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":             "question deleted",
		"remaining_questions": remaining,
		"publishable":         remaining >= exam.MinPoolSize,
	})
}

func (h *Handler) ExamResults(w http.ResponseWriter, r *http.Request) {
	ex, err := h.ownExam(r, chi.URLParam(r, "examID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	res, err := h.grades.ExamResults(r.Context(), ex.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	type row struct {
		AttemptID     string     `json:"attempt_id"`
		StudentID     string     `json:"student_id"`
		StudentName   string     `json:"student_name"`
		StudentNumber string     `json:"student_number"`
		Score         *int       `json:"score"`
		Late          bool       `json:"late"`
		SubmittedAt   *time.Time `json:"submitted_at"`
	}
	rows := make([]row, 0, len(res.Attempts))
	for _, att := range res.Attempts {
		rr := row{
			AttemptID:   att.ID,
			StudentID:   att.StudentID,
			Score:       att.Score,
			Late:        att.Late,
			SubmittedAt: att.SubmittedAt,
		}
		if st, err := h.roster.Store().GetStudent(r.Context(), att.StudentID); err == nil {
			rr.StudentName = st.FullName
			rr.StudentNumber = st.StudentNumber
		}
		rows = append(rows, rr)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exam_id":  ex.ID,
		"attempts": rows,
		"average":  res.Average,
	})
}
