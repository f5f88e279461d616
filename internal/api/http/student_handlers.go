package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusworks/examportal/internal/audit"
	"github.com/campusworks/examportal/internal/exam"
	"github.com/campusworks/examportal/internal/roster"
)

// StudentCourses lists the caller's courses with their current grade
// in each.
func (h *Handler) StudentCourses(w http.ResponseWriter, r *http.Request) {
	st, err := h.currentStudent(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	courses, err := h.roster.Store().ListCoursesByStudent(r.Context(), st.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	type row struct {
		roster.Course
		Grade *float64 `json:"course_grade"`
	}
	out := make([]row, 0, len(courses))
	for _, c := range courses {
		cg, err := h.grades.CourseGrade(r.Context(), st.ID, c.ID)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		out = append(out, row{Course: c, Grade: cg.Grade})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) StudentCourseExams(w http.ResponseWriter, r *http.Request) {
	st, err := h.currentStudent(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	exams, err := h.exams.ListForStudent(r.Context(), st.ID, chi.URLParam(r, "courseID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	st, err := h.currentStudent(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	res, err := h.exams.StartAttempt(r.Context(), st.ID, chi.URLParam(r, "examID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !res.Resumed {
		h.record(r, audit.ActionAttemptStarted, res.Exam.ID, fmt.Sprintf(`{"attempt_id":%q}`, res.AttemptID))
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	st, err := h.currentStudent(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var req struct {
		Answers map[string]string `json:"answers"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	att, err := h.exams.SubmitAttempt(r.Context(), st.ID, chi.URLParam(r, "examID"), req.Answers)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.record(r, audit.ActionAttemptSubmitted, att.ExamID,
		fmt.Sprintf(`{"attempt_id":%q,"late":%t}`, att.ID, att.Late))
	h.writeAttemptWithAverage(w, r, att)
}

// writeAttemptWithAverage returns an attempt alongside the class
// average over all submitted attempts for the same exam.
func (h *Handler) writeAttemptWithAverage(w http.ResponseWriter, r *http.Request, att exam.Attempt) {
	res, err := h.grades.ExamResults(r.Context(), att.ExamID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		exam.Attempt
		ExamAverage *float64 `json:"exam_average"`
	}{Attempt: att, ExamAverage: res.Average})
}

func (h *Handler) AttemptResult(w http.ResponseWriter, r *http.Request) {
	st, err := h.currentStudent(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	att, err := h.exams.Result(r.Context(), st.ID, chi.URLParam(r, "examID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeAttemptWithAverage(w, r, att)
}
