package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusworks/examportal/internal/grades"
)

func (h *Handler) DepartmentStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.grades.DepartmentStatistics(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) AllCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.roster.Store().ListCourses(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) AllStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.roster.Store().ListStudents(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

// CourseDetails is the drill-down behind a statistics row: the course,
// its summary figures, its exams, and every enrolled student with
// their grade.
func (h *Handler) CourseDetails(w http.ResponseWriter, r *http.Request) {
	c, err := h.roster.Store().GetCourse(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	stats, err := h.grades.CourseStatistics(r.Context(), grades.CourseInfo{ID: c.ID, Code: c.Code, Name: c.Name})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	exams, err := h.exams.ExamsByCourse(r.Context(), c.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	enrollments, err := h.roster.Store().ListEnrollmentsByCourse(r.Context(), c.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	type studentRow struct {
		StudentID     string   `json:"student_id"`
		StudentName   string   `json:"student_name"`
		StudentNumber string   `json:"student_number"`
		Grade         *float64 `json:"grade"`
	}
	students := make([]studentRow, 0, len(enrollments))
	for _, e := range enrollments {
		cg, err := h.grades.CourseGrade(r.Context(), e.StudentID, c.ID)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		students = append(students, studentRow{
			StudentID:     e.StudentID,
			StudentName:   e.StudentName,
			StudentNumber: e.StudentNumber,
			Grade:         cg.Grade,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"course":     c,
		"statistics": stats,
		"exams":      exams,
		"students":   students,
	})
}
