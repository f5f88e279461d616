package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campusworks/examportal/internal/audit"
	"github.com/campusworks/examportal/internal/roster"
)

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.roster.Store().ListStudents(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username      string `json:"username"`
		Password      string `json:"password"`
		FullName      string `json:"full_name"`
		StudentNumber string `json:"student_number"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	st, err := h.roster.CreateStudent(r.Context(), req.Username, req.Password, req.FullName, req.StudentNumber)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.DeleteStudent(r.Context(), chi.URLParam(r, "studentID")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "student deleted"})
}

// StudentCourseIDs returns the course ids a student is enrolled in,
// for the admin enrollment editor.
func (h *Handler) StudentCourseIDs(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if _, err := h.roster.Store().GetStudent(r.Context(), studentID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	courses, err := h.roster.Store().ListCoursesByStudent(r.Context(), studentID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	ids := make([]string, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) ListInstructors(w http.ResponseWriter, r *http.Request) {
	instructors, err := h.roster.Store().ListInstructors(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, instructors)
}

func (h *Handler) CreateInstructor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		FullName   string `json:"full_name"`
		Department string `json:"department"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	in, err := h.roster.CreateInstructor(r.Context(), req.Username, req.Password, req.FullName, req.Department)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (h *Handler) DeleteInstructor(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.DeleteInstructor(r.Context(), chi.URLParam(r, "instructorID")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "instructor deleted"})
}

func (h *Handler) CreateDepartmentHead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		FullName   string `json:"full_name"`
		Department string `json:"department"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	dh, err := h.roster.CreateDepartmentHead(r.Context(), req.Username, req.Password, req.FullName, req.Department)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dh)
}

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.roster.Store().ListCourses(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code         string `json:"code"`
		Name         string `json:"name"`
		InstructorID string `json:"instructor_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	c, err := h.roster.CreateCourse(r.Context(), req.Code, req.Name, req.InstructorID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.Store().DeleteCourse(r.Context(), chi.URLParam(r, "courseID")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "course deleted"})
}

func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.roster.Store().ListEnrollments(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollments)
}

func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID string `json:"student_id"`
		CourseID  string `json:"course_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	e, err := h.roster.Enroll(r.Context(), req.StudentID, req.CourseID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) DeleteEnrollment(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.Store().DeleteEnrollment(r.Context(), chi.URLParam(r, "enrollmentID")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "enrollment deleted"})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.roster.Store().ListUsers(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var upd roster.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	u, err := h.roster.UpdateUser(r.Context(), chi.URLParam(r, "userID"), upd)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.roster.DeleteUser(r.Context(), userID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.record(r, audit.ActionUserDeleted, userID, "{}")
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (h *Handler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	u, taken, err := h.roster.UsernameTaken(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !taken {
		writeJSON(w, http.StatusOK, map[string]interface{}{"exists": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exists":    true,
		"user_id":   u.ID,
		"username":  u.Username,
		"role":      u.Role,
		"full_name": u.FullName,
	})
}

// AuditTrail returns the newest trail entries, capped server-side.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
