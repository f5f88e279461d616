package http

import (
	"context"
	"errors"
	"net/http"

	auth "github.com/campusworks/examportal/internal/auth/middleware"
	"github.com/campusworks/examportal/internal/exam"
	"github.com/campusworks/examportal/internal/roster"
)

// userPayload is the account shape returned by login and /auth/me,
// with the role row joined in so clients need a single round trip.
type userPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`

	StudentID     string `json:"student_id,omitempty"`
	StudentNumber string `json:"student_number,omitempty"`
	InstructorID  string `json:"instructor_id,omitempty"`
	Department    string `json:"department,omitempty"`
}

func (h *Handler) userPayload(ctx context.Context, u roster.User) userPayload {
	p := userPayload{ID: u.ID, Username: u.Username, Role: u.Role, FullName: u.FullName}
	switch u.Role {
	case roster.RoleStudent:
		if st, err := h.roster.Store().GetStudentByUserID(ctx, u.ID); err == nil {
			p.StudentID = st.ID
			p.StudentNumber = st.StudentNumber
		}
	case roster.RoleInstructor:
		if in, err := h.roster.Store().GetInstructorByUserID(ctx, u.ID); err == nil {
			p.InstructorID = in.ID
			p.Department = in.Department
		}
	case roster.RoleDepartmentHead:
		if dh, err := h.roster.Store().GetDepartmentHeadByUserID(ctx, u.ID); err == nil {
			p.Department = dh.Department
		}
	}
	return p
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	u, err := h.roster.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	token, err := h.auth.IssueJWT(u.ID, u.Role)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"user":         h.userPayload(r.Context(), u),
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sub := auth.SubjectFromContext(r.Context())
	u, err := h.roster.Store().GetUser(r.Context(), sub)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.userPayload(r.Context(), u))
}

// currentStudent resolves the authenticated subject to its student row.
func (h *Handler) currentStudent(r *http.Request) (roster.Student, error) {
	sub := auth.SubjectFromContext(r.Context())
	st, err := h.roster.Store().GetStudentByUserID(r.Context(), sub)
	if errors.Is(err, roster.ErrNotFound) {
		return roster.Student{}, exam.Errf(exam.KindForbidden, "no student profile for this account")
	}
	return st, err
}

func (h *Handler) currentInstructor(r *http.Request) (roster.Instructor, error) {
	sub := auth.SubjectFromContext(r.Context())
	in, err := h.roster.Store().GetInstructorByUserID(r.Context(), sub)
	if errors.Is(err, roster.ErrNotFound) {
		return roster.Instructor{}, exam.Errf(exam.KindForbidden, "no instructor profile for this account")
	}
	return in, err
}
