package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/campusworks/examportal/internal/audit"
	auth "github.com/campusworks/examportal/internal/auth/middleware"
	"github.com/campusworks/examportal/internal/exam"
	"github.com/campusworks/examportal/internal/roster"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// domainStatus maps domain errors to HTTP statuses. Window and state
// violations are conflicts: the request was well-formed but the
// resource is not in a state that allows it.
func domainStatus(err error) int {
	switch {
	case errors.Is(err, roster.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, roster.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, roster.ErrUsernameTaken),
		errors.Is(err, roster.ErrStudentNumberTaken),
		errors.Is(err, roster.ErrCourseCodeTaken),
		errors.Is(err, roster.ErrAlreadyEnrolled):
		return http.StatusConflict
	}

	var de *exam.Error
	if errors.As(err, &de) {
		switch de.Kind {
		case exam.KindNotFound:
			return http.StatusNotFound
		case exam.KindForbidden:
			return http.StatusForbidden
		case exam.KindInvalid:
			return http.StatusBadRequest
		case exam.KindConflict, exam.KindExamNotReady, exam.KindNotYetOpen,
			exam.KindWindowClosed, exam.KindAlreadyCompleted, exam.KindWindowLocked:
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// record appends to the audit trail. A failed write never fails the
// request; it is logged and dropped.
func (h *Handler) record(r *http.Request, action, subject, detail string) {
	e := audit.Event{
		ActorID: auth.SubjectFromContext(r.Context()),
		Action:  action,
		Subject: subject,
		Detail:  detail,
	}
	if err := h.audit.Record(r.Context(), e); err != nil {
		h.logger.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := domainStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
