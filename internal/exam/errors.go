package exam

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure so transports can map it to a
// status code without string matching.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindForbidden        Kind = "forbidden"
	KindExamNotReady     Kind = "exam_not_ready"
	KindNotYetOpen       Kind = "not_yet_open"
	KindWindowClosed     Kind = "window_closed"
	KindAlreadyCompleted Kind = "already_completed"
	KindWindowLocked     Kind = "window_locked"
	KindConflict         Kind = "conflict"
	KindInvalid          Kind = "invalid"
	KindInternal         Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func Errf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind carried by err, or KindInternal for errors
// that did not originate in this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
