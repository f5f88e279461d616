package grades

import (
	"context"

	"github.com/campusworks/examportal/internal/roster"
)

// rosterSource adapts the roster store to the aggregator's view of it.
type rosterSource struct {
	store roster.Store
}

func NewRosterSource(store roster.Store) Roster {
	return rosterSource{store: store}
}

func (r rosterSource) ListCourses(ctx context.Context) ([]CourseInfo, error) {
	courses, err := r.store.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CourseInfo, len(courses))
	for i, c := range courses {
		out[i] = CourseInfo{ID: c.ID, Code: c.Code, Name: c.Name}
	}
	return out, nil
}

func (r rosterSource) ListEnrolledStudentIDs(ctx context.Context, courseID string) ([]string, error) {
	enrollments, err := r.store.ListEnrollmentsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(enrollments))
	for i, e := range enrollments {
		out[i] = e.StudentID
	}
	return out, nil
}

func (r rosterSource) CountStudents(ctx context.Context) (int, error) {
	return r.store.CountStudents(ctx)
}

func (r rosterSource) CountInstructors(ctx context.Context) (int, error) {
	return r.store.CountInstructors(ctx)
}
