package roster

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrStudentNumberTaken = errors.New("student number already exists")
	ErrCourseCodeTaken    = errors.New("course code already exists")
	ErrAlreadyEnrolled    = errors.New("student already enrolled in this course")
	ErrBadCredentials     = errors.New("invalid username or password")
)

// Store persists accounts, courses and enrollments. Deleting a user
// cascades to the role row, the user's enrollments and attempts; the
// schema owns that, implementations only delete the user row.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id string) error

	CreateStudent(ctx context.Context, s Student) error
	GetStudent(ctx context.Context, id string) (Student, error)
	GetStudentByUserID(ctx context.Context, userID string) (Student, error)
	GetStudentByNumber(ctx context.Context, number string) (Student, error)
	ListStudents(ctx context.Context) ([]Student, error)

	CreateInstructor(ctx context.Context, i Instructor) error
	GetInstructor(ctx context.Context, id string) (Instructor, error)
	GetInstructorByUserID(ctx context.Context, userID string) (Instructor, error)
	ListInstructors(ctx context.Context) ([]Instructor, error)

	CreateDepartmentHead(ctx context.Context, h DepartmentHead) error
	GetDepartmentHeadByUserID(ctx context.Context, userID string) (DepartmentHead, error)

	CreateCourse(ctx context.Context, c Course) error
	GetCourse(ctx context.Context, id string) (Course, error)
	ListCourses(ctx context.Context) ([]Course, error)
	ListCoursesByInstructor(ctx context.Context, instructorID string) ([]Course, error)
	ListCoursesByStudent(ctx context.Context, studentID string) ([]Course, error)
	DeleteCourse(ctx context.Context, id string) error

	CreateEnrollment(ctx context.Context, e Enrollment) error
	ListEnrollments(ctx context.Context) ([]Enrollment, error)
	ListEnrollmentsByCourse(ctx context.Context, courseID string) ([]Enrollment, error)
	DeleteEnrollment(ctx context.Context, id string) error
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)

	CountStudents(ctx context.Context) (int, error)
	CountInstructors(ctx context.Context) (int, error)
}
