package roster

// Platform roles. Every account is exactly one of these.
const (
	RoleAdmin          = "admin"
	RoleStudent        = "student"
	RoleInstructor     = "instructor"
	RoleDepartmentHead = "department_head"
)

func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleStudent, RoleInstructor, RoleDepartmentHead:
		return true
	}
	return false
}

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	FullName     string `json:"full_name"`
	CreatedAt    int64  `json:"created_at"`
}

// Student joins its user row; FullName and Username are denormalized
// for listings.
type Student struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	StudentNumber string `json:"student_number"`
	FullName      string `json:"full_name"`
	Username      string `json:"username"`
}

type Instructor struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Department string `json:"department"`
	FullName   string `json:"full_name"`
	Username   string `json:"username"`
}

type DepartmentHead struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Department string `json:"department"`
	FullName   string `json:"full_name"`
	Username   string `json:"username"`
}

type Course struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	InstructorID   string `json:"instructor_id"`
	InstructorName string `json:"instructor_name,omitempty"`
	ExamCount      int    `json:"exam_count"`
	StudentCount   int    `json:"student_count"`
	CreatedAt      int64  `json:"created_at"`
}

type Enrollment struct {
	ID            string `json:"id"`
	StudentID     string `json:"student_id"`
	CourseID      string `json:"course_id"`
	StudentName   string `json:"student_name,omitempty"`
	StudentNumber string `json:"student_number,omitempty"`
	CourseCode    string `json:"course_code,omitempty"`
	CourseName    string `json:"course_name,omitempty"`
	EnrolledAt    int64  `json:"enrolled_at"`
}
