package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLStore shares the portability rules of the exam store: $N
// placeholders, ON CONFLICT, unix-second timestamps. Cascades live in
// the schema so user deletion is one statement on both drivers.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) CreateUser(ctx context.Context, u User) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users
		(id, username, password_hash, role, full_name, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (username) DO NOTHING`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.FullName, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUsernameTaken
	}
	return nil
}

const userColumns = `id, username, password_hash, role, full_name, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.FullName, &u.CreatedAt)
	return u, err
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateUser(ctx context.Context, u User) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users
		SET username=$1, password_hash=$2, role=$3, full_name=$4
		WHERE id=$5`,
		u.Username, u.PasswordHash, u.Role, u.FullName, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CreateStudent(ctx context.Context, st Student) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO students (id, user_id, student_number)
		VALUES ($1,$2,$3)
		ON CONFLICT (student_number) DO NOTHING`,
		st.ID, st.UserID, st.StudentNumber)
	if err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudentNumberTaken
	}
	return nil
}

const studentColumns = `s.id, s.user_id, s.student_number, u.full_name, u.username`

func scanStudent(row interface{ Scan(...interface{}) error }) (Student, error) {
	var st Student
	err := row.Scan(&st.ID, &st.UserID, &st.StudentNumber, &st.FullName, &st.Username)
	return st, err
}

func (s *SQLStore) getStudentWhere(ctx context.Context, clause string, arg interface{}) (Student, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students s JOIN users u ON s.user_id = u.id WHERE `+clause, arg)
	st, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Student{}, ErrNotFound
	}
	if err != nil {
		return Student{}, fmt.Errorf("get student: %w", err)
	}
	return st, nil
}

func (s *SQLStore) GetStudent(ctx context.Context, id string) (Student, error) {
	return s.getStudentWhere(ctx, `s.id=$1`, id)
}

func (s *SQLStore) GetStudentByUserID(ctx context.Context, userID string) (Student, error) {
	return s.getStudentWhere(ctx, `s.user_id=$1`, userID)
}

func (s *SQLStore) GetStudentByNumber(ctx context.Context, number string) (Student, error) {
	return s.getStudentWhere(ctx, `s.student_number=$1`, number)
}

func (s *SQLStore) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students s JOIN users u ON s.user_id = u.id ORDER BY s.student_number`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()
	out := []Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateInstructor(ctx context.Context, in Instructor) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO instructors (id, user_id, department)
		VALUES ($1,$2,$3)`, in.ID, in.UserID, in.Department)
	if err != nil {
		return fmt.Errorf("insert instructor: %w", err)
	}
	return nil
}

const instructorColumns = `i.id, i.user_id, i.department, u.full_name, u.username`

func scanInstructor(row interface{ Scan(...interface{}) error }) (Instructor, error) {
	var in Instructor
	err := row.Scan(&in.ID, &in.UserID, &in.Department, &in.FullName, &in.Username)
	return in, err
}

func (s *SQLStore) getInstructorWhere(ctx context.Context, clause string, arg interface{}) (Instructor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+instructorColumns+` FROM instructors i JOIN users u ON i.user_id = u.id WHERE `+clause, arg)
	in, err := scanInstructor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Instructor{}, ErrNotFound
	}
	if err != nil {
		return Instructor{}, fmt.Errorf("get instructor: %w", err)
	}
	return in, nil
}

func (s *SQLStore) GetInstructor(ctx context.Context, id string) (Instructor, error) {
	return s.getInstructorWhere(ctx, `i.id=$1`, id)
}

func (s *SQLStore) GetInstructorByUserID(ctx context.Context, userID string) (Instructor, error) {
	return s.getInstructorWhere(ctx, `i.user_id=$1`, userID)
}

func (s *SQLStore) ListInstructors(ctx context.Context) ([]Instructor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+instructorColumns+` FROM instructors i JOIN users u ON i.user_id = u.id ORDER BY u.full_name`)
	if err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	defer rows.Close()
	out := []Instructor{}
	for rows.Next() {
		in, err := scanInstructor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateDepartmentHead(ctx context.Context, h DepartmentHead) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO department_heads (id, user_id, department)
		VALUES ($1,$2,$3)`, h.ID, h.UserID, h.Department)
	if err != nil {
		return fmt.Errorf("insert department head: %w", err)
	}
	return nil
}

func (s *SQLStore) GetDepartmentHeadByUserID(ctx context.Context, userID string) (DepartmentHead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT d.id, d.user_id, d.department, u.full_name, u.username
		 FROM department_heads d JOIN users u ON d.user_id = u.id WHERE d.user_id=$1`, userID)
	var h DepartmentHead
	err := row.Scan(&h.ID, &h.UserID, &h.Department, &h.FullName, &h.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return DepartmentHead{}, ErrNotFound
	}
	if err != nil {
		return DepartmentHead{}, fmt.Errorf("get department head: %w", err)
	}
	return h, nil
}

func (s *SQLStore) CreateCourse(ctx context.Context, c Course) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO courses (id, code, name, instructor_id, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (code) DO NOTHING`,
		c.ID, c.Code, c.Name, c.InstructorID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCourseCodeTaken
	}
	return nil
}

const courseColumns = `c.id, c.code, c.name, c.instructor_id, u.full_name,
	(SELECT COUNT(*) FROM exams e WHERE e.course_id = c.id) AS exam_count,
	(SELECT COUNT(*) FROM enrollments en WHERE en.course_id = c.id) AS student_count,
	c.created_at`

const courseJoins = `FROM courses c
	JOIN instructors i ON c.instructor_id = i.id
	JOIN users u ON i.user_id = u.id`

func scanCourse(row interface{ Scan(...interface{}) error }) (Course, error) {
	var c Course
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.InstructorID, &c.InstructorName,
		&c.ExamCount, &c.StudentCount, &c.CreatedAt)
	return c, err
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+courseColumns+` `+courseJoins+` WHERE c.id=$1`, id)
	c, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	if err != nil {
		return Course{}, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

func (s *SQLStore) listCourses(ctx context.Context, clause string, args ...interface{}) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+courseColumns+` `+courseJoins+` `+clause+` ORDER BY c.code`, args...)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()
	out := []Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListCourses(ctx context.Context) ([]Course, error) {
	return s.listCourses(ctx, ``)
}

func (s *SQLStore) ListCoursesByInstructor(ctx context.Context, instructorID string) ([]Course, error) {
	return s.listCourses(ctx, `WHERE c.instructor_id=$1`, instructorID)
}

func (s *SQLStore) ListCoursesByStudent(ctx context.Context, studentID string) ([]Course, error) {
	return s.listCourses(ctx,
		`WHERE c.id IN (SELECT course_id FROM enrollments WHERE student_id=$1)`, studentID)
}

func (s *SQLStore) DeleteCourse(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CreateEnrollment(ctx context.Context, e Enrollment) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO enrollments (id, student_id, course_id, enrolled_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (student_id, course_id) DO NOTHING`,
		e.ID, e.StudentID, e.CourseID, e.EnrolledAt)
	if err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyEnrolled
	}
	return nil
}

const enrollmentColumns = `e.id, e.student_id, e.course_id, u.full_name, s.student_number, c.code, c.name, e.enrolled_at`

const enrollmentJoins = `FROM enrollments e
	JOIN students s ON e.student_id = s.id
	JOIN users u ON s.user_id = u.id
	JOIN courses c ON e.course_id = c.id`

func scanEnrollment(row interface{ Scan(...interface{}) error }) (Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.StudentName, &e.StudentNumber,
		&e.CourseCode, &e.CourseName, &e.EnrolledAt)
	return e, err
}

func (s *SQLStore) listEnrollments(ctx context.Context, clause string, args ...interface{}) ([]Enrollment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+enrollmentColumns+` `+enrollmentJoins+` `+clause+` ORDER BY c.code, s.student_number`, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()
	out := []Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListEnrollments(ctx context.Context) ([]Enrollment, error) {
	return s.listEnrollments(ctx, ``)
}

func (s *SQLStore) ListEnrollmentsByCourse(ctx context.Context, courseID string) ([]Enrollment, error) {
	return s.listEnrollments(ctx, `WHERE e.course_id=$1`, courseID)
}

func (s *SQLStore) DeleteEnrollment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE student_id=$1 AND course_id=$2`, studentID, courseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

func (s *SQLStore) CountStudents(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM students`)
}

func (s *SQLStore) CountInstructors(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM instructors`)
}

func (s *SQLStore) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
