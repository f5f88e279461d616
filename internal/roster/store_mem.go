package roster

import (
	"context"
	"sort"
	"sync"
)

// memoryStore backs tests and dev runs. It emulates the schema's
// cascades by hand so service-level flows behave like the SQL store.
type memoryStore struct {
	mu          sync.Mutex
	users       map[string]User
	students    map[string]Student
	instructors map[string]Instructor
	heads       map[string]DepartmentHead
	courses     map[string]Course
	enrollments map[string]Enrollment
}

func NewInMemoryStore() Store {
	return &memoryStore{
		users:       map[string]User{},
		students:    map[string]Student{},
		instructors: map[string]Instructor{},
		heads:       map[string]DepartmentHead{},
		courses:     map[string]Course{},
		enrollments: map[string]Enrollment{},
	}
}

func (m *memoryStore) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return ErrUsernameTaken
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memoryStore) GetUser(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryStore) GetUserByUsername(_ context.Context, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memoryStore) ListUsers(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []User{}
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *memoryStore) UpdateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *memoryStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	for sid, st := range m.students {
		if st.UserID == id {
			delete(m.students, sid)
			for eid, e := range m.enrollments {
				if e.StudentID == sid {
					delete(m.enrollments, eid)
				}
			}
		}
	}
	for iid, in := range m.instructors {
		if in.UserID == id {
			delete(m.instructors, iid)
			for cid, c := range m.courses {
				if c.InstructorID == iid {
					m.deleteCourseLocked(cid)
				}
			}
		}
	}
	for hid, h := range m.heads {
		if h.UserID == id {
			delete(m.heads, hid)
		}
	}
	return nil
}

func (m *memoryStore) CreateStudent(_ context.Context, st Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students {
		if existing.StudentNumber == st.StudentNumber {
			return ErrStudentNumberTaken
		}
	}
	m.students[st.ID] = st
	return nil
}

func (m *memoryStore) joinStudent(st Student) Student {
	if u, ok := m.users[st.UserID]; ok {
		st.FullName = u.FullName
		st.Username = u.Username
	}
	return st
}

func (m *memoryStore) GetStudent(_ context.Context, id string) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.students[id]
	if !ok {
		return Student{}, ErrNotFound
	}
	return m.joinStudent(st), nil
}

func (m *memoryStore) GetStudentByUserID(_ context.Context, userID string) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.students {
		if st.UserID == userID {
			return m.joinStudent(st), nil
		}
	}
	return Student{}, ErrNotFound
}

func (m *memoryStore) GetStudentByNumber(_ context.Context, number string) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.students {
		if st.StudentNumber == number {
			return m.joinStudent(st), nil
		}
	}
	return Student{}, ErrNotFound
}

func (m *memoryStore) ListStudents(_ context.Context) ([]Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Student{}
	for _, st := range m.students {
		out = append(out, m.joinStudent(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentNumber < out[j].StudentNumber })
	return out, nil
}

func (m *memoryStore) CreateInstructor(_ context.Context, in Instructor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instructors[in.ID] = in
	return nil
}

func (m *memoryStore) joinInstructor(in Instructor) Instructor {
	if u, ok := m.users[in.UserID]; ok {
		in.FullName = u.FullName
		in.Username = u.Username
	}
	return in
}

func (m *memoryStore) GetInstructor(_ context.Context, id string) (Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.instructors[id]
	if !ok {
		return Instructor{}, ErrNotFound
	}
	return m.joinInstructor(in), nil
}

func (m *memoryStore) GetInstructorByUserID(_ context.Context, userID string) (Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.instructors {
		if in.UserID == userID {
			return m.joinInstructor(in), nil
		}
	}
	return Instructor{}, ErrNotFound
}

func (m *memoryStore) ListInstructors(_ context.Context) ([]Instructor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Instructor{}
	for _, in := range m.instructors {
		out = append(out, m.joinInstructor(in))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memoryStore) CreateDepartmentHead(_ context.Context, h DepartmentHead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heads[h.ID] = h
	return nil
}

func (m *memoryStore) GetDepartmentHeadByUserID(_ context.Context, userID string) (DepartmentHead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.heads {
		if h.UserID == userID {
			if u, ok := m.users[h.UserID]; ok {
				h.FullName = u.FullName
				h.Username = u.Username
			}
			return h, nil
		}
	}
	return DepartmentHead{}, ErrNotFound
}

func (m *memoryStore) CreateCourse(_ context.Context, c Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.courses {
		if existing.Code == c.Code {
			return ErrCourseCodeTaken
		}
	}
	m.courses[c.ID] = c
	return nil
}

func (m *memoryStore) joinCourse(c Course) Course {
	if in, ok := m.instructors[c.InstructorID]; ok {
		if u, ok := m.users[in.UserID]; ok {
			c.InstructorName = u.FullName
		}
	}
	n := 0
	for _, e := range m.enrollments {
		if e.CourseID == c.ID {
			n++
		}
	}
	c.StudentCount = n
	return c
}

func (m *memoryStore) GetCourse(_ context.Context, id string) (Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return Course{}, ErrNotFound
	}
	return m.joinCourse(c), nil
}

func (m *memoryStore) ListCourses(_ context.Context) ([]Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Course{}
	for _, c := range m.courses {
		out = append(out, m.joinCourse(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memoryStore) ListCoursesByInstructor(_ context.Context, instructorID string) ([]Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Course{}
	for _, c := range m.courses {
		if c.InstructorID == instructorID {
			out = append(out, m.joinCourse(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memoryStore) ListCoursesByStudent(_ context.Context, studentID string) ([]Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Course{}
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			if c, ok := m.courses[e.CourseID]; ok {
				out = append(out, m.joinCourse(c))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memoryStore) deleteCourseLocked(id string) {
	delete(m.courses, id)
	for eid, e := range m.enrollments {
		if e.CourseID == id {
			delete(m.enrollments, eid)
		}
	}
}

func (m *memoryStore) DeleteCourse(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return ErrNotFound
	}
	m.deleteCourseLocked(id)
	return nil
}

func (m *memoryStore) CreateEnrollment(_ context.Context, e Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.enrollments {
		if existing.StudentID == e.StudentID && existing.CourseID == e.CourseID {
			return ErrAlreadyEnrolled
		}
	}
	m.enrollments[e.ID] = e
	return nil
}

func (m *memoryStore) joinEnrollment(e Enrollment) Enrollment {
	if st, ok := m.students[e.StudentID]; ok {
		e.StudentNumber = st.StudentNumber
		if u, ok := m.users[st.UserID]; ok {
			e.StudentName = u.FullName
		}
	}
	if c, ok := m.courses[e.CourseID]; ok {
		e.CourseCode = c.Code
		e.CourseName = c.Name
	}
	return e
}

func (m *memoryStore) ListEnrollments(_ context.Context) ([]Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Enrollment{}
	for _, e := range m.enrollments {
		out = append(out, m.joinEnrollment(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CourseCode != out[j].CourseCode {
			return out[i].CourseCode < out[j].CourseCode
		}
		return out[i].StudentNumber < out[j].StudentNumber
	})
	return out, nil
}

func (m *memoryStore) ListEnrollmentsByCourse(_ context.Context, courseID string) ([]Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Enrollment{}
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			out = append(out, m.joinEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentNumber < out[j].StudentNumber })
	return out, nil
}

func (m *memoryStore) DeleteEnrollment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.enrollments[id]; !ok {
		return ErrNotFound
	}
	delete(m.enrollments, id)
	return nil
}

func (m *memoryStore) IsEnrolled(_ context.Context, studentID, courseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) CountStudents(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.students), nil
}

func (m *memoryStore) CountInstructors(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instructors), nil
}
