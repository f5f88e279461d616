package roster

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service owns account lifecycle: hashing, role-row bookkeeping and the
// uniqueness rules. A student or instructor is always a user plus a
// role row, created together and deleted through the user cascade.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

func (s *Service) Store() Store { return s.store }

// Authenticate checks a username/password pair and returns the account.
// The same error covers unknown users and bad passwords.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrBadCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrBadCredentials
	}
	return u, nil
}

func (s *Service) createUser(ctx context.Context, username, password, role, fullName string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || strings.TrimSpace(fullName) == "" {
		return User{}, errors.New("username, password and full name are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    s.now().UTC().Unix(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) CreateStudent(ctx context.Context, username, password, fullName, studentNumber string) (Student, error) {
	studentNumber = strings.TrimSpace(studentNumber)
	if studentNumber == "" {
		return Student{}, errors.New("student number is required")
	}
	if _, err := s.store.GetStudentByNumber(ctx, studentNumber); err == nil {
		return Student{}, ErrStudentNumberTaken
	} else if !errors.Is(err, ErrNotFound) {
		return Student{}, err
	}
	u, err := s.createUser(ctx, username, password, RoleStudent, fullName)
	if err != nil {
		return Student{}, err
	}
	st := Student{ID: uuid.NewString(), UserID: u.ID, StudentNumber: studentNumber}
	if err := s.store.CreateStudent(ctx, st); err != nil {
		// Undo the half-created account; losing the user row is worse
		// than a stray delete error here.
		_ = s.store.DeleteUser(ctx, u.ID)
		return Student{}, err
	}
	return s.store.GetStudent(ctx, st.ID)
}

func (s *Service) CreateInstructor(ctx context.Context, username, password, fullName, department string) (Instructor, error) {
	if strings.TrimSpace(department) == "" {
		return Instructor{}, errors.New("department is required")
	}
	u, err := s.createUser(ctx, username, password, RoleInstructor, fullName)
	if err != nil {
		return Instructor{}, err
	}
	in := Instructor{ID: uuid.NewString(), UserID: u.ID, Department: strings.TrimSpace(department)}
	if err := s.store.CreateInstructor(ctx, in); err != nil {
		_ = s.store.DeleteUser(ctx, u.ID)
		return Instructor{}, err
	}
	return s.store.GetInstructor(ctx, in.ID)
}

func (s *Service) CreateDepartmentHead(ctx context.Context, username, password, fullName, department string) (DepartmentHead, error) {
	if strings.TrimSpace(department) == "" {
		return DepartmentHead{}, errors.New("department is required")
	}
	u, err := s.createUser(ctx, username, password, RoleDepartmentHead, fullName)
	if err != nil {
		return DepartmentHead{}, err
	}
	h := DepartmentHead{ID: uuid.NewString(), UserID: u.ID, Department: strings.TrimSpace(department)}
	if err := s.store.CreateDepartmentHead(ctx, h); err != nil {
		_ = s.store.DeleteUser(ctx, u.ID)
		return DepartmentHead{}, err
	}
	return s.store.GetDepartmentHeadByUserID(ctx, u.ID)
}

// BootstrapAdmin creates the initial admin account when the user table
// is empty. Safe to call on every startup.
func (s *Service) BootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	if len(users) > 0 {
		return false, nil
	}
	if _, err := s.createUser(ctx, username, password, RoleAdmin, "Administrator"); err != nil {
		return false, err
	}
	return true, nil
}

// UserUpdate carries the admin-editable user fields; nil means keep.
type UserUpdate struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	FullName *string `json:"full_name"`
	Role     *string `json:"role"`
}

func (s *Service) UpdateUser(ctx context.Context, userID string, upd UserUpdate) (User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if upd.Username != nil && *upd.Username != u.Username {
		if _, err := s.store.GetUserByUsername(ctx, *upd.Username); err == nil {
			return User{}, ErrUsernameTaken
		} else if !errors.Is(err, ErrNotFound) {
			return User{}, err
		}
		u.Username = *upd.Username
	}
	if upd.Password != nil && *upd.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		u.PasswordHash = string(hash)
	}
	if upd.FullName != nil {
		u.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.Role != nil {
		if !ValidRole(*upd.Role) {
			return User{}, errors.New("invalid role: " + *upd.Role)
		}
		u.Role = *upd.Role
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	return s.store.DeleteUser(ctx, userID)
}

// DeleteStudent removes the backing user; the cascade clears the
// student row, enrollments and attempts.
func (s *Service) DeleteStudent(ctx context.Context, studentID string) error {
	st, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return err
	}
	return s.store.DeleteUser(ctx, st.UserID)
}

func (s *Service) DeleteInstructor(ctx context.Context, instructorID string) error {
	in, err := s.store.GetInstructor(ctx, instructorID)
	if err != nil {
		return err
	}
	return s.store.DeleteUser(ctx, in.UserID)
}

func (s *Service) CreateCourse(ctx context.Context, code, name, instructorID string) (Course, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(name) == "" {
		return Course{}, errors.New("course code and name are required")
	}
	if _, err := s.store.GetInstructor(ctx, instructorID); err != nil {
		return Course{}, err
	}
	c := Course{
		ID:           uuid.NewString(),
		Code:         code,
		Name:         strings.TrimSpace(name),
		InstructorID: instructorID,
		CreatedAt:    s.now().UTC().Unix(),
	}
	if err := s.store.CreateCourse(ctx, c); err != nil {
		return Course{}, err
	}
	return s.store.GetCourse(ctx, c.ID)
}

func (s *Service) Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	if _, err := s.store.GetStudent(ctx, studentID); err != nil {
		return Enrollment{}, err
	}
	if _, err := s.store.GetCourse(ctx, courseID); err != nil {
		return Enrollment{}, err
	}
	e := Enrollment{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		CourseID:   courseID,
		EnrolledAt: s.now().UTC().Unix(),
	}
	if err := s.store.CreateEnrollment(ctx, e); err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

// UsernameTaken reports whether a username is in use, for the admin
// pre-flight check endpoint.
func (s *Service) UsernameTaken(ctx context.Context, username string) (User, bool, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}
