package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestService() *Service {
	fixed := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	return NewService(NewInMemoryStore(), func() time.Time { return fixed })
}

func TestCreateStudent_HashesPassword(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	st, err := svc.CreateStudent(ctx, "ada", "hunter2", "Ada Lovelace", "20250001")
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	if st.StudentNumber != "20250001" || st.FullName != "Ada Lovelace" {
		t.Fatalf("unexpected student: %+v", st)
	}

	u, err := svc.Store().GetUserByUsername(ctx, "ada")
	if err != nil {
		t.Fatalf("lookup user: %v", err)
	}
	if u.Role != RoleStudent {
		t.Fatalf("role = %q, want student", u.Role)
	}
	if u.PasswordHash == "hunter2" {
		t.Fatalf("password stored in clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter2")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestCreateStudent_UniqueNumberAndUsername(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateStudent(ctx, "ada", "pw", "Ada", "20250001"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := svc.CreateStudent(ctx, "grace", "pw", "Grace", "20250001"); !errors.Is(err, ErrStudentNumberTaken) {
		t.Fatalf("dup number: got %v", err)
	}
	if _, err := svc.CreateStudent(ctx, "ada", "pw", "Ada Again", "20250002"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("dup username: got %v", err)
	}

	// The failed creates must not leave half accounts behind.
	if _, err := svc.Store().GetUserByUsername(ctx, "grace"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("orphan user survived failed create: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateInstructor(ctx, "turing", "enigma", "Alan Turing", "Computing"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	u, err := svc.Authenticate(ctx, "turing", "enigma")
	if err != nil {
		t.Fatalf("valid login: %v", err)
	}
	if u.Role != RoleInstructor {
		t.Fatalf("role = %q, want instructor", u.Role)
	}

	if _, err := svc.Authenticate(ctx, "turing", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("bad password: got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "enigma"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("unknown user: got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	st, err := svc.CreateStudent(ctx, "ada", "pw", "Ada", "20250001")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.CreateStudent(ctx, "grace", "pw", "Grace", "20250002"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	newName := "Ada King"
	newPass := "newpass"
	u, err := svc.UpdateUser(ctx, st.UserID, UserUpdate{FullName: &newName, Password: &newPass})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.FullName != "Ada King" {
		t.Fatalf("full name = %q", u.FullName)
	}
	if _, err := svc.Authenticate(ctx, "ada", "newpass"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	taken := "grace"
	if _, err := svc.UpdateUser(ctx, st.UserID, UserUpdate{Username: &taken}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("rename to taken username: got %v", err)
	}
	bad := "wizard"
	if _, err := svc.UpdateUser(ctx, st.UserID, UserUpdate{Role: &bad}); err == nil {
		t.Fatalf("invalid role accepted")
	}
}

func TestDeleteStudent_Cascades(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	in, err := svc.CreateInstructor(ctx, "turing", "pw", "Alan", "Computing")
	if err != nil {
		t.Fatalf("seed instructor: %v", err)
	}
	st, err := svc.CreateStudent(ctx, "ada", "pw", "Ada", "20250001")
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
	course, err := svc.CreateCourse(ctx, "CS101", "Programming", in.ID)
	if err != nil {
		t.Fatalf("seed course: %v", err)
	}
	if _, err := svc.Enroll(ctx, st.ID, course.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	if err := svc.DeleteStudent(ctx, st.ID); err != nil {
		t.Fatalf("delete student: %v", err)
	}
	if _, err := svc.Store().GetStudent(ctx, st.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("student row survived: %v", err)
	}
	if _, err := svc.Store().GetUserByUsername(ctx, "ada"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("user row survived: %v", err)
	}
	enrolled, err := svc.Store().IsEnrolled(ctx, st.ID, course.ID)
	if err != nil || enrolled {
		t.Fatalf("enrollment survived cascade: %v %v", enrolled, err)
	}
}

func TestEnroll_Duplicate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	in, _ := svc.CreateInstructor(ctx, "turing", "pw", "Alan", "Computing")
	st, _ := svc.CreateStudent(ctx, "ada", "pw", "Ada", "20250001")
	course, err := svc.CreateCourse(ctx, "CS101", "Programming", in.ID)
	if err != nil {
		t.Fatalf("seed course: %v", err)
	}

	if _, err := svc.Enroll(ctx, st.ID, course.ID); err != nil {
		t.Fatalf("first enroll: %v", err)
	}
	if _, err := svc.Enroll(ctx, st.ID, course.ID); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("duplicate enroll: got %v", err)
	}
}

func TestCreateCourse_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	in, _ := svc.CreateInstructor(ctx, "turing", "pw", "Alan", "Computing")

	if _, err := svc.CreateCourse(ctx, "CS101", "Programming", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown instructor: got %v", err)
	}
	if _, err := svc.CreateCourse(ctx, "CS101", "Programming", in.ID); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateCourse(ctx, "CS101", "Other", in.ID); !errors.Is(err, ErrCourseCodeTaken) {
		t.Fatalf("duplicate code: got %v", err)
	}
}

func TestUsernameTaken(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateStudent(ctx, "ada", "pw", "Ada", "20250001"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, taken, err := svc.UsernameTaken(ctx, "ada"); err != nil || !taken {
		t.Fatalf("existing username: taken=%v err=%v", taken, err)
	}
	if _, taken, err := svc.UsernameTaken(ctx, "free"); err != nil || taken {
		t.Fatalf("free username: taken=%v err=%v", taken, err)
	}
}
