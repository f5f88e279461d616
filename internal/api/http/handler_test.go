package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/campusworks/examportal/internal/audit"
	auth "github.com/campusworks/examportal/internal/auth/middleware"
	"github.com/campusworks/examportal/internal/config"
	"github.com/campusworks/examportal/internal/exam"
	"github.com/campusworks/examportal/internal/grades"
	"github.com/campusworks/examportal/internal/roster"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var (
	testBase   = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	windowOpen = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	windowEnd  = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
)

type testEnv struct {
	t      *testing.T
	clock  *fakeClock
	router http.Handler
	auth   *auth.AuthService
	roster *roster.Service
	exams  *exam.Service

	adminToken   string
	student      roster.Student
	studentToken string
	instructor   roster.Instructor
	teachToken   string
	course       roster.Course
	exam         exam.Exam
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	clock := &fakeClock{t: testBase}

	rosterStore := roster.NewInMemoryStore()
	examStore := exam.NewInMemoryStore()

	rosterSvc := roster.NewService(rosterStore, clock.Now)
	examSvc := exam.NewService(examStore, rosterStore, 30*time.Second, clock.Now)
	aggregator := grades.New(examStore, grades.NewRosterSource(rosterStore))
	authSvc := auth.NewAuthService("test-secret", time.Hour)

	h := NewHandler(rosterSvc, examSvc, aggregator, authSvc, audit.Discard{}, zerolog.Nop())

	env := &testEnv{
		t:      t,
		clock:  clock,
		router: h.Router(config.CORSConfig{}),
		auth:   authSvc,
		roster: rosterSvc,
		exams:  examSvc,
	}

	if _, err := rosterSvc.BootstrapAdmin(ctx, "admin", "admin-pass"); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	adminUser, err := rosterSvc.Authenticate(ctx, "admin", "admin-pass")
	if err != nil {
		t.Fatalf("authenticate admin: %v", err)
	}
	env.adminToken = env.token(adminUser.ID, adminUser.Role)

	env.instructor, err = rosterSvc.CreateInstructor(ctx, "teach", "teach-pass", "Ada Lovelace", "Computer Science")
	if err != nil {
		t.Fatalf("create instructor: %v", err)
	}
	env.teachToken = env.token(env.instructor.UserID, roster.RoleInstructor)

	env.course, err = rosterSvc.CreateCourse(ctx, "CS101", "Intro to Computing", env.instructor.ID)
	if err != nil {
		t.Fatalf("create course: %v", err)
	}

	env.student, err = rosterSvc.CreateStudent(ctx, "stu", "stu-pass", "Grace Hopper", "20250001")
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	env.studentToken = env.token(env.student.UserID, roster.RoleStudent)
	if _, err := rosterSvc.Enroll(ctx, env.student.ID, env.course.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	env.exam, err = examSvc.CreateExam(ctx, exam.Exam{
		CourseID:        env.course.ID,
		ExamType:        exam.TypeMidterm,
		WeightPercent:   40,
		StartTime:       windowOpen,
		EndTime:         windowEnd,
		DurationMinutes: 10,
	})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	for i := 0; i < exam.MinPoolSize+1; i++ {
		_, err := examSvc.AddQuestion(ctx, exam.Question{
			ExamID:        env.exam.ID,
			Text:          "question " + string(rune('a'+i)),
			OptionA:       "right " + string(rune('a'+i)),
			OptionB:       "wrong 1",
			OptionC:       "wrong 2",
			OptionD:       "wrong 3",
			OptionE:       "wrong 4",
			CorrectAnswer: "A",
		})
		if err != nil {
			t.Fatalf("add question %d: %v", i, err)
		}
	}
	return env
}

func (e *testEnv) token(userID, role string) string {
	e.t.Helper()
	token, err := e.auth.IssueJWT(userID, role)
	if err != nil {
		e.t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("POST", "/auth/login", "", map[string]string{"username": "stu", "password": "stu-pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		AccessToken string `json:"access_token"`
		User        struct {
			Role      string `json:"role"`
			StudentID string `json:"student_id"`
		} `json:"user"`
	}
	decodeBody(t, rec, &out)
	if out.AccessToken == "" {
		t.Fatal("no access token in login response")
	}
	if out.User.Role != roster.RoleStudent || out.User.StudentID != env.student.ID {
		t.Fatalf("unexpected user payload: %+v", out.User)
	}

	rec = env.do("POST", "/auth/login", "", map[string]string{"username": "stu", "password": "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do("GET", "/auth/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}
	if rec := env.do("GET", "/auth/me", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", rec.Code)
	}
}

func TestRolePermissions(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do("GET", "/admin/students", env.studentToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("student on admin route status = %d, want 403", rec.Code)
	}
	if rec := env.do("GET", "/admin/students", env.teachToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("instructor on admin route status = %d, want 403", rec.Code)
	}
	if rec := env.do("GET", "/admin/students", env.adminToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin on admin route status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if rec := env.do("GET", "/department-head/statistics", env.studentToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("student on stats route status = %d, want 403", rec.Code)
	}
}

func TestStudentAttemptFlow(t *testing.T) {
	env := newTestEnv(t)
	env.clock.Set(windowOpen.Add(5 * time.Minute))

	rec := env.do("POST", "/student/exams/"+env.exam.ID+"/start", env.studentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "correct_answer") {
		t.Fatal("start response leaks the answer key")
	}
	var started struct {
		AttemptID string `json:"attempt_id"`
		Questions []struct {
			ID string `json:"id"`
		} `json:"questions"`
		RemainingSeconds int64 `json:"remaining_seconds"`
	}
	decodeBody(t, rec, &started)
	if len(started.Questions) != exam.SampleSize {
		t.Fatalf("got %d questions, want %d", len(started.Questions), exam.SampleSize)
	}
	if started.RemainingSeconds != 600 {
		t.Fatalf("remaining = %d, want 600", started.RemainingSeconds)
	}

	answers := map[string]string{}
	for _, q := range started.Questions {
		answers[q.ID] = "A"
	}
	rec = env.do("POST", "/student/exams/"+env.exam.ID+"/submit", env.studentToken,
		map[string]interface{}{"answers": answers})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}
	var att struct {
		Score       *int     `json:"score"`
		Late        bool     `json:"late"`
		ExamAverage *float64 `json:"exam_average"`
	}
	decodeBody(t, rec, &att)
	if att.Score == nil || *att.Score != 100 {
		t.Fatalf("score = %v, want 100", att.Score)
	}
	if att.Late {
		t.Fatal("on-time submission flagged late")
	}
	if att.ExamAverage == nil || *att.ExamAverage != 100 {
		t.Fatalf("exam average = %v, want 100", att.ExamAverage)
	}

	// A second start after submission is a conflict, not a new attempt.
	rec = env.do("POST", "/student/exams/"+env.exam.ID+"/start", env.studentToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("restart after submit status = %d, want 409", rec.Code)
	}

	rec = env.do("GET", "/student/exams/"+env.exam.ID+"/result", env.studentToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Score       *int     `json:"score"`
		ExamAverage *float64 `json:"exam_average"`
	}
	decodeBody(t, rec, &result)
	if result.Score == nil || *result.Score != 100 {
		t.Fatalf("result score = %v, want 100", result.Score)
	}
	if result.ExamAverage == nil || *result.ExamAverage != 100 {
		t.Fatalf("result exam average = %v, want 100", result.ExamAverage)
	}
}

func TestStartOutsideWindow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("POST", "/student/exams/"+env.exam.ID+"/start", env.studentToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("start before window status = %d, want 409: %s", rec.Code, rec.Body.String())
	}

	env.clock.Set(windowEnd.Add(time.Minute))
	rec = env.do("POST", "/student/exams/"+env.exam.ID+"/start", env.studentToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("start after window status = %d, want 409", rec.Code)
	}
}

func TestAdminStudentCRUD(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{
		"username":       "newstu",
		"password":       "pw",
		"full_name":      "New Student",
		"student_number": "20250099",
	}
	rec := env.do("POST", "/admin/students", env.adminToken, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create student status = %d: %s", rec.Code, rec.Body.String())
	}
	var created roster.Student
	decodeBody(t, rec, &created)

	// Same username again conflicts.
	body["student_number"] = "20250100"
	if rec := env.do("POST", "/admin/students", env.adminToken, body); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate username status = %d, want 409", rec.Code)
	}

	rec = env.do("GET", "/admin/users/check-username/newstu", env.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check-username status = %d", rec.Code)
	}
	var check struct {
		Exists bool `json:"exists"`
	}
	decodeBody(t, rec, &check)
	if !check.Exists {
		t.Fatal("check-username missed an existing account")
	}

	rec = env.do("DELETE", "/admin/students/"+created.ID, env.adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete student status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := env.do("DELETE", "/admin/students/"+created.ID, env.adminToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing student status = %d, want 404", rec.Code)
	}
}

func TestInstructorOwnership(t *testing.T) {
	env := newTestEnv(t)

	other, err := env.roster.CreateInstructor(context.Background(), "other", "pw", "Other Person", "Mathematics")
	if err != nil {
		t.Fatalf("create instructor: %v", err)
	}
	otherToken := env.token(other.UserID, roster.RoleInstructor)

	rec := env.do("GET", "/instructor/courses/"+env.course.ID+"/students", otherToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign course status = %d, want 403: %s", rec.Code, rec.Body.String())
	}

	rec = env.do("GET", "/instructor/courses/"+env.course.ID+"/students", env.teachToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("own course status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInstructorSeesAnswerKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do("GET", "/instructor/exams/"+env.exam.ID+"/questions", env.teachToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("questions status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "correct_answer") {
		t.Fatal("instructor view is missing the answer key")
	}
}

func TestDepartmentHeadStatistics(t *testing.T) {
	env := newTestEnv(t)

	dh, err := env.roster.CreateDepartmentHead(context.Background(), "head", "pw", "Head Person", "Computer Science")
	if err != nil {
		t.Fatalf("create head: %v", err)
	}
	headToken := env.token(dh.UserID, roster.RoleDepartmentHead)

	rec := env.do("GET", "/department-head/statistics", headToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("statistics status = %d: %s", rec.Code, rec.Body.String())
	}
	var stats struct {
		TotalStudents int `json:"total_students"`
		TotalCourses  int `json:"total_courses"`
	}
	decodeBody(t, rec, &stats)
	if stats.TotalStudents != 1 || stats.TotalCourses != 1 {
		t.Fatalf("unexpected headcounts: %+v", stats)
	}

	rec = env.do("GET", "/department-head/courses/"+env.course.ID, headToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("course details status = %d: %s", rec.Code, rec.Body.String())
	}
}
