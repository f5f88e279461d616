package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/campusworks/examportal/internal/audit"
	auth "github.com/campusworks/examportal/internal/auth/middleware"
	"github.com/campusworks/examportal/internal/config"
	"github.com/campusworks/examportal/internal/exam"
	"github.com/campusworks/examportal/internal/grades"
	"github.com/campusworks/examportal/internal/rbac"
	"github.com/campusworks/examportal/internal/roster"
)

// Handler carries the services behind the REST surface.
type Handler struct {
	roster *roster.Service
	exams  *exam.Service
	grades *grades.Aggregator
	auth   *auth.AuthService
	audit  audit.Recorder
	logger zerolog.Logger
}

func NewHandler(
	rosterSvc *roster.Service,
	examSvc *exam.Service,
	aggregator *grades.Aggregator,
	authSvc *auth.AuthService,
	trail audit.Recorder,
	logger zerolog.Logger,
) *Handler {
	if trail == nil {
		trail = audit.Discard{}
	}
	return &Handler{
		roster: rosterSvc,
		exams:  examSvc,
		grades: aggregator,
		auth:   authSvc,
		audit:  trail,
		logger: logger,
	}
}

// Router assembles the full route tree: public auth endpoints, then a
// JWT-protected group where the account's stored role gates each
// subtree through the permission table.
func (h *Handler) Router(corsCfg config.CORSConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, h.requestLogger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsCfg.AllowedOrigins,
		AllowedMethods:   corsCfg.AllowedMethods,
		AllowedHeaders:   corsCfg.AllowedHeaders,
		AllowCredentials: corsCfg.AllowCredentials,
		MaxAge:           corsCfg.MaxAge,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Post("/auth/login", h.Login)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(h.auth))
		pr.Use(auth.AttachRoleFromStore(h.roster.Store(), false))

		pr.Get("/auth/me", h.Me)

		pr.Route("/admin", func(ar chi.Router) {
			ar.Use(rbac.Require("roster:manage"))

			ar.Get("/students", h.ListStudents)
			ar.Post("/students", h.CreateStudent)
			ar.Delete("/students/{studentID}", h.DeleteStudent)
			ar.Get("/students/{studentID}/courses", h.StudentCourseIDs)

			ar.Get("/instructors", h.ListInstructors)
			ar.Post("/instructors", h.CreateInstructor)
			ar.Delete("/instructors/{instructorID}", h.DeleteInstructor)

			ar.Post("/department-heads", h.CreateDepartmentHead)

			ar.Get("/courses", h.ListCourses)
			ar.Post("/courses", h.CreateCourse)
			ar.Delete("/courses/{courseID}", h.DeleteCourse)

			ar.Get("/enrollments", h.ListEnrollments)
			ar.Post("/enrollments", h.CreateEnrollment)
			ar.Delete("/enrollments/{enrollmentID}", h.DeleteEnrollment)

			ar.Get("/users", h.ListUsers)
			ar.Put("/users/{userID}", h.UpdateUser)
			ar.Delete("/users/{userID}", h.DeleteUser)
			ar.Get("/users/check-username/{username}", h.CheckUsername)

			ar.Get("/audit", h.AuditTrail)
		})

		pr.Route("/instructor", func(ir chi.Router) {
			ir.With(rbac.Require("course:view-own")).Get("/courses", h.InstructorCourses)
			ir.With(rbac.Require("course:students")).Get("/courses/{courseID}/students", h.CourseStudents)
			ir.With(rbac.Require("exam:create")).Post("/courses/{courseID}/exams", h.CreateExam)
			ir.With(rbac.Require("exam:view")).Get("/courses/{courseID}/exams", h.CourseExams)
			ir.With(rbac.Require("exam:delete-own")).Delete("/exams/{examID}", h.DeleteExam)
			ir.With(rbac.Require("question:create")).Post("/exams/{examID}/questions", h.AddQuestion)
			ir.With(rbac.Require("exam:view")).Get("/exams/{examID}/questions", h.ExamQuestions)
			ir.With(rbac.Require("question:delete")).Delete("/questions/{questionID}", h.DeleteQuestion)
			ir.With(rbac.Require("attempt:view-all")).Get("/exams/{examID}/results", h.ExamResults)
		})

		pr.Route("/student", func(sr chi.Router) {
			sr.With(rbac.Require("course:view-own")).Get("/courses", h.StudentCourses)
			sr.With(rbac.Require("exam:view")).Get("/courses/{courseID}/exams", h.StudentCourseExams)
			sr.With(rbac.Require("attempt:start")).Post("/exams/{examID}/start", h.StartAttempt)
			sr.With(rbac.Require("attempt:submit")).Post("/exams/{examID}/submit", h.SubmitAttempt)
			sr.With(rbac.Require("attempt:view-own")).Get("/exams/{examID}/result", h.AttemptResult)
		})

		pr.Route("/department-head", func(dr chi.Router) {
			dr.Use(rbac.Require("stats:view"))
			dr.Get("/statistics", h.DepartmentStatistics)
			dr.Get("/courses", h.AllCourses)
			dr.Get("/courses/{courseID}", h.CourseDetails)
			dr.Get("/students", h.AllStudents)
		})
	})

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
