package grades

import (
	"context"
	"math"

	"github.com/campusworks/examportal/internal/exam"
)

// CourseInfo is the slice of a course the aggregator needs.
type CourseInfo struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Roster supplies enrollment and headcount data. The roster package
// implements it; tests use a fake.
type Roster interface {
	ListCourses(ctx context.Context) ([]CourseInfo, error)
	ListEnrolledStudentIDs(ctx context.Context, courseID string) ([]string, error)
	CountStudents(ctx context.Context) (int, error)
	CountInstructors(ctx context.Context) (int, error)
}

// Aggregator derives course grades and cohort statistics from
// submitted attempts. It never writes; grades are always recomputed
// from the attempt records.
type Aggregator struct {
	store  exam.Store
	roster Roster
}

func New(store exam.Store, roster Roster) *Aggregator {
	return &Aggregator{store: store, roster: roster}
}

// GradedExam pairs an exam's weight with the student's submitted score.
type GradedExam struct {
	ExamID   string `json:"exam_id"`
	ExamType string `json:"exam_type"`
	Weight   int    `json:"weight"`
	Score    int    `json:"score"`
}

// CourseGrade is a student's standing in one course: the weighted
// average over the exams they have actually submitted, normalized by
// the attempted weight. A student who only sat the weight-40 midterm
// and scored 80 holds an 80, not a 32.
type CourseGrade struct {
	StudentID string       `json:"student_id"`
	CourseID  string       `json:"course_id"`
	Grade     *float64     `json:"grade"`
	Exams     []GradedExam `json:"exams"`
}

func (a *Aggregator) CourseGrade(ctx context.Context, studentID, courseID string) (CourseGrade, error) {
	cg := CourseGrade{StudentID: studentID, CourseID: courseID, Exams: []GradedExam{}}
	exams, err := a.store.ListExamsByCourse(ctx, courseID)
	if err != nil {
		return cg, err
	}
	for _, ex := range exams {
		att, err := a.store.GetAttemptByStudentExam(ctx, studentID, ex.ID)
		switch {
		case exam.IsKind(err, exam.KindNotFound):
			continue
		case err != nil:
			return cg, err
		}
		if !att.Submitted() || att.Score == nil {
			continue
		}
		cg.Exams = append(cg.Exams, GradedExam{
			ExamID:   ex.ID,
			ExamType: ex.ExamType,
			Weight:   ex.WeightPercent,
			Score:    *att.Score,
		})
	}
	cg.Grade = WeightedGrade(cg.Exams)
	return cg, nil
}

// WeightedGrade collapses graded exams into one number, or nil when
// nothing has been submitted.
func WeightedGrade(parts []GradedExam) *float64 {
	if len(parts) == 0 {
		return nil
	}
	var weighted, totalWeight float64
	for _, p := range parts {
		weighted += float64(p.Weight) * float64(p.Score)
		totalWeight += float64(p.Weight)
	}
	if totalWeight == 0 {
		return nil
	}
	g := round2(weighted / totalWeight)
	return &g
}

// ExamResults is the instructor view of one exam: every submitted
// attempt plus the class average over them.
type ExamResults struct {
	ExamID   string         `json:"exam_id"`
	Attempts []exam.Attempt `json:"attempts"`
	Average  *float64       `json:"average"`
}

func (a *Aggregator) ExamResults(ctx context.Context, examID string) (ExamResults, error) {
	if _, err := a.store.GetExam(ctx, examID); err != nil {
		return ExamResults{}, err
	}
	atts, err := a.store.ListSubmittedByExam(ctx, examID)
	if err != nil {
		return ExamResults{}, err
	}
	scores := make([]float64, 0, len(atts))
	for _, att := range atts {
		if att.Score != nil {
			scores = append(scores, float64(*att.Score))
		}
	}
	return ExamResults{ExamID: examID, Attempts: atts, Average: meanPtr(scores)}, nil
}

// CourseStatistics summarizes a course cohort. Students with no
// submitted attempts count toward StudentCount but not the grade
// figures.
type CourseStatistics struct {
	CourseID     string   `json:"course_id"`
	CourseCode   string   `json:"course_code"`
	CourseName   string   `json:"course_name"`
	StudentCount int      `json:"student_count"`
	GradedCount  int      `json:"graded_count"`
	Average      *float64 `json:"average"`
	Highest      *float64 `json:"highest"`
	Lowest       *float64 `json:"lowest"`
}

func (a *Aggregator) CourseStatistics(ctx context.Context, course CourseInfo) (CourseStatistics, error) {
	byStudent, err := a.courseGradeMap(ctx, course.ID)
	if err != nil {
		return CourseStatistics{CourseID: course.ID}, err
	}
	return summarizeCourse(course, byStudent), nil
}

// courseGradeMap computes every enrolled student's grade for a course.
// Students without a grade are present with a nil value so headcounts
// stay honest.
func (a *Aggregator) courseGradeMap(ctx context.Context, courseID string) (map[string]*float64, error) {
	studentIDs, err := a.roster.ListEnrolledStudentIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*float64, len(studentIDs))
	for _, sid := range studentIDs {
		cg, err := a.CourseGrade(ctx, sid, courseID)
		if err != nil {
			return nil, err
		}
		out[sid] = cg.Grade
	}
	return out, nil
}

func summarizeCourse(course CourseInfo, byStudent map[string]*float64) CourseStatistics {
	stats := CourseStatistics{CourseID: course.ID, CourseCode: course.Code, CourseName: course.Name}
	stats.StudentCount = len(byStudent)
	grades := []float64{}
	for _, g := range byStudent {
		if g != nil {
			grades = append(grades, *g)
		}
	}
	stats.GradedCount = len(grades)
	stats.Average = meanPtr(grades)
	if len(grades) > 0 {
		hi, lo := grades[0], grades[0]
		for _, g := range grades[1:] {
			hi = math.Max(hi, g)
			lo = math.Min(lo, g)
		}
		stats.Highest = &hi
		stats.Lowest = &lo
	}
	return stats
}

// DepartmentStatistics is the department-head dashboard: headcounts,
// the overall average, and per-course breakdowns. The overall average
// is the mean of per-student means, so a student enrolled in five
// courses weighs the same as one enrolled in one.
type DepartmentStatistics struct {
	TotalStudents          int                `json:"total_students"`
	TotalInstructors       int                `json:"total_instructors"`
	TotalCourses           int                `json:"total_courses"`
	TotalExams             int                `json:"total_exams"`
	TotalCompletedAttempts int                `json:"total_completed_attempts"`
	OverallAverage         *float64           `json:"overall_average"`
	Courses                []CourseStatistics `json:"course_statistics"`
}

func (a *Aggregator) DepartmentStatistics(ctx context.Context) (DepartmentStatistics, error) {
	var stats DepartmentStatistics
	courses, err := a.roster.ListCourses(ctx)
	if err != nil {
		return stats, err
	}
	if stats.TotalStudents, err = a.roster.CountStudents(ctx); err != nil {
		return stats, err
	}
	if stats.TotalInstructors, err = a.roster.CountInstructors(ctx); err != nil {
		return stats, err
	}
	if stats.TotalExams, err = a.store.CountExams(ctx); err != nil {
		return stats, err
	}
	if stats.TotalCompletedAttempts, err = a.store.CountSubmittedAttempts(ctx); err != nil {
		return stats, err
	}
	stats.TotalCourses = len(courses)
	stats.Courses = make([]CourseStatistics, 0, len(courses))

	perStudent := map[string][]float64{}
	for _, course := range courses {
		byStudent, err := a.courseGradeMap(ctx, course.ID)
		if err != nil {
			return stats, err
		}
		stats.Courses = append(stats.Courses, summarizeCourse(course, byStudent))
		for sid, g := range byStudent {
			if g != nil {
				perStudent[sid] = append(perStudent[sid], *g)
			}
		}
	}

	studentMeans := make([]float64, 0, len(perStudent))
	for _, gs := range perStudent {
		if m := meanPtr(gs); m != nil {
			studentMeans = append(studentMeans, *m)
		}
	}
	stats.OverallAverage = meanPtr(studentMeans)
	return stats, nil
}

func meanPtr(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := round2(sum / float64(len(values)))
	return &m
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
