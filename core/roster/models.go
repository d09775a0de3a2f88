package roster

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grade"
)

// Store keys
const (
	StudentsKey = "students"
	TeachersKey = "teachers"
)

// default teacher credential, always present when no teacher collection was ever persisted
const (
	DefaultTeacherUsername = "admin"
	DefaultTeacherPassword = "admin"
)

type SubjectMark struct {
	Subject string  `json:"subject"`
	Mark    float64 `json:"mark"`
}

func (sm SubjectMark) Passed() bool {
	return sm.Mark >= grade.PassMark
}

type Student struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Branch   string        `json:"branch"`
	Year     string        `json:"year"`
	Section  string        `json:"section"`
	Marks    []SubjectMark `json:"marks"`
	Total    float64       `json:"total"`
	CGPA     float64       `json:"cgpa"`
	Grade    string        `json:"grade"`
	Password string        `json:"pass"` // cleartext; compared by exact equality
}

// setMarks replaces the marks and recomputes every derived field.
func (s *Student) setMarks(marks []SubjectMark) {
	values := make([]float64, 0, len(marks))
	for _, m := range marks {
		values = append(values, m.Mark)
	}
	res := grade.Compute(values)

	s.Marks = marks
	s.Total = res.Total
	s.CGPA = res.CGPA
	s.Grade = res.Grade
}

// Clone returns a deep copy of s.
func (s Student) Clone() Student {
	marks := make([]SubjectMark, len(s.Marks))
	copy(marks, s.Marks)
	s.Marks = marks
	return s
}

func (s Student) HasFailed() bool {
	return s.Grade == grade.Fail
}

type Teacher struct {
	Username string `json:"user"`
	Password string `json:"pass"`
}

// NewStudent contains the information entered by a teacher to add or update a Student.
// Marks are the raw inputs, coerced by ParseMark.
type NewStudent struct {
	ID      string   `json:"id" validate:"required"`
	Name    string   `json:"name" validate:"personname"`
	Branch  string   `json:"branch"`
	Year    string   `json:"year"`
	Section string   `json:"section"`
	Marks   []string `json:"marks"`
}

func (ns NewStudent) Validate(validate *validator.Validate) error {
	return validate.Struct(ns)
}

// StudentSignup sets the password of a Student already added by a teacher.
type StudentSignup struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"personname"`
	Password string `json:"password" validate:"password"`
}

func (su StudentSignup) Validate(validate *validator.Validate) error {
	return validate.Struct(su)
}

type NewTeacher struct {
	Username string `json:"username" validate:"username"`
	Password string `json:"password" validate:"password"`
}

func (nt NewTeacher) Validate(validate *validator.Validate) error {
	return validate.Struct(nt)
}

type Filter string

const (
	FilterAll      Filter = "all"
	FilterRankHigh Filter = "rankHigh"
	FilterFailed   Filter = "failed"
	FilterAdvanced Filter = "advanced"
)

// ParseFilter resolves a filter name; unknown names fall back to FilterAll.
func ParseFilter(name string) Filter {
	switch strings.ToLower(core.CleanString(name)) {
	case "rankhigh", "rank-high":
		return FilterRankHigh
	case "failed":
		return FilterFailed
	case "advanced":
		return FilterAdvanced
	default:
		return FilterAll
	}
}

// Criteria narrows FilterAdvanced. Empty fields match everything.
type Criteria struct {
	Branch  string `query:"branch" json:"branch"`
	Section string `query:"section" json:"section"`
}

func (c *Criteria) Clean() {
	c.Section = core.CleanString(c.Section)
}
