package echoapi

import (
	"bytes"
	"encoding/json"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/roster"
	"github.com/trezcool/gradebook/core/session"
)

type (
	LoginRequest struct {
		Role     string `json:"role"`
		Username string `json:"username"`
		ID       string `json:"id"`
		Password string `json:"password"`
	}

	SignupRequest struct {
		Role     string `json:"role"`
		Username string `json:"username"`
		ID       string `json:"id"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	StudentRequest struct {
		Name    string   `json:"name"`
		Branch  string   `json:"branch"`
		Year    string   `json:"year"`
		Section string   `json:"section"`
		Marks   RawMarks `json:"marks"`
	}

	// StudentResponse is a roster.Student without its password.
	StudentResponse struct {
		ID         string         `json:"id"`
		Name       string         `json:"name"`
		Branch     string         `json:"branch"`
		Year       string         `json:"year"`
		Section    string         `json:"section"`
		Marks      []MarkResponse `json:"marks"`
		Total      float64        `json:"total"`
		Percentage float64        `json:"percentage"`
		CGPA       float64        `json:"cgpa"`
		Grade      string         `json:"grade"`
	}

	MarkResponse struct {
		Subject string  `json:"subject"`
		Mark    float64 `json:"mark"`
		Passed  bool    `json:"passed"`
	}

	SessionResponse struct {
		State    string           `json:"state"`
		Username string           `json:"username,omitempty"`
		Student  *StudentResponse `json:"student,omitempty"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	NoticesResponse struct {
		Notices []string `json:"notices"`
	}
)

// RawMarks are mark inputs as typed: JSON numbers, strings or nulls are all kept as text
// and coerced later by roster.ParseMark.
type RawMarks []string

func (rm *RawMarks) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*rm = nil
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "marks must be a list")
	}
	marks := make(RawMarks, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			marks = append(marks, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			marks = append(marks, n.String())
			continue
		}
		marks = append(marks, "") // null, bool, object...: coerced to 0
	}
	*rm = marks
	return nil
}

func (sr StudentRequest) newStudent(id string) roster.NewStudent {
	return roster.NewStudent{
		ID:      id,
		Name:    sr.Name,
		Branch:  sr.Branch,
		Year:    sr.Year,
		Section: sr.Section,
		Marks:   sr.Marks,
	}
}

func newStudentResponse(s roster.Student) StudentResponse {
	values := make([]float64, 0, len(s.Marks))
	marks := make([]MarkResponse, 0, len(s.Marks))
	for _, m := range s.Marks {
		values = append(values, m.Mark)
		marks = append(marks, MarkResponse{Subject: m.Subject, Mark: m.Mark, Passed: m.Passed()})
	}
	return StudentResponse{
		ID:         s.ID,
		Name:       s.Name,
		Branch:     s.Branch,
		Year:       s.Year,
		Section:    s.Section,
		Marks:      marks,
		Total:      s.Total,
		Percentage: grade.Compute(values).Percentage,
		CGPA:       s.CGPA,
		Grade:      s.Grade,
	}
}

func newStudentsResponse(students []roster.Student) []StudentResponse {
	resp := make([]StudentResponse, 0, len(students))
	for _, s := range students {
		resp = append(resp, newStudentResponse(s))
	}
	return resp
}

func newSessionResponse(sess session.Session) SessionResponse {
	resp := SessionResponse{State: sess.State.String(), Username: sess.Username}
	if sess.State == session.LoggedInStudent {
		stud := newStudentResponse(sess.Student)
		resp.Student = &stud
	}
	return resp
}

// bindCriteria reads the roster filter & criteria from the query string.
func bindCriteria(ctx echo.Context) (string, roster.Criteria) {
	return ctx.QueryParam("filter"), roster.Criteria{
		Branch:  ctx.QueryParam("branch"),
		Section: ctx.QueryParam("section"),
	}
}
