package roster

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// stored* mirror the persisted JSON; pointers tell a missing field from a zero value.
type (
	storedMark struct {
		Subject *string  `json:"subject" validate:"required"`
		Mark    *float64 `json:"mark"`
	}

	storedStudent struct {
		ID       *string       `json:"id" validate:"required"`
		Name     *string       `json:"name" validate:"required"`
		Branch   *string       `json:"branch"`
		Year     *string       `json:"year"`
		Section  *string       `json:"section"`
		Marks    *[]storedMark `json:"marks" validate:"required,dive"`
		Password *string       `json:"pass"`
		// total, cgpa & grade are derived from marks and never trusted
	}

	storedTeacher struct {
		Username *string `json:"user" validate:"required"`
		Password *string `json:"pass" validate:"required"`
	}
)

func isEmptyValue(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || raw == "null"
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// decodeStudents parses the persisted roster, checking the shape of every record.
// Duplicate ids keep their first occurrence.
func decodeStudents(raw string, validate *validator.Validate) ([]Student, error) {
	if isEmptyValue(raw) {
		return []Student{}, nil
	}
	var stored []*storedStudent
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, errors.Wrap(err, "decoding students")
	}

	students := make([]Student, 0, len(stored))
	seen := make(map[string]bool, len(stored))
	for i, ss := range stored {
		if ss == nil {
			return nil, errors.Errorf("student #%d: null record", i)
		}
		if err := validate.Struct(ss); err != nil {
			return nil, errors.Wrapf(err, "student #%d", i)
		}
		marks := make([]SubjectMark, 0, len(*ss.Marks))
		for j, sm := range *ss.Marks {
			if sm.Mark == nil {
				return nil, errors.Errorf("student #%d: mark #%d is missing", i, j)
			}
			marks = append(marks, SubjectMark{Subject: *sm.Subject, Mark: *sm.Mark})
		}

		if seen[*ss.ID] {
			continue
		}
		seen[*ss.ID] = true

		stud := Student{
			ID:       *ss.ID,
			Name:     *ss.Name,
			Branch:   strOrEmpty(ss.Branch),
			Year:     strOrEmpty(ss.Year),
			Section:  strOrEmpty(ss.Section),
			Password: *ss.ID,
		}
		if ss.Password != nil {
			stud.Password = *ss.Password
		}
		stud.setMarks(marks)
		students = append(students, stud)
	}
	return students, nil
}

// decodeTeachers parses the persisted teacher credentials.
// An absent or empty collection yields the default credential.
func decodeTeachers(raw string, validate *validator.Validate) ([]Teacher, error) {
	if isEmptyValue(raw) {
		return defaultTeachers(), nil
	}
	var stored []*storedTeacher
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, errors.Wrap(err, "decoding teachers")
	}
	if len(stored) == 0 {
		return defaultTeachers(), nil
	}

	teachers := make([]Teacher, 0, len(stored))
	for i, st := range stored {
		if st == nil {
			return nil, errors.Errorf("teacher #%d: null record", i)
		}
		if err := validate.Struct(st); err != nil {
			return nil, errors.Wrapf(err, "teacher #%d", i)
		}
		teachers = append(teachers, Teacher{Username: *st.Username, Password: *st.Password})
	}
	return teachers, nil
}

func defaultTeachers() []Teacher {
	return []Teacher{{Username: DefaultTeacherUsername, Password: DefaultTeacherPassword}}
}

func encodeStudents(students []Student) (string, error) {
	for i := range students {
		if students[i].Marks == nil {
			students[i].Marks = []SubjectMark{}
		}
	}
	data, err := json.Marshal(students)
	if err != nil {
		return "", errors.Wrap(err, "encoding students")
	}
	return string(data), nil
}

func encodeTeachers(teachers []Teacher) (string, error) {
	data, err := json.Marshal(teachers)
	if err != nil {
		return "", errors.Wrap(err, "encoding teachers")
	}
	return string(data), nil
}
