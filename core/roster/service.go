package roster

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

var (
	// errors
	ErrStudentNotFound           = errors.New("student not found")
	ErrNameMismatch              = errors.New("name does not match the student id")
	ErrInvalidStudentCredentials = errors.New("student not found or wrong password")
	ErrInvalidTeacherCredentials = errors.New("invalid teacher credentials")
	ErrUsernameExists            = errors.New("a teacher with this username already exists")
)

// Storage is the shared key-value store the collections are persisted to.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Service owns the roster and the teacher credentials.
// It is the only writer of both collections to Storage.
type Service struct {
	store    Storage
	validate *validator.Validate

	mu       sync.RWMutex
	students []Student
	teachers []Teacher
}

func NewService(store Storage, validate *validator.Validate) *Service {
	return &Service{
		store:    store,
		validate: validate,
		students: []Student{},
		teachers: defaultTeachers(),
	}
}

// Load reads both collections from Storage.
// Missing or corrupt data is replaced by an empty roster and the default teacher;
// a *core.CorruptStateError is still returned so callers can report it.
func (svc *Service) Load(ctx context.Context) error {
	errStud := svc.LoadStudents(ctx)
	errTeach := svc.LoadTeachers(ctx)
	if errStud != nil {
		return errStud
	}
	return errTeach
}

func (svc *Service) LoadStudents(ctx context.Context) error {
	raw, _, err := svc.store.Get(ctx, StudentsKey)
	if err != nil {
		svc.mu.Lock()
		svc.students = []Student{}
		svc.mu.Unlock()
		return errors.Wrap(err, "reading students")
	}
	return svc.ReplaceStudents(raw)
}

func (svc *Service) LoadTeachers(ctx context.Context) error {
	raw, _, err := svc.store.Get(ctx, TeachersKey)
	if err != nil {
		svc.mu.Lock()
		svc.teachers = defaultTeachers()
		svc.mu.Unlock()
		return errors.Wrap(err, "reading teachers")
	}
	return svc.ReplaceTeachers(raw)
}

// ReplaceStudents swaps the whole roster for the serialized one, without persisting it.
// An empty value clears the roster.
func (svc *Service) ReplaceStudents(raw string) error {
	students, err := decodeStudents(raw, svc.validate)
	if err != nil {
		students = []Student{}
		err = core.NewCorruptStateError(StudentsKey, err)
	}
	svc.mu.Lock()
	svc.students = students
	svc.mu.Unlock()
	return err
}

// ReplaceTeachers swaps the teacher credentials for the serialized ones, without persisting them.
func (svc *Service) ReplaceTeachers(raw string) error {
	teachers, err := decodeTeachers(raw, svc.validate)
	if err != nil {
		teachers = defaultTeachers()
		err = core.NewCorruptStateError(TeachersKey, err)
	}
	svc.mu.Lock()
	svc.teachers = teachers
	svc.mu.Unlock()
	return err
}

func (svc *Service) saveStudents(ctx context.Context, students []Student) error {
	raw, err := encodeStudents(students)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.store.Set(ctx, StudentsKey, raw), "saving students")
}

func (svc *Service) saveTeachers(ctx context.Context, teachers []Teacher) error {
	raw, err := encodeTeachers(teachers)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.store.Set(ctx, TeachersKey, raw), "saving teachers")
}

// AddOrUpdateStudent upserts a Student keyed on its id.
// An existing Student keeps its password; a new one gets its id as password.
func (svc *Service) AddOrUpdateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}

	stud := Student{
		ID:       ns.ID,
		Name:     ns.Name,
		Branch:   ns.Branch,
		Year:     ns.Year,
		Section:  ns.Section,
		Password: ns.ID,
	}
	stud.setMarks(ParseMarks(ns.Marks))

	svc.mu.Lock()
	defer svc.mu.Unlock()

	next := cloneStudents(svc.students)
	if idx := indexOf(next, ns.ID); idx >= 0 {
		stud.Password = next[idx].Password
		next[idx] = stud
	} else {
		next = append(next, stud)
	}
	if err := svc.saveStudents(ctx, next); err != nil {
		return Student{}, err
	}
	svc.students = next
	return stud.Clone(), nil
}

// DeleteStudent removes the Student with id, if any. The roster is persisted either way.
func (svc *Service) DeleteStudent(ctx context.Context, id string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	next := make([]Student, 0, len(svc.students))
	for _, s := range svc.students {
		if s.ID != id {
			next = append(next, s.Clone())
		}
	}
	if err := svc.saveStudents(ctx, next); err != nil {
		return err
	}
	svc.students = next
	return nil
}

func (svc *Service) FindStudentByID(id string) (Student, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	if idx := indexOf(svc.students, id); idx >= 0 {
		return svc.students[idx].Clone(), nil
	}
	return Student{}, ErrStudentNotFound
}

func (svc *Service) AuthenticateStudent(id, pwd string) (Student, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	for _, s := range svc.students {
		if s.ID == id && s.Password == pwd {
			return s.Clone(), nil
		}
	}
	return Student{}, ErrInvalidStudentCredentials
}

func (svc *Service) AuthenticateTeacher(uname, pwd string) (Teacher, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	for _, t := range svc.teachers {
		if t.Username == uname && t.Password == pwd {
			return t, nil
		}
	}
	return Teacher{}, ErrInvalidTeacherCredentials
}

// RegisterTeacher appends a new teacher credential. Usernames are unique.
func (svc *Service) RegisterTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	if err := nt.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	for _, t := range svc.teachers {
		if t.Username == nt.Username {
			return Teacher{}, core.NewValidationError(ErrUsernameExists, core.FieldError{
				Field: "username",
				Error: ErrUsernameExists.Error(),
			})
		}
	}

	teacher := Teacher{Username: nt.Username, Password: nt.Password}
	next := make([]Teacher, len(svc.teachers), len(svc.teachers)+1)
	copy(next, svc.teachers)
	next = append(next, teacher)
	if err := svc.saveTeachers(ctx, next); err != nil {
		return Teacher{}, err
	}
	svc.teachers = next
	return teacher, nil
}

// SetStudentPassword lets a Student added by a teacher choose their password.
// The name must match the stored one, ignoring case and surrounding whitespace.
func (svc *Service) SetStudentPassword(ctx context.Context, su StudentSignup) error {
	if err := su.Validate(svc.validate); err != nil {
		return err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	idx := indexOf(svc.students, su.ID)
	if idx < 0 {
		return ErrStudentNotFound
	}
	if core.CleanString(svc.students[idx].Name, true /* lower */) != core.CleanString(su.Name, true /* lower */) {
		return ErrNameMismatch
	}

	next := cloneStudents(svc.students)
	next[idx].Password = su.Password
	if err := svc.saveStudents(ctx, next); err != nil {
		return err
	}
	svc.students = next
	return nil
}

// Query returns copies of the Students selected by filter, in display order.
func (svc *Service) Query(filter Filter, criteria Criteria) []Student {
	svc.mu.RLock()
	students := cloneStudents(svc.students)
	svc.mu.RUnlock()

	switch filter {
	case FilterRankHigh:
		sort.SliceStable(students, func(i, j int) bool { return students[i].CGPA > students[j].CGPA })
	case FilterFailed:
		filtered := students[:0]
		for _, s := range students {
			if s.HasFailed() {
				filtered = append(filtered, s)
			}
		}
		students = filtered
	case FilterAdvanced:
		filtered := students[:0]
		section := strings.ToLower(criteria.Section)
		for _, s := range students {
			if criteria.Branch != "" && s.Branch != criteria.Branch {
				continue
			}
			if section != "" && strings.ToLower(s.Section) != section {
				continue
			}
			filtered = append(filtered, s)
		}
		students = filtered
	}
	return students
}

// Teachers returns a copy of the teacher credentials.
func (svc *Service) Teachers() []Teacher {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	teachers := make([]Teacher, len(svc.teachers))
	copy(teachers, svc.teachers)
	return teachers
}

func indexOf(students []Student, id string) int {
	for i, s := range students {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func cloneStudents(students []Student) []Student {
	clones := make([]Student, 0, len(students))
	for _, s := range students {
		clones = append(clones, s.Clone())
	}
	return clones
}
