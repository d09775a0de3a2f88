// Package session tracks who is logged in to one portal instance.
package session

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/roster"
)

var ErrAccountRemoved = errors.New("account has been removed")

type State int

const (
	LoggedOut State = iota
	LoggedInTeacher
	LoggedInStudent
)

func (s State) String() string {
	switch s {
	case LoggedInTeacher:
		return "teacher"
	case LoggedInStudent:
		return "student"
	default:
		return "loggedOut"
	}
}

// Roster is what the Manager needs from the roster service.
type Roster interface {
	AuthenticateTeacher(uname, pwd string) (roster.Teacher, error)
	AuthenticateStudent(id, pwd string) (roster.Student, error)
	FindStudentByID(id string) (roster.Student, error)
}

// Session is a copy of the Manager's state.
type Session struct {
	State    State          `json:"state"`
	Username string         `json:"username,omitempty"` // LoggedInTeacher
	Student  roster.Student `json:"-"`                  // LoggedInStudent: the cached snapshot
}

func (s Session) LoggedIn() bool {
	return s.State != LoggedOut
}

// Identity describes the logged in person for log entries.
func (s Session) Identity() core.Identity {
	switch s.State {
	case LoggedInTeacher:
		return core.Identity{ID: s.Username, Name: s.Username, Role: s.State.String()}
	case LoggedInStudent:
		return core.Identity{ID: s.Student.ID, Name: s.Student.Name, Role: s.State.String()}
	default:
		return core.Identity{}
	}
}

type Manager struct {
	roster Roster

	mu   sync.RWMutex
	curr Session
}

func NewManager(r Roster) *Manager {
	return &Manager{roster: r}
}

// LoginTeacher replaces the current session with a teacher session.
// The current session is kept when authentication fails.
func (m *Manager) LoginTeacher(uname, pwd string) error {
	teacher, err := m.roster.AuthenticateTeacher(uname, pwd)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.curr = Session{State: LoggedInTeacher, Username: teacher.Username}
	return nil
}

// LoginStudent replaces the current session with a student session holding a snapshot of the record.
func (m *Manager) LoginStudent(id, pwd string) (roster.Student, error) {
	stud, err := m.roster.AuthenticateStudent(id, pwd)
	if err != nil {
		return roster.Student{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.curr = Session{State: LoggedInStudent, Student: stud.Clone()}
	return stud, nil
}

func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.curr = Session{}
}

func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess := m.curr
	if sess.State == LoggedInStudent {
		sess.Student = sess.Student.Clone()
	}
	return sess
}

// StudentRecord returns the cached snapshot of the logged in student.
func (m *Manager) StudentRecord() (roster.Student, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.curr.State != LoggedInStudent {
		return roster.Student{}, false
	}
	return m.curr.Student.Clone(), true
}

// Reconcile re-reads the logged in student's record after the roster was replaced.
// The snapshot is refreshed when the record still exists; otherwise the session ends
// and ErrAccountRemoved is returned. Teacher sessions are left untouched.
func (m *Manager) Reconcile() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.curr.State != LoggedInStudent {
		return nil
	}
	stud, err := m.roster.FindStudentByID(m.curr.Student.ID)
	switch {
	case err == nil:
		m.curr.Student = stud
		return nil
	case errors.Is(err, roster.ErrStudentNotFound):
		m.curr = Session{}
		return ErrAccountRemoved
	default:
		return errors.Wrap(err, "refreshing student session")
	}
}
