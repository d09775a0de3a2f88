// Package portal is the grade portal of one instance (one tab): login, signup, the roster and
// its dashboards, kept consistent with the other instances sharing the same store.
package portal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/roster"
	"github.com/trezcool/gradebook/core/session"
	"github.com/trezcool/gradebook/core/tabsync"
	"github.com/trezcool/gradebook/storage/kv"
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func ParseRole(name string) (Role, error) {
	switch Role(core.CleanString(name, true /* lower */)) {
	case RoleTeacher:
		return RoleTeacher, nil
	case RoleStudent:
		return RoleStudent, nil
	default:
		return "", ErrUnknownRole
	}
}

// Credentials are the login inputs: Username for teachers, ID for students.
type Credentials struct {
	Username string `json:"username"`
	ID       string `json:"id"`
	Password string `json:"password"`
}

// SignupForm registers a teacher (Username, Password) or sets a student's password (ID, Name, Password).
type SignupForm struct {
	Username string `json:"username"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Options of a Portal. Store and Logger are required;
// the validator and its translator default to core.NewValidator().
type Options struct {
	Store      kv.Store
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
}

// Portal serializes every command, query and external change on one mutex,
// so a change made by another instance is never applied in the middle of a command.
type Portal struct {
	opts    *Options
	roster  *roster.Service
	session *session.Manager
	inbox   *tabsync.Inbox
	detach  func()

	mu      sync.Mutex
	notices []string
}

// New loads the shared collections and starts listening to the other instances.
// Corrupt collections are reset and logged, never returned.
func New(ctx context.Context, opts *Options) (*Portal, error) {
	if opts.Validate == nil || opts.Translator == nil {
		opts.Validate, opts.Translator = core.NewValidator()
	}

	svc := roster.NewService(opts.Store, opts.Validate)
	p := &Portal{
		opts:    opts,
		roster:  svc,
		session: session.NewManager(svc),
		inbox:   tabsync.NewInbox(),
	}
	// subscribe first: a change landing while loading is re-applied by the next Sync
	p.detach = p.inbox.Attach(opts.Store)

	if err := svc.Load(ctx); err != nil {
		if !core.IsCorruptState(err) {
			p.detach()
			return nil, errors.Wrap(err, "loading roster")
		}
		p.opts.Logger.Warn("Stored data was corrupt and has been reset", err)
	}
	return p, nil
}

// Close stops listening to the other instances.
func (p *Portal) Close() {
	p.detach()
}

// Run applies external changes as they arrive, until ctx is done.
func (p *Portal) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.inbox.Signal():
			p.Sync()
		}
	}
}

// Sync applies the pending external changes now.
func (p *Portal) Sync() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyChanges()
}

// applyChanges must be called with p.mu held.
func (p *Portal) applyChanges() {
	for _, ch := range p.inbox.Drain() {
		value := ch.Value
		if ch.Cleared {
			value = ""
		}

		var err error
		switch ch.Key {
		case roster.StudentsKey:
			err = p.roster.ReplaceStudents(value)
			p.reconcile()
		case roster.TeachersKey:
			err = p.roster.ReplaceTeachers(value)
		default:
			continue
		}
		if err != nil {
			p.opts.Logger.Warn(fmt.Sprintf("External %s change was corrupt and has been reset", ch.Key), err)
			continue
		}
		p.opts.Logger.Debug(fmt.Sprintf("Applied external %s change", ch.Key))
	}
}

// reconcile must be called with p.mu held.
func (p *Portal) reconcile() {
	sess := p.session.Current()
	err := p.session.Reconcile()
	switch {
	case err == nil:
	case errors.Is(err, session.ErrAccountRemoved):
		p.opts.Logger.Info("Student logged out: account removed", sess.Identity())
		p.notices = append(p.notices, reason(err, p.opts.Translator))
	default:
		p.opts.Logger.Error("Refreshing session failed", err, sess.Identity())
	}
}

// begin starts a command: pending external changes are applied first.
func (p *Portal) begin() func() {
	p.mu.Lock()
	p.applyChanges()
	return p.mu.Unlock
}

func (p *Portal) fail(err error) error {
	var pErr *Error
	if errors.As(err, &pErr) {
		return err
	}
	return &Error{Err: err, Reason: reason(err, p.opts.Translator)}
}

// persistFailed logs and wraps an error that is not the operator's mistake.
func (p *Portal) persistFailed(msg string, err error) error {
	if core.IsValidation(err) {
		return p.fail(err)
	}
	switch errors.Cause(err) {
	case roster.ErrStudentNotFound, roster.ErrNameMismatch:
		return p.fail(err)
	}
	p.opts.Logger.Error(msg, err, p.session.Current().Identity())
	return p.fail(err)
}

// requireRole returns an error unless the current session has one of the roles (any session when roles is empty).
func (p *Portal) requireRole(roles ...session.State) error {
	curr := p.session.Current().State
	if curr == session.LoggedOut {
		return p.fail(ErrNotLoggedIn)
	}
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if curr == r {
			return nil
		}
	}
	return p.fail(ErrPermissionDenied)
}

func (p *Portal) Login(role Role, creds Credentials) (session.Session, error) {
	defer p.begin()()

	var err error
	switch role {
	case RoleTeacher:
		err = p.session.LoginTeacher(creds.Username, creds.Password)
	case RoleStudent:
		_, err = p.session.LoginStudent(creds.ID, creds.Password)
	default:
		err = ErrUnknownRole
	}
	if err != nil {
		return session.Session{}, p.fail(err)
	}
	sess := p.session.Current()
	p.opts.Logger.Info("Logged in", sess.Identity())
	return sess, nil
}

// Signup registers a teacher, or sets the password of a student already added by a teacher.
// It does not log in.
func (p *Portal) Signup(ctx context.Context, role Role, form SignupForm) error {
	defer p.begin()()

	switch role {
	case RoleTeacher:
		_, err := p.roster.RegisterTeacher(ctx, roster.NewTeacher{
			Username: form.Username,
			Password: form.Password,
		})
		if err != nil {
			return p.persistFailed("Registering teacher failed", err)
		}
	case RoleStudent:
		err := p.roster.SetStudentPassword(ctx, roster.StudentSignup{
			ID:       form.ID,
			Name:     form.Name,
			Password: form.Password,
		})
		if errors.Is(err, roster.ErrNameMismatch) {
			return &Error{Err: err, Reason: mismatchReason(form.ID)}
		}
		if err != nil {
			return p.persistFailed("Student signup failed", err)
		}
	default:
		return p.fail(ErrUnknownRole)
	}
	return nil
}

func (p *Portal) Logout() {
	defer p.begin()()

	if sess := p.session.Current(); sess.LoggedIn() {
		p.session.Logout()
		p.opts.Logger.Info("Logged out", sess.Identity())
	}
}

// AddOrUpdateStudent upserts a student. Teachers only.
func (p *Portal) AddOrUpdateStudent(ctx context.Context, ns roster.NewStudent) (roster.Student, error) {
	defer p.begin()()

	if err := p.requireRole(session.LoggedInTeacher); err != nil {
		return roster.Student{}, err
	}
	// ids and names are matched exactly, only the display fields are trimmed
	ns.Branch = core.CleanString(ns.Branch)
	ns.Year = core.CleanString(ns.Year)
	ns.Section = core.CleanString(ns.Section)

	stud, err := p.roster.AddOrUpdateStudent(ctx, ns)
	if err != nil {
		return roster.Student{}, p.persistFailed("Saving student failed", err)
	}
	return stud, nil
}

// DeleteStudent removes a student. Teachers only.
func (p *Portal) DeleteStudent(ctx context.Context, id string) error {
	defer p.begin()()

	if err := p.requireRole(session.LoggedInTeacher); err != nil {
		return err
	}
	if err := p.roster.DeleteStudent(ctx, id); err != nil {
		return p.persistFailed("Deleting student failed", err)
	}
	return nil
}

// QueryRoster lists the roster with a named filter ("all", "rankHigh", "failed" or "advanced").
func (p *Portal) QueryRoster(filter string, criteria roster.Criteria) ([]roster.Student, error) {
	return p.RosterSnapshot(roster.ParseFilter(filter), criteria)
}

// RosterSnapshot lists the roster. Any logged in user.
func (p *Portal) RosterSnapshot(filter roster.Filter, criteria roster.Criteria) ([]roster.Student, error) {
	defer p.begin()()

	if err := p.requireRole(); err != nil {
		return nil, err
	}
	criteria.Clean()
	return p.roster.Query(filter, criteria), nil
}

func (p *Portal) CurrentSession() session.Session {
	defer p.begin()()
	return p.session.Current()
}

// StudentOwnRecord returns the logged in student's record. Students only.
func (p *Portal) StudentOwnRecord() (roster.Student, error) {
	defer p.begin()()

	if err := p.requireRole(session.LoggedInStudent); err != nil {
		return roster.Student{}, err
	}
	stud, _ := p.session.StudentRecord()
	return stud, nil
}

// TakeNotices returns and forgets the messages queued for the operator (e.g. a forced logout).
func (p *Portal) TakeNotices() []string {
	defer p.begin()()

	notices := p.notices
	p.notices = nil
	return notices
}

// Teachers lists the registered teacher usernames. Teachers only.
func (p *Portal) Teachers() ([]string, error) {
	defer p.begin()()

	if err := p.requireRole(session.LoggedInTeacher); err != nil {
		return nil, err
	}
	teachers := p.roster.Teachers()
	names := make([]string, 0, len(teachers))
	for _, t := range teachers {
		names = append(names, t.Username)
	}
	return names, nil
}

// Summary renders one line per student, the way the dashboards show them, with each subject's status.
func Summary(s roster.Student) string {
	marks := make([]string, 0, len(s.Marks))
	for _, m := range s.Marks {
		status := "Pass"
		if !m.Passed() {
			status = "Fail"
		}
		marks = append(marks, fmt.Sprintf("%s: %g %s", m.Subject, m.Mark, status))
	}
	return fmt.Sprintf("%s | %s | %s %s %s | total %g | cgpa %.2f | %s | %s",
		s.ID, s.Name, s.Branch, s.Year, s.Section, s.Total, s.CGPA, s.Grade, strings.Join(marks, ", "))
}
