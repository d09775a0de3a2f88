package portal_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/portal"
	"github.com/trezcool/gradebook/core/roster"
	"github.com/trezcool/gradebook/core/session"
	"github.com/trezcool/gradebook/storage/kv"
	"github.com/trezcool/gradebook/storage/kv/memkv"
	"github.com/trezcool/gradebook/tests"
)

var ctx = context.Background()

func newTab(t *testing.T, store kv.Store) (*portal.Portal, *testutil.Logger) {
	logger := &testutil.Logger{}
	p, err := portal.New(ctx, &portal.Options{Store: store, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p, logger
}

func loginTeacher(t *testing.T, p *portal.Portal) {
	_, err := p.Login(portal.RoleTeacher, portal.Credentials{Username: "admin", Password: "admin"})
	require.NoError(t, err)
}

func addStudent(t *testing.T, p *portal.Portal, id, name, section string, marks ...string) roster.Student {
	stud, err := p.AddOrUpdateStudent(ctx, roster.NewStudent{
		ID: id, Name: name, Branch: "CS", Year: "1", Section: section, Marks: marks,
	})
	require.NoError(t, err)
	return stud
}

func reasonOf(t *testing.T, err error) string {
	var pErr *portal.Error
	require.True(t, errors.As(err, &pErr), "err = %#v", err)
	return pErr.Reason
}

func TestPortal_Login(t *testing.T) {
	p, logger := newTab(t, memkv.Open().NewStore())

	tests := []struct {
		name       string
		role       portal.Role
		creds      portal.Credentials
		wantState  session.State
		wantReason string
	}{
		{
			name:       "bad teacher",
			role:       portal.RoleTeacher,
			creds:      portal.Credentials{Username: "admin", Password: "x"},
			wantReason: "Invalid Teacher Credentials (Try admin/admin)",
		},
		{
			name:       "unknown student",
			role:       portal.RoleStudent,
			creds:      portal.Credentials{ID: "S1", Password: "S1"},
			wantReason: "Student not found or wrong password",
		},
		{
			name:       "unknown role",
			role:       portal.Role("parent"),
			wantReason: "Please choose a role: teacher or student.",
		},
		{
			name:       "padded username",
			role:       portal.RoleTeacher,
			creds:      portal.Credentials{Username: " admin", Password: "admin"},
			wantReason: "Invalid Teacher Credentials (Try admin/admin)",
		},
		{
			name:      "default teacher",
			role:      portal.RoleTeacher,
			creds:     portal.Credentials{Username: "admin", Password: "admin"},
			wantState: session.LoggedInTeacher,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := p.Login(tt.role, tt.creds)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, reasonOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, sess.State)
			assert.Equal(t, sess, p.CurrentSession())
		})
	}
	assert.True(t, logger.Has("INFO", "Logged in"))

	p.Logout()
	assert.False(t, p.CurrentSession().LoggedIn())
	assert.True(t, logger.Has("INFO", "Logged out"))
}

func TestPortal_roles(t *testing.T) {
	p, _ := newTab(t, memkv.Open().NewStore())

	_, err := p.QueryRoster("all", roster.Criteria{})
	assert.True(t, errors.Is(err, portal.ErrNotLoggedIn))
	_, err = p.AddOrUpdateStudent(ctx, roster.NewStudent{ID: "S1", Name: "Ada"})
	assert.True(t, errors.Is(err, portal.ErrNotLoggedIn))
	_, err = p.StudentOwnRecord()
	assert.True(t, errors.Is(err, portal.ErrNotLoggedIn))

	loginTeacher(t, p)
	addStudent(t, p, "S1", "Ada", "A", "80")
	_, err = p.StudentOwnRecord()
	assert.True(t, errors.Is(err, portal.ErrPermissionDenied))

	_, err = p.Login(portal.RoleStudent, portal.Credentials{ID: "S1", Password: "S1"})
	require.NoError(t, err)
	_, err = p.AddOrUpdateStudent(ctx, roster.NewStudent{ID: "S2", Name: "Bob"})
	assert.True(t, errors.Is(err, portal.ErrPermissionDenied))
	assert.True(t, errors.Is(p.DeleteStudent(ctx, "S1"), portal.ErrPermissionDenied))
	_, err = p.Teachers()
	assert.True(t, errors.Is(err, portal.ErrPermissionDenied))

	own, err := p.StudentOwnRecord()
	require.NoError(t, err)
	assert.Equal(t, "S1", own.ID)
}

func TestPortal_Signup(t *testing.T) {
	p, _ := newTab(t, memkv.Open().NewStore())
	loginTeacher(t, p)
	addStudent(t, p, "S1", "Ada Lovelace", "A", "80")
	p.Logout()

	tests := []struct {
		name       string
		role       portal.Role
		form       portal.SignupForm
		wantReason string
	}{
		{
			name:       "student not added",
			role:       portal.RoleStudent,
			form:       portal.SignupForm{ID: "S9", Name: "Ada Lovelace", Password: "abc1"},
			wantReason: "Student ID not found! Your teacher must add your details (ID & Name) before you can sign up.",
		},
		{
			name:       "name mismatch",
			role:       portal.RoleStudent,
			form:       portal.SignupForm{ID: "S1", Name: "Ada Byron", Password: "abc1"},
			wantReason: `Name mismatch! The ID "S1" is registered with a different name. Please contact your teacher.`,
		},
		{
			name:       "student bad password",
			role:       portal.RoleStudent,
			form:       portal.SignupForm{ID: "S1", Name: "Ada Lovelace", Password: "abc!"},
			wantReason: "Invalid Password: Only letters (A-Z, a-z) and numbers (0-9) are allowed. No spaces or special characters.",
		},
		{
			name:       "teacher bad username",
			role:       portal.RoleTeacher,
			form:       portal.SignupForm{Username: "bob1", Password: "abc1"},
			wantReason: "Invalid Username: Please use only letters (A-Z, a-z). No numbers, spaces, or special characters.",
		},
		{
			name:       "teacher taken username",
			role:       portal.RoleTeacher,
			form:       portal.SignupForm{Username: "admin", Password: "abc1"},
			wantReason: roster.ErrUsernameExists.Error(),
		},
		{name: "student ok", role: portal.RoleStudent, form: portal.SignupForm{ID: "S1", Name: "ada LOVELACE", Password: "abc1"}},
		{name: "teacher ok", role: portal.RoleTeacher, form: portal.SignupForm{Username: "bob", Password: "abc1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Signup(ctx, tt.role, tt.form)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, reasonOf(t, err))
				assert.Equal(t, tt.wantReason, err.Error())
				return
			}
			require.NoError(t, err)
			assert.False(t, p.CurrentSession().LoggedIn(), "signup must not log in")
		})
	}

	_, err := p.Login(portal.RoleStudent, portal.Credentials{ID: "S1", Password: "abc1"})
	assert.NoError(t, err)
	_, err = p.Login(portal.RoleTeacher, portal.Credentials{Username: "bob", Password: "abc1"})
	assert.NoError(t, err)
}

func TestPortal_invalidStudentName(t *testing.T) {
	p, _ := newTab(t, memkv.Open().NewStore())
	loginTeacher(t, p)

	_, err := p.AddOrUpdateStudent(ctx, roster.NewStudent{ID: "S1", Name: "R2 D2"})
	assert.True(t, core.IsValidation(err))
	assert.Equal(t,
		"Invalid Name: Please use only letters and single spaces between words (no numbers or special characters).",
		reasonOf(t, err))

	_, err = p.AddOrUpdateStudent(ctx, roster.NewStudent{ID: "S1", Name: " Ada"})
	assert.True(t, core.IsValidation(err), "names are not trimmed")

	list, err := p.QueryRoster("all", roster.Criteria{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPortal_exactIDs(t *testing.T) {
	p, _ := newTab(t, memkv.Open().NewStore())
	loginTeacher(t, p)

	stud := addStudent(t, p, " S1 ", "Ada", " A ")
	assert.Equal(t, " S1 ", stud.ID)
	assert.Equal(t, "A", stud.Section)

	require.NoError(t, p.DeleteStudent(ctx, "S1"))
	list, err := p.QueryRoster("all", roster.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, []string{" S1 "}, testutil.StudentIDs(list), "ids are matched exactly")

	p.Logout()
	_, err = p.Login(portal.RoleStudent, portal.Credentials{ID: "S1", Password: " S1 "})
	assert.Equal(t, "Student not found or wrong password", reasonOf(t, err))
	_, err = p.Login(portal.RoleStudent, portal.Credentials{ID: " S1 ", Password: " S1 "})
	assert.NoError(t, err)
}

func TestPortal_crossTab(t *testing.T) {
	db := memkv.Open()
	teacherTab, _ := newTab(t, db.NewStore())
	studentTab, logger := newTab(t, db.NewStore())

	loginTeacher(t, teacherTab)
	addStudent(t, teacherTab, "S1", "Ada", "A", "80", "90")
	addStudent(t, teacherTab, "S2", "Bob", "a", "20")

	// the student tab sees the teacher tab's writes before its next command
	_, err := studentTab.Login(portal.RoleStudent, portal.Credentials{ID: "S1", Password: "S1"})
	require.NoError(t, err)
	assert.True(t, logger.Has("DEBUG", "Applied external students change"))

	t.Run("marks changed", func(t *testing.T) {
		addStudent(t, teacherTab, "S1", "Ada", "A", "30", "90")

		own, err := studentTab.StudentOwnRecord()
		require.NoError(t, err)
		assert.Equal(t, 30.0, own.Marks[0].Mark)
		assert.Equal(t, "Fail", own.Grade)
		assert.Equal(t, session.LoggedInStudent, studentTab.CurrentSession().State)
	})

	t.Run("teacher registered in another tab", func(t *testing.T) {
		require.NoError(t, teacherTab.Signup(ctx, portal.RoleTeacher, portal.SignupForm{Username: "carol", Password: "pwd1"}))
		other, _ := newTab(t, db.NewStore())
		_, err := other.Login(portal.RoleTeacher, portal.Credentials{Username: "carol", Password: "pwd1"})
		assert.NoError(t, err)
		studentTab.Sync()
	})

	t.Run("account removed", func(t *testing.T) {
		require.NoError(t, teacherTab.DeleteStudent(ctx, "S1"))
		studentTab.Sync()

		assert.Equal(t, session.LoggedOut, studentTab.CurrentSession().State)
		assert.Equal(t, []string{"Your account has been removed."}, studentTab.TakeNotices())
		assert.Empty(t, studentTab.TakeNotices())
		assert.True(t, logger.Has("INFO", "Student logged out: account removed"))

		_, err := studentTab.Login(portal.RoleStudent, portal.Credentials{ID: "S1", Password: "S1"})
		assert.Error(t, err)
	})

	t.Run("corrupt external change", func(t *testing.T) {
		require.NoError(t, db.NewStore().Set(ctx, roster.StudentsKey, "{not json"))
		loginTeacher(t, studentTab)

		list, err := studentTab.QueryRoster("all", roster.Criteria{})
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.True(t, logger.Has("WARN", "External students change was corrupt and has been reset"))
	})

	t.Run("cleared", func(t *testing.T) {
		addStudent(t, teacherTab, "S3", "Carl", "B", "70")
		require.NoError(t, db.NewStore().Remove(ctx, roster.TeachersKey))

		_, err := studentTab.Login(portal.RoleTeacher, portal.Credentials{Username: "carol", Password: "pwd1"})
		assert.Error(t, err, "cleared teachers reseed the default only")
		loginTeacher(t, studentTab)
		list, err := studentTab.QueryRoster("all", roster.Criteria{})
		require.NoError(t, err)
		// the teacher tab had applied the reset roster before adding S3
		assert.Equal(t, []string{"S3"}, testutil.StudentIDs(list))
	})
}

func TestPortal_Run(t *testing.T) {
	db := memkv.Open()
	writer, _ := newTab(t, db.NewStore())
	reader, logger := newTab(t, db.NewStore())
	_, err := reader.Login(portal.RoleTeacher, portal.Credentials{Username: "admin", Password: "admin"})
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- reader.Run(runCtx) }()

	loginTeacher(t, writer)
	addStudent(t, writer, "S1", "Ada", "A", "80")

	// applied with no command on the reader
	assert.Eventually(t, func() bool {
		return logger.Has("DEBUG", "Applied external students change")
	}, time.Second, 10*time.Millisecond)
	list, err := reader.QueryRoster("all", roster.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, testutil.StudentIDs(list))

	cancel()
	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("Run() did not stop")
	}
}

func TestPortal_corruptOnLoad(t *testing.T) {
	store := memkv.Open().NewStore()
	require.NoError(t, store.Set(ctx, roster.TeachersKey, `[{"user":5}]`))

	p, logger := newTab(t, store)
	assert.True(t, logger.Has("WARN", "Stored data was corrupt and has been reset"))
	loginTeacher(t, p)
}

func TestParseRole(t *testing.T) {
	role, err := portal.ParseRole(" Teacher")
	require.NoError(t, err)
	assert.Equal(t, portal.RoleTeacher, role)
	_, err = portal.ParseRole("admin")
	assert.Equal(t, portal.ErrUnknownRole, err)
}
