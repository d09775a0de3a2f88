package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/roster"
	"github.com/trezcool/gradebook/core/session"
	"github.com/trezcool/gradebook/storage/kv/memkv"
	"github.com/trezcool/gradebook/tests"
)

func setup(t *testing.T) (*session.Manager, *roster.Service) {
	svc := testutil.NewRosterService(t, memkv.Open().NewStore())
	testutil.CreateStudent(t, svc, "S1", "Ada", "CS", "1", "A", "80", "90")
	return session.NewManager(svc), svc
}

func TestManager_LoginTeacher(t *testing.T) {
	mgr, _ := setup(t)
	assert.Equal(t, session.Session{}, mgr.Current())

	assert.Equal(t, roster.ErrInvalidTeacherCredentials, mgr.LoginTeacher("admin", "nope"))
	assert.Equal(t, session.LoggedOut, mgr.Current().State)

	require.NoError(t, mgr.LoginTeacher("admin", "admin"))
	sess := mgr.Current()
	assert.Equal(t, session.LoggedInTeacher, sess.State)
	assert.Equal(t, "admin", sess.Username)
	assert.Equal(t, core.Identity{ID: "admin", Name: "admin", Role: "teacher"}, sess.Identity())

	_, ok := mgr.StudentRecord()
	assert.False(t, ok)

	mgr.Logout()
	assert.False(t, mgr.Current().LoggedIn())
}

func TestManager_LoginStudent(t *testing.T) {
	mgr, _ := setup(t)

	_, err := mgr.LoginStudent("S1", "wrong")
	assert.Equal(t, roster.ErrInvalidStudentCredentials, err)
	assert.False(t, mgr.Current().LoggedIn())

	stud, err := mgr.LoginStudent("S1", "S1")
	require.NoError(t, err)
	assert.Equal(t, session.LoggedInStudent, mgr.Current().State)

	rec, ok := mgr.StudentRecord()
	require.True(t, ok)
	assert.Equal(t, stud, rec)

	rec.Marks[0].Mark = 0
	again, _ := mgr.StudentRecord()
	assert.Equal(t, 80.0, again.Marks[0].Mark, "snapshot must not be shared")
}

func TestManager_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes the snapshot", func(t *testing.T) {
		mgr, svc := setup(t)
		_, err := mgr.LoginStudent("S1", "S1")
		require.NoError(t, err)

		upd := testutil.CreateStudent(t, svc, "S1", "Ada", "CS", "1", "A", "20", "90")
		require.NoError(t, mgr.Reconcile())

		rec, ok := mgr.StudentRecord()
		require.True(t, ok)
		assert.Equal(t, upd, rec)
		assert.Equal(t, 20.0, rec.Marks[0].Mark)
	})

	t.Run("ends the session of a removed student", func(t *testing.T) {
		mgr, svc := setup(t)
		_, err := mgr.LoginStudent("S1", "S1")
		require.NoError(t, err)

		require.NoError(t, svc.DeleteStudent(ctx, "S1"))
		assert.Equal(t, session.ErrAccountRemoved, mgr.Reconcile())
		assert.Equal(t, session.Session{}, mgr.Current())
		assert.NoError(t, mgr.Reconcile())
	})

	t.Run("ignores teacher sessions", func(t *testing.T) {
		mgr, svc := setup(t)
		require.NoError(t, mgr.LoginTeacher("admin", "admin"))
		require.NoError(t, svc.DeleteStudent(ctx, "S1"))
		assert.NoError(t, mgr.Reconcile())
		assert.Equal(t, session.LoggedInTeacher, mgr.Current().State)
	})
}
