package portal

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/roster"
	"github.com/trezcool/gradebook/core/session"
)

var (
	// errors
	ErrNotLoggedIn      = errors.New("not logged in")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnknownRole      = errors.New("unknown role")
)

// Error is returned by every failed Portal command. Its message is the reason shown to the operator.
type Error struct {
	Err    error
	Reason string
}

func (err *Error) Error() string {
	return err.Reason
}

func (err *Error) Unwrap() error {
	return err.Err
}

// Cause lets errors.Cause reach Err.
func (err *Error) Cause() error {
	return err.Err
}

// reason renders err the way the portal reports it to the operator.
func reason(err error, translator ut.Translator) string {
	switch {
	case errors.Is(err, roster.ErrInvalidTeacherCredentials):
		return "Invalid Teacher Credentials (Try admin/admin)"
	case errors.Is(err, roster.ErrInvalidStudentCredentials):
		return "Student not found or wrong password"
	case errors.Is(err, roster.ErrStudentNotFound):
		return "Student ID not found! Your teacher must add your details (ID & Name) before you can sign up."
	case errors.Is(err, session.ErrAccountRemoved):
		return "Your account has been removed."
	case errors.Is(err, ErrNotLoggedIn):
		return "Please log in first."
	case errors.Is(err, ErrPermissionDenied):
		return "You do not have permission to do this."
	case errors.Is(err, ErrUnknownRole):
		return "Please choose a role: teacher or student."
	default:
		return core.ErrorMessage(err, translator)
	}
}

func mismatchReason(id string) string {
	return fmt.Sprintf("Name mismatch! The ID %q is registered with a different name. Please contact your teacher.", id)
}
