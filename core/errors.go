package core

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// Unwrap lets errors.Is reach the wrapped sentinel (e.g. roster.ErrUsernameExists).
func (err ValidationError) Unwrap() error {
	return err.Err
}

// CorruptStateError reports a persisted collection that could not be decoded.
// The collection has already been reset when this error is returned.
type CorruptStateError struct {
	Key string
	Err error
}

func NewCorruptStateError(key string, err error) error {
	return &CorruptStateError{Key: key, Err: err}
}

func (err CorruptStateError) Error() string {
	return "corrupt " + err.Key + " collection: " + err.Err.Error()
}

func (err CorruptStateError) Unwrap() error {
	return err.Err
}

func IsCorruptState(err error) bool {
	var csErr *CorruptStateError
	return errors.As(err, &csErr)
}

// IsValidation reports whether err is a struct or service level validation failure.
func IsValidation(err error) bool {
	var vErr *ValidationError
	var fldErrs validator.ValidationErrors
	return errors.As(err, &vErr) || errors.As(err, &fldErrs)
}

// ErrorMessage renders err as the human-readable reason shown to the operator.
func ErrorMessage(err error, translator ut.Translator) string {
	if err == nil {
		return ""
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		if len(vErr.Fields) > 0 {
			msgs := make([]string, 0, len(vErr.Fields))
			for _, fErr := range vErr.Fields {
				msgs = append(msgs, fErr.Error)
			}
			return strings.Join(msgs, " ")
		}
		return vErr.Error()
	}
	var fldErrs validator.ValidationErrors
	if errors.As(err, &fldErrs) {
		msgs := make([]string, 0, len(fldErrs))
		for _, fErr := range fldErrs {
			msgs = append(msgs, fErr.Translate(translator))
		}
		return strings.Join(msgs, " ")
	}
	return errors.Cause(err).Error()
}
