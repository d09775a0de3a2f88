package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/portal"
	"github.com/trezcool/gradebook/core/roster"
)

var (
	errHttpMissingTab = echo.NewHTTPError(http.StatusBadRequest, "missing "+TabHeader+" header")
	errHttpUnknownTab = echo.NewHTTPError(http.StatusNotFound, "tab not found")
)

// statusOf maps a failed portal command to its HTTP status.
func statusOf(err error) int {
	switch {
	case core.IsValidation(err),
		errors.Is(err, roster.ErrNameMismatch),
		errors.Is(err, portal.ErrUnknownRole):
		return http.StatusBadRequest
	case errors.Is(err, roster.ErrInvalidTeacherCredentials),
		errors.Is(err, roster.ErrInvalidStudentCredentials),
		errors.Is(err, portal.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, portal.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, roster.ErrStudentNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fieldErrors renders validation failures as {field: message}, or nil for any other error.
func fieldErrors(err error, translator ut.Translator) map[string]string {
	var fldErrs validator.ValidationErrors
	if errors.As(err, &fldErrs) {
		msgs := make(map[string]string, len(fldErrs))
		for _, vErr := range fldErrs {
			msgs[vErr.Field()] = vErr.Translate(translator)
		}
		return msgs
	}
	var vErr *core.ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
		msgs := make(map[string]string, len(vErr.Fields))
		for _, fErr := range vErr.Fields {
			msgs[fErr.Field] = fErr.Error
		}
		return msgs
	}
	return nil
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var pErr *portal.Error
		var hErr *echo.HTTPError
		switch {
		case errors.As(err, &pErr):
			code = statusOf(pErr.Err)
			if flds := fieldErrors(pErr.Err, translator); flds != nil {
				message = flds
			} else {
				message = pErr.Reason
			}
			if code == http.StatusInternalServerError {
				logger.Error(pErr.Reason, err)
			}
		case errors.As(err, &hErr):
			if hErr.Internal != nil {
				if herr, ok := hErr.Internal.(*echo.HTTPError); ok {
					hErr = herr
				}
			}
			code = hErr.Code
			message = hErr.Message
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, errors.Wrap(err, msg))
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
