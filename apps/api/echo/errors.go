package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
	"github.com/trezcool/admissions/core/notification"
)

var (
	errUnauthorized      = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden     = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound      = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyRequests   = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
	errInvalidJSONBody   = echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	errFieldRequiredText = "this field is required"
)

// domainErrors maps the services' sentinel errors to HTTP responses.
// Anything not listed is a server error.
var domainErrors = []struct {
	err  error
	herr *echo.HTTPError
}{
	{admission.ErrNotFound, errHttpNotFound},
	{admission.ErrTemplateNotFound, errHttpNotFound},
	{notification.ErrNotFound, errHttpNotFound},
	{fee.ErrOverrideNotFound, errHttpNotFound},
	{fee.ErrNoConfig, echo.NewHTTPError(http.StatusNotFound, fee.ErrNoConfig.Error())},
	{fee.ErrClosed, echo.NewHTTPError(http.StatusBadRequest, fee.ErrClosed.Error())},
	{admission.ErrSessionClosed, echo.NewHTTPError(http.StatusBadRequest, admission.ErrSessionClosed.Error())},
	{admission.ErrAlreadyVerified, echo.NewHTTPError(http.StatusConflict, admission.ErrAlreadyVerified.Error())},
	{admission.ErrInvalidTransition, echo.NewHTTPError(http.StatusConflict, admission.ErrInvalidTransition.Error())},
}

func domainHTTPError(cause error) (*echo.HTTPError, bool) {
	for _, de := range domainErrors {
		if cause == de.err {
			return de.herr, true
		}
	}
	return nil, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				if translator != nil {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				} else {
					fldErrs[vErr.Field()] = vErr.Error()
				}
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if flds := origErr.FieldMap(); flds != nil {
				message = flds
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if herr, ok := domainHTTPError(origErr); ok {
				code = herr.Code
				message = herr.Message
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var actor core.Actor
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				actor = claims.Actor()
			}
			logger.Error(msg, errors.Wrap(err, msg), actor)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
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

func fieldRequired(field string) error {
	return core.NewFieldError(field, errFieldRequiredText)
}
