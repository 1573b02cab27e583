package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/heroesdelapatria/portal/core"
)

const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeNotFound       = "NOT_FOUND"
	codeInternal       = "INTERNAL_ERROR"
)

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func fieldsMap(flds []core.FieldError) map[string]string {
	if len(flds) == 0 {
		return nil
	}
	m := make(map[string]string, len(flds))
	for _, fErr := range flds {
		m[fErr.Field] = fErr.Error
	}
	return m
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var resp errorResponse

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			resp.Error = fmt.Sprint(origErr.Message)
			switch code {
			case http.StatusNotFound:
				resp.Code = codeNotFound
			case http.StatusBadRequest:
				resp.Code = codeInvalidRequest
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			resp.Error = "invalid data"
			resp.Code = codeInvalidRequest
			resp.Fields = fieldsMap(core.FieldErrors(origErr, translator))
		case *core.ValidationError:
			code = http.StatusBadRequest
			resp.Error = origErr.Error()
			resp.Code = origErr.Code
			resp.Fields = fieldsMap(origErr.Fields)
		case *core.NotFoundError:
			code = http.StatusNotFound
			resp.Error = origErr.Error()
			resp.Code = origErr.Code
		case *core.ConflictError:
			code = http.StatusConflict
			resp.Error = origErr.Error()
			resp.Code = origErr.Code
		case *core.InternalError:
			code = http.StatusInternalServerError
			resp.Error = origErr.Msg
			resp.Code = origErr.Code
			resp.Message = origErr.Err.Error()
			logger.Error(origErr.Msg, err)
		default: // any other error is a server error
			code = http.StatusInternalServerError
			resp.Error = http.StatusText(http.StatusInternalServerError)
			resp.Code = codeInternal
			resp.Message = err.Error()
			logger.Error(resp.Error, err)
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// bindError turns a binding failure into a ValidationError tagged with code.
func bindError(code string, err error) error {
	msg := err.Error()
	if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
		msg = fmt.Sprint(herr.Message)
	}
	return core.NewValidationError(code, errors.New(msg))
}

// validationError turns a validation failure into a ValidationError tagged with code.
func validationError(code, msg string, err error, translator ut.Translator) error {
	if flds := core.FieldErrors(err, translator); flds != nil {
		return core.NewValidationError(code, errors.New(msg), flds...)
	}
	return core.NewValidationError(code, errors.Wrap(err, msg))
}
