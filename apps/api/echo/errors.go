package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// errorBody is the JSON body of every failed non-RPC response.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// newAppHTTPErrorHandler renders errors as errorBody.
// Unexpected errors are logged as 500s; a core shutdown error also triggers shutdown.
func newAppHTTPErrorHandler(logger core.Logger, shutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body := httpError(err)
		if code == http.StatusInternalServerError {
			args := []interface{}{errors.WithStack(err)}
			if id := identity(ctx); id.Authenticated {
				args = append(args, core.Actor{ID: id.UserID})
			}
			logger.Error(fmt.Sprintf("%s %s: %v", ctx.Request().Method, ctx.Path(), err), args...)

			if core.IsShutdown(err) {
				shutdown()
			}
		}
		if ctx.Echo().Debug {
			body.Error = err.Error()
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

func httpError(err error) (int, errorBody) {
	var herr *echo.HTTPError
	if errors.As(err, &herr) {
		if inner, ok := herr.Internal.(*echo.HTTPError); ok {
			herr = inner
		}
		msg, ok := herr.Message.(string)
		if !ok {
			msg = http.StatusText(herr.Code)
		}
		return herr.Code, errorBody{Error: msg}
	}

	var verr *core.ValidationError
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, errorBody{Error: "permission denied"}
	case errors.As(err, &verr):
		body := errorBody{Error: verr.Error()}
		if len(verr.Fields) > 0 {
			body.Fields = make(map[string]string, len(verr.Fields))
			for _, fe := range verr.Fields {
				body.Fields[fe.Field] = fe.Error
			}
		}
		return http.StatusBadRequest, body
	}
	return http.StatusInternalServerError, errorBody{Error: http.StatusText(http.StatusInternalServerError)}
}
