package echoapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/klassenbuch/core"
	testutil "github.com/trezcool/klassenbuch/tests"
)

func Test_httpError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody errorBody
	}{
		{name: "http error", err: errUnauthorized, wantCode: http.StatusUnauthorized, wantBody: errorBody{Error: "user not authenticated"}},
		{
			name:     "wrapped http error",
			err:      &echo.HTTPError{Code: http.StatusBadGateway, Message: "upstream", Internal: errHttpNotFound},
			wantCode: http.StatusNotFound,
			wantBody: errorBody{Error: "not found"},
		},
		{name: "not found", err: fmt.Errorf("loading file: %w", core.ErrNotFound), wantCode: http.StatusNotFound, wantBody: errorBody{Error: "not found"}},
		{name: "forbidden", err: errors.Wrap(core.ErrForbidden, "renaming"), wantCode: http.StatusForbidden, wantBody: errorBody{Error: "permission denied"}},
		{
			name:     "validation",
			err:      core.NewValidationError(errors.New("invalid file"), core.FieldError{Field: "name", Error: "this field is required"}),
			wantCode: http.StatusBadRequest,
			wantBody: errorBody{Error: "invalid file", Fields: map[string]string{"name": "this field is required"}},
		},
		{name: "unexpected", err: errors.New("disk on fire"), wantCode: http.StatusInternalServerError, wantBody: errorBody{Error: "Internal Server Error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := httpError(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func Test_newAppHTTPErrorHandler(t *testing.T) {
	logger := new(testutil.Logger)
	var shutdowns int
	handler := newAppHTTPErrorHandler(logger, func() { shutdowns++ })

	e := echo.New()
	for _, err := range []error{errHttpNotFound, core.NewShutdownError("integrity issue")} {
		rec := httptest.NewRecorder()
		ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/files/1", nil), rec)
		handler(err, ctx)
	}

	assert.Equal(t, 1, shutdowns)
	if assert.Len(t, logger.Lines, 1) {
		assert.Contains(t, logger.Lines[0], "integrity issue")
	}
}
