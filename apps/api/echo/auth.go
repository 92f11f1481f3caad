package echoapi

import (
	"bytes"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/klassenbuch/core/auth"
)

const defaultMultipartMemory = 32 << 20

// authMiddleware resolves the request identity from the session, the auth cookies
// and the form fields. The JSON-RPC body is checked later, once decoded.
func authMiddleware(resolver *auth.Resolver, cookies auth.CookieConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := authRequest(ctx, cookies)
			setIdentity(ctx, resolver.Resolve(ctx.Request().Context(), req))
			return next(ctx)
		}
	}
}

func authRequest(ctx echo.Context, cookies auth.CookieConfig) auth.Request {
	r := ctx.Request()
	return auth.Request{
		Current:       auth.FromContext(r.Context()),
		SessionCookie: cookieValue(ctx, cookies.Session),
		Fingerprint:   auth.Fingerprint(r.UserAgent()),
		UserIDCookie:  cookieValue(ctx, cookies.UserID),
		TokenCookie:   cookieValue(ctx, cookies.Token),
		Form:          formValues(ctx),
	}
}

func setIdentity(ctx echo.Context, id auth.Identity) {
	r := ctx.Request()
	ctx.SetRequest(r.WithContext(auth.WithIdentity(r.Context(), id)))
}

func identity(ctx echo.Context) auth.Identity {
	return auth.FromContext(ctx.Request().Context())
}

func cookieValue(ctx echo.Context, name string) string {
	if name == "" {
		return ""
	}
	c, err := ctx.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// formValues returns the form fields of a POST, query values included, or the query values on GET.
// The body is buffered and put back so the handler can still read it.
func formValues(ctx echo.Context) url.Values {
	r := ctx.Request()
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return ctx.QueryParams()
	case http.MethodPost:
		ct := r.Header.Get(echo.HeaderContentType)
		if !strings.HasPrefix(ct, echo.MIMEApplicationForm) && !strings.HasPrefix(ct, echo.MIMEMultipartForm) {
			return nil
		}
		orig := r.Body
		body, err := ioutil.ReadAll(orig)
		// replayed first, a read error of orig (body limit) surfaces again in the handler
		r.Body = ioutil.NopCloser(io.MultiReader(bytes.NewReader(body), orig))
		if err != nil {
			return nil
		}

		peek := r.Clone(r.Context())
		peek.Body = ioutil.NopCloser(bytes.NewReader(body))
		// a body that is not a valid form still leaves the query values in peek.Form
		_ = peek.ParseMultipartForm(defaultMultipartMemory)
		if peek.MultipartForm != nil {
			_ = peek.MultipartForm.RemoveAll()
		}
		return peek.Form
	}
	return nil
}
