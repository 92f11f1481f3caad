package echoapi

import (
	"bytes"
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/apps/api/rpcapi"
	"github.com/trezcool/klassenbuch/core/auth"
	"github.com/trezcool/klassenbuch/core/rpc"
)

const headerAcceptCharset = "Accept-Charset"

type rpcHandler struct {
	rpc      *rpc.Server
	resolver *auth.Resolver
	cookies  auth.CookieConfig
}

func registerRPC(app *echo.Echo, srv *rpc.Server, resolver *auth.Resolver, cookies auth.CookieConfig) {
	h := rpcHandler{rpc: srv, resolver: resolver, cookies: cookies}
	app.POST("/rpc", h.serve)
}

// serve always answers 200 with a JSON-RPC envelope; only transport failures are HTTP errors.
func (h rpcHandler) serve(ctx echo.Context) error {
	r := ctx.Request()
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return errors.Wrap(err, "reading request body")
	}
	r.Body = ioutil.NopCloser(bytes.NewReader(body))

	var resp *rpc.Response
	req, fault := h.rpc.ParseRequest(body, r.Header.Get(echo.HeaderContentEncoding), r.Header.Get(echo.HeaderContentType))
	if fault != nil {
		resp = rpc.NewFaultResponse(fault)
	} else {
		areq := authRequest(ctx, h.cookies)
		areq.Body = req.Body
		setIdentity(ctx, h.resolver.Resolve(r.Context(), areq))

		callCtx := rpcapi.WithExchange(ctx.Request().Context(), exchange{ctx: ctx, cookies: h.cookies})
		resp = h.rpc.Execute(callCtx, req)
	}

	out, err := h.rpc.WriteResponse(resp, r.Header.Get(echo.HeaderAcceptEncoding), r.Header.Get(headerAcceptCharset))
	if err != nil {
		return errors.Wrap(err, "writing rpc response")
	}
	if out.ContentEncoding != "" {
		ctx.Response().Header().Set(echo.HeaderContentEncoding, out.ContentEncoding)
		ctx.Response().Header().Add(echo.HeaderVary, echo.HeaderAcceptEncoding)
	}
	return ctx.Blob(http.StatusOK, out.ContentType, out.Body)
}

// exchange exposes the HTTP side of a call to the RPC methods.
type exchange struct {
	ctx     echo.Context
	cookies auth.CookieConfig
}

var _ rpcapi.Exchange = exchange{}

func (ex exchange) SetCookie(c *http.Cookie) { ex.ctx.SetCookie(c) }

func (ex exchange) SessionCookie() string { return cookieValue(ex.ctx, ex.cookies.Session) }

func (ex exchange) Fingerprint() string { return auth.Fingerprint(ex.ctx.Request().UserAgent()) }
