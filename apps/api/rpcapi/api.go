package rpcapi

import (
	"context"
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/auth"
	"github.com/trezcool/klassenbuch/core/comment"
	"github.com/trezcool/klassenbuch/core/contact"
	"github.com/trezcool/klassenbuch/core/file"
	"github.com/trezcool/klassenbuch/core/gallery"
	"github.com/trezcool/klassenbuch/core/rpc"
	"github.com/trezcool/klassenbuch/core/shoutbox"
	"github.com/trezcool/klassenbuch/core/task"
	"github.com/trezcool/klassenbuch/core/user"
)

// Application error names.
const (
	ErrAuthenticationFailed = "AuthenticationFailed"
	ErrInvalidDatabaseQuery = "InvalidDatabaseQuery"
	ErrNotFound             = "NotFound"
	ErrPermissionDenied     = "PermissionDenied"
)

var errNotAuthenticated = errors.New("authentication required")

// NewErrorRegistry returns the protocol errors plus the application ones.
func NewErrorRegistry() *rpc.ErrorRegistry {
	return rpc.NewErrorRegistry().
		Register(ErrAuthenticationFailed, 801, "Authentication failed").
		Register(ErrInvalidDatabaseQuery, 802, "Invalid database query").
		Register(ErrNotFound, 803, "Not found").
		Register(ErrPermissionDenied, 804, "Permission denied")
}

type (
	// Exchange is the HTTP side of a call, needed to sign users in and out.
	Exchange interface {
		auth.CookieWriter
		SessionCookie() string
		Fingerprint() string
	}

	exchangeKey struct{}
)

func WithExchange(ctx context.Context, ex Exchange) context.Context {
	return context.WithValue(ctx, exchangeKey{}, ex)
}

func exchangeFrom(ctx context.Context) (Exchange, error) {
	if ex, ok := ctx.Value(exchangeKey{}).(Exchange); ok {
		return ex, nil
	}
	return nil, errors.New("no HTTP exchange in context")
}

type Deps struct {
	Users      *user.Service
	Tasks      *task.Service
	Comments   *comment.Service
	Contacts   *contact.Service
	Files      *file.Service
	Gallery    *gallery.Service
	Shoutbox   *shoutbox.Service
	Auth       *auth.Manager
	Errors     *rpc.ErrorRegistry
	Translator ut.Translator
	Logger     core.Logger
}

// API holds the JSON-RPC methods of the application.
type API struct {
	Deps
}

func New(deps Deps) (*API, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Users, "Users"),
		vala.IsNotNil(deps.Tasks, "Tasks"),
		vala.IsNotNil(deps.Comments, "Comments"),
		vala.IsNotNil(deps.Contacts, "Contacts"),
		vala.IsNotNil(deps.Files, "Files"),
		vala.IsNotNil(deps.Gallery, "Gallery"),
		vala.IsNotNil(deps.Shoutbox, "Shoutbox"),
		vala.IsNotNil(deps.Auth, "Auth"),
		vala.IsNotNil(deps.Errors, "Errors"),
		vala.IsNotNil(deps.Translator, "Translator"),
		vala.IsNotNil(deps.Logger, "Logger"),
	).Check(); err != nil {
		return nil, err
	}
	return &API{Deps: deps}, nil
}

// Methods returns the dispatch table of all application methods.
func (api *API) Methods() (*rpc.Methods, error) {
	methods := rpc.NewMethods()
	for _, register := range []func(*rpc.Methods) error{
		api.registerUser,
		api.registerTask,
		api.registerComment,
		api.registerContact,
		api.registerFile,
		api.registerGallery,
		api.registerShoutbox,
	} {
		if err := register(methods); err != nil {
			return nil, err
		}
	}
	return methods, nil
}

type methodSpec struct {
	name string
	h    rpc.Handler
	doc  string
	sigs []rpc.Signature
}

func registerAll(m *rpc.Methods, specs []methodSpec) error {
	for _, spec := range specs {
		if err := m.Register(spec.name, spec.h, spec.doc, spec.sigs...); err != nil {
			return err
		}
	}
	return nil
}

type actorHandler func(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error)

// authed only runs h for authenticated requests, passing the acting user.
func (api *API) authed(h actorHandler) rpc.Handler {
	return func(ctx context.Context, p rpc.Params) (interface{}, error) {
		id := auth.FromContext(ctx)
		if !id.Authenticated {
			return nil, errNotAuthenticated
		}
		actor, err := api.Users.Actor(ctx, id.UserID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil, errNotAuthenticated
			}
			return nil, err
		}
		return h(ctx, actor, p)
	}
}

// decode unmarshals the i-th param, reporting failures as IncorrectParams.
func (api *API) decode(p rpc.Params, i int, v interface{}) error {
	if err := p.Decode(i, v); err != nil {
		return api.Errors.Fault(rpc.ErrIncorrectParams, fmt.Sprintf("param %d: %v", i+1, err))
	}
	return nil
}

// MapFault turns service errors into registry faults.
func (api *API) MapFault(err error) *rpc.Fault {
	var (
		verrs validator.ValidationErrors
		verr  *core.ValidationError
		qerr  *core.QueryError
	)
	switch {
	case errors.As(err, &verrs):
		details := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fe.Field()+": "+fe.Translate(api.Translator))
		}
		return api.Errors.Fault(rpc.ErrIncorrectParams, details...)
	case errors.As(err, &verr):
		details := make([]string, 0, len(verr.Fields))
		for _, fe := range verr.Fields {
			details = append(details, fe.Field+": "+fe.Error)
		}
		if len(details) == 0 {
			details = append(details, verr.Error())
		}
		return api.Errors.Fault(rpc.ErrIncorrectParams, details...)
	case errors.Is(err, errNotAuthenticated):
		return api.Errors.Fault(ErrAuthenticationFailed)
	case errors.Is(err, user.ErrAuthenticationFailed), errors.Is(err, user.ErrAccountDeactivated):
		return api.Errors.Fault(ErrAuthenticationFailed, errors.Cause(err).Error())
	case errors.Is(err, core.ErrNotFound):
		return api.Errors.Fault(ErrNotFound)
	case errors.Is(err, core.ErrForbidden):
		return api.Errors.Fault(ErrPermissionDenied)
	case errors.As(err, &qerr):
		return api.Errors.Fault(ErrInvalidDatabaseQuery, qerr.Err.Error())
	}
	return nil
}
