package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/auth"
	"github.com/trezcool/klassenbuch/core/file"
	"github.com/trezcool/klassenbuch/core/rpc"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		RPC            *rpc.Server
		Resolver       *auth.Resolver
		Cookies        auth.CookieConfig
		Files          *file.Service
		Hub            *Hub
		Metrics        *Metrics
		// Shutdown receives the shutdown signals; created when nil.
		Shutdown       chan os.Signal
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) (Server, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Conf, "Conf"),
		vala.IsNotNil(opts.Logger, "Logger"),
		vala.IsNotNil(opts.RPC, "RPC"),
		vala.IsNotNil(opts.Resolver, "Resolver"),
		vala.IsNotNil(opts.Files, "Files"),
		vala.IsNotNil(opts.Hub, "Hub"),
		vala.IsNotNil(opts.Metrics, "Metrics"),
	).Check(); err != nil {
		return nil, err
	}

	if opts.Shutdown == nil {
		opts.Shutdown = make(chan os.Signal, 1)
	}
	s := &server{
		opts:     opts,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: opts.Shutdown,
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s, nil
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Server.BodyLimit != "" {
		s.app.Use(middleware.BodyLimit(conf.Server.BodyLimit))
	}
	s.app.Use(s.opts.Metrics.middleware)
	s.opts.Metrics.WatchHub(s.opts.Hub)
	s.app.Use(authMiddleware(s.opts.Resolver, s.opts.Cookies))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(s.opts.Metrics.Handler()))

	registerRPC(s.app, s.opts.RPC, s.opts.Resolver, s.opts.Cookies)
	registerFiles(s.app, s.opts.Files)
	registerShoutboxFeed(s.app, s.opts.Hub)
}

func (s *server) Start() {
	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Shutdown stops accepting connections, then waits for in-flight requests and closes the feed.
func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	defer s.opts.Hub.Close()
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	s.opts.Hub.Close()
	return s.app.Close()
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) signalShutdown() { signalShutdown(s.shutdown) }

func signalShutdown(ch chan<- os.Signal) {
	select {
	case ch <- syscall.SIGTERM:
	default:
	}
}

// ShutdownFaultMapper signals shutdown on core shutdown errors before delegating to next.
func ShutdownFaultMapper(shutdown chan<- os.Signal, next rpc.FaultMapper) rpc.FaultMapper {
	return func(err error) *rpc.Fault {
		if core.IsShutdown(err) {
			signalShutdown(shutdown)
		}
		if next == nil {
			return nil
		}
		return next(err)
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
