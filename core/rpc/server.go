package rpc

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
)

const systemPrefix = "system."

type (
	// FaultMapper turns a handler error into a fault; nil means "not mine".
	FaultMapper func(err error) *Fault

	// Observer is told about every executed call.
	Observer func(method string, faultCode int, elapsed time.Duration)

	Options struct {
		// DebugLevel 0-3: 2 traces dispatch phases, 3 also recovers handler panics.
		DebugLevel          int
		AllowSystemFuncs    bool
		AcceptedCompression []string
		CompressResponse    bool
		ResponseCharset     string // "", "auto" or a charset name
		// MaxRequestSize bounds the payload after decompression; DefaultMaxRequestSize when 0.
		MaxRequestSize      int64
		FaultMapper         FaultMapper
		Observer            Observer
		Logger              core.Logger
	}

	// Server dispatches decoded requests to the registered methods.
	// It is safe for concurrent use once built.
	Server struct {
		methods *Methods
		system  *Methods
		errs    *ErrorRegistry
		opts    Options
		logger  core.Logger
	}
)

// NewServer builds a server over methods; the error registry gets sealed.
func NewServer(methods *Methods, errs *ErrorRegistry, opts Options) (*Server, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(methods, "methods"),
		vala.IsNotNil(errs, "errs"),
	).Check(); err != nil {
		return nil, err
	}
	errs.Seal()

	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Server{
		methods: methods,
		system:  newSystemMethods(),
		errs:    errs,
		opts:    opts,
		logger:  logger,
	}, nil
}

func (s *Server) Errors() *ErrorRegistry { return s.errs }

// Execute resolves, verifies and invokes the requested method.
func (s *Server) Execute(ctx context.Context, req *Request) (resp *Response) {
	start := time.Now()
	defer func() {
		if s.opts.Observer != nil && resp != nil {
			code := 0
			if resp.Fault != nil {
				code = resp.Fault.Code
			}
			s.opts.Observer(req.Method, code, time.Since(start))
		}
	}()

	method, fault := s.ResolveMethod(req.Method)
	if fault != nil {
		return NewFaultResponse(fault)
	}
	if fault = s.VerifySignature(req.Types, method.Signatures); fault != nil {
		return NewFaultResponse(fault)
	}
	return s.Invoke(ctx, method, req.Params)
}

// ResolveMethod finds the method called name.
// "system." names only reach the built-ins when system methods are allowed.
func (s *Server) ResolveMethod(name string) (*Method, *Fault) {
	s.trace(phaseResolving, name)
	if m, ok := s.lookup(name); ok {
		return m, nil
	}
	return nil, s.errs.Fault(ErrUnknownMethod)
}

func (s *Server) lookup(name string) (*Method, bool) {
	if s.opts.AllowSystemFuncs && strings.HasPrefix(name, systemPrefix) {
		return s.system.Lookup(name)
	}
	return s.methods.Lookup(name)
}

// VerifySignature checks the parameter types against the declared signatures.
// An empty signature list accepts anything.
func (s *Server) VerifySignature(types []Type, sigs []Signature) *Fault {
	if len(sigs) == 0 {
		return nil
	}
	if detail, ok := matchSignature(types, sigs); !ok {
		return s.errs.Fault(ErrIncorrectParams, detail)
	}
	return nil
}

// Invoke runs the method handler and wraps its outcome.
// Handler panics are recovered into ServerError at debug level 3 only.
func (s *Server) Invoke(ctx context.Context, method *Method, params Params) (resp *Response) {
	s.trace(phaseInvoking, method.Name)
	if s.opts.DebugLevel >= 3 {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error(fmt.Sprintf("rpc: panic in %s: %v", method.Name, r), map[string]interface{}{"stack": string(debug.Stack())})
				resp = NewFaultResponse(s.errs.Fault(ErrServerError, fmt.Sprint(r)))
			}
		}()
	}

	var (
		res interface{}
		err error
	)
	if method.system != nil {
		res, err = method.system(s, ctx, params)
	} else {
		res, err = method.Handler(ctx, params)
	}
	if err != nil {
		return NewFaultResponse(s.toFault(method.Name, err))
	}
	if r, ok := res.(*Response); ok && r != nil {
		return r
	}
	return &Response{Result: res}
}

func (s *Server) toFault(method string, err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	if s.opts.FaultMapper != nil {
		if f = s.opts.FaultMapper(err); f != nil {
			return f
		}
	}
	s.logger.Error(fmt.Sprintf("rpc: %s: %v", method, err), err)
	if s.opts.DebugLevel > 0 {
		return s.errs.Fault(ErrServerError, err.Error())
	}
	return s.errs.Fault(ErrServerError)
}

type phase int

const (
	phaseIdle phase = iota
	phaseParsing
	phaseResolving
	phaseInvoking
	phaseSerializing
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseParsing:
		return "parsing"
	case phaseResolving:
		return "resolving"
	case phaseInvoking:
		return "invoking"
	case phaseSerializing:
		return "serializing"
	case phaseDone:
		return "done"
	}
	return "idle"
}

func (s *Server) trace(p phase, method string) {
	if s.opts.DebugLevel < 2 {
		return
	}
	if method != "" {
		s.logger.Debug(fmt.Sprintf("rpc: %s %s", p, method))
		return
	}
	s.logger.Debug(fmt.Sprintf("rpc: %s", p))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
