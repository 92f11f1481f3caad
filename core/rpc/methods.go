package rpc

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
)

// Handler executes a method with positional parameters.
// Returning a *Fault (or an error wrapping one) produces that fault;
// returning a *Response sends it as is.
type Handler func(ctx context.Context, params Params) (interface{}, error)

type systemHandler func(s *Server, ctx context.Context, params Params) (interface{}, error)

// Method is a dispatch table entry.
type Method struct {
	Name       string
	Handler    Handler
	Doc        string
	Signatures []Signature

	system systemHandler
}

// Methods is a dispatch table keeping registration order.
type Methods struct {
	byName map[string]*Method
	order  []string
}

func NewMethods() *Methods {
	return &Methods{byName: make(map[string]*Method)}
}

// Register adds a method. Names are unique.
func (m *Methods) Register(name string, h Handler, doc string, sigs ...Signature) error {
	if err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(name, "name"),
		vala.IsNotNil(h, "handler"),
	).Check(); err != nil {
		return err
	}
	return m.add(&Method{Name: name, Handler: h, Doc: doc, Signatures: sigs})
}

// MustRegister is like Register but panics on error.
func (m *Methods) MustRegister(name string, h Handler, doc string, sigs ...Signature) {
	if err := m.Register(name, h, doc, sigs...); err != nil {
		panic(err)
	}
}

func (m *Methods) registerSystem(name string, h systemHandler, doc string, sigs ...Signature) {
	if err := m.add(&Method{Name: name, system: h, Doc: doc, Signatures: sigs}); err != nil {
		panic(err)
	}
}

func (m *Methods) add(method *Method) error {
	if _, ok := m.byName[method.Name]; ok {
		return errors.Errorf("rpc: method %q already registered", method.Name)
	}
	for _, sig := range method.Signatures {
		if len(sig) == 0 {
			return errors.Errorf("rpc: method %q has an empty signature", method.Name)
		}
	}
	m.byName[method.Name] = method
	m.order = append(m.order, method.Name)
	return nil
}

func (m *Methods) Lookup(name string) (*Method, bool) {
	method, ok := m.byName[name]
	return method, ok
}

// Names returns the method names in registration order.
func (m *Methods) Names() []string {
	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}
