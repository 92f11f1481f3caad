package rpc

import (
	"fmt"
	"strings"
	"sync"
)

// Base protocol error names.
const (
	ErrUnknownMethod          = "UnknownMethod"
	ErrInvalidReturn          = "InvalidReturn"
	ErrIncorrectParams        = "IncorrectParams"
	ErrIntrospectUnknown      = "IntrospectUnknown"
	ErrInvalidRequest         = "InvalidRequest"
	ErrServerError            = "ServerError"
	ErrServerCannotDecompress = "ServerCannotDecompress"
	ErrServerDecompressFail   = "ServerDecompressFail"
)

const (
	unknownErrorCode    = 999
	unknownErrorMessage = "Unknown error"
)

// Fault is the error payload of a response.
type Fault struct {
	Code   int    `json:"faultCode"`
	String string `json:"faultString"`
}

func (f *Fault) Error() string {
	return fmt.Sprintf("rpc fault %d: %s", f.Code, f.String)
}

type errorEntry struct {
	code    int
	message string
}

// ErrorRegistry maps symbolic error names to codes and messages.
// Registration happens at startup; after Seal the registry is read-only.
// Codes are not required to be unique.
type ErrorRegistry struct {
	mu      sync.RWMutex
	entries map[string]errorEntry
	sealed  bool
}

// NewErrorRegistry returns a registry holding the base protocol errors.
func NewErrorRegistry() *ErrorRegistry {
	r := &ErrorRegistry{entries: make(map[string]errorEntry)}
	r.Register(ErrUnknownMethod, 1, "Unknown method").
		Register(ErrInvalidReturn, 2, "Invalid return payload: enable debugging to examine incoming payload").
		Register(ErrIncorrectParams, 3, "Incorrect parameters passed to method").
		Register(ErrIntrospectUnknown, 4, "Can't introspect: method unknown").
		Register(ErrInvalidRequest, 15, "Invalid request payload").
		Register(ErrServerError, 17, "Internal server error").
		Register(ErrServerCannotDecompress, 106, "Received from client compressed HTTP request and cannot decompress").
		Register(ErrServerDecompressFail, 107, "Received from client invalid compressed HTTP request")
	return r
}

// Register inserts or overwrites an entry. It panics once the registry is sealed.
func (r *ErrorRegistry) Register(name string, code int, message string) *ErrorRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic("rpc: error registry is sealed; cannot register " + name)
	}
	r.entries[name] = errorEntry{code: code, message: message}
	return r
}

// Seal ends the registration phase.
func (r *ErrorRegistry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup returns the code and message registered under name,
// or (999, "Unknown error") when there is none.
func (r *ErrorRegistry) Lookup(name string) (int, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[name]; ok {
		return e.code, e.message
	}
	return unknownErrorCode, unknownErrorMessage
}

// Fault builds the fault registered under name; details are appended to the message.
func (r *ErrorRegistry) Fault(name string, details ...string) *Fault {
	code, msg := r.Lookup(name)
	if len(details) > 0 {
		msg += ": " + strings.Join(details, "; ")
	}
	return &Fault{Code: code, String: msg}
}
