package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Type is a parameter or return type tag used in method signatures.
type Type string

const (
	Int       Type = "int"
	Double    Type = "double"
	String    Type = "string"
	Boolean   Type = "boolean"
	Array     Type = "array"
	Struct    Type = "struct"
	Null      Type = "null"
	Undefined Type = "undefined" // matches any type
)

// Signature is a return type followed by the parameter types.
type Signature []Type

// Sig builds a Signature.
func Sig(ret Type, params ...Type) Signature {
	return append(Signature{ret}, params...)
}

func (s Signature) strings() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = string(t)
	}
	return out
}

// typeOf tags a raw JSON value by its literal.
// Numbers carrying a fraction or exponent are doubles, others ints.
func typeOf(raw json.RawMessage) Type {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 {
		return Null
	}
	switch s[0] {
	case '"':
		return String
	case '{':
		return Struct
	case '[':
		return Array
	case 't', 'f':
		return Boolean
	case 'n':
		return Null
	}
	if bytes.ContainsAny(s, ".eE") {
		return Double
	}
	return Int
}

func typesOf(params []json.RawMessage) []Type {
	types := make([]Type, len(params))
	for i, p := range params {
		types[i] = typeOf(p)
	}
	return types
}

// matchSignature returns true when one of sigs accepts the given parameter types.
// Otherwise it returns a description of the mismatch, taken from the first
// signature of the right arity.
func matchSignature(types []Type, sigs []Signature) (string, bool) {
	var detail string
	for _, sig := range sigs {
		if len(sig) != len(types)+1 {
			continue
		}
		mismatch := -1
		for i, t := range types {
			if want := sig[i+1]; want != Undefined && want != t {
				mismatch = i
				break
			}
		}
		if mismatch < 0 {
			return "", true
		}
		if detail == "" {
			detail = fmt.Sprintf("Wanted %s, got %s at param %d", sig[mismatch+1], types[mismatch], mismatch+1)
		}
	}
	if detail == "" {
		detail = "No method signature matches number of parameters"
	}
	return detail, false
}
