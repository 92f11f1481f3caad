package rpc

import (
	"encoding/json"
	"strconv"
)

// Params are the positional parameters of a call.
// Typed accessors return the zero value for missing or mistyped params;
// signature verification runs before handlers see them.
type Params []json.RawMessage

func (p Params) Len() int { return len(p) }

func (p Params) Types() []Type { return typesOf(p) }

func (p Params) raw(i int) json.RawMessage {
	if i < 0 || i >= len(p) {
		return nil
	}
	return p[i]
}

// Decode unmarshals the i-th param into v.
func (p Params) Decode(i int, v interface{}) error {
	raw := p.raw(i)
	if raw == nil {
		return &json.UnmarshalTypeError{Value: "missing param " + strconv.Itoa(i+1)}
	}
	return json.Unmarshal(raw, v)
}

func (p Params) Int(i int) int64 {
	var n json.Number
	if err := p.Decode(i, &n); err != nil {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	f, _ := n.Float64()
	return int64(f)
}

func (p Params) Float(i int) float64 {
	var f float64
	_ = p.Decode(i, &f)
	return f
}

func (p Params) String(i int) string {
	var s string
	_ = p.Decode(i, &s)
	return s
}

func (p Params) Bool(i int) bool {
	var b bool
	_ = p.Decode(i, &b)
	return b
}
