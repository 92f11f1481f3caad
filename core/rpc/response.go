package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Response is either a result or a fault.
type Response struct {
	Result interface{}
	Fault  *Fault
}

// NewFaultResponse wraps f into a Response.
func NewFaultResponse(f *Fault) *Response {
	return &Response{Fault: f}
}

// MarshalJSON encodes exactly one of {"result": ...} or {"error": {...}}.
// A nil result is encoded as null.
func (r *Response) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	var err error
	if r.Fault != nil {
		err = enc.Encode(struct {
			Error *Fault `json:"error"`
		}{r.Fault})
	} else {
		err = enc.Encode(struct {
			Result interface{} `json:"result"`
		}{r.Result})
	}
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Output is a serialized response ready for the transport.
type Output struct {
	Body            []byte
	ContentType     string
	ContentEncoding string
}

// WriteResponse serializes resp, negotiating the charset and the compression.
func (s *Server) WriteResponse(resp *Response, acceptEncoding, acceptCharset string) (Output, error) {
	s.trace(phaseSerializing, "")
	defer s.trace(phaseDone, "")

	body, err := resp.MarshalJSON()
	if err != nil {
		s.logger.Error(fmt.Sprintf("rpc: serializing response: %v", err), err)
		if body, err = NewFaultResponse(s.errs.Fault(ErrServerError)).MarshalJSON(); err != nil {
			return Output{}, err
		}
	}

	cs := s.responseCharset(acceptCharset)
	if !strings.EqualFold(cs, "UTF-8") {
		body = escapeNonASCII(body)
	}
	out := Output{
		Body:        body,
		ContentType: "application/json; charset=" + cs,
	}

	if s.opts.CompressResponse {
		switch enc := negotiateEncoding(acceptEncoding); enc {
		case "gzip":
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			if _, err := zw.Write(body); err != nil {
				return Output{}, err
			}
			if err := zw.Close(); err != nil {
				return Output{}, err
			}
			out.Body, out.ContentEncoding = buf.Bytes(), enc
		case "deflate":
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			if _, err := zw.Write(body); err != nil {
				return Output{}, err
			}
			if err := zw.Close(); err != nil {
				return Output{}, err
			}
			out.Body, out.ContentEncoding = buf.Bytes(), enc
		}
	}
	return out, nil
}

var supportedCharsets = []string{"UTF-8", "ISO-8859-1", "US-ASCII"}

func (s *Server) responseCharset(acceptCharset string) string {
	switch cs := strings.TrimSpace(s.opts.ResponseCharset); {
	case cs == "":
		return "UTF-8"
	case strings.EqualFold(cs, "auto"):
		for _, want := range acceptedTokens(acceptCharset) {
			if want == "*" {
				return "UTF-8"
			}
			for _, have := range supportedCharsets {
				if strings.EqualFold(want, have) {
					return have
				}
			}
		}
		return "UTF-8"
	default:
		return strings.ToUpper(cs)
	}
}

// negotiateEncoding picks gzip or deflate from an Accept-Encoding header, gzip first.
func negotiateEncoding(acceptEncoding string) string {
	var deflate bool
	for _, tok := range acceptedTokens(acceptEncoding) {
		switch strings.ToLower(tok) {
		case "gzip", "x-gzip":
			return "gzip"
		case "deflate":
			deflate = true
		}
	}
	if deflate {
		return "deflate"
	}
	return ""
}

// acceptedTokens lists the values of an Accept-* header in order, dropping q=0 entries.
func acceptedTokens(header string) []string {
	var toks []string
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		tok := strings.TrimSpace(fields[0])
		if tok == "" {
			continue
		}
		rejected := false
		for _, f := range fields[1:] {
			f = strings.TrimSpace(f)
			if strings.HasPrefix(f, "q=") {
				if q, err := strconv.ParseFloat(f[2:], 64); err == nil && q == 0 {
					rejected = true
				}
			}
		}
		if !rejected {
			toks = append(toks, tok)
		}
	}
	return toks
}

// escapeNonASCII replaces every non-ASCII rune with its \uXXXX escape.
// Runes outside the BMP become surrogate pairs.
func escapeNonASCII(body []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(body))
	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		switch {
		case r < utf8.RuneSelf:
			buf.WriteByte(body[0])
		case r > 0xFFFF:
			r -= 0x10000
			fmt.Fprintf(&buf, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		default:
			fmt.Fprintf(&buf, `\u%04x`, r)
		}
		body = body[size:]
	}
	return buf.Bytes()
}
