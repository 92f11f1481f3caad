package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/htmlindex"
)

// Request is a decoded call.
type Request struct {
	Method string
	Params Params
	Types  []Type
	// Body is the request payload after decompression, in UTF-8.
	Body []byte
}

type envelope struct {
	Method *string          `json:"method"`
	Params *json.RawMessage `json:"params"`
}

// DefaultMaxRequestSize bounds a request payload when Options.MaxRequestSize is unset.
const DefaultMaxRequestSize int64 = 2 << 20

var errRequestTooLarge = errors.New("request payload too large")

// ParseRequest decompresses, transcodes and decodes a request payload.
// The payload may not exceed the max request size once decompressed.
func (s *Server) ParseRequest(body []byte, contentEncoding, contentType string) (*Request, *Fault) {
	s.trace(phaseParsing, "")

	limit := s.maxRequestSize()
	if int64(len(body)) > limit {
		return nil, s.errs.Fault(ErrInvalidRequest, fmt.Sprintf("payload exceeds %d bytes", limit))
	}
	if enc := strings.ToLower(strings.TrimSpace(contentEncoding)); enc != "" && enc != "identity" {
		if !s.acceptsCompression(enc) {
			return nil, s.errs.Fault(ErrServerCannotDecompress)
		}
		raw, err := decompress(enc, body, limit)
		if errors.Is(err, errRequestTooLarge) {
			return nil, s.errs.Fault(ErrInvalidRequest, fmt.Sprintf("decompressed payload exceeds %d bytes", limit))
		}
		if err != nil {
			s.logger.Debug("rpc: decompressing request", err)
			return nil, s.errs.Fault(ErrServerDecompressFail)
		}
		body = raw
	}

	body = s.toUTF8(body, contentType)

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, s.errs.Fault(ErrInvalidRequest, "JSON parsing failed: "+err.Error())
	}
	if env.Method == nil {
		return nil, s.errs.Fault(ErrInvalidRequest, "missing method")
	}

	var params Params
	if env.Params != nil && !bytes.Equal(bytes.TrimSpace(*env.Params), []byte("null")) {
		if err := json.Unmarshal(*env.Params, &params); err != nil {
			return nil, s.errs.Fault(ErrInvalidRequest, "params must be an array")
		}
	}

	return &Request{
		Method: *env.Method,
		Params: params,
		Types:  params.Types(),
		Body:   body,
	}, nil
}

func (s *Server) acceptsCompression(enc string) bool {
	for _, c := range s.opts.AcceptedCompression {
		if strings.EqualFold(c, enc) {
			return true
		}
	}
	return false
}

func (s *Server) maxRequestSize() int64 {
	if s.opts.MaxRequestSize > 0 {
		return s.opts.MaxRequestSize
	}
	return DefaultMaxRequestSize
}

// decompress supports gzip and deflate; deflate is tried as zlib, then as raw flate.
// Reading stops one byte past limit.
func decompress(enc string, body []byte, limit int64) ([]byte, error) {
	switch enc {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return readAtMost(zr, limit)
	case "deflate":
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer zr.Close()
			out, err := readAtMost(zr, limit)
			if err == nil || errors.Is(err, errRequestTooLarge) {
				return out, err
			}
		}
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close()
		return readAtMost(fr, limit)
	}
	return nil, errors.Errorf("unsupported content encoding %q", enc)
}

func readAtMost(r io.Reader, limit int64) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, errRequestTooLarge
	}
	return out, nil
}

// toUTF8 transcodes body from the charset declared in contentType.
// Unknown charsets are read as UTF-8.
func (s *Server) toUTF8(body []byte, contentType string) []byte {
	cs := charsetOf(contentType)
	if cs == "" || isUTF8(cs) {
		return body
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		s.logger.Debug("rpc: unknown request charset " + cs)
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		s.logger.Debug("rpc: transcoding request from "+cs, err)
		return body
	}
	return out
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

func isUTF8(cs string) bool {
	return strings.EqualFold(cs, "utf-8") || strings.EqualFold(cs, "utf8")
}
