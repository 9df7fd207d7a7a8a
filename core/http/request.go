package http

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/searchktools/fast-dispatch/core/codec"
	"github.com/tidwall/gjson"
)

// Request is a parsed inbound request. It is not modified after ParseRequest returns.
type Request struct {
	Method Method
	Path   string
	Proto  string

	// Header names are stored lower-cased
	headers map[string]string

	// Query parameters
	Query map[string]string

	// Cookies parsed from the Cookie header
	Cookies map[string]string

	// Request body
	Body []byte

	jsonOnce  sync.Once
	jsonValid bool
}

// Header returns a request header, looked up case-insensitively
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.headers[strings.ToLower(name)]
	return v, ok
}

// Headers returns a copy of all headers keyed by lower-cased name
func (r *Request) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// Cookie returns a cookie value
func (r *Request) Cookie(name string) (string, bool) {
	v, ok := r.Cookies[name]
	return v, ok
}

// QueryParam returns a query parameter
func (r *Request) QueryParam(key string) (string, bool) {
	v, ok := r.Query[key]
	return v, ok
}

// ContentType returns the Content-Type header or ""
func (r *Request) ContentType() string {
	v, _ := r.Header(HeaderContentType)
	return v
}

// KeepAlive reports whether the connection may carry another request
func (r *Request) KeepAlive() bool {
	conn, _ := r.Header(HeaderConnection)
	if r.Proto == "HTTP/1.0" {
		return strings.EqualFold(conn, "keep-alive")
	}
	return !strings.EqualFold(conn, "close")
}

// JSON decodes the body into v. Nothing is decoded until a handler asks for it.
func (r *Request) JSON(v any) error {
	if len(r.Body) == 0 {
		return errors.Wrap(ErrEmptyBody, "decode json body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "decode json body")
	}
	return nil
}

// JSONBody decodes the body into a T, reporting false on any failure
func JSONBody[T any](r *Request) (T, bool) {
	var v T
	if err := r.JSON(&v); err != nil {
		return v, false
	}
	return v, true
}

// JSONPath looks up a gjson path in the body without decoding it.
// The body is validated once; an invalid body yields an empty result.
func (r *Request) JSONPath(path string) gjson.Result {
	r.jsonOnce.Do(func() {
		r.jsonValid = gjson.ValidBytes(r.Body)
	})
	if !r.jsonValid {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Body, path)
}

// Decode decodes the body with the codec matching its Content-Type
func (r *Request) Decode(v any) error {
	c, err := codec.ForContentType(r.ContentType())
	if err != nil {
		return err
	}
	if err := c.Decode(r.Body, v); err != nil {
		return errors.Wrapf(err, "decode %s body", c.Name())
	}
	return nil
}
