package http

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/searchktools/fast-dispatch/core/codec"
)

// Response is a fully serialized reply and the status it carries
type Response struct {
	Status int
	Buffer []byte
}

type header struct {
	name  string
	value string
}

// Builder accumulates a status, headers and a body.
// Start from a canonical constructor and finish with Build or Response.
type Builder struct {
	status  int
	headers []header
	body    []byte
}

// NewBuilder starts a response with an arbitrary status code
func NewBuilder(status int) *Builder {
	return &Builder{status: status}
}

func OK() *Builder          { return NewBuilder(StatusOK) }
func Created() *Builder     { return NewBuilder(StatusCreated) }
func Updated() *Builder     { return NewBuilder(StatusOK) }
func Deleted() *Builder     { return NewBuilder(StatusOK) }
func NoContent() *Builder   { return NewBuilder(StatusNoContent) }
func BadRequest() *Builder  { return NewBuilder(StatusBadRequest) }
func NotFound() *Builder    { return NewBuilder(StatusNotFound) }
func ServerError() *Builder { return NewBuilder(StatusInternalServerError) }

// Status returns the status the builder will emit
func (b *Builder) Status() int {
	return b.status
}

// Header sets a header, replacing an existing one with the same name
func (b *Builder) Header(name, value string) *Builder {
	for i := range b.headers {
		if strings.EqualFold(b.headers[i].name, name) {
			b.headers[i].value = value
			return b
		}
	}
	b.headers = append(b.headers, header{name: name, value: value})
	return b
}

// Text sets a plain-text body
func (b *Builder) Text(s string) *Builder {
	b.body = []byte(s)
	return b.Header(HeaderContentType, MIMETextPlain)
}

// JSON sets an already serialized JSON body
func (b *Builder) JSON(s string) *Builder {
	b.body = []byte(s)
	return b.Header(HeaderContentType, MIMEJSON)
}

// Body sets a raw body. No Content-Type is added.
func (b *Builder) Body(data []byte) *Builder {
	b.body = data
	return b
}

// Encode serializes v with c and sets the codec's content type
func (b *Builder) Encode(c codec.Codec, v any) (*Builder, error) {
	data, err := c.Encode(v)
	if err != nil {
		return b, errors.Wrapf(err, "encode %s response", c.Name())
	}
	b.body = data
	return b.Header(HeaderContentType, c.ContentType()), nil
}

// Build serializes the status line, headers and body
func (b *Builder) Build() []byte {
	size := 64 + len(b.body)
	for _, h := range b.headers {
		size += len(h.name) + len(h.value) + 4
	}

	buf := make([]byte, 0, size)
	buf = append(buf, "HTTP/1.1 "...)
	buf = appendInt(buf, b.status)
	buf = append(buf, ' ')
	buf = append(buf, StatusText(b.status)...)
	buf = append(buf, "\r\n"...)

	for _, h := range b.headers {
		if strings.EqualFold(h.name, HeaderContentLength) {
			continue
		}
		buf = append(buf, h.name...)
		buf = append(buf, ": "...)
		buf = append(buf, h.value...)
		buf = append(buf, "\r\n"...)
	}

	buf = append(buf, "Content-Length: "...)
	buf = appendInt(buf, len(b.body))
	buf = append(buf, "\r\n\r\n"...)
	buf = append(buf, b.body...)

	return buf
}

// Response builds the final status and buffer pair
func (b *Builder) Response() Response {
	return Response{Status: b.status, Buffer: b.Build()}
}
