package http

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Context is the per-request bundle handed to middleware and handlers.
// It is never mutated after construction; WithValue returns a copy.
type Context struct {
	ctx        context.Context
	request    *Request
	params     map[string]string
	route      string
	remoteAddr string
	resource   any
	values     map[any]any
}

// ContextOption configures a Context at construction
type ContextOption func(*Context)

// WithParams attaches the parameters extracted from the matched route
func WithParams(params map[string]string) ContextOption {
	return func(c *Context) { c.params = params }
}

// WithRoute records the matched route pattern
func WithRoute(pattern string) ContextOption {
	return func(c *Context) { c.route = pattern }
}

// WithRemoteAddr records the caller address
func WithRemoteAddr(addr string) ContextOption {
	return func(c *Context) { c.remoteAddr = addr }
}

// WithResource attaches the shared resource handle. A nil handle means none.
func WithResource(resource any) ContextOption {
	return func(c *Context) { c.resource = resource }
}

// NewContext builds a request context
func NewContext(ctx context.Context, req *Request, opts ...ContextOption) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Context{ctx: ctx, request: req}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Context returns the request's context.Context
func (c *Context) Context() context.Context {
	return c.ctx
}

// Request returns the parsed request
func (c *Context) Request() *Request {
	return c.request
}

// Method returns the request method
func (c *Context) Method() Method {
	return c.request.Method
}

// Path returns the request path
func (c *Context) Path() string {
	return c.request.Path
}

// Param gets a path parameter
func (c *Context) Param(key string) string {
	return c.params[key]
}

// Params returns a copy of all path parameters
func (c *Context) Params() map[string]string {
	out := make(map[string]string, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// Query gets a query parameter
func (c *Context) Query(key string) string {
	return c.request.Query[key]
}

// Header gets a request header
func (c *Context) Header(key string) string {
	v, _ := c.request.Header(key)
	return v
}

// Cookie gets a cookie value
func (c *Context) Cookie(name string) (string, bool) {
	return c.request.Cookie(name)
}

// Body returns the request body
func (c *Context) Body() []byte {
	return c.request.Body
}

// Route returns the matched route pattern
func (c *Context) Route() string {
	return c.route
}

// RemoteAddr returns the caller address
func (c *Context) RemoteAddr() string {
	return c.remoteAddr
}

// Resource returns the shared resource, or ErrNoResource when none is configured
func (c *Context) Resource() (any, error) {
	if c.resource == nil {
		return nil, ErrNoResource
	}
	return c.resource, nil
}

// ResourceAs returns the shared resource asserted to T
func ResourceAs[T any](c *Context) (T, error) {
	var zero T
	r, err := c.Resource()
	if err != nil {
		return zero, err
	}
	v, ok := r.(T)
	if !ok {
		return zero, errors.Newf("shared resource is %T, not %T", r, zero)
	}
	return v, nil
}

// Value returns a value stored by middleware
func (c *Context) Value(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// WithValue returns a copy of the context carrying key=value
func (c *Context) WithValue(key, value any) *Context {
	next := *c
	next.values = make(map[any]any, len(c.values)+1)
	for k, v := range c.values {
		next.values[k] = v
	}
	next.values[key] = value
	return &next
}

// WithContext returns a copy bound to ctx
func (c *Context) WithContext(ctx context.Context) *Context {
	next := *c
	next.ctx = ctx
	return &next
}
