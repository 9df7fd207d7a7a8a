package router

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/searchktools/fast-dispatch/core/http"
)

// Handler produces the response for a matched request
type Handler interface {
	Serve(c *http.Context) http.Response
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(c *http.Context) http.Response

// Serve calls f(c)
func (f HandlerFunc) Serve(c *http.Context) http.Response {
	return f(c)
}

// Entry is a registered route. It is immutable once registered.
type Entry struct {
	Method  http.Method
	Pattern string
	Name    string
	Handler Handler

	pat *pattern
}

// ExtractParams collects the named parameters of a path this entry matched
func (e *Entry) ExtractParams(path string) map[string]string {
	return e.pat.extract(splitPath(path))
}

// RouteInfo describes a registered route
type RouteInfo struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
	Name    string `json:"name,omitempty"`
}

// Table stores routes per method in registration order.
// The first registered route that matches wins.
type Table struct {
	entries map[http.Method][]*Entry
	order   []*Entry
	named   map[string]*Entry
	frozen  bool
}

// isNil also catches a nil HandlerFunc boxed in the interface
func isNil(h Handler) bool {
	if h == nil {
		return true
	}
	f, ok := h.(HandlerFunc)
	return ok && f == nil
}

// NewTable creates an empty route table
func NewTable() *Table {
	return &Table{
		entries: make(map[http.Method][]*Entry),
		named:   make(map[string]*Entry),
	}
}

// Register adds a route. An optional name makes it reversible.
// Invalid patterns, duplicate names and registration after Freeze panic.
func (t *Table) Register(method http.Method, pattern string, handler Handler, name ...string) *Table {
	if t.frozen {
		panic("router: register " + method.String() + " " + pattern + " after freeze")
	}
	if isNil(handler) {
		panic("router: nil handler for " + pattern)
	}

	pat, err := compilePattern(pattern)
	if err != nil {
		panic("router: " + err.Error())
	}

	e := &Entry{
		Method:  method,
		Pattern: joinPattern("", pattern),
		Handler: handler,
		pat:     pat,
	}

	if len(name) > 0 && name[0] != "" {
		if _, exists := t.named[name[0]]; exists {
			panic("router: route named " + name[0] + " already exists")
		}
		e.Name = name[0]
		t.named[e.Name] = e
	}

	t.entries[method] = append(t.entries[method], e)
	t.order = append(t.order, e)
	return t
}

func (t *Table) GET(pattern string, h HandlerFunc, name ...string) *Table {
	return t.Register(http.MethodGet, pattern, h, name...)
}

func (t *Table) POST(pattern string, h HandlerFunc, name ...string) *Table {
	return t.Register(http.MethodPost, pattern, h, name...)
}

func (t *Table) PUT(pattern string, h HandlerFunc, name ...string) *Table {
	return t.Register(http.MethodPut, pattern, h, name...)
}

func (t *Table) DELETE(pattern string, h HandlerFunc, name ...string) *Table {
	return t.Register(http.MethodDelete, pattern, h, name...)
}

func (t *Table) PATCH(pattern string, h HandlerFunc, name ...string) *Table {
	return t.Register(http.MethodPatch, pattern, h, name...)
}

func (t *Table) HEAD(pattern string, h HandlerFunc, name ...string) *Table {
	return t.Register(http.MethodHead, pattern, h, name...)
}

func (t *Table) OPTIONS(pattern string, h HandlerFunc, name ...string) *Table {
	return t.Register(http.MethodOptions, pattern, h, name...)
}

// Group starts a route group under prefix. Its routes are held until AddGroup.
func (t *Table) Group(prefix string) *Group {
	return &Group{prefix: joinPattern("", prefix)}
}

// AddGroup registers every route accumulated by g
func (t *Table) AddGroup(g *Group) *Table {
	for _, r := range g.routes {
		t.Register(r.method, r.pattern, r.handler, r.name)
	}
	return t
}

// Find returns the first route registered for method that matches path
func (t *Table) Find(path string, method http.Method) (*Entry, bool) {
	candidates := t.entries[method]
	if len(candidates) == 0 {
		return nil, false
	}

	parts := splitPath(path)
	for _, e := range candidates {
		if e.pat.match(parts) {
			return e, true
		}
	}
	return nil, false
}

// Freeze makes the table read-only
func (t *Table) Freeze() {
	t.frozen = true
}

// Frozen reports whether Freeze was called
func (t *Table) Frozen() bool {
	return t.frozen
}

// Len returns the number of registered routes
func (t *Table) Len() int {
	return len(t.order)
}

// Routes lists the registered routes in registration order
func (t *Table) Routes() []RouteInfo {
	return lo.Map(t.order, func(e *Entry, _ int) RouteInfo {
		return RouteInfo{Method: e.Method.String(), Pattern: e.Pattern, Name: e.Name}
	})
}

// Reverse builds a path for the named route, filling parameters in order
func (t *Table) Reverse(name string, values ...string) (string, error) {
	e, ok := t.named[name]
	if !ok {
		names := lo.Keys(t.named)
		slices.Sort(names)
		return "", errors.Newf("no route named %q, got: %v", name, names)
	}

	path, err := e.pat.build(values...)
	if err != nil {
		return "", errors.Wrapf(err, "reverse %q", name)
	}
	return path, nil
}
