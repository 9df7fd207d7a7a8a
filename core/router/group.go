package router

import "github.com/searchktools/fast-dispatch/core/http"

type groupRoute struct {
	method  http.Method
	pattern string // prefix already applied
	handler Handler
	name    string
}

// Group collects routes under a shared prefix until it is added to a
// Table or folded into a parent Group.
type Group struct {
	prefix string
	routes []groupRoute
}

// Prefix returns the full prefix of the group
func (g *Group) Prefix() string {
	return g.prefix
}

// Register records a route under the group prefix
func (g *Group) Register(method http.Method, pattern string, handler Handler, name ...string) *Group {
	if isNil(handler) {
		panic("router: nil handler for " + joinPattern(g.prefix, pattern))
	}
	r := groupRoute{
		method:  method,
		pattern: joinPattern(g.prefix, pattern),
		handler: handler,
	}
	if len(name) > 0 {
		r.name = name[0]
	}
	g.routes = append(g.routes, r)
	return g
}

func (g *Group) GET(pattern string, h HandlerFunc, name ...string) *Group {
	return g.Register(http.MethodGet, pattern, h, name...)
}

func (g *Group) POST(pattern string, h HandlerFunc, name ...string) *Group {
	return g.Register(http.MethodPost, pattern, h, name...)
}

func (g *Group) PUT(pattern string, h HandlerFunc, name ...string) *Group {
	return g.Register(http.MethodPut, pattern, h, name...)
}

func (g *Group) DELETE(pattern string, h HandlerFunc, name ...string) *Group {
	return g.Register(http.MethodDelete, pattern, h, name...)
}

func (g *Group) PATCH(pattern string, h HandlerFunc, name ...string) *Group {
	return g.Register(http.MethodPatch, pattern, h, name...)
}

// Group creates a nested group whose prefix extends this one
func (g *Group) Group(prefix string) *Group {
	return &Group{prefix: joinPattern(g.prefix, prefix)}
}

// AddGroup folds a nested group's routes into this group
func (g *Group) AddGroup(child *Group) *Group {
	g.routes = append(g.routes, child.routes...)
	return g
}

// Len returns the number of routes held by the group
func (g *Group) Len() int {
	return len(g.routes)
}
