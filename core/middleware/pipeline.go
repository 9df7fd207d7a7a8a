package middleware

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/searchktools/fast-dispatch/core/http"
	"github.com/searchktools/fast-dispatch/core/httperr"
	"go.uber.org/zap"
)

// Result is either a context to continue with or a response that ends the request
type Result struct {
	ctx  *http.Context
	resp *http.Response
}

// Next continues the chain with c
func Next(c *http.Context) Result {
	return Result{ctx: c}
}

// Stop ends the chain with resp
func Stop(resp http.Response) Result {
	return Result{resp: &resp}
}

// Stopped reports whether the result short-circuits the chain
func (r Result) Stopped() bool {
	return r.resp != nil
}

// Func is a middleware. It returns Next to continue or Stop to veto.
type Func func(c *http.Context) Result

type scoped struct {
	glob string
	fn   Func
}

// Pipeline holds global middleware and glob-scoped middleware in
// registration order. It is read-only after Freeze.
type Pipeline struct {
	global []Func
	scoped []scoped
	frozen bool
	logger *zap.Logger
}

// NewPipeline creates an empty pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{
		global: make([]Func, 0, 8),
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger used to report vetoes and recovered failures
func (p *Pipeline) SetLogger(logger *zap.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// AddGlobal adds middleware that runs for every route
func (p *Pipeline) AddGlobal(fns ...Func) *Pipeline {
	p.mustNotBeFrozen()
	p.global = append(p.global, fns...)
	return p
}

// ForRoute adds middleware that runs when the path matches glob.
// "/api/*" matches any path starting with "/api/"; a glob without '*'
// matches that exact path.
func (p *Pipeline) ForRoute(glob string, fn Func) *Pipeline {
	p.mustNotBeFrozen()
	p.scoped = append(p.scoped, scoped{glob: glob, fn: fn})
	return p
}

// Freeze makes the pipeline read-only
func (p *Pipeline) Freeze() {
	p.frozen = true
}

// Len returns the number of registered middleware
func (p *Pipeline) Len() int {
	return len(p.global) + len(p.scoped)
}

func (p *Pipeline) mustNotBeFrozen() {
	if p.frozen {
		panic("middleware: register after freeze")
	}
}

// chain returns the middleware applicable to path, globals first
func (p *Pipeline) chain(path string) []Func {
	if len(p.scoped) == 0 {
		return p.global
	}
	matched := lo.FilterMap(p.scoped, func(s scoped, _ int) (Func, bool) {
		return s.fn, MatchGlob(s.glob, path)
	})
	if len(matched) == 0 {
		return p.global
	}
	out := make([]Func, 0, len(p.global)+len(matched))
	out = append(out, p.global...)
	return append(out, matched...)
}

// Run executes the applicable middleware for the request in order.
// It returns the final context, or the response of the first middleware
// that stopped the chain.
func (p *Pipeline) Run(c *http.Context, route string) (*http.Context, *http.Response) {
	for i, fn := range p.chain(c.Path()) {
		res := p.invoke(fn, c)
		if res.resp != nil {
			p.logger.Debug("middleware stopped request",
				zap.Int("index", i),
				zap.String("route", route),
				zap.String("path", c.Path()),
				zap.Int("status", res.resp.Status))
			return nil, res.resp
		}
		c = res.ctx
	}
	return c, nil
}

// invoke runs one middleware, turning a panic or a nil context into a 500
func (p *Pipeline) invoke(fn Func, c *http.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("middleware panic recovered",
				zap.String("path", c.Path()),
				zap.Any("panic", r))
			res = Stop(httperr.Response(httperr.Wrap(httperr.KindInternal,
				errors.Newf("middleware panic: %v", r))))
		}
	}()

	res = fn(c)
	if res.resp == nil && res.ctx == nil {
		p.logger.Error("middleware returned neither context nor response",
			zap.String("path", c.Path()))
		return Stop(httperr.Response(httperr.New(httperr.KindInternal,
			"middleware returned no context")))
	}
	return res
}

// MatchGlob reports whether path matches a prefix glob.
// Only a trailing '*' is special.
func MatchGlob(glob, path string) bool {
	if prefix, ok := strings.CutSuffix(glob, "*"); ok {
		return strings.HasPrefix(path, prefix)
	}
	return glob == path
}
