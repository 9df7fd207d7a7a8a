package core

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/searchktools/fast-dispatch/core/http"
	"github.com/searchktools/fast-dispatch/core/middleware"
	"github.com/searchktools/fast-dispatch/core/pools"
	"github.com/searchktools/fast-dispatch/core/router"
	"github.com/searchktools/fast-dispatch/core/static"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const tracerName = "github.com/searchktools/fast-dispatch/core"

// Recorder receives per-request metrics
type Recorder interface {
	RecordRequest(route string, status int, duration time.Duration)
}

// Option configures a Setup
type Option func(*Setup)

// WithResource sets the shared resource handed to every request context
func WithResource(resource any) Option {
	return func(s *Setup) { s.resource = resource }
}

// WithLogger sets the logger used by the dispatcher and its pipeline
func WithLogger(logger *zap.Logger) Option {
	return func(s *Setup) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLoader sets the loader that reads static files
func WithLoader(loader static.Loader) Option {
	return func(s *Setup) { s.loader = loader }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(s *Setup) { s.recorder = r }
}

// WithTracerProvider sets the provider dispatch spans are created from
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Setup) {
		if tp != nil {
			s.tracerProvider = tp
		}
	}
}

// WithWorkerPool runs handlers on pool instead of a goroutine per request.
// A nil pool keeps the default.
func WithWorkerPool(pool *pools.WorkerPool) Option {
	return func(s *Setup) { s.workers = pool }
}

// WithAccessLogger replaces the zap access logger
func WithAccessLogger(a AccessLogger) Option {
	return func(s *Setup) { s.access = a }
}

// Setup collects routes, middleware and static files before the
// dispatcher is built. It is not safe for concurrent use.
type Setup struct {
	routes   *router.Table
	pipeline *middleware.Pipeline
	files    *static.Table

	resource       any
	logger         *zap.Logger
	loader         static.Loader
	recorder       Recorder
	tracerProvider trace.TracerProvider
	access         AccessLogger
	workers        *pools.WorkerPool
	built          bool
}

// NewSetup creates an empty setup
func NewSetup(opts ...Option) *Setup {
	s := &Setup{
		routes:         router.NewTable(),
		pipeline:       middleware.NewPipeline(),
		files:          static.NewTable(),
		logger:         zap.NewNop(),
		tracerProvider: noop.NewTracerProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the route table being configured
func (s *Setup) Router() *router.Table {
	return s.routes
}

// Middleware returns the pipeline being configured
func (s *Setup) Middleware() *middleware.Pipeline {
	return s.pipeline
}

// StaticFile serves alias for requests to path
func (s *Setup) StaticFile(path, alias string) *Setup {
	if s.built {
		panic("core: StaticFile " + path + " after Build")
	}
	s.files.Add(path, alias)
	return s
}

// Build freezes the configuration and returns the dispatcher.
// A setup can be built once.
func (s *Setup) Build() (*Dispatcher, error) {
	if s.built {
		return nil, errors.New("core: setup already built")
	}
	if s.files.Len() > 0 && s.loader == nil {
		return nil, errors.Newf("core: %d static files configured without a loader", s.files.Len())
	}
	s.built = true

	s.routes.Freeze()
	s.pipeline.SetLogger(s.logger.Named("middleware"))
	s.pipeline.Freeze()

	access := s.access
	if access == nil {
		access = NewZapAccessLogger(s.logger)
	}

	s.logger.Info("dispatcher built",
		zap.Int("routes", s.routes.Len()),
		zap.Int("middleware", s.pipeline.Len()),
		zap.Int("static_files", s.files.Len()))

	return &Dispatcher{
		routes:   s.routes,
		pipeline: s.pipeline,
		files:    s.files,
		loader:   s.loader,
		resource: s.resource,
		logger:   s.logger,
		access:   access,
		recorder: s.recorder,
		workers:  s.workers,
		tracer:   s.tracerProvider.Tracer(tracerName),
	}, nil
}

// MustBuild is Build that panics on error
func (s *Setup) MustBuild() *Dispatcher {
	d, err := s.Build()
	if err != nil {
		panic(err)
	}
	return d
}

// Dispatcher turns raw request bytes into a response. It is immutable and
// safe for concurrent use.
type Dispatcher struct {
	routes   *router.Table
	pipeline *middleware.Pipeline
	files    *static.Table
	loader   static.Loader
	resource any
	logger   *zap.Logger
	access   AccessLogger
	recorder Recorder
	workers  *pools.WorkerPool
	tracer   trace.Tracer
}

// Routes lists the registered routes in registration order
func (d *Dispatcher) Routes() []router.RouteInfo {
	return d.routes.Routes()
}

// Reverse builds a path for a named route
func (d *Dispatcher) Reverse(name string, values ...string) (string, error) {
	return d.routes.Reverse(name, values...)
}

// Handle dispatches one raw request. A cancelled ctx answers 503 without
// waiting for the handler. Handler panics are not recovered.
func (d *Dispatcher) Handle(ctx context.Context, buf []byte, remoteAddr string) http.Response {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	req, err := http.ParseRequest(buf)
	if err != nil {
		d.logger.Debug("unparseable request",
			zap.String("remote_addr", remoteAddr),
			zap.Int("bytes", len(buf)),
			zap.Error(err))
		return http.BadRequest().Text(bodyBadRequest).Response()
	}

	method := req.Method.String()
	ctx, span := d.tracer.Start(ctx, "dispatch "+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(method),
			semconv.URLPath(req.Path),
			semconv.ClientAddress(remoteAddr),
		))
	defer span.End()

	rec := AccessRecord{
		Method:     method,
		Path:       req.Path,
		RemoteAddr: remoteAddr,
	}
	finish := func(resp http.Response, route, outcome string) http.Response {
		rec.Status = resp.Status
		rec.Route = route
		rec.Outcome = outcome
		rec.Duration = time.Since(start)

		span.SetAttributes(semconv.HTTPResponseStatusCode(resp.Status))
		if resp.Status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(resp.Status))
		}
		if d.recorder != nil {
			d.recorder.RecordRequest(route, resp.Status, rec.Duration)
		}
		d.access.LogAccess(ctx, rec)
		return resp
	}

	if resp, ok := d.serveStatic(req); ok {
		span.SetName("dispatch " + method + " " + staticRoutePrefix + req.Path)
		return finish(resp, staticRoutePrefix+req.Path, OutcomeStatic)
	}

	entry, ok := d.routes.Find(req.Path, req.Method)
	if !ok {
		return finish(http.NotFound().Text(bodyNotFound).Response(), RouteUnmatched, OutcomeNotFound)
	}
	span.SetName("dispatch " + method + " " + entry.Pattern)
	span.SetAttributes(semconv.HTTPRoute(entry.Pattern))

	c := http.NewContext(ctx, req,
		http.WithParams(entry.ExtractParams(req.Path)),
		http.WithRoute(entry.Pattern),
		http.WithRemoteAddr(remoteAddr),
		http.WithResource(d.resource),
	)

	c, veto := d.pipeline.Run(c, entry.Pattern)
	if veto != nil {
		return finish(*veto, entry.Pattern, OutcomeVetoed)
	}

	resp, ok := d.serve(c, entry.Handler)
	if !ok {
		span.RecordError(c.Context().Err())
		return finish(http.NewBuilder(http.StatusServiceUnavailable).Text(bodyUnavailable).Response(),
			entry.Pattern, OutcomeCancelled)
	}
	return finish(resp, entry.Pattern, OutcomeHandled)
}

// serveStatic answers from the static table. Static paths match on path
// alone, whatever the method.
func (d *Dispatcher) serveStatic(req *http.Request) (http.Response, bool) {
	if d.loader == nil {
		return http.Response{}, false
	}
	alias, ok := d.files.Lookup(req.Path)
	if !ok {
		return http.Response{}, false
	}
	data, contentType, ok := d.loader.Load(alias)
	if !ok {
		d.logger.Warn("static file unavailable, falling through to routes",
			zap.String("path", req.Path),
			zap.String("alias", alias))
		return http.Response{}, false
	}
	return http.OK().Header(http.HeaderContentType, contentType).Body(data).Response(), true
}

// submit hands run to an idle pool worker, or to a new goroutine when
// there is no pool.
func (d *Dispatcher) submit(run pools.Task) error {
	if d.workers == nil {
		go run()
		return nil
	}
	return d.workers.TrySubmit(run)
}

// serve runs the handler and stops waiting once the request context is
// done. Without a worker pool, a context that can never be cancelled runs
// the handler inline.
func (d *Dispatcher) serve(c *http.Context, h router.Handler) (http.Response, bool) {
	ctx := c.Context()
	if ctx.Done() == nil && d.workers == nil {
		return h.Serve(c), true
	}
	if ctx.Err() != nil {
		return http.Response{}, false
	}

	done := make(chan http.Response, 1)
	run := func() {
		done <- h.Serve(c)
	}
	switch err := d.submit(run); {
	case err == nil:
	case errors.Is(err, pools.ErrPoolBusy):
		// Every worker is tied up; do not make this request wait on them
		go run()
	default:
		d.logger.Warn("handler not scheduled", zap.String("route", c.Route()), zap.Error(err))
		return http.Response{}, false
	}

	select {
	case resp := <-done:
		return resp, true
	case <-ctx.Done():
		return http.Response{}, false
	}
}
