/*
Package fastdispatch is a small HTTP/1.x request dispatch toolkit.

A request arrives as raw bytes and leaves as a serialized response:

	raw bytes -> parser -> static table -> route table -> middleware -> handler -> response

Routes, middleware and static files are registered on a mutable core.Setup.
Build freezes them into an immutable core.Dispatcher that is safe for
concurrent use:

	setup := core.NewSetup(core.WithLogger(logger))
	setup.Router().GET("/hello/:name", func(c *http.Context) http.Response {
		return http.OK().Text("Hello, " + c.Param("name")).Response()
	})
	setup.Middleware().AddGlobal(middleware.RequestID())

	d, err := setup.Build()
	if err != nil {
		return err
	}
	resp := d.Handle(ctx, []byte("GET /hello/gopher HTTP/1.1\r\n\r\n"), "127.0.0.1:4000")

Packages

  - core/http: request parsing, the per-request Context and response building
  - core/router: route table with :param and trailing * segments, groups and named routes
  - core/middleware: global and route-scoped middleware plus built-ins
  - core/httperr: error kinds and their JSON error responses
  - core/codec: JSON, MessagePack and Protobuf body codecs
  - core/static: path to file alias table and a caching directory loader
  - core/observability: per-route metrics, Prometheus collectors, bottleneck detection
  - core/transport: TCP listener framing HTTP/1.x requests for a Dispatcher
  - app: fx wiring of configuration, logging, tracing and the transport

The fast-dispatch command in cmd/fast-dispatch serves a demo application.
*/
package fastdispatch
