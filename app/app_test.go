package app

import (
	"bufio"
	"context"
	"io"
	"net"
	nethttp "net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/searchktools/fast-dispatch/config"
	"github.com/searchktools/fast-dispatch/core"
	"github.com/searchktools/fast-dispatch/core/http"
	"github.com/searchktools/fast-dispatch/core/observability"
	"github.com/searchktools/fast-dispatch/core/pools"
	"github.com/searchktools/fast-dispatch/core/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func routing(setup *core.Setup) {
	setup.Router().GET("/ping", func(c *http.Context) http.Response {
		v, _ := http.ResourceAs[string](c)
		return http.OK().Text("pong " + v).Response()
	})
}

func get(t *testing.T, addr net.Addr, path string) (*nethttp.Response, string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET " + path + " HTTP/1.1\r\nHost: test\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	resp, err := nethttp.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestAppServesRequests(t *testing.T) {
	t.Setenv("FD_PORT", "0")

	var (
		srv     *transport.Server
		monitor *observability.Monitor
	)
	app := fxtest.New(t, append(FxOptions(routing, WithResource("db")),
		fx.Populate(&srv, &monitor))...)
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	resp, body := get(t, srv.Addr(), "/ping")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "pong db", body)

	resp, _ = get(t, srv.Addr(), "/missing")
	assert.Equal(t, 404, resp.StatusCode)

	assert.Equal(t, uint64(2), monitor.TotalRequests())
}

func TestAppStaticTable(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>hi</h1>"), 0o644))
	table := filepath.Join(root, "static.yaml")
	require.NoError(t, os.WriteFile(table, []byte("files:\n  - path: /\n    alias: index.html\n"), 0o644))

	t.Setenv("FD_PORT", "0")
	t.Setenv("FD_STATIC_ROOT", root)
	t.Setenv("FD_STATIC_TABLE", table)

	var srv *transport.Server
	app := fxtest.New(t, append(FxOptions(routing), fx.Populate(&srv))...)
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	resp, body := get(t, srv.Addr(), "/")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "<h1>hi</h1>", body)
}

func TestAppWithHandlerWorkers(t *testing.T) {
	t.Setenv("FD_PORT", "0")
	t.Setenv("FD_HANDLER_WORKERS", "2")

	var (
		srv  *transport.Server
		pool *pools.WorkerPool
	)
	app := fxtest.New(t, append(FxOptions(routing), fx.Populate(&srv, &pool))...)
	app.RequireStart()

	resp, _ := get(t, srv.Addr(), "/ping")
	assert.Equal(t, 200, resp.StatusCode)
	require.NotNil(t, pool)
	assert.Equal(t, uint64(1), pool.Stats().TasksSubmitted)

	app.RequireStop()
	assert.ErrorIs(t, pool.Submit(context.Background(), func() {}), pools.ErrPoolClosed)
}

func TestAppInvalidConfig(t *testing.T) {
	t.Setenv("FD_TRACE_EXPORTER", "jaeger")

	a := New(routing)
	assert.Error(t, a.Err())
}

func TestAppMissingStaticTable(t *testing.T) {
	t.Setenv("FD_STATIC_TABLE", filepath.Join(t.TempDir(), "missing.yaml"))

	a := New(routing)
	assert.Error(t, a.Err())
}

func TestNewTracerProvider(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	tp, err := NewTracerProvider(lc, &config.Config{TraceExporter: config.TraceExporterNone})
	require.NoError(t, err)
	assert.IsType(t, noop.TracerProvider{}, tp)

	_, err = NewTracerProvider(lc, &config.Config{TraceExporter: "zipkin"})
	assert.Error(t, err)

	tp, err = NewTracerProvider(lc, &config.Config{TraceExporter: config.TraceExporterStdout, ServiceName: "test"})
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer("test"))
	lc.RequireStart()
	lc.RequireStop()
}

func TestNewLogger(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(cfg.LogLevel))
}
