package tests

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"sync"
	"testing"
	"time"

	"github.com/searchktools/fast-dispatch/core"
	"github.com/searchktools/fast-dispatch/core/http"
	"github.com/searchktools/fast-dispatch/core/middleware"
	"github.com/searchktools/fast-dispatch/core/observability"
	"github.com/searchktools/fast-dispatch/core/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t testing.TB, monitor *observability.Monitor) *core.Dispatcher {
	t.Helper()
	setup := core.NewSetup(core.WithRecorder(monitor))
	setup.Middleware().AddGlobal(middleware.RequestID())
	setup.Router().GET("/echo/:n", func(c *http.Context) http.Response {
		return http.OK().Header(http.HeaderRequestID, middleware.GetRequestID(c)).Text(c.Param("n")).Response()
	})
	d, err := setup.Build()
	require.NoError(t, err)
	return d
}

func TestConcurrentHandle(t *testing.T) {
	monitor := observability.NewMonitor()
	d := newDispatcher(t, monitor)

	const workers, perWorker = 32, 200
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n := fmt.Sprintf("%d-%d", w, i)
				resp := d.Handle(context.Background(), []byte("GET /echo/"+n+" HTTP/1.1\r\n\r\n"), "")
				if resp.Status != 200 {
					errs <- fmt.Errorf("request %s: status %d", n, resp.Status)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, uint64(workers*perWorker), monitor.TotalRequests())
}

func TestConcurrentConnections(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}

	monitor := observability.NewMonitor()
	srv := transport.New(transport.Config{Addr: "127.0.0.1:0"}, newDispatcher(t, monitor), nil)
	require.NoError(t, srv.Listen(context.Background()))
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
	})

	const conns, perConn = 16, 50
	var wg sync.WaitGroup
	errs := make(chan error, conns)

	for c := 0; c < conns; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			if err := keepAliveClient(srv.Addr().String(), c, perConn); err != nil {
				errs <- err
			}
		}(c)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, uint64(conns), srv.Accepted())
	assert.Equal(t, uint64(conns*perConn), srv.Served())
	assert.Equal(t, uint64(conns*perConn), monitor.TotalRequests())
}

// keepAliveClient sends n requests over one connection and checks each echo
func keepAliveClient(addr string, id, n int) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	br := bufio.NewReader(conn)

	for i := 0; i < n; i++ {
		want := fmt.Sprintf("%d-%d", id, i)
		if _, err := conn.Write([]byte("GET /echo/" + want + " HTTP/1.1\r\nHost: stress\r\n\r\n")); err != nil {
			return err
		}
		resp, err := nethttp.ReadResponse(br, nil)
		if err != nil {
			return err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}
		if resp.StatusCode != 200 || string(body) != want {
			return fmt.Errorf("conn %d request %d: status %d body %q", id, i, resp.StatusCode, body)
		}
		if resp.Header.Get(http.HeaderRequestID) == "" {
			return fmt.Errorf("conn %d request %d: missing request id", id, i)
		}
	}
	return nil
}

func BenchmarkHandleParallel(b *testing.B) {
	d := newDispatcher(b, observability.NewMonitor())
	req := []byte("GET /echo/42 HTTP/1.1\r\nHost: bench\r\n\r\n")

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			d.Handle(context.Background(), req, "")
		}
	})
}
