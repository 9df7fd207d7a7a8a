// Package transport frames HTTP/1.x requests off TCP connections and hands
// each raw request to a Handler.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/searchktools/fast-dispatch/core/http"
	"github.com/searchktools/fast-dispatch/core/httperr"
	"github.com/searchktools/fast-dispatch/core/pools"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// Handler turns one raw request into a response
type Handler interface {
	Handle(ctx context.Context, buf []byte, remoteAddr string) http.Response
}

// Config holds listener and connection limits
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxConnections  int
	MaxRequestBytes int
}

var (
	ErrServerClosed  = errors.New("transport: server closed")
	ErrFrameTooLarge = errors.New("transport: request exceeds size limit")
	ErrBadFraming    = errors.New("transport: malformed request framing")
)

// Server accepts connections and serves requests with keep-alive
type Server struct {
	cfg     Config
	handler Handler
	logger  *zap.Logger
	pool    *pools.BytePool

	mu       sync.Mutex
	ln       net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	closing  atomic.Bool
	baseCtx  context.Context
	cancel   context.CancelFunc
	served   atomic.Uint64
	accepted atomic.Uint64
}

// New creates a server. Zero limits fall back to defaults.
func New(cfg Config, handler Handler, logger *zap.Logger) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Second
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = 1 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		pool:    pools.NewBytePool(),
		conns:   make(map[net.Conn]struct{}),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Listen binds the configured address
func (s *Server) Listen(ctx context.Context) error {
	lc := net.ListenConfig{Control: controlSocket}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.Addr)
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until Shutdown. It returns ErrServerClosed
// after a shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("transport: Serve called before Listen")
	}

	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			return errors.Wrap(err, "accept")
		}

		tuneConn(conn)
		s.accepted.Add(1)

		s.mu.Lock()
		if s.closing.Load() {
			s.mu.Unlock()
			conn.Close()
			return ErrServerClosed
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serveConn(conn)
	}
}

// ListenAndServe binds and serves
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown stops accepting, closes idle connections and waits for
// in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)

	s.mu.Lock()
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	// Wake connections blocked waiting for the next request
	for conn := range s.conns {
		_ = conn.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.cancel()
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		<-done
		return errors.Wrap(ctx.Err(), "shutdown")
	}

	s.cancel()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrap(err, "close listener")
	}
	return nil
}

// Accepted returns the number of accepted connections
func (s *Server) Accepted() uint64 {
	return s.accepted.Load()
}

// Served returns the number of requests answered
func (s *Server) Served() uint64 {
	return s.served.Load()
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	br := bufio.NewReaderSize(conn, 4096)

	for {
		// Idle wait for the first byte of the next request
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		if _, err := br.Peek(1); err != nil {
			return
		}
		if s.closing.Load() {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		frame, keepAlive, err := s.readFrame(br)
		if err != nil {
			switch {
			case errors.Is(err, ErrFrameTooLarge):
				s.write(conn, httperr.Response(httperr.Wrap(httperr.KindPayloadTooLarge, err)))
			case errors.Is(err, ErrBadFraming):
				s.write(conn, httperr.Response(httperr.Wrap(httperr.KindBadRequest, err)))
			case !errors.Is(err, io.EOF):
				s.logger.Debug("read request", zap.String("remote_addr", remote), zap.Error(err))
			}
			if frame == nil {
				return
			}
			// A truncated request still gets an answer
			keepAlive = false
		}

		resp := s.handler.Handle(s.baseCtx, *frame, remote)
		s.pool.Put(frame)
		s.served.Add(1)

		if !s.write(conn, resp) || !keepAlive || s.closing.Load() {
			return
		}
	}
}

func (s *Server) write(conn net.Conn, resp http.Response) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if _, err := conn.Write(resp.Buffer); err != nil {
		s.logger.Debug("write response", zap.Error(err))
		return false
	}
	return true
}

// readFrame reads one request: the head up to the blank line, then
// Content-Length bytes of body. On EOF in the head, the partial head is
// returned with io.EOF so the caller can still answer it.
func (s *Server) readFrame(br *bufio.Reader) (*[]byte, bool, error) {
	var head bytes.Buffer
	var (
		first         = true
		proto         string
		connection    string
		contentLength int
	)

	for {
		line, err := br.ReadSlice('\n')
		if err != nil && !errors.Is(err, bufio.ErrBufferFull) {
			head.Write(line)
			if head.Len() == 0 {
				return nil, false, err
			}
			return s.frame(head.Bytes()), false, err
		}
		if head.Len()+len(line) > s.cfg.MaxRequestBytes {
			return nil, false, ErrFrameTooLarge
		}
		head.Write(line)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		trimmed := strings.TrimRight(string(line), "\r\n")
		if first {
			first = false
			if i := strings.LastIndexByte(trimmed, ' '); i != -1 {
				proto = trimmed[i+1:]
			}
			continue
		}
		if trimmed == "" {
			break
		}

		name, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		switch {
		case strings.EqualFold(name, http.HeaderContentLength):
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, false, errors.Wrapf(ErrBadFraming, "Content-Length %q", value)
			}
			contentLength = n
		case strings.EqualFold(name, http.HeaderConnection):
			connection = value
		}
	}

	if head.Len()+contentLength > s.cfg.MaxRequestBytes {
		return nil, false, ErrFrameTooLarge
	}

	frame := s.pool.Get(head.Len() + contentLength)
	n := copy(*frame, head.Bytes())
	if contentLength > 0 {
		if _, err := io.ReadFull(br, (*frame)[n:]); err != nil {
			s.pool.Put(frame)
			return nil, false, errors.Wrap(err, "read body")
		}
	}

	keepAlive := !strings.EqualFold(connection, "close")
	if proto == "HTTP/1.0" {
		keepAlive = strings.EqualFold(connection, "keep-alive")
	}
	return frame, keepAlive, nil
}

// frame copies a partial head into a pooled buffer
func (s *Server) frame(head []byte) *[]byte {
	buf := s.pool.Get(len(head))
	copy(*buf, head)
	return buf
}
