package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/kstaniek/dccl-acomms/internal/logging"
	"github.com/kstaniek/dccl-acomms/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen    = errors.New("listen")
	ErrAccept    = errors.New("accept")
	ErrHandshake = errors.New("handshake")
	ErrConnWrite = errors.New("conn_write")
	ErrContext   = errors.New("context_cancelled")
)

const (
	defaultFlushInterval    = 10 * time.Millisecond
	defaultBatchSize        = 64
	defaultHandshakeTimeout = 3 * time.Second
)

// Server accepts monitor TCP clients and broadcasts events to them.
type Server struct {
	mu     sync.RWMutex
	addr   string
	Hub    *Hub
	Codec  Codec
	logger *slog.Logger

	flushInterval    time.Duration
	batchSize        int
	handshakeTimeout time.Duration
	maxClients       int

	listener  net.Listener
	clientsMu sync.RWMutex
	clients   map[*Client]net.Conn
	wg        sync.WaitGroup

	readyOnce sync.Once
	readyCh   chan struct{}
}

// NewServer builds a Server listening on addr once Serve is called, fanning
// out through hub.
func NewServer(addr string, hub *Hub) *Server {
	return &Server{
		addr:             addr,
		Hub:              hub,
		flushInterval:    defaultFlushInterval,
		batchSize:        defaultBatchSize,
		handshakeTimeout: defaultHandshakeTimeout,
		clients:          make(map[*Client]net.Conn),
		logger:           logging.L(),
		readyCh:          make(chan struct{}),
	}
}

// WithMaxClients caps concurrent connected observers (0 = unbounded).
func (s *Server) WithMaxClients(n int) *Server { s.maxClients = n; return s }

func (s *Server) Addr() string { s.mu.RLock(); defer s.mu.RUnlock(); return s.addr }
func (s *Server) Ready() <-chan struct{} { return s.readyCh }

// Serve accepts clients until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrListen, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	s.listener = ln
	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("monitor_listen", "addr", s.Addr())
	go func() { <-ctx.Done(); _ = ln.Close() }()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if _, ok := err.(net.Error); ok {
				time.Sleep(200 * time.Millisecond)
				continue
			}
			return fmt.Errorf("%w: %v", ErrAccept, err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	if err := Handshake(ctx, conn, s.handshakeTimeout); err != nil {
		metrics.IncError(metrics.ErrHandshake)
		s.logger.Warn("monitor_handshake_failed", "error", err, "remote", conn.RemoteAddr())
		_ = conn.Close()
		return
	}
	if s.maxClients > 0 && s.Hub.Count() >= s.maxClients {
		metrics.IncMonitorReject()
		s.logger.Warn("monitor_client_reject_max", "max_clients", s.maxClients)
		_ = conn.Close()
		return
	}

	bufSize := 512
	if s.Hub.OutBufSize > 0 {
		bufSize = s.Hub.OutBufSize
	}
	cl := &Client{Out: make(chan Event, bufSize), Closed: make(chan struct{})}
	s.Hub.Add(cl)
	metrics.SetMonitorClients(s.Hub.Count())

	s.clientsMu.Lock()
	s.clients[cl] = conn
	s.clientsMu.Unlock()
	s.logger.Info("monitor_client_connected", "remote", conn.RemoteAddr())

	s.wg.Add(1)
	s.writeLoop(ctx, conn, cl)
}

func (s *Server) writeLoop(ctx context.Context, conn net.Conn, cl *Client) {
	defer s.wg.Done()
	defer func() {
		_ = conn.Close()
		s.Hub.Remove(cl)
		s.clientsMu.Lock()
		delete(s.clients, cl)
		s.clientsMu.Unlock()
		s.logger.Info("monitor_client_disconnected", "remote", conn.RemoteAddr())
	}()

	t := time.NewTicker(s.flushInterval)
	defer t.Stop()
	batch := make([]Event, 0, s.batchSize)
	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		if _, err := s.Codec.EncodeTo(conn, batch); err != nil {
			metrics.IncError(metrics.ErrMonitorWrite)
			s.logger.Debug("monitor_write_error", "error", err)
			batch = batch[:0]
			return false
		}
		batch = batch[:0]
		return true
	}
	for {
		select {
		case e := <-cl.Out:
			batch = append(batch, e)
			if len(batch) >= s.batchSize && !flush() {
				return
			}
		case <-t.C:
			if !flush() {
				return
			}
		case <-cl.Closed:
			flush()
			return
		case <-ctx.Done():
			flush()
			return
		}
	}
}

// Shutdown closes the listener and every connected client, waiting for
// writer goroutines to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	s.clientsMu.Lock()
	for cl, conn := range s.clients {
		_ = conn.Close()
		s.Hub.Remove(cl)
		delete(s.clients, cl)
	}
	s.clientsMu.Unlock()

	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: shutdown timeout: %v", ErrContext, ctx.Err())
	case <-done:
		return nil
	}
}
