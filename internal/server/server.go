// Package server implements the RESP2 TCP server: a listener that
// spawns one goroutine per accepted connection, a per-connection
// decode/dispatch/encode loop, and the static command table that maps
// requests onto the store.
package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/kvmesh-go/internal/resp"
	"github.com/yndnr/kvmesh-go/internal/store"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
)

// Config holds the RESP server configuration.
type Config struct {
	// Host is the bind address. The server binds exactly this
	// address, with no fallback.
	Host string
	// Port is the TCP port (default 6379).
	Port int
	// ReadTimeout bounds reading a single command once its first
	// byte has arrived.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration
	// IdleTimeout bounds the wait for the next command.
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per
	// client IP. 0 disables rate limiting.
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:         "127.0.0.1",
		Port:         6379,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
		RateLimit:    0,
	}
}

// Server accepts RESP2 connections and dispatches commands against the
// store. Start and Shutdown are idempotent.
type Server struct {
	cfg      *Config
	store    *store.Store
	logger   *slog.Logger
	metrics  *metric.Registry
	limiters *ipLimiter

	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup

	// connMu guards conns, the set of open client connections, so
	// Shutdown can close them and unblock their read loops.
	connMu sync.Mutex
	conns  map[*Conn]struct{}
}

// Conn represents a single client connection.
type Conn struct {
	id      string
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer
	closed  atomic.Bool
}

func newConn(c net.Conn) *Conn {
	return &Conn{
		id:      ulid.Make().String(),
		netConn: c,
		br:      bufio.NewReader(c),
		bw:      bufio.NewWriter(c),
	}
}

// Close closes the underlying connection once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

// RemoteAddr returns the client's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// New creates a new RESP server on top of st.
func New(cfg *Config, st *store.Store, logger *slog.Logger, metrics *metric.Registry) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = metric.NewRegistry(nil)
	}

	var limiters *ipLimiter
	if cfg.RateLimit > 0 {
		limiters = newIPLimiter(cfg.RateLimit)
	}

	return &Server{
		cfg:      cfg,
		store:    st,
		logger:   logger,
		metrics:  metrics,
		limiters: limiters,
		conns:    make(map[*Conn]struct{}),
	}
}

// Start binds the configured address and begins accepting connections.
// A second Start while running is a no-op warning, not a duplicate
// listener. A bind failure leaves the server stopped.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("resp server already running")
		return nil
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return err
	}
	s.ln = ln
	s.logger.Info("resp server listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx, ln); err != nil && s.running.Load() {
			s.logger.Error("resp server accept error", "error", err)
		}
	}()

	return nil
}

// IsRunning reports whether the server is currently accepting
// connections.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown closes the listener and waits for connection goroutines
// until ctx expires. It is safe to call multiple times.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	var firstErr error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			firstErr = err
		}
	}

	// Close client sockets so blocked reads unblock; in-flight loops
	// need not finish their clients before stop returns.
	s.connMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(newConn(c))
		}()
	}
}

// serveConn runs one connection's decode/dispatch/encode loop until the
// client quits, disconnects, or desynchronizes the stream.
func (s *Server) serveConn(c *Conn) {
	defer c.Close()

	s.trackConn(c, true)
	defer s.trackConn(c, false)

	// Raced with Shutdown: the conn set may already have been swept.
	if !s.running.Load() {
		return
	}

	if s.metrics != nil {
		s.metrics.ConnectionsTotal.Inc()
		s.metrics.ConnectionsActive.Inc()
		defer s.metrics.ConnectionsActive.Dec()
	}

	readTimeout := s.cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := s.cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}
	idleTimeout := s.cfg.IdleTimeout
	if idleTimeout == 0 {
		idleTimeout = 5 * time.Minute
	}

	for {
		// First byte: allow the idle timeout, so a connection can sit
		// quiet between commands.
		if err := c.netConn.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			s.logReadEnd(c, err)
			return
		}

		// After the first byte: tighten to the per-command read timeout.
		if err := c.netConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		args, err := resp.ReadCommand(c.br)
		if err != nil {
			if errors.Is(err, resp.ErrLimitExceeded) {
				s.logger.Warn("protocol limit exceeded",
					"conn", c.id, "remote", c.RemoteAddr(), "error", err)
				_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = resp.Encode(c.bw, resp.ErrorValue("ERR protocol limit exceeded"))
				_ = c.bw.Flush()
				return
			}
			if errors.Is(err, resp.ErrProtocol) {
				// Malformed frame: the stream position is unknown, so
				// close without replying.
				s.logger.Debug("protocol error, closing connection",
					"conn", c.id, "remote", c.RemoteAddr(), "error", err)
				return
			}
			s.logReadEnd(c, err)
			return
		}

		if len(args) == 0 {
			continue
		}

		name := resp.NormalizeCommandName(args[0])
		if name == "QUIT" {
			_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = resp.Encode(c.bw, resp.OK)
			_ = c.bw.Flush()
			return
		}

		var reply resp.Value
		if !s.limiters.allow(clientIP(c.RemoteAddr())) {
			reply = resp.ErrorValue("ERR rate limit exceeded")
		} else {
			reply = s.dispatch(name, args)
		}

		if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}
		if err := resp.Encode(c.bw, reply); err != nil {
			return
		}
		if err := c.bw.Flush(); err != nil {
			return
		}
	}
}

func (s *Server) trackConn(c *Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// logReadEnd records why a read ended. Disconnects and timeouts are
// normal and logged at debug level only.
func (s *Server) logReadEnd(c *Conn, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		s.logger.Debug("client disconnected", "conn", c.id, "remote", c.RemoteAddr())
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		s.logger.Debug("connection timed out", "conn", c.id, "remote", c.RemoteAddr())
		return
	}
	s.logger.Debug("connection read error", "conn", c.id, "remote", c.RemoteAddr(), "error", err)
}

func clientIP(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
