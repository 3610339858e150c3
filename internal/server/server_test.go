package server

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/kvmesh-go/internal/store"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	st := store.New()
	t.Cleanup(st.Close)

	cfg := DefaultConfig()
	cfg.Port = 0 // ephemeral

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(cfg, st, logger, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})

	return s
}

func dialTestServer(t *testing.T, s *Server) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func send(t *testing.T, conn net.Conn, raw string) {
	t.Helper()
	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func readReply(t *testing.T, br *bufio.Reader) string {
	t.Helper()
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	return line
}

func TestServer_RoundTrip(t *testing.T) {
	s := startTestServer(t)
	conn, br := dialTestServer(t, s)

	send(t, conn, "*1\r\n$4\r\nPING\r\n")
	if got := readReply(t, br); got != "+PONG\r\n" {
		t.Fatalf("PING reply = %q, want +PONG", got)
	}

	send(t, conn, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$5\r\nhello\r\n")
	if got := readReply(t, br); got != "+OK\r\n" {
		t.Fatalf("SET reply = %q, want +OK", got)
	}

	send(t, conn, "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n")
	if got := readReply(t, br); got != "$5\r\n" {
		t.Fatalf("GET header = %q, want $5", got)
	}
	if got := readReply(t, br); got != "hello\r\n" {
		t.Fatalf("GET payload = %q, want hello", got)
	}
}

func TestServer_InlineCommand(t *testing.T) {
	s := startTestServer(t)
	conn, br := dialTestServer(t, s)

	send(t, conn, "PING\r\n")
	if got := readReply(t, br); got != "+PONG\r\n" {
		t.Fatalf("inline PING reply = %q, want +PONG", got)
	}

	send(t, conn, "SET key value\r\n")
	if got := readReply(t, br); got != "+OK\r\n" {
		t.Fatalf("inline SET reply = %q, want +OK", got)
	}
}

func TestServer_Pipelining(t *testing.T) {
	s := startTestServer(t)
	conn, br := dialTestServer(t, s)

	send(t, conn, "*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n*1\r\n$4\r\nPING\r\n")
	for i := 0; i < 3; i++ {
		if got := readReply(t, br); got != "+PONG\r\n" {
			t.Fatalf("pipelined reply %d = %q, want +PONG", i, got)
		}
	}
}

func TestServer_QuitClosesConnection(t *testing.T) {
	s := startTestServer(t)
	conn, br := dialTestServer(t, s)

	send(t, conn, "*1\r\n$4\r\nQUIT\r\n")
	if got := readReply(t, br); got != "+OK\r\n" {
		t.Fatalf("QUIT reply = %q, want +OK", got)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := br.ReadByte(); err != io.EOF {
		t.Fatalf("after QUIT err = %v, want io.EOF", err)
	}
}

func TestServer_MalformedFrameClosesWithoutReply(t *testing.T) {
	s := startTestServer(t)
	conn, br := dialTestServer(t, s)

	// Array announcing a bulk string but delivering garbage.
	send(t, conn, "*1\r\n:42\r\n")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := br.ReadByte(); err != io.EOF {
		t.Fatalf("after malformed frame err = %v, want io.EOF with no reply", err)
	}
}

func TestServer_UnknownCommandKeepsConnection(t *testing.T) {
	s := startTestServer(t)
	conn, br := dialTestServer(t, s)

	send(t, conn, "*1\r\n$7\r\nNOTACMD\r\n")
	got := readReply(t, br)
	if !strings.HasPrefix(got, "-ERR unknown command") {
		t.Fatalf("reply = %q, want unknown command error", got)
	}

	// Connection survives the error.
	send(t, conn, "*1\r\n$4\r\nPING\r\n")
	if got := readReply(t, br); got != "+PONG\r\n" {
		t.Fatalf("PING after error = %q, want +PONG", got)
	}
}

func TestServer_ConcurrentClients(t *testing.T) {
	s := startTestServer(t)

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			conn, err := net.Dial("tcp", s.Addr())
			if err != nil {
				done <- err
				return
			}
			defer conn.Close()
			br := bufio.NewReader(conn)

			for j := 0; j < 20; j++ {
				if _, err := conn.Write([]byte("*1\r\n$4\r\nPING\r\n")); err != nil {
					done <- err
					return
				}
				line, err := br.ReadString('\n')
				if err != nil {
					done <- err
					return
				}
				if line != "+PONG\r\n" {
					done <- io.ErrUnexpectedEOF
					return
				}
			}
			done <- nil
		}()
	}

	for i := 0; i < 4; i++ {
		if err := <-done; err != nil {
			t.Fatalf("client %d: %v", i, err)
		}
	}
}

func TestServer_StartShutdownIdempotent(t *testing.T) {
	st := store.New()
	defer st.Close()

	cfg := DefaultConfig()
	cfg.Port = 0

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(cfg, st, logger, nil)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("IsRunning = false after Start")
	}

	// Second Start is a no-op, not a second listener.
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if s.IsRunning() {
		t.Fatal("IsRunning = true after Shutdown")
	}
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestServer_ShutdownClosesIdleClients(t *testing.T) {
	st := store.New()
	defer st.Close()

	cfg := DefaultConfig()
	cfg.Port = 0

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(cfg, st, logger, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// An idle client that never sends a byte parks the connection
	// loop in its read; Shutdown must still return promptly.
	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// Make sure the server has accepted before shutting down.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown with idle client: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Shutdown took %v, want prompt return", elapsed)
	}

	// The idle client's socket was closed server-side.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != io.EOF {
		t.Fatalf("client read after Shutdown err = %v, want io.EOF", err)
	}
}

func TestServer_BindFailureLeavesStopped(t *testing.T) {
	st := store.New()
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Occupy a port, then ask a second server for the same one.
	first := New(&Config{Host: "127.0.0.1", Port: 0}, st, logger, nil)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Shutdown(context.Background())

	_, portStr, err := net.SplitHostPort(first.Addr())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	second := New(&Config{Host: "127.0.0.1", Port: port}, st, logger, nil)
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("Start on occupied port succeeded")
	}
	if second.IsRunning() {
		t.Fatal("IsRunning = true after failed Start")
	}
}

func TestServer_RateLimit(t *testing.T) {
	st := store.New()
	defer st.Close()

	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.RateLimit = 2

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(cfg, st, logger, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Shutdown(context.Background())

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	br := bufio.NewReader(conn)

	limited := false
	for i := 0; i < 10; i++ {
		if _, err := conn.Write([]byte("*1\r\n$4\r\nPING\r\n")); err != nil {
			t.Fatalf("Write: %v", err)
		}
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("ReadString: %v", err)
		}
		if strings.HasPrefix(line, "-ERR rate limit") {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("burst of 10 commands was never rate limited")
	}
}
