package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Alia5/jctool/internal/log"
	"github.com/Alia5/jctool/joycon"
)

// ServerConfig configures the bridge listener.
type ServerConfig struct {
	Addr              string        `help:"Bridge listen address" default:":3243" env:"JCTOOL_BRIDGE_ADDR"`
	Password          string        `help:"Bridge password (generated and stored in the config dir when empty)" env:"JCTOOL_BRIDGE_PASSWORD"`
	HandshakeTimeout  time.Duration `help:"Time a client has to complete authentication" default:"5s" env:"JCTOOL_BRIDGE_HANDSHAKE_TIMEOUT"`
	ConnectionTimeout time.Duration `help:"Idle time after which a client is disconnected" default:"30s" env:"JCTOOL_BRIDGE_CONNECTION_TIMEOUT"`
}

// Server exposes one joycon.Transport to bridge clients. Exchanges from all
// clients are serialized onto the transport.
type Server struct {
	config    ServerConfig
	key       []byte
	transport joycon.Transport
	logger    *slog.Logger
	raw       log.RawLogger

	mu sync.Mutex // serializes transport exchanges

	lnMu  sync.Mutex
	ln    net.Listener
	ready chan struct{}
	wg    sync.WaitGroup
}

// NewServer creates a Server. The password is stretched once here.
func NewServer(config ServerConfig, t joycon.Transport, logger *slog.Logger, raw log.RawLogger) (*Server, error) {
	key, err := DeriveKey(config.Password)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Server{
		config:    config,
		key:       key,
		transport: t,
		logger:    logger,
		raw:       raw,
		ready:     make(chan struct{}),
	}, nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ListenAndServe binds config.Addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("bridge listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. Open connections are
// closed before Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.lnMu.Lock()
	s.ln = ln
	s.lnMu.Unlock()
	close(s.ready)
	s.logger.Info("bridge listening", "addr", ln.Addr().String())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("bridge stopped")
				return nil
			}
			return fmt.Errorf("bridge accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logger := s.logger.With("remote", conn.RemoteAddr().String())

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if s.config.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.config.HandshakeTimeout))
	}
	r := bufio.NewReader(conn)
	clientNonce, serverNonce, err := serverHandshake(r, conn, s.key)
	if err != nil {
		logger.Warn("bridge handshake failed", "error", err)
		return
	}
	sc, err := seal(conn, r, deriveSessionKey(s.key, serverNonce, clientNonce), false)
	if err != nil {
		logger.Error("bridge session setup failed", "error", err)
		return
	}
	_ = conn.SetDeadline(time.Time{})
	if err := writeHello(sc, s.transport.MaxReportSize()); err != nil {
		logger.Warn("bridge hello failed", "error", err)
		return
	}
	logger.Info("bridge client connected")

	for {
		if s.config.ConnectionTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.config.ConnectionTimeout))
		}
		report, err := readRequest(sc)
		if err != nil {
			logger.Info("bridge client disconnected", "error", err)
			return
		}
		resp, xerr := s.exchange(ctx, report)
		if xerr != nil {
			logger.Debug("bridge exchange failed", "error", xerr)
		}
		if err := writeResponse(sc, resp, xerr); err != nil {
			logger.Warn("bridge write failed", "error", err)
			return
		}
	}
}

func (s *Server) exchange(ctx context.Context, report []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw.Log(log.HostToDevice, report)
	resp, err := s.transport.Exchange(ctx, report)
	if err != nil {
		return nil, err
	}
	s.raw.Log(log.DeviceToHost, resp)
	return resp, nil
}
