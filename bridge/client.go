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
)

// ErrConnectionBroken is returned by Exchange after an earlier exchange
// failed part way through and the connection was closed.
var ErrConnectionBroken = errors.New("bridge: connection broken")

// ClientConfig controls dialing and per-exchange timeouts.
type ClientConfig struct {
	DialTimeout     time.Duration
	ExchangeTimeout time.Duration
	Logger          *slog.Logger
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout:     3 * time.Second,
		ExchangeTimeout: 5 * time.Second,
	}
}

// Client is a joycon.Transport backed by a remote Server. It is safe for
// concurrent use; exchanges are serialized.
type Client struct {
	mu            sync.Mutex
	conn          net.Conn
	raw           net.Conn
	maxReportSize int
	cfg           ClientConfig
	broken        error
}

// Dial connects and authenticates to a bridge server. A nil cfg uses
// defaults.
func Dial(ctx context.Context, addr, password string, cfg *ClientConfig) (*Client, error) {
	c := defaultClientConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	key, err := DeriveKey(password)
	if err != nil {
		return nil, err
	}

	d := &net.Dialer{Timeout: c.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			c.Logger.Warn("failed to set TCP_NODELAY", "error", err)
		}
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	} else if c.DialTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.DialTimeout))
	}

	r := bufio.NewReader(conn)
	clientNonce, serverNonce, err := clientHandshake(r, conn, key)
	if err != nil {
		conn.Close()
		return nil, err
	}
	sc, err := seal(conn, r, deriveSessionKey(key, serverNonce, clientNonce), true)
	if err != nil {
		conn.Close()
		return nil, err
	}
	size, err := readHello(sc)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	c.Logger.Debug("bridge connected", "addr", addr, "max_report_size", size)
	return &Client{conn: sc, raw: conn, maxReportSize: size, cfg: c}, nil
}

// MaxReportSize is the report size of the transport behind the server.
func (c *Client) MaxReportSize() int { return c.maxReportSize }

// Exchange forwards report and returns the remote transport's response.
// Errors from the remote transport are returned as *RemoteError. Any other
// failure, including ctx ending mid-exchange, closes the connection and
// later calls return ErrConnectionBroken.
func (c *Client) Exchange(ctx context.Context, report []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionBroken, c.broken)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline, ok := ctx.Deadline()
	if !ok && c.cfg.ExchangeTimeout > 0 {
		deadline = time.Now().Add(c.cfg.ExchangeTimeout)
	}
	_ = c.raw.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = c.raw.SetDeadline(time.Now()) })
	defer stop()

	if err := writeRequest(c.conn, report); err != nil {
		return nil, c.fail(ctx, fmt.Errorf("bridge send: %w", err))
	}
	resp, err := readResponse(c.conn)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, c.fail(ctx, err)
	}
	return resp, nil
}

// fail marks the client broken and closes the connection; the sealed stream
// cannot be resynchronized once a frame was partially written or read.
func (c *Client) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	c.broken = err
	c.cfg.Logger.Debug("bridge connection closed after failed exchange", "error", err)
	_ = c.raw.Close()
	return err
}

func (c *Client) Close() error {
	return c.raw.Close()
}
