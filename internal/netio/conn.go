// Package netio owns the client-side connection lifecycle: a single outbound
// stream socket with timed reconnect, pause/resume, and byte-level send and
// receive. Framing and message semantics live above (internal/protocol).
package netio

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edgekit/uplink/internal/observability"
)

// Hooks are optional callbacks fired on connection state changes. OnConnect
// runs immediately after a successful connect (the layer above uses it to
// send its handshake); OnDisconnect runs after any teardown.
type Hooks struct {
	OnConnect    func()
	OnDisconnect func()
}

// Config tunes connection behavior. The reconnect interval is fixed: there is
// no backoff, a constrained device retries at a steady rate.
type Config struct {
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
	ReadBufferSize    int
	ReadPollTimeout   time.Duration
}

func (c Config) WithDefaults() Config {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = 10 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 1500
	}
	if c.ReadPollTimeout <= 0 {
		c.ReadPollTimeout = 5 * time.Millisecond
	}
	return c
}

// Stats is a snapshot of connection counters.
type Stats struct {
	Connects      uint64 `json:"connects"`
	Disconnects   uint64 `json:"disconnects"`
	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
}

// Conn owns one outbound socket. It is not safe for concurrent use: all
// methods must run on the owner's scheduling loop.
type Conn struct {
	cfg   Config
	hooks Hooks

	host    string
	port    int
	tlsConf *tls.Config

	sock        net.Conn
	connected   bool
	paused      bool
	lastAttempt time.Time

	buf   []byte
	stats Stats

	now  func() time.Time
	dial func(addr string) (net.Conn, error)
}

// New returns a paused, unconfigured connection. Call Configure and Retry to
// bring it up.
func New(cfg Config, hooks Hooks) *Conn {
	cfg = cfg.WithDefaults()
	c := &Conn{
		cfg:   cfg,
		hooks: hooks,
		// paused until the first Retry so a half-configured client never dials
		paused: true,
		buf:    make([]byte, cfg.ReadBufferSize),
		now:    time.Now,
	}
	c.dial = c.dialStream
	c.lastAttempt = c.now().Add(-cfg.ReconnectInterval)
	return c
}

// Configure sets the connection target. It does not connect; the next Poll,
// Retry, or Reconnect does.
func (c *Conn) Configure(host string, port int, tlsConf *tls.Config) {
	c.host = host
	c.port = port
	if tlsConf != nil {
		tlsConf = tlsConf.Clone()
		if tlsConf.ServerName == "" && !tlsConf.InsecureSkipVerify {
			tlsConf.ServerName = host
		}
	}
	c.tlsConf = tlsConf
}

func (c *Conn) Connected() bool { return c.connected }
func (c *Conn) Paused() bool    { return c.paused }

// RemoteAddr returns the configured target in host:port form.
func (c *Conn) RemoteAddr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Stats returns a snapshot of the connection counters.
func (c *Conn) Stats() Stats { return c.stats }

// Retry clears the pause flag and attempts a connection now.
func (c *Conn) Retry() {
	c.paused = false
	c.lastAttempt = c.now().Add(-c.cfg.ReconnectInterval)
	c.tryConnect()
}

// Pause suppresses all connection attempts until Retry is called. It does not
// drop an established connection.
func (c *Conn) Pause() {
	c.paused = true
}

// Reconnect drops the current connection, if any, and immediately reattempts
// unless paused.
func (c *Conn) Reconnect() {
	c.teardown("forced reconnect", nil)
	if !c.paused {
		c.Retry()
	}
}

// Poll attempts a connection when disconnected, not paused, and the reconnect
// interval has elapsed since the last attempt. It must be called before every
// send/receive and periodically otherwise.
func (c *Conn) Poll() {
	if c.connected {
		return
	}
	if c.now().Sub(c.lastAttempt) > c.cfg.ReconnectInterval {
		c.lastAttempt = c.now()
		c.tryConnect()
	}
}

func (c *Conn) tryConnect() {
	if c.connected || c.paused {
		return
	}
	if c.host == "" || c.port == 0 {
		return
	}
	addr := c.RemoteAddr()
	sock, err := c.dial(addr)
	if err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("uplink: connect failed")
		return
	}
	c.sock = sock
	c.connected = true
	c.stats.Connects++
	observability.RecordConnect()
	log.Info().Str("addr", addr).Msg("uplink: connected")
	if c.hooks.OnConnect != nil {
		c.hooks.OnConnect()
	}
}

func (c *Conn) dialStream(addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	raw, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if c.tlsConf == nil {
		return raw, nil
	}
	conn := tls.Client(raw, c.tlsConf)
	_ = conn.SetDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	if err := conn.Handshake(); err != nil {
		_ = raw.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

func (c *Conn) teardown(reason string, err error) {
	if !c.connected {
		return
	}
	c.connected = false
	_ = c.sock.Close()
	c.sock = nil
	c.stats.Disconnects++
	observability.RecordDisconnect()
	evt := log.Warn().Str("reason", reason)
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("uplink: disconnected")
	if c.hooks.OnDisconnect != nil {
		c.hooks.OnDisconnect()
	}
}

// Send writes all of p. A short write or error is fatal to the current
// connection: the socket is closed and 0 is returned. Returns 0 when not
// connected.
func (c *Conn) Send(p []byte) int {
	c.Poll()
	if !c.connected {
		return 0
	}
	n, err := c.sock.Write(p)
	if err != nil || n != len(p) {
		c.teardown("send failed", err)
		return 0
	}
	c.stats.BytesSent += uint64(n)
	return n
}

// Receive reads whatever the socket has buffered right now and hands each
// chunk to visit. The chunk aliases an internal buffer reused across reads:
// visit must copy anything it keeps. A read timeout ends the burst; a peer
// close or read error tears the connection down.
func (c *Conn) Receive(visit func(chunk []byte)) {
	c.Poll()
	if !c.connected {
		return
	}
	for {
		_ = c.sock.SetReadDeadline(time.Now().Add(c.cfg.ReadPollTimeout))
		n, err := c.sock.Read(c.buf)
		if n > 0 {
			c.stats.BytesReceived += uint64(n)
			visit(c.buf[:n])
		}
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			// nothing more right now
			return
		}
		if errors.Is(err, io.EOF) {
			c.teardown("peer closed", nil)
		} else {
			c.teardown("recv failed", err)
		}
		return
	}
}
