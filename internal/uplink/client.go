// Package uplink owns the application layer of the device transport: the
// command dispatcher, the connect handshake, liveness enforcement, and the
// runtime service loop.
//
// Ownership boundary:
// - hello handshake and command routing (ping/pong, file transfer, time,
//   telemetry queries)
// - liveness timeout and forced reconnect policy
// - message counters
//
// Byte transport lives in internal/netio, framing/encoding in
// internal/protocol, file assembly in internal/filetransfer.
package uplink

import (
	"crypto/tls"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edgekit/uplink/internal/config"
	"github.com/edgekit/uplink/internal/filetransfer"
	"github.com/edgekit/uplink/internal/netio"
	"github.com/edgekit/uplink/internal/observability"
	"github.com/edgekit/uplink/internal/protocol"
	"github.com/edgekit/uplink/internal/telemetry"
)

// Config tunes client behavior. Start from DefaultConfig.
type Config struct {
	ClientID string
	Password string
	// Root is the directory file transfers and file queries resolve against.
	Root string
	// LengthBytes selects the frame length prefix width (1 or 2).
	LengthBytes int
	// ReceiveTimeout is the maximum silence before the peer is presumed dead.
	ReceiveTimeout       time.Duration
	EnableFileManagement bool
	EnableTimeSync       bool
	Conn                 netio.Config
}

func DefaultConfig() Config {
	return Config{
		Root:                 ".",
		LengthBytes:          2,
		ReceiveTimeout:       65 * time.Second,
		EnableFileManagement: true,
		EnableTimeSync:       true,
	}
}

// Collaborators are the platform capabilities the command handlers delegate
// to. Nil fields get working defaults.
type Collaborators struct {
	Clock    telemetry.Clock
	Platform telemetry.Provider
}

type handlerFunc func(c *Client, m protocol.Message)

// Client is the top of the transport stack. Not safe for concurrent use: all
// methods must run on one scheduling loop (see Service).
type Client struct {
	cfg    Config
	collab Collaborators

	conn *netio.Conn
	ch   *protocol.Channel

	handlers map[string]handlerFunc
	writer   *filetransfer.Writer

	lastReceive time.Time
	lastSend    time.Time

	sent       uint64
	received   uint64
	sendErrors uint64

	// optional application callbacks
	OnConnected    func()
	OnDisconnected func()

	now func() time.Time
}

func New(cfg Config, collab Collaborators) (*Client, error) {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.LengthBytes == 0 {
		cfg.LengthBytes = 2
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = 65 * time.Second
	}
	if collab.Clock == nil {
		collab.Clock = &telemetry.OffsetClock{}
	}
	if collab.Platform == nil {
		collab.Platform = telemetry.NewRuntimeProvider()
	}

	c := &Client{
		cfg:      cfg,
		collab:   collab,
		handlers: defaultHandlers(),
		now:      time.Now,
	}
	c.conn = netio.New(cfg.Conn, netio.Hooks{
		OnConnect:    c.handleConnected,
		OnDisconnect: c.handleDisconnected,
	})
	ch, err := protocol.NewChannel(c.conn, cfg.LengthBytes)
	if err != nil {
		return nil, err
	}
	c.ch = ch
	return c, nil
}

func (c *Client) handleConnected() {
	// fresh stream: a truncated frame from the previous connection must not
	// desync this one, and the liveness timer restarts from the handshake
	c.ch.Reset()
	c.lastReceive = time.Time{}
	c.Send(protocol.Message{
		"cmd":      "hello",
		"clientid": c.cfg.ClientID,
		"password": c.cfg.Password,
	})
	if c.OnConnected != nil {
		c.OnConnected()
	}
}

func (c *Client) handleDisconnected() {
	if c.OnDisconnected != nil {
		c.OnDisconnected()
	}
}

// Configure sets the connection target without connecting.
func (c *Client) Configure(host string, port int, tlsConf *tls.Config) {
	c.conn.Configure(host, port, tlsConf)
}

// Reload reads the device config at path and applies it. A missing or invalid
// config is logged and leaves the connection unconfigured/paused as it was.
// When the client is active, the new target takes effect via reconnect.
func (c *Client) Reload(path string) error {
	dc, err := config.LoadDeviceConfig(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("uplink: config reload failed")
		return err
	}
	tlsConf, err := dc.TLS.BuildTLS()
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("uplink: config reload failed")
		return err
	}
	c.cfg.ClientID = dc.ClientID
	c.cfg.Password = dc.Password
	c.cfg.Root = dc.Root
	c.conn.Configure(dc.Host, dc.Port, tlsConf)
	log.Info().Str("path", path).Str("addr", c.conn.RemoteAddr()).Msg("uplink: config reloaded")
	if !c.conn.Paused() {
		c.conn.Reconnect()
	}
	return nil
}

func (c *Client) Retry()          { c.conn.Retry() }
func (c *Client) Pause()          { c.conn.Pause() }
func (c *Client) Reconnect()      { c.conn.Reconnect() }
func (c *Client) Poll()           { c.conn.Poll() }
func (c *Client) Connected() bool { return c.conn.Connected() }
func (c *Client) Paused() bool    { return c.conn.Paused() }

// Send writes one message and reports whether the full frame went out.
func (c *Client) Send(m protocol.Message) bool {
	ok := c.ch.Send(m)
	c.lastSend = c.now()
	if ok {
		c.sent++
		observability.RecordMessageSent()
	} else {
		c.sendErrors++
		observability.RecordSendError()
	}
	return ok
}

// SendKeepalive writes a zero-length frame to show the peer we are alive.
func (c *Client) SendKeepalive() bool {
	ok := c.ch.SendKeepalive()
	c.lastSend = c.now()
	return ok
}

// Receive runs one receive cycle: drains available bytes, dispatches command
// messages, and returns the rest to the caller in arrival order. Protocol
// desync and liveness expiry force a reconnect here; neither is surfaced as
// an error, the surrounding loop just keeps ticking.
func (c *Client) Receive() []protocol.Message {
	msgs, err := c.ch.Receive()

	var out []protocol.Message
	for _, m := range msgs {
		c.lastReceive = c.now()
		c.received++
		observability.RecordMessageReceived()
		if cmd := m.Cmd(); cmd != "" {
			if h, ok := c.handlers[cmd]; ok {
				h(c, m)
				continue
			}
		}
		out = append(out, m)
	}

	if err != nil {
		log.Warn().Err(err).Msg("uplink: protocol desync, forcing reconnect")
		observability.RecordForcedReconnect("malformed")
		c.conn.Reconnect()
		return out
	}

	if c.conn.Connected() && !c.lastReceive.IsZero() &&
		c.now().Sub(c.lastReceive) > c.cfg.ReceiveTimeout {
		log.Warn().
			Dur("timeout", c.cfg.ReceiveTimeout).
			Msg("uplink: no messages within liveness timeout, forcing reconnect")
		c.lastReceive = time.Time{}
		observability.RecordForcedReconnect("liveness")
		c.conn.Reconnect()
	}
	return out
}

// Status is a point-in-time snapshot for diagnostics and telemetry replies.
type Status struct {
	ClientID         string      `json:"clientid"`
	RemoteAddr       string      `json:"remote_addr"`
	Connected        bool        `json:"connected"`
	Paused           bool        `json:"paused"`
	Conn             netio.Stats `json:"conn"`
	MessagesSent     uint64      `json:"messages_sent"`
	MessagesReceived uint64      `json:"messages_received"`
	SendErrors       uint64      `json:"send_errors"`
	LastSend         time.Time   `json:"last_send"`
	LastReceive      time.Time   `json:"last_receive"`
	TransferActive   bool        `json:"transfer_active"`
	TransferPath     string      `json:"transfer_path,omitempty"`
	TransferPosition int64       `json:"transfer_position,omitempty"`
}

func (c *Client) Status() Status {
	st := Status{
		ClientID:         c.cfg.ClientID,
		RemoteAddr:       c.conn.RemoteAddr(),
		Connected:        c.conn.Connected(),
		Paused:           c.conn.Paused(),
		Conn:             c.conn.Stats(),
		MessagesSent:     c.sent,
		MessagesReceived: c.received,
		SendErrors:       c.sendErrors,
		LastSend:         c.lastSend,
		LastReceive:      c.lastReceive,
	}
	if c.writer != nil {
		st.TransferActive = true
		st.TransferPath = c.writer.Path()
		st.TransferPosition = c.writer.Position()
	}
	return st
}
