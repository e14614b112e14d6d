// Package mqtt subscribes to a single broker topic and hands every inbound
// publish to a callback, from whichever goroutine polls the client.
package mqtt

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"
)

const (
	defaultTimeout      = 5 * time.Second
	defaultPollTimeout  = 5 * time.Millisecond
	defaultPingInterval = 30 * time.Second
	defaultMaxPayload   = 4096
	decoderBufSize      = 512 // Holds topic names and other variable headers.
)

var (
	ErrNotConnected = errors.New("mqtt: not connected")
	errClosed       = errors.New("mqtt: closed by client")
)

// Handler receives inbound publishes. payload is only valid until the
// handler returns.
type Handler func(topic string, payload []byte)

type Client struct {
	// IDPrefix is joined with a random hex suffix to form the client ID.
	IDPrefix string
	Topic    string
	Username string // MQTT broker username (optional)
	Password string // MQTT broker password (optional, requires Username)
	// Timeout bounds the connect handshake, pings and reading a packet body.
	Timeout time.Duration
	// PollTimeout is how long Poll waits for the first byte of a packet.
	PollTimeout  time.Duration
	PingInterval time.Duration
	// MaxPayload caps the bytes kept from one publish. The rest is discarded.
	MaxPayload int
	// Rand feeds the client ID suffix and packet identifiers.
	Rand      func() uint32
	Logger    *slog.Logger
	OnMessage Handler

	client   *mqtt.Client
	conn     io.ReadWriteCloser
	rx       *bufio.Reader
	payload  []byte
	id       string
	lastPing time.Time
}

// bufferedConn lets Poll peek for pending input before handing the stream to
// the MQTT decoder.
type bufferedConn struct {
	*bufio.Reader
	conn io.ReadWriteCloser
}

func (b *bufferedConn) Write(p []byte) (int, error) { return b.conn.Write(p) }

func (b *bufferedConn) Close() error { return b.conn.Close() }

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

type bufferedInputer interface {
	BufferedInput() int
}

func (c *Client) init() {
	if c.client != nil {
		return
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = defaultPollTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.MaxPayload <= 0 {
		c.MaxPayload = defaultMaxPayload
	}
	if c.Rand == nil {
		var seed uint32 = 0x9e3779b9
		c.Rand = func() uint32 {
			seed ^= seed << 13
			seed ^= seed >> 17
			seed ^= seed << 5
			return seed
		}
	}
	c.payload = make([]byte, 0, c.MaxPayload)
	c.client = mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, decoderBufSize)},
		OnPub:   c.onPub,
	})
}

// Connect performs the MQTT handshake over conn and subscribes to Topic. conn
// is owned by the client from here on and closed by Close.
func (c *Client) Connect(ctx context.Context, conn io.ReadWriteCloser) error {
	c.init()
	if c.conn != nil {
		c.Close()
	}
	if c.rx == nil {
		c.rx = bufio.NewReaderSize(conn, 1024)
	} else {
		c.rx.Reset(conn)
	}
	c.conn = conn
	rwc := &bufferedConn{Reader: c.rx, conn: conn}

	c.id = c.IDPrefix + strconv.FormatUint(uint64(c.Rand()%0xffff), 16)
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(c.id))
	if c.Username != "" {
		varconn.Username = []byte(c.Username)
		if c.Password != "" {
			varconn.Password = []byte(c.Password)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	c.Logger.Info("mqtt:connecting", slog.String("clientID", c.id))
	if err := c.client.Connect(ctx, rwc, &varconn); err != nil {
		c.Close()
		return errors.New("mqtt connect:" + err.Error())
	}

	err := c.client.Subscribe(ctx, mqtt.VariablesSubscribe{
		PacketIdentifier: uint16(c.Rand()) | 1,
		TopicFilters: []mqtt.SubscribeRequest{
			{TopicFilter: []byte(c.Topic), QoS: mqtt.QoS0},
		},
	})
	if err != nil {
		c.Close()
		return errors.New("mqtt subscribe " + c.Topic + ":" + err.Error())
	}
	c.lastPing = time.Now()
	c.Logger.Info("mqtt:subscribed", slog.String("topic", c.Topic), slog.String("clientID", c.id))
	return nil
}

// Poll handles at most one inbound packet without blocking for longer than
// PollTimeout when the line is idle, and pings the broker when the session
// has been quiet for PingInterval. Publishes are delivered to OnMessage
// before Poll returns.
func (c *Client) Poll() error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	pending, err := c.pending()
	if err != nil {
		c.Logger.Error("mqtt:read-failed", slog.String("err", err.Error()))
		c.Close()
		return err
	}
	if pending {
		c.setReadDeadline(time.Now().Add(c.Timeout))
		err = c.client.HandleNext()
		c.setReadDeadline(time.Time{})
		if err != nil {
			c.Logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
			if !c.client.IsConnected() {
				c.Close()
			}
			return err
		}
	}
	return c.keepAlive()
}

// pending reports whether a packet has started to arrive.
func (c *Client) pending() (bool, error) {
	if c.rx.Buffered() > 0 {
		return true, nil
	}
	if b, ok := c.conn.(bufferedInputer); ok {
		return b.BufferedInput() > 0, nil
	}
	if !c.setReadDeadline(time.Now().Add(c.PollTimeout)) {
		// No way to bound the read, so let HandleNext block.
		return true, nil
	}
	_, err := c.rx.Peek(1)
	c.setReadDeadline(time.Time{})
	if err == nil {
		return true, nil
	}
	if isTimeout(err) {
		return false, nil
	}
	return false, err
}

func (c *Client) keepAlive() error {
	if time.Since(c.lastPing) < c.PingInterval {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	c.setReadDeadline(time.Now().Add(c.Timeout))
	err := c.client.Ping(ctx)
	c.setReadDeadline(time.Time{})
	c.lastPing = time.Now()
	if err != nil {
		c.Logger.Error("mqtt:ping-failed", slog.String("err", err.Error()))
		c.Close()
		return errors.New("mqtt ping:" + err.Error())
	}
	return nil
}

// setReadDeadline reports whether the connection supports deadlines.
func (c *Client) setReadDeadline(t time.Time) bool {
	switch conn := c.conn.(type) {
	case readDeadliner:
		conn.SetReadDeadline(t)
	case deadliner:
		conn.SetDeadline(t)
	default:
		return false
	}
	return true
}

func (c *Client) onPub(_ mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
	c.payload = c.payload[:0]
	n, err := io.ReadFull(r, c.payload[:cap(c.payload)])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return err
	}
	c.payload = c.payload[:n]
	if n == cap(c.payload) {
		dropped, err := io.Copy(io.Discard, r)
		if err != nil {
			return err
		}
		if dropped > 0 {
			c.Logger.Warn("mqtt:payload-truncated",
				slog.Int("kept", n),
				slog.Int64("dropped", dropped),
			)
		}
	}

	topic := string(varPub.TopicName)
	c.Logger.Debug("mqtt:received", slog.String("topic", topic), slog.Int("len", n))
	if c.OnMessage != nil {
		c.OnMessage(topic, c.payload)
	}
	return nil
}

// IsConnected reports whether the MQTT session is up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.conn != nil && c.client.IsConnected()
}

// Err returns the reason the session last went down, if any.
func (c *Client) Err() error {
	if c.client == nil {
		return nil
	}
	return c.client.Err()
}

// ClientID returns the ID used for the current or last session.
func (c *Client) ClientID() string {
	return c.id
}

// Close ends the session and closes the transport. It is safe to call on a
// client that never connected.
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(errClosed)
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// SplitHostPort splits a broker address into host and port. IPv6 hosts must
// be bracketed, as in "[fe80::1]:1883", and are returned without brackets.
func SplitHostPort(addr string) (host, port string, err error) {
	host, port, err = net.SplitHostPort(addr)
	if err != nil {
		return "", "", err
	}
	if host == "" {
		return "", "", errors.New("empty host in " + addr)
	}
	if port == "" {
		return "", "", errors.New("empty port in " + addr)
	}
	return host, port, nil
}

// ParsePort converts a decimal port string to uint16. It returns 0 for
// anything that is not a valid port.
func ParsePort(portStr string) uint16 {
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(port)
}
