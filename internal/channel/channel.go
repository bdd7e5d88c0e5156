// Package channel maintains the single websocket connection to the assistant server.
package channel

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/orion-client/internal/protocol"
)

const defaultPath = "/ws"

var (
	ErrAlreadyConnected = errors.New("channel: connect already attempted")
	ErrEmptyURL         = errors.New("channel: endpoint url is empty")
)

// Callbacks receive channel events. They are invoked from the read goroutine, in arrival order.
type Callbacks struct {
	OnOpen        func()
	OnTranscript  func(text string)
	OnResponse    func(text string)
	OnAudio       func(segment string)
	OnServerError func(message string)
	OnClose       func(err error)
	OnError       func(err error)
}

// Config configures the dial.
type Config struct {
	URL                string
	ClientID           string
	HandshakeTimeout   time.Duration
	InsecureSkipVerify bool
}

// Channel is a single-shot websocket connection. It never reconnects.
type Channel struct {
	cfg       Config
	callbacks Callbacks
	logger    *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	open     bool
	dialed   bool
	closeErr error

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// EndpointURL derives the websocket endpoint from the page URL: ws for http pages, wss for https pages.
func EndpointURL(pageURL string, path string) (string, error) {
	raw := strings.TrimSpace(pageURL)
	if raw == "" {
		return "", ErrEmptyURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("page url %q has no host", pageURL)
	}
	scheme := "ws"
	if strings.EqualFold(u.Scheme, "https") || strings.EqualFold(u.Scheme, "wss") {
		scheme = "wss"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: path}).String(), nil
}

// New creates an unconnected channel. An empty client id is replaced with a random uuid.
func New(cfg Config, callbacks Callbacks, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Channel{
		cfg:       cfg,
		callbacks: callbacks,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// ClientID returns the id sent in the handshake.
func (c *Channel) ClientID() string {
	return c.cfg.ClientID
}

// Connect dials the server once and starts the read loop. A dial failure reports OnError
// followed by OnClose, mirroring a socket that never opened.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.dialed {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.dialed = true
	c.mu.Unlock()

	if c.cfg.URL == "" {
		c.fail(ErrEmptyURL)
		return ErrEmptyURL
	}

	headers := http.Header{}
	headers.Set("Client-Id", c.cfg.ClientID)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	if c.cfg.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c.logger.Info("channel connecting", zap.String("url", c.cfg.URL), zap.String("client_id", c.cfg.ClientID))
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, headers)
	if err != nil {
		c.logger.Warn("channel connect failed", zap.Error(err))
		c.fail(err)
		return err
	}
	conn.SetPingHandler(func(appData string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	c.mu.Lock()
	c.conn = conn
	c.open = true
	c.mu.Unlock()

	c.logger.Info("channel connected", zap.String("url", c.cfg.URL))
	if c.callbacks.OnOpen != nil {
		c.callbacks.OnOpen()
	}
	go c.readLoop(conn)
	return nil
}

// IsOpen reports whether the connection is usable.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Send writes one recording payload. It returns false without writing when the channel is
// not open or the payload carries no audio.
func (c *Channel) Send(payload protocol.RecordingPayload) bool {
	if err := payload.Validate(); err != nil {
		return false
	}
	c.mu.Lock()
	conn := c.conn
	open := c.open
	c.mu.Unlock()
	if !open || conn == nil {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.reportError(err)
		return false
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("channel send failed", zap.Error(err))
		c.reportError(err)
		return false
	}
	c.logger.Debug("channel sent recording", zap.Int("audio_bytes", len(payload.Audio)))
	return true
}

// Close closes the connection. OnClose fires once from the read loop.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.open = false
	c.mu.Unlock()
	if conn == nil {
		c.finish(nil)
		return nil
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

// Done is closed once the connection has ended.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.open = false
			c.mu.Unlock()
			_ = conn.Close()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("channel closed", zap.Error(err))
			} else {
				c.logger.Warn("channel connection lost", zap.Error(err))
			}
			c.finish(err)
			return
		}
		if msgType != websocket.TextMessage {
			c.logger.Debug("channel ignored binary message", zap.Int("bytes", len(data)))
			continue
		}
		c.dispatch(data)
	}
}

func (c *Channel) dispatch(data []byte) {
	event, err := protocol.ParseServerMessage(data)
	if errors.Is(err, protocol.ErrNoTag) {
		c.logger.Debug("channel ignored untagged message", zap.ByteString("message", data))
		return
	}
	if err != nil {
		c.logger.Warn("channel ignored server message", zap.Error(err))
		c.reportError(err)
		return
	}
	switch event.Type {
	case protocol.TypeTranscript:
		if c.callbacks.OnTranscript != nil {
			c.callbacks.OnTranscript(event.Text)
		}
	case protocol.TypeLLMResponse:
		if c.callbacks.OnResponse != nil {
			c.callbacks.OnResponse(event.Text)
		}
	case protocol.TypeAudioResponse:
		if c.callbacks.OnAudio != nil {
			c.callbacks.OnAudio(event.Text)
		}
	case protocol.TypeError:
		if c.callbacks.OnServerError != nil {
			c.callbacks.OnServerError(event.Text)
		}
	}
}

func (c *Channel) fail(err error) {
	c.reportError(err)
	c.finish(err)
}

func (c *Channel) finish(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.open = false
		c.closeErr = err
		c.mu.Unlock()
		close(c.done)
		if c.callbacks.OnClose != nil {
			c.callbacks.OnClose(err)
		}
	})
}

func (c *Channel) reportError(err error) {
	if c.callbacks.OnError != nil {
		c.callbacks.OnError(err)
	}
}
