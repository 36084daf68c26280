package notice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebsocketConfig holds configuration for the websocket push channel
type WebsocketConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
}

// DefaultWebsocketConfig returns default websocket configuration
func DefaultWebsocketConfig() WebsocketConfig {
	return WebsocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
		ReadBufferSize:   4096,
		WriteBufferSize:  1024,
	}
}

// WebsocketChannel receives notices from the portal's user hub over a websocket. A
// dropped connection is not redialled; the next Open starts a new one.
type WebsocketChannel struct {
	url    string
	header http.Header
	config WebsocketConfig
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocketConn
}

type websocketConn struct {
	id        string
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

func NewWebsocketChannel(url string, header http.Header, config WebsocketConfig) *WebsocketChannel {
	return &WebsocketChannel{
		url:    url,
		header: header,
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
		},
	}
}

// Open dials the hub and starts the read and ping pumps.
func (c *WebsocketChannel) Open(ctx context.Context, handler FrameHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return errors.New("websocket channel already open")
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to dial %s: %w (status %d)", c.url, err, resp.StatusCode)
		}
		return fmt.Errorf("failed to dial %s: %w", c.url, err)
	}

	wc := &websocketConn{
		id:   uuid.New().String(),
		conn: conn,
		done: make(chan struct{}),
	}
	c.conn = wc

	go c.readPump(wc, handler)
	go c.writePump(wc)

	log.Info().Str("connection_id", wc.id).Str("url", c.url).Msg("websocket channel connected")
	return nil
}

// Close sends a close frame and tears the connection down. It is safe to call when
// nothing is open.
func (c *WebsocketChannel) Close() error {
	c.mu.Lock()
	wc := c.conn
	c.conn = nil
	c.mu.Unlock()

	if wc == nil {
		return nil
	}
	deadline := time.Now().Add(c.config.WriteTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := wc.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Debug().Err(err).Str("connection_id", wc.id).Msg("failed to send close frame")
	}
	wc.shutdown()
	return nil
}

func (wc *websocketConn) shutdown() {
	wc.closeOnce.Do(func() {
		close(wc.done)
		wc.conn.Close()
	})
}

// readPump delivers frames to handler until the connection fails.
func (c *WebsocketChannel) readPump(wc *websocketConn, handler FrameHandler) {
	defer func() {
		wc.shutdown()
		c.mu.Lock()
		if c.conn == wc {
			c.conn = nil
		}
		c.mu.Unlock()
		log.Info().Str("connection_id", wc.id).Msg("websocket channel disconnected")
	}()

	wc.conn.SetReadLimit(c.config.MaxMessageSize)
	wc.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	wc.conn.SetPongHandler(func(string) error {
		wc.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("connection_id", wc.id).Msg("websocket read error")
			}
			return
		}
		wc.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		handler(data)
	}
}

// writePump keeps the connection alive with pings.
func (c *WebsocketChannel) writePump(wc *websocketConn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wc.done:
			return
		case <-ticker.C:
			if err := wc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout)); err != nil {
				log.Debug().Err(err).Str("connection_id", wc.id).Msg("failed to send ping")
				wc.shutdown()
				return
			}
		}
	}
}
