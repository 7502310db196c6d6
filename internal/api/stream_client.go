package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"acdm-platform/internal/domain"
)

// StreamEvent is an event as received by a stream client. Payload is left raw.
type StreamEvent struct {
	ID      string           `json:"id"`
	Type    domain.EventType `json:"type"`
	Round   int              `json:"round"`
	Time    time.Time        `json:"time"`
	Payload json.RawMessage  `json:"payload"`
}

// StreamClientConfig configures stream client behavior.
type StreamClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages; server pings keep it fresh.
	ReadTimeout time.Duration
}

// DefaultStreamClientConfig returns default stream client configuration.
func DefaultStreamClientConfig() StreamClientConfig {
	return StreamClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
	}
}

// StreamClient follows /api/v1/stream and reconnects with exponential backoff.
// Events published while disconnected are not replayed.
type StreamClient struct {
	endpoint string
	config   StreamClientConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	events chan StreamEvent
	done   chan struct{}
	wg     sync.WaitGroup
}

// DialStream connects to the event stream of the server at baseURL.
func DialStream(ctx context.Context, baseURL string, config *StreamClientConfig) (*StreamClient, error) {
	cfg := DefaultStreamClientConfig()
	if config != nil {
		cfg = *config
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/api/v1/stream"
	endpoint = strings.Replace(endpoint, "http://", "ws://", 1)
	endpoint = strings.Replace(endpoint, "https://", "wss://", 1)

	c := &StreamClient{
		endpoint: endpoint,
		config:   cfg,
		events:   make(chan StreamEvent, 1024),
		done:     make(chan struct{}),
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()
	return c, nil
}

// Events returns the event channel. It is closed by Close.
func (c *StreamClient) Events() <-chan StreamEvent {
	return c.events
}

func (c *StreamClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return fmt.Errorf("websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})
	c.conn = conn
	return nil
}

// Close closes the connection and the event channel.
func (c *StreamClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.events)
	return nil
}

func (c *StreamClient) readLoop() {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay
	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect(delay) {
				return
			}
			delay = min(delay*2, c.config.MaxReconnectDelay)
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.connMu.Lock()
			c.conn.Close()
			c.conn = nil
			c.connMu.Unlock()
			continue
		}
		delay = c.config.ReconnectDelay

		var e StreamEvent
		if err := json.Unmarshal(msg, &e); err != nil {
			continue
		}
		select {
		case c.events <- e:
		case <-c.done:
			return
		}
	}
}

// reconnect waits delay and dials again. It returns false once the client is closed.
func (c *StreamClient) reconnect(delay time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// A failed dial leaves conn nil and the loop retries with a longer delay.
	_ = c.connect(ctx)
	if c.closed.Load() {
		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.connMu.Unlock()
		return false
	}
	return true
}
