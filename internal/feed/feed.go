package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// ---------------------------------------------------------------------------
// Snapshot Feed — websocket stream of token snapshots
// Each text frame is a JSON snapshot or a {"snapshot": {...}} envelope.
// ---------------------------------------------------------------------------

// Config configures the feed client.
type Config struct {
	URL          string        `yaml:"url"`
	Subscribe    []byte        `yaml:"-"` // optional frame sent after each connect
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
	PingInterval time.Duration `yaml:"ping_interval"`
	Buffer       int           `yaml:"buffer"`
}

// DefaultConfig returns the default reconnect and keepalive settings.
func DefaultConfig() Config {
	return Config{
		ReconnectMin: time.Second,
		ReconnectMax: 30 * time.Second,
		PingInterval: 20 * time.Second,
		Buffer:       256,
	}
}

var errEmptyFrame = errors.New("feed: empty frame")

// DecodeFrame parses one text frame into a snapshot.
func DecodeFrame(data []byte) (snapshot.Snapshot, error) {
	s, err := snapshot.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if inner, ok := s["snapshot"].(map[string]any); ok {
		s = snapshot.Snapshot(inner)
	}
	if len(s) == 0 {
		return nil, errEmptyFrame
	}
	return s, nil
}

// Client streams snapshots from a websocket endpoint, reconnecting with
// exponential backoff until its context ends.
type Client struct {
	config  Config
	observe func(accepted bool)

	frames     atomic.Int64
	dropped    atomic.Int64
	reconnects atomic.Int64
	connected  atomic.Bool
}

// NewClient creates a feed client. observe may be nil.
func NewClient(cfg Config, observe func(accepted bool)) *Client {
	def := DefaultConfig()
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = def.ReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = max(def.ReconnectMax, cfg.ReconnectMin)
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if observe == nil {
		observe = func(bool) {}
	}
	return &Client{config: cfg, observe: observe}
}

// Run starts the connection loop and returns the snapshot stream. The
// channel is closed once ctx ends.
func (c *Client) Run(ctx context.Context) <-chan snapshot.Snapshot {
	out := make(chan snapshot.Snapshot, c.config.Buffer)
	go c.runLoop(ctx, out)
	return out
}

func (c *Client) runLoop(ctx context.Context, out chan<- snapshot.Snapshot) {
	defer close(out)
	delay := c.config.ReconnectMin

	for ctx.Err() == nil {
		conn, err := c.connect(ctx)
		if err != nil {
			c.reconnects.Add(1)
			log.Warn().Err(err).Dur("retry_in", delay).Msg("feed: connection failed")
			select {
			case <-time.After(delay):
				delay = min(delay*2, c.config.ReconnectMax)
			case <-ctx.Done():
				return
			}
			continue
		}
		delay = c.config.ReconnectMin

		c.readLoop(ctx, conn, out)
		c.connected.Store(false)
		conn.Close()
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.config.URL, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("feed: dial: %w", err)
	}
	if len(c.config.Subscribe) > 0 {
		if err := conn.WriteMessage(websocket.TextMessage, c.config.Subscribe); err != nil {
			conn.Close()
			return nil, fmt.Errorf("feed: subscribe: %w", err)
		}
	}
	c.connected.Store(true)
	log.Info().Str("url", c.config.URL).Msg("feed: connected")
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- snapshot.Snapshot) {
	readTimeout := 2*c.config.PingInterval + 10*time.Second
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(c.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// Unblocks ReadMessage.
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					log.Debug().Err(err).Msg("feed: ping failed")
				}
			}
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Info().Msg("feed: connection closed normally")
				} else {
					log.Warn().Err(err).Msg("feed: read error, reconnecting")
				}
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		s, err := DecodeFrame(data)
		if err != nil {
			c.dropped.Add(1)
			c.observe(false)
			log.Debug().Err(err).Int("bytes", len(data)).Msg("feed: malformed frame dropped")
			continue
		}
		c.frames.Add(1)
		c.observe(true)

		select {
		case out <- s:
		case <-ctx.Done():
			return
		}
	}
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool { return c.connected.Load() }

// Stats returns feed counters.
func (c *Client) Stats() map[string]interface{} {
	return map[string]interface{}{
		"frames_total":     c.frames.Load(),
		"dropped_total":    c.dropped.Load(),
		"reconnects_total": c.reconnects.Load(),
		"connected":        c.connected.Load(),
	}
}
