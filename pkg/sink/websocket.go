package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/coder/websocket"

	"github.com/RyanBlaney/mic-spectrum/pkg/audio"
)

// WebSocketConfig holds settings for the websocket broadcaster
type WebSocketConfig struct {
	// Per-client queue depth; a client whose queue is full misses frames
	ClientBuffer int `json:"client_buffer"`
	// Deadline for a single message write
	WriteTimeout time.Duration `json:"write_timeout"`
	// Accepted Origin host patterns; empty allows same-origin only
	OriginPatterns []string `json:"origin_patterns"`
}

// DefaultWebSocketConfig returns the broadcaster defaults
func DefaultWebSocketConfig() *WebSocketConfig {
	return &WebSocketConfig{
		ClientBuffer: 8,
		WriteTimeout: 2 * time.Second,
	}
}

// WebSocket broadcasts every spectrum as an audio-data JSON text message to
// all connected clients. It is both a Sink and an http.Handler.
type WebSocket struct {
	config  *WebSocketConfig
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	dropped atomic.Uint64
	logger  logging.Logger
}

type wsClient struct {
	send chan []byte
	addr string
}

// NewWebSocket creates a broadcaster. A nil config uses DefaultWebSocketConfig.
func NewWebSocket(config *WebSocketConfig) *WebSocket {
	if config == nil {
		config = DefaultWebSocketConfig()
	}
	if config.ClientBuffer < 1 {
		config.ClientBuffer = 1
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 2 * time.Second
	}

	return &WebSocket{
		config:  config,
		clients: make(map[*wsClient]struct{}),
		logger: logging.WithFields(logging.Fields{
			"component": "websocket_sink",
		}),
	}
}

// ServeHTTP upgrades the request and streams frames until the client leaves
func (ws *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: ws.config.OriginPatterns,
	})
	if err != nil {
		ws.logger.Error(err, "Websocket upgrade failed", logging.Fields{
			"remote_addr": r.RemoteAddr,
		})
		return
	}
	defer conn.CloseNow()

	client := &wsClient{
		send: make(chan []byte, ws.config.ClientBuffer),
		addr: r.RemoteAddr,
	}
	ws.register(client)
	defer ws.unregister(client)

	// clients never send anything meaningful; CloseRead handles pings and close frames
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-client.send:
			writeCtx, cancel := context.WithTimeout(ctx, ws.config.WriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				ws.logger.Debug("Websocket client write failed", logging.Fields{
					"remote_addr": client.addr,
					"error":       err.Error(),
				})
				return
			}
		}
	}
}

// Deliver encodes frame once and queues it for every client without blocking
func (ws *WebSocket) Deliver(frame audio.SpectrumFrame) error {
	msg, err := json.Marshal(NewEvent(frame))
	if err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", frame.Sequence, err)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	for client := range ws.clients {
		select {
		case client.send <- msg:
		default:
			ws.dropped.Add(1)
		}
	}
	return nil
}

// Clients returns the number of connected clients
func (ws *WebSocket) Clients() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.clients)
}

// Dropped returns how many client messages were skipped for slow clients
func (ws *WebSocket) Dropped() uint64 {
	return ws.dropped.Load()
}

func (ws *WebSocket) register(c *wsClient) {
	ws.mu.Lock()
	ws.clients[c] = struct{}{}
	count := len(ws.clients)
	ws.mu.Unlock()

	ws.logger.Info("Websocket client connected", logging.Fields{
		"remote_addr": c.addr,
		"clients":     count,
	})
}

func (ws *WebSocket) unregister(c *wsClient) {
	ws.mu.Lock()
	delete(ws.clients, c)
	count := len(ws.clients)
	ws.mu.Unlock()

	ws.logger.Info("Websocket client disconnected", logging.Fields{
		"remote_addr": c.addr,
		"clients":     count,
	})
}
