package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/wplc/livechat/internal/config"
	"go.uber.org/zap"
)

// Frame events exchanged over the hub's websocket.
const (
	FrameConnected      = "connection_established"
	FrameSubscribe      = "subscribe"
	FrameUnsubscribe    = "unsubscribe"
	FrameSubscribed     = "subscription_succeeded"
	FrameSubscribeError = "subscription_error"
	FramePing           = "ping"
	FramePong           = "pong"
	FrameError          = "error"
)

const (
	hubSendBuffer   = 64
	hubMaxFrame     = 8 << 10
	hubWriteWait    = 10 * time.Second
	defaultHubPing  = 25 * time.Second
	hubPongWaitMult = 2
)

// Frame is one websocket message in either direction. Published events carry Channel, Event
// and Data; subscribe requests carry Channel, Auth and ChannelData.
type Frame struct {
	Event       string          `json:"event"`
	Channel     string          `json:"channel,omitempty"`
	Auth        string          `json:"auth,omitempty"`
	ChannelData string          `json:"channel_data,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// ConnectedData is the payload of the first frame a socket receives.
type ConnectedData struct {
	SocketID string `json:"socket_id"`
}

type hubClient struct {
	conn     *websocket.Conn
	send     chan []byte
	socketID string
	channels map[string]struct{}
}

// Hub is a relay served by this process: browsers open a websocket to the API itself and
// subscribe with the same signatures Authenticate issues for hosted relays.
type Hub struct {
	Signer

	log          *zap.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration

	mu       sync.RWMutex
	clients  map[*hubClient]struct{}
	channels map[string]map[*hubClient]struct{}
	closed   bool
}

func NewHub(cfg config.RelayCfg, log *zap.Logger) *Hub {
	ping := time.Duration(cfg.PingIntervalSec) * time.Second
	if ping <= 0 {
		ping = defaultHubPing
	}
	h := &Hub{
		Signer:       Signer{Key: cfg.Key, Secret: cfg.Secret},
		log:          log,
		pingInterval: ping,
		clients:      make(map[*hubClient]struct{}),
		channels:     make(map[string]map[*hubClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// originChecker allows the listed origins, or any origin for "*". An empty list keeps the
// upgrader's same-origin default.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.Contains(allowed, u.Scheme+"://"+u.Host)
	}
}

func newSocketID() string {
	return fmt.Sprintf("%d.%d", rand.Uint32(), rand.Uint32())
}

// needsAuth reports whether subscribing to channel requires a signature.
func needsAuth(channel string) bool {
	return strings.HasPrefix(channel, "private-") || strings.HasPrefix(channel, "presence-")
}

func (h *Hub) Initialized() bool { return h.Secret != "" }

func (h *Hub) Authenticate(channel, socketID string, member *Member) (*AuthResponse, error) {
	if !h.Initialized() {
		return nil, ErrNotInitialized
	}
	return h.Sign(channel, socketID, member)
}

func encodeFrame(f Frame) ([]byte, error) {
	return sonic.Marshal(f)
}

// Publish queues the event on every socket subscribed to channel. A socket whose buffer is
// full misses the event.
func (h *Hub) Publish(_ context.Context, channel, event string, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	body, err := encodeFrame(Frame{Event: event, Channel: channel, Data: data})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		select {
		case c.send <- body:
		default:
			h.log.Warn("websocket buffer full, event dropped",
				zap.String("socket_id", c.socketID),
				zap.String("channel", channel),
				zap.String("event", event))
		}
	}
	return nil
}

// Subscribers returns how many sockets listen on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// ServeHTTP upgrades the request and runs the socket until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade", zap.Error(err))
		return
	}

	c := &hubClient{
		conn:     conn,
		send:     make(chan []byte, hubSendBuffer),
		socketID: newSocketID(),
		channels: make(map[string]struct{}),
	}
	hello, _ := sonic.Marshal(ConnectedData{SocketID: c.socketID})
	if body, err := encodeFrame(Frame{Event: FrameConnected, Data: hello}); err == nil {
		c.send <- body
	}
	if !h.register(c) {
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

// removeLocked drops c from every index and closes its send queue. h.mu must be held.
func (h *Hub) removeLocked(c *hubClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for ch := range c.channels {
		h.leaveLocked(c, ch)
	}
	close(c.send)
}

func (h *Hub) leaveLocked(c *hubClient, channel string) {
	delete(c.channels, channel)
	subs := h.channels[channel]
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// reply queues a frame for c alone.
func (h *Hub) reply(c *hubClient, f Frame) {
	body, err := encodeFrame(f)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- body:
	default:
	}
}

func errorData(msg string) json.RawMessage {
	b, _ := sonic.Marshal(map[string]string{"message": msg})
	return b
}

func (h *Hub) subscribe(c *hubClient, f Frame) {
	if f.Channel == "" {
		h.reply(c, Frame{Event: FrameSubscribeError, Data: errorData("channel is required")})
		return
	}
	if needsAuth(f.Channel) && !h.Verify(f.Channel, c.socketID, f.Auth, f.ChannelData) {
		h.reply(c, Frame{Event: FrameSubscribeError, Channel: f.Channel, Data: errorData("invalid signature")})
		return
	}

	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		c.channels[f.Channel] = struct{}{}
		subs := h.channels[f.Channel]
		if subs == nil {
			subs = make(map[*hubClient]struct{})
			h.channels[f.Channel] = subs
		}
		subs[c] = struct{}{}
	}
	h.mu.Unlock()

	h.reply(c, Frame{Event: FrameSubscribed, Channel: f.Channel})
}

func (h *Hub) unsubscribe(c *hubClient, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := c.channels[channel]; ok {
		h.leaveLocked(c, channel)
	}
}

func (h *Hub) readPump(c *hubClient) {
	defer h.unregister(c)

	pongWait := hubPongWaitMult * h.pingInterval
	c.conn.SetReadLimit(hubMaxFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed", zap.String("socket_id", c.socketID), zap.Error(err))
			}
			return
		}

		var f Frame
		if err := sonic.Unmarshal(raw, &f); err != nil {
			h.reply(c, Frame{Event: FrameError, Data: errorData("malformed frame")})
			continue
		}
		switch f.Event {
		case FrameSubscribe:
			h.subscribe(c, f)
		case FrameUnsubscribe:
			h.unsubscribe(c, f.Channel)
		case FramePing:
			h.reply(c, Frame{Event: FramePong})
		default:
			h.reply(c, Frame{Event: FrameError, Data: errorData("unknown event " + f.Event)})
		}
	}
}

func (h *Hub) writePump(c *hubClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case body, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every socket and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	return nil
}
