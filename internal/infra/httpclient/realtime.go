package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/wplc/livechat/internal/infra/relay"
)

var ErrSubscriptionRejected = errors.New("relay rejected the subscription")

// Subscription is a websocket bound to one channel of the in-process relay.
type Subscription struct {
	Channel  string
	SocketID string
	conn     *websocket.Conn
}

// websocketURL resolves the relay host advertised by bootstrap against the client's base URL.
func (c *ChatClient) websocketURL(host string) (string, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(host)
	if err != nil {
		return "", err
	}
	u := base.ResolveReference(ref)
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// Subscribe opens the relay websocket at host, signs channel through the widget API and
// subscribes to it.
func (c *ChatClient) Subscribe(ctx context.Context, host, sessionID, channel string) (*Subscription, error) {
	endpoint, err := c.websocketURL(host)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: c.HTTPClient.Timeout,
		Jar:              c.HTTPClient.Jar,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	sub := &Subscription{Channel: channel, conn: conn}
	if err := sub.handshake(ctx, c, sessionID); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return sub, nil
}

func (s *Subscription) handshake(ctx context.Context, c *ChatClient, sessionID string) error {
	var hello relay.Frame
	if err := s.conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Event != relay.FrameConnected {
		return fmt.Errorf("unexpected first frame %q", hello.Event)
	}
	var data relay.ConnectedData
	if err := sonic.Unmarshal(hello.Data, &data); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}
	s.SocketID = data.SocketID

	auth, err := c.RelayAuth(ctx, sessionID, s.Channel, s.SocketID)
	if err != nil {
		return err
	}
	if err := s.conn.WriteJSON(relay.Frame{
		Event:       relay.FrameSubscribe,
		Channel:     s.Channel,
		Auth:        auth.Auth,
		ChannelData: auth.ChannelData,
	}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	var ack relay.Frame
	if err := s.conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("read subscription ack: %w", err)
	}
	if ack.Event != relay.FrameSubscribed {
		return fmt.Errorf("%w: %s", ErrSubscriptionRejected, strings.TrimSpace(string(ack.Data)))
	}
	return nil
}

// Next blocks until the next event on the channel.
func (s *Subscription) Next() (relay.Frame, error) {
	for {
		var f relay.Frame
		if err := s.conn.ReadJSON(&f); err != nil {
			return relay.Frame{}, err
		}
		if f.Channel == s.Channel {
			return f, nil
		}
	}
}

func (s *Subscription) Close() error {
	return s.conn.Close()
}
