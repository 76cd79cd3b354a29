package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"
	"github.com/wplc/livechat/internal/config"
	"go.uber.org/zap"
)

// Envelope is the message body published on NATS subjects.
type Envelope struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// natsConn is the subset of *nats.Conn the driver uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// Nats publishes events on `<prefix>.<channel>.<event>` subjects for self-hosted
// websocket gateways that subscribe to the same bus.
type Nats struct {
	Signer
	Prefix string
	conn   natsConn
	log    *zap.Logger
}

func DialNats(cfg config.RelayCfg, log *zap.Logger) (*Nats, error) {
	if len(cfg.NatsServers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.NatsName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500 * time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
	}
	nc, err := nats.Connect(strings.Join(cfg.NatsServers, ","), opts...)
	if err != nil {
		return nil, err
	}
	return NewNats(nc, cfg, log), nil
}

func NewNats(conn natsConn, cfg config.RelayCfg, log *zap.Logger) *Nats {
	prefix := cfg.NatsPrefix
	if prefix == "" {
		prefix = "livechat"
	}
	return &Nats{
		Signer: Signer{Key: cfg.Key, Secret: cfg.Secret},
		Prefix: prefix,
		conn:   conn,
		log:    log,
	}
}

// Subject maps a relay channel and event to a NATS subject.
func Subject(prefix, channel, event string) string {
	return prefix + "." + channel + "." + event
}

func (n *Nats) Initialized() bool { return n.conn != nil && n.Secret != "" }

func (n *Nats) Authenticate(channel, socketID string, member *Member) (*AuthResponse, error) {
	if !n.Initialized() {
		return nil, ErrNotInitialized
	}
	return n.Sign(channel, socketID, member)
}

func (n *Nats) Publish(_ context.Context, channel, event string, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	body, err := sonic.Marshal(Envelope{Channel: channel, Event: event, Data: data})
	if err != nil {
		return err
	}
	return n.conn.Publish(Subject(n.Prefix, channel, event), body)
}

func (n *Nats) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
