package relay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/wplc/livechat/internal/config"
	"go.uber.org/zap"
)

var (
	ErrNotInitialized = errors.New("realtime relay not initialized")
	ErrEmptySocketID  = errors.New("socket_id is required")
)

// Relay is a pub/sub transport that fans events out to subscribed browsers.
type Relay interface {
	// Publish delivers event on channel. payload is marshalled to JSON.
	Publish(ctx context.Context, channel, event string, payload any) error
	// Authenticate signs a subscription for socketID. member is only used for presence channels.
	Authenticate(channel, socketID string, member *Member) (*AuthResponse, error)
	// Initialized reports whether the relay has usable credentials.
	Initialized() bool
	Close() error
}

// Member identifies the subscriber on presence channels.
type Member struct {
	UserID   string         `json:"user_id"`
	UserInfo map[string]any `json:"user_info,omitempty"`
}

// AuthResponse is the signed blob returned to the browser SDK.
type AuthResponse struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

// New picks the driver configured in relay.driver. Incomplete credentials yield the no-op relay.
func New(cfg *config.Config, log *zap.Logger) (Relay, error) {
	if !cfg.RealtimeEnabled() {
		log.Warn("realtime relay disabled, credentials incomplete", zap.String("driver", cfg.Relay.Driver))
		return Noop{}, nil
	}
	switch cfg.Relay.Driver {
	case "pusher":
		return NewPusher(cfg.Relay, log), nil
	case "nats":
		n, err := DialNats(cfg.Relay, log)
		if err != nil {
			return nil, err
		}
		return n, nil
	case "websocket":
		return NewHub(cfg.Relay, log), nil
	default:
		return nil, fmt.Errorf("unknown relay driver %q", cfg.Relay.Driver)
	}
}

// Signer produces channel subscription signatures in the Pusher wire format
// `key:hex(hmac_sha256(secret, socket_id:channel[:channel_data]))`.
type Signer struct {
	Key    string
	Secret string
}

func (s Signer) Sign(channel, socketID string, member *Member) (*AuthResponse, error) {
	if socketID == "" {
		return nil, ErrEmptySocketID
	}
	toSign := socketID + ":" + channel
	out := &AuthResponse{}
	if member != nil {
		b, err := sonic.Marshal(member)
		if err != nil {
			return nil, err
		}
		out.ChannelData = string(b)
		toSign += ":" + out.ChannelData
	}
	out.Auth = s.Key + ":" + hmacHex(s.Secret, toSign)
	return out, nil
}

// Verify checks an auth string produced by Sign.
func (s Signer) Verify(channel, socketID, auth, channelData string) bool {
	toSign := socketID + ":" + channel
	if channelData != "" {
		toSign += ":" + channelData
	}
	want := s.Key + ":" + hmacHex(s.Secret, toSign)
	return hmac.Equal([]byte(want), []byte(auth))
}

func hmacHex(secret, data string) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(data))
	return hex.EncodeToString(m.Sum(nil))
}

// OperatorMember builds the presence identity for an operator.
func OperatorMember(id uint64, name, role string) *Member {
	return &Member{
		UserID: strconv.FormatUint(id, 10),
		UserInfo: map[string]any{
			"name": name,
			"role": role,
		},
	}
}
