package service

import (
	"context"
	"strings"

	"github.com/wplc/livechat/internal/config"
	"github.com/wplc/livechat/internal/infra/relay"
	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/telemetry"
	"go.uber.org/zap"
)

const (
	privateChannelPrefix  = "private-"
	presenceChannelPrefix = "presence-"
	operatorChannelPrefix = "private-admin-"
)

// ChannelAuthInput identifies who asks to subscribe. Exactly one of SessionID (visitor) or
// Operator is expected to be set.
type ChannelAuthInput struct {
	Channel   string
	SocketID  string
	SessionID string
	Operator  *model.Operator
}

// Gateway fans events out over the realtime relay. Publishing is best effort: failures are
// logged and reported as false, and a disabled relay turns every publish into a no-op.
type Gateway interface {
	PublishToSession(ctx context.Context, sessionID, event string, payload any) bool
	PublishToOperators(ctx context.Context, event string, payload any) bool
	AuthenticateChannel(ctx context.Context, in ChannelAuthInput) (*relay.AuthResponse, error)
	SessionChannel(sessionID string) string
	OperatorChannel() string
	Enabled() bool
}

type gateway struct {
	relay                relay.Relay
	sessionChannelPrefix string
	operatorChannel      string
	log                  *zap.Logger
}

func NewGateway(r relay.Relay, cfg *config.Config, log *zap.Logger) Gateway {
	prefix := cfg.Relay.SessionChannelPrefix
	if prefix == "" {
		prefix = "private-session-"
	}
	opChannel := cfg.Relay.OperatorChannel
	if opChannel == "" {
		opChannel = "private-admin-new-sessions"
	}
	return &gateway{
		relay:                r,
		sessionChannelPrefix: prefix,
		operatorChannel:      opChannel,
		log:                  log,
	}
}

func (g *gateway) SessionChannel(sessionID string) string {
	return g.sessionChannelPrefix + sessionID
}

func (g *gateway) OperatorChannel() string { return g.operatorChannel }

func (g *gateway) Enabled() bool { return g.relay.Initialized() }

func (g *gateway) publish(ctx context.Context, target, channel, event string, payload any) bool {
	if !g.relay.Initialized() {
		return false
	}
	if err := g.relay.Publish(ctx, channel, event, payload); err != nil {
		telemetry.RecordPublishFailure(ctx, target, event)
		g.log.Warn("realtime publish failed",
			zap.String("channel", channel),
			zap.String("event", event),
			zap.Error(err))
		return false
	}
	return true
}

func (g *gateway) PublishToSession(ctx context.Context, sessionID, event string, payload any) bool {
	if sessionID == "" {
		return false
	}
	return g.publish(ctx, "session", g.SessionChannel(sessionID), event, payload)
}

func (g *gateway) PublishToOperators(ctx context.Context, event string, payload any) bool {
	return g.publish(ctx, "operators", g.operatorChannel, event, payload)
}

// AuthenticateChannel signs a subscription. Visitors may only join their own session channel;
// operators may join any private or presence channel.
func (g *gateway) AuthenticateChannel(ctx context.Context, in ChannelAuthInput) (*relay.AuthResponse, error) {
	if in.SocketID == "" {
		return nil, relay.ErrEmptySocketID
	}
	isPrivate := strings.HasPrefix(in.Channel, privateChannelPrefix)
	isPresence := strings.HasPrefix(in.Channel, presenceChannelPrefix)
	if !isPrivate && !isPresence {
		return nil, ErrInvalidChannel
	}
	if !g.relay.Initialized() {
		return nil, relay.ErrNotInitialized
	}

	if in.Operator != nil {
		var member *relay.Member
		if isPresence {
			member = relay.OperatorMember(in.Operator.ID, in.Operator.DisplayName(), in.Operator.Role)
		}
		return g.relay.Authenticate(in.Channel, in.SocketID, member)
	}

	if isPresence || strings.HasPrefix(in.Channel, operatorChannelPrefix) || in.Channel == g.operatorChannel {
		return nil, ErrForbiddenChannel
	}
	if in.SessionID == "" || in.Channel != g.SessionChannel(in.SessionID) {
		g.log.Warn("visitor asked for a foreign channel",
			zap.String("session_id", in.SessionID),
			zap.String("channel", in.Channel))
		return nil, ErrForbiddenChannel
	}
	return g.relay.Authenticate(in.Channel, in.SocketID, nil)
}
