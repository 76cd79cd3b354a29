package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/wplc/livechat/internal/infra/cache"
	"github.com/wplc/livechat/internal/modules/model"
	"go.uber.org/zap"
)


// DefaultPresenceWindow is how long an operator counts as online after their last request.
const DefaultPresenceWindow = 5 * time.Minute

// PresenceService tracks which operators were active recently.
type PresenceService interface {
	Touch(ctx context.Context, op *model.Operator) error
	Online(ctx context.Context) ([]model.OnlineOperator, error)
	AnyOnline(ctx context.Context) bool
}

type presenceService struct {
	rdb    *redis.Client
	window time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func NewPresenceService(rdb *redis.Client, window time.Duration, log *zap.Logger) PresenceService {
	if window <= 0 {
		window = DefaultPresenceWindow
	}
	return &presenceService{rdb: rdb, window: window, now: time.Now, log: log}
}

func presenceKey(id uint64) string {
	return cache.Key("presence", "operator", strconv.FormatUint(id, 10))
}

func (p *presenceService) Touch(ctx context.Context, op *model.Operator) error {
	if op == nil {
		return nil
	}
	b, err := sonic.Marshal(model.OnlineOperator{
		ID:       op.ID,
		Name:     op.DisplayName(),
		Role:     op.Role,
		LastSeen: p.now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.rdb.Set(ctx, presenceKey(op.ID), b, p.window).Err()
}

func (p *presenceService) keys(ctx context.Context) ([]string, error) {
	var (
		out    []string
		cursor uint64
	)
	for {
		batch, next, err := p.rdb.Scan(ctx, cursor, cache.Key("presence", "operator", "*"), 100).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

// Online lists operators seen within the window, most recent first.
func (p *presenceService) Online(ctx context.Context) ([]model.OnlineOperator, error) {
	keys, err := p.keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.OnlineOperator, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var op model.OnlineOperator
		if err := sonic.UnmarshalString(raw, &op); err != nil {
			p.log.Warn("skip malformed presence entry", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out, nil
}

func (p *presenceService) AnyOnline(ctx context.Context) bool {
	keys, err := p.keys(ctx)
	if err != nil {
		p.log.Warn("presence lookup failed", zap.Error(err))
		return false
	}
	return len(keys) > 0
}
