package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wplc/livechat/internal/modules/model"
	"go.uber.org/zap"
)

func TestPresenceService(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	svc := NewPresenceService(rdb, time.Minute, zap.NewNop()).(*presenceService)
	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	assert.False(t, svc.AnyOnline(ctx))
	online, err := svc.Online(ctx)
	require.NoError(t, err)
	assert.Empty(t, online)

	require.NoError(t, svc.Touch(ctx, &model.Operator{ID: 1, Name: "Sara", Role: model.RoleAdministrator}))
	clock = clock.Add(10 * time.Second)
	require.NoError(t, svc.Touch(ctx, &model.Operator{ID: 2, Role: model.RoleChatOperator}))
	require.NoError(t, svc.Touch(ctx, nil))

	assert.True(t, svc.AnyOnline(ctx))
	online, err = svc.Online(ctx)
	require.NoError(t, err)
	require.Len(t, online, 2)
	assert.Equal(t, uint64(2), online[0].ID, "most recent first")
	assert.Equal(t, model.DefaultOperatorName, online[0].Name)
	assert.Equal(t, "Sara", online[1].Name)
	assert.Equal(t, time.Minute, mr.TTL(presenceKey(1)))

	mr.FastForward(2 * time.Minute)
	assert.False(t, svc.AnyOnline(ctx))
}

func TestPresenceService_SkipsMalformed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	require.NoError(t, mr.Set(presenceKey(9), "not json"))

	svc := NewPresenceService(rdb, 0, zap.NewNop())
	online, err := svc.Online(context.Background())
	require.NoError(t, err)
	assert.Empty(t, online)
}
