package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wplc/livechat/internal/modules/model"
)

func TestSeenSet_EvictsOldestFirst(t *testing.T) {
	s := NewSeenSet(DefaultSeenCapacity)
	for i := uint64(1); i <= 100; i++ {
		assert.True(t, s.Add(Key{MessageID: i}))
	}
	assert.Equal(t, 100, s.Len())
	assert.False(t, s.Add(Key{MessageID: 50}), "duplicate inside the window")

	assert.True(t, s.Add(Key{MessageID: 101}))
	assert.Equal(t, 100, s.Len())
	assert.False(t, s.Has(Key{MessageID: 1}), "oldest evicted")
	assert.True(t, s.Has(Key{MessageID: 2}))
	assert.True(t, s.Add(Key{MessageID: 1}), "evicted key counts as new again")

	s.Reset()
	assert.Zero(t, s.Len())
}

func TestKeyFor(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Key
		equal bool
	}{
		{
			name:  "server id wins over content",
			a:     KeyFor(7, "s1", model.SenderUser, "2024-01-01 00:00:00", "hi"),
			b:     KeyFor(7, "s1", model.SenderUser, "2024-01-01 00:00:01", "other"),
			equal: true,
		},
		{
			name:  "composite key matches identical events",
			a:     KeyFor(0, "s1", model.SenderAdmin, "2024-01-01 00:00:00", "hi"),
			b:     KeyFor(0, "s1", model.SenderAdmin, "2024-01-01 00:00:00", "hi"),
			equal: true,
		},
		{
			name: "composite key separates senders",
			a:    KeyFor(0, "s1", model.SenderAdmin, "2024-01-01 00:00:00", "hi"),
			b:    KeyFor(0, "s1", model.SenderUser, "2024-01-01 00:00:00", "hi"),
		},
		{
			name: "composite key is not confused by separators in content",
			a:    KeyFor(0, "s1", model.SenderUser, "t", "a|b"),
			b:    KeyFor(0, "s1|a", model.SenderUser, "t", "b"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a == tt.b)
		})
	}
}

func TestMessageKeyMatchesPayloadKey(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m := model.Message{SessionID: "s1", SenderType: model.SenderAdmin, Content: "hi", CreatedAt: ts}
	p := model.RealtimePayload{SessionID: "s1", SenderType: model.SenderAdmin, Content: "hi", CreatedAt: model.FormatWireTime(ts)}
	assert.Equal(t, MessageKey(m), PayloadKey(p))
}
