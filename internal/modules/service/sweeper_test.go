package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingDeleter struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (d *countingDeleter) DeleteExpired(context.Context) (int64, error) {
	d.calls.Add(1)
	return d.n, d.err
}

func TestFlowSweeper_Sweep(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		err  error
		want int64
	}{
		{name: "rows removed", n: 3, want: 3},
		{name: "nothing expired", n: 0, want: 0},
		{name: "store failure", err: errors.New("db down"), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &countingDeleter{n: tt.n, err: tt.err}
			s, err := NewFlowSweeper(d, "@every 1h", zap.NewNop())
			require.NoError(t, err)

			assert.Equal(t, tt.want, s.Sweep(context.Background()))
			assert.Equal(t, int32(1), d.calls.Load())
		})
	}
}

func TestFlowSweeper_Schedule(t *testing.T) {
	_, err := NewFlowSweeper(&countingDeleter{}, "not a schedule", zap.NewNop())
	assert.Error(t, err)

	_, err = NewFlowSweeper(&countingDeleter{}, "*/10 * * * *", zap.NewNop())
	assert.NoError(t, err)
}

func TestFlowSweeper_StartStop(t *testing.T) {
	d := &countingDeleter{n: 1}
	s, err := NewFlowSweeper(d, "@every 1s", zap.NewNop())
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return d.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
