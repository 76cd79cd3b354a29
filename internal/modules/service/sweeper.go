package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ExpiredStateDeleter is implemented by flow stores that need explicit expiry.
type ExpiredStateDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// FlowSweeper periodically deletes expired flow state rows.
type FlowSweeper struct {
	store   ExpiredStateDeleter
	cron    *cron.Cron
	timeout time.Duration
	log     *zap.Logger
}

// NewFlowSweeper schedules the sweep. schedule accepts standard 5-field expressions and
// descriptors such as "@every 1h".
func NewFlowSweeper(store ExpiredStateDeleter, schedule string, log *zap.Logger) (*FlowSweeper, error) {
	s := &FlowSweeper{
		store:   store,
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		timeout: time.Minute,
		log:     log,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FlowSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.Sweep(ctx)
}

// Sweep runs one pass and returns the number of deleted rows.
func (s *FlowSweeper) Sweep(ctx context.Context) int64 {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		s.log.Error("sweep expired flow state", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.log.Info("expired flow state removed", zap.Int64("rows", n))
	}
	return n
}

func (s *FlowSweeper) Start() { s.cron.Start() }

// Stop stops scheduling and waits for a running sweep until ctx is done.
func (s *FlowSweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
