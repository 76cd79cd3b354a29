package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/wplc/livechat/internal/infra/cache"
	"github.com/wplc/livechat/internal/modules/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrFlowStateContention = errors.New("flow state update kept conflicting")

const maxFlowTxRetries = 10

// FlowStateStore keeps per-session onboarding state. Update is an atomic read-modify-write:
// concurrent updates of the same session never interleave.
type FlowStateStore interface {
	// Get returns the state, or a fresh FlowInitial state when none is stored.
	Get(ctx context.Context, sessionID string) (*model.FlowState, error)
	// Update loads the state, applies fn and stores the result with a fresh TTL. fn may run
	// more than once and must not have side effects. Returning an error from fn aborts
	// without writing.
	Update(ctx context.Context, sessionID string, fn func(*model.FlowState) error) (*model.FlowState, error)
	// Reset stores an explicit FlowInitial state.
	Reset(ctx context.Context, sessionID string) error
}

func initialFlowState(sessionID string) *model.FlowState {
	return &model.FlowState{SessionID: sessionID, Step: model.FlowInitial}
}

type redisFlowStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisFlowStateStore(rdb *redis.Client, ttl time.Duration) FlowStateStore {
	return &redisFlowStateStore{rdb: rdb, ttl: ttl}
}

func flowStateKey(sessionID string) string { return cache.Key("flow", sessionID) }

func decodeFlowState(sessionID string, raw string) (*model.FlowState, error) {
	st := initialFlowState(sessionID)
	if err := sonic.UnmarshalString(raw, st); err != nil {
		return nil, fmt.Errorf("decode flow state: %w", err)
	}
	st.SessionID = sessionID
	st.Persisted = true
	if st.Step == "" {
		st.Step = model.FlowInitial
	}
	return st, nil
}

func (s *redisFlowStateStore) Get(ctx context.Context, sessionID string) (*model.FlowState, error) {
	raw, err := s.rdb.Get(ctx, flowStateKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return initialFlowState(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeFlowState(sessionID, raw)
}

func (s *redisFlowStateStore) Update(ctx context.Context, sessionID string, fn func(*model.FlowState) error) (*model.FlowState, error) {
	key := flowStateKey(sessionID)
	var out *model.FlowState

	txf := func(tx *redis.Tx) error {
		st := initialFlowState(sessionID)
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if st, err = decodeFlowState(sessionID, raw); err != nil {
				return err
			}
		}

		if err := fn(st); err != nil {
			return err
		}
		b, err := sonic.MarshalString(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, s.ttl)
			return nil
		})
		if err == nil {
			st.Persisted = true
			out = st
		}
		return err
	}

	for i := 0; i < maxFlowTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrFlowStateContention
}

func (s *redisFlowStateStore) Reset(ctx context.Context, sessionID string) error {
	return resetFlowState(ctx, s, sessionID)
}

func resetFlowState(ctx context.Context, s FlowStateStore, sessionID string) error {
	_, err := s.Update(ctx, sessionID, func(st *model.FlowState) error {
		*st = *initialFlowState(sessionID)
		return nil
	})
	return err
}

// GormFlowStateStore stores flow state in the relational database.
type GormFlowStateStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewGormFlowStateStore builds the database store. Expired rows read as FlowInitial and are
// removed by DeleteExpired.
func NewGormFlowStateStore(db *gorm.DB, ttl time.Duration) *GormFlowStateStore {
	return &GormFlowStateStore{db: db, ttl: ttl, now: time.Now}
}

func (s *GormFlowStateStore) rowToState(row *model.FlowStateRow) *model.FlowState {
	if row.ExpiresAt.Before(s.now()) {
		return initialFlowState(row.SessionID)
	}
	return &model.FlowState{
		SessionID: row.SessionID,
		Step:      row.Step,
		TempData:  row.TempData.Data(),
		Persisted: true,
	}
}

func (s *GormFlowStateStore) Get(ctx context.Context, sessionID string) (*model.FlowState, error) {
	var row model.FlowStateRow
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return initialFlowState(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	return s.rowToState(&row), nil
}

func (s *GormFlowStateStore) Update(ctx context.Context, sessionID string, fn func(*model.FlowState) error) (*model.FlowState, error) {
	var out *model.FlowState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Make sure a row exists so the locking read below always has something to lock.
		seed := model.FlowStateRow{
			SessionID: sessionID,
			Step:      model.FlowInitial,
			ExpiresAt: s.now().Add(s.ttl).UTC(),
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		var row model.FlowStateRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_id = ?", sessionID).
			First(&row).Error; err != nil {
			return err
		}

		st := s.rowToState(&row)
		if err := fn(st); err != nil {
			return err
		}

		row.Step = st.Step
		row.TempData = datatypes.NewJSONType(st.TempData)
		row.ExpiresAt = s.now().Add(s.ttl).UTC()
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		st.Persisted = true
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormFlowStateStore) Reset(ctx context.Context, sessionID string) error {
	return resetFlowState(ctx, s, sessionID)
}

// DeleteExpired removes rows past their expiry and returns how many were deleted.
func (s *GormFlowStateStore) DeleteExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", s.now().UTC()).Delete(&model.FlowStateRow{})
	return res.RowsAffected, res.Error
}
