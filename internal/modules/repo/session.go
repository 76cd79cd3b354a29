package repo

import (
	"context"
	"errors"
	"time"

	"github.com/wplc/livechat/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

const (
	DefaultSessionListLimit = 50
	MaxSessionListLimit     = 200
)

type SessionRepo interface {
	// Create inserts the session if it does not exist yet and reports whether a row was created.
	Create(ctx context.Context, sessionID string) (bool, error)
	Exists(ctx context.Context, sessionID string) (bool, error)
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) error
	UpdateUserInfo(ctx context.Context, sessionID, name, phone string) error
	List(ctx context.Context, statuses []string, limit int) ([]model.SessionSummary, error)
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepo {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, sessionID string) (bool, error) {
	now := time.Now().UTC()
	s := &model.Session{
		SessionID: sessionID,
		Status:    model.SessionStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(s)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *sessionRepo) Exists(ctx context.Context, sessionID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Session{}).Where("session_id = ?", sessionID).Count(&n).Error
	return n > 0, err
}

func (r *sessionRepo) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	var s model.Session
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepo) UpdateUserInfo(ctx context.Context, sessionID, name, phone string) error {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"user_name":    name,
			"phone_number": phone,
			"status":       model.SessionStatusOpen,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// List returns sessions in the given statuses, most recently active first, each joined with
// its latest message and message count.
func (r *sessionRepo) List(ctx context.Context, statuses []string, limit int) ([]model.SessionSummary, error) {
	if len(statuses) == 0 {
		statuses = []string{model.SessionStatusNew, model.SessionStatusOpen}
	}
	if limit <= 0 {
		limit = DefaultSessionListLimit
	}
	if limit > MaxSessionListLimit {
		limit = MaxSessionListLimit
	}

	var sessions []model.Session
	if err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return []model.SessionSummary{}, nil
	}

	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.SessionID)
	}

	latestIDs := r.db.Model(&model.Message{}).
		Select("MAX(id)").
		Where("session_id IN ?", ids).
		Group("session_id")
	var latest []model.Message
	if err := r.db.WithContext(ctx).Where("id IN (?)", latestIDs).Find(&latest).Error; err != nil {
		return nil, err
	}
	latestBySession := make(map[string]model.Message, len(latest))
	for _, m := range latest {
		latestBySession[m.SessionID] = m
	}

	var counts []struct {
		SessionID string
		N         int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("session_id, COUNT(*) AS n").
		Where("session_id IN ?", ids).
		Group("session_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	countBySession := make(map[string]int64, len(counts))
	for _, c := range counts {
		countBySession[c.SessionID] = c.N
	}

	out := make([]model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		sum := model.SessionSummary{
			Session:      s,
			LastMessage:  model.EmptyPreview,
			MessageCount: countBySession[s.SessionID],
		}
		if m, ok := latestBySession[s.SessionID]; ok {
			sum.LastMessage = MessagePreview(m.Content)
			t := m.CreatedAt
			sum.LastMessageTime = &t
		}
		out = append(out, sum)
	}
	return out, nil
}
