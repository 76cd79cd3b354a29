package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wplc/livechat/internal/modules/model"
	"golang.org/x/net/html"
	"gorm.io/gorm"
)

// HistoryLimit caps every history fetch, initial or incremental. A fetch from the start of a
// longer conversation returns its first HistoryLimit messages; callers page on with an id cursor.
const HistoryLimit = 100

const (
	previewMaxRunes  = 50
	previewKeepRunes = 47
)

type MessageRepo interface {
	// Save assigns CreatedAt in UTC, inserts msg and bumps the session's updated_at.
	Save(ctx context.Context, msg *model.Message) error
	// SaveWithFile persists a file message and its file row atomically, linking the two.
	SaveWithFile(ctx context.Context, msg *model.Message, file *model.File) error
	History(ctx context.Context, sessionID string, cursor model.HistoryCursor, limit int) ([]model.Message, error)
	Count(ctx context.Context, sessionID string) (int64, error)
	LatestPreview(ctx context.Context, sessionID string) (string, error)
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &messageRepo{db: db}
}

func (r *messageRepo) Save(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertMessage(tx, msg)
	})
}

func (r *messageRepo) SaveWithFile(ctx context.Context, msg *model.Message, file *model.File) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertMessage(tx, msg); err != nil {
			return err
		}
		file.MessageID = &msg.ID
		file.CreatedAt = msg.CreatedAt
		return tx.Create(file).Error
	})
}

func insertMessage(tx *gorm.DB, msg *model.Message) error {
	msg.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := tx.Create(msg).Error; err != nil {
		return err
	}
	return tx.Model(&model.Session{}).
		Where("session_id = ?", msg.SessionID).
		Update("updated_at", msg.CreatedAt).Error
}

// History returns messages ascending by (created_at, id). A zero cursor starts at the first message.
func (r *messageRepo) History(ctx context.Context, sessionID string, cursor model.HistoryCursor, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}

	q := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	switch {
	case cursor.AfterID > 0:
		q = q.Where("id > ?", cursor.AfterID)
	case !cursor.AfterTime.IsZero():
		q = q.Where("created_at > ?", cursor.AfterTime.UTC())
	}

	var msgs []model.Message
	if err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepo) Count(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Where("session_id = ?", sessionID).Count(&n).Error
	return n, err
}

func (r *messageRepo) LatestPreview(ctx context.Context, sessionID string) (string, error) {
	var m model.Message
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.EmptyPreview, nil
	}
	if err != nil {
		return "", err
	}
	return MessagePreview(m.Content), nil
}

// MessagePreview strips markup and truncates content to 50 runes (47 plus an ellipsis).
func MessagePreview(content string) string {
	text := strings.TrimSpace(stripTags(content))
	if text == "" {
		return model.EmptyPreview
	}
	runes := []rune(text)
	if len(runes) > previewMaxRunes {
		return string(runes[:previewKeepRunes]) + "..."
	}
	return text
}

func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		}
	}
}
