package repo

import (
	"context"
	"errors"

	"github.com/wplc/livechat/internal/modules/model"
	"gorm.io/gorm"
)

var ErrFileNotFound = errors.New("file not found")

const DefaultSessionFilesLimit = 50

type FileRepo interface {
	GetByID(ctx context.Context, fileID uint64) (*model.File, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]model.File, error)
	// GetByMessageIDs maps message ids to their attached file.
	GetByMessageIDs(ctx context.Context, messageIDs []uint64) (map[uint64]model.File, error)
}

type fileRepo struct{ db *gorm.DB }

func NewFileRepo(db *gorm.DB) FileRepo {
	return &fileRepo{db: db}
}

func (r *fileRepo) GetByID(ctx context.Context, fileID uint64) (*model.File, error) {
	var file model.File
	err := r.db.WithContext(ctx).Where("id = ?", fileID).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]model.File, error) {
	if limit <= 0 {
		limit = DefaultSessionFilesLimit
	}
	var files []model.File
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&files).Error
	return files, err
}

func (r *fileRepo) GetByMessageIDs(ctx context.Context, messageIDs []uint64) (map[uint64]model.File, error) {
	out := make(map[uint64]model.File)
	if len(messageIDs) == 0 {
		return out, nil
	}
	var files []model.File
	if err := r.db.WithContext(ctx).Where("message_id IN ?", messageIDs).Find(&files).Error; err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.MessageID != nil {
			out[*f.MessageID] = f
		}
	}
	return out, nil
}
