package repo

import (
	"context"
	"errors"

	"github.com/wplc/livechat/internal/modules/model"
	"gorm.io/gorm"
)

var ErrOperatorNotFound = errors.New("operator not found")

type OperatorRepo interface {
	Create(ctx context.Context, op *model.Operator) error
	GetByID(ctx context.Context, id uint64) (*model.Operator, error)
	GetByEmail(ctx context.Context, email string) (*model.Operator, error)
	GetBySecretHMAC(ctx context.Context, lookup string) (*model.Operator, error)
	GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Operator, error)
	UpdateSecret(ctx context.Context, id uint64, lookup, phc string) error
	List(ctx context.Context) ([]model.Operator, error)
}

type operatorRepo struct{ db *gorm.DB }

func NewOperatorRepo(db *gorm.DB) OperatorRepo {
	return &operatorRepo{db: db}
}

func (r *operatorRepo) Create(ctx context.Context, op *model.Operator) error {
	return r.db.WithContext(ctx).Create(op).Error
}

func (r *operatorRepo) first(ctx context.Context, query string, arg interface{}) (*model.Operator, error) {
	var op model.Operator
	err := r.db.WithContext(ctx).Where(query, arg).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOperatorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *operatorRepo) GetByID(ctx context.Context, id uint64) (*model.Operator, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *operatorRepo) GetByEmail(ctx context.Context, email string) (*model.Operator, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *operatorRepo) GetBySecretHMAC(ctx context.Context, lookup string) (*model.Operator, error) {
	return r.first(ctx, "secret_key_hmac = ?", lookup)
}

func (r *operatorRepo) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Operator, error) {
	out := make(map[uint64]model.Operator, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var ops []model.Operator
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&ops).Error; err != nil {
		return nil, err
	}
	for _, op := range ops {
		out[op.ID] = op
	}
	return out, nil
}

func (r *operatorRepo) UpdateSecret(ctx context.Context, id uint64, lookup, phc string) error {
	return r.db.WithContext(ctx).Model(&model.Operator{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"secret_key_hmac":     lookup,
			"secret_key_hash_phc": phc,
		}).Error
}

func (r *operatorRepo) List(ctx context.Context) ([]model.Operator, error) {
	var ops []model.Operator
	err := r.db.WithContext(ctx).Order("id ASC").Find(&ops).Error
	return ops, err
}
