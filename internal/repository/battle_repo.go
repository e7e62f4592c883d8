package repository

import (
	"context"
	"errors"

	"arenasettle/internal/model"

	"gorm.io/gorm"
)

var (
	ErrBattleNotFound      = errors.New("battle not found")
	ErrBattleStatusInvalid = errors.New("battle status invalid")
)

type BattleRepository struct {
	db *gorm.DB
}

func NewBattleRepository(db *gorm.DB) *BattleRepository {
	return &BattleRepository{db: db}
}

func (r *BattleRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *BattleRepository) Create(ctx context.Context, tx *gorm.DB, battle *model.Battle) error {
	return r.conn(tx).WithContext(ctx).Create(battle).Error
}

func (r *BattleRepository) Get(ctx context.Context, tx *gorm.DB, id uint64) (*model.Battle, error) {
	var battle model.Battle
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&battle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBattleNotFound
		}
		return nil, err
	}
	return &battle, nil
}

// UpdateStatus 带状态条件的更新，防止并发或重复的状态流转
func (r *BattleRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint64, fromStatus, toStatus string, updates map[string]interface{}) error {
	if !model.CanBattleTransitionTo(fromStatus, toStatus) {
		return ErrBattleStatusInvalid
	}

	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = toStatus

	result := r.conn(tx).WithContext(ctx).
		Model(&model.Battle{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrBattleStatusInvalid
	}

	return nil
}

func (r *BattleRepository) ListByArena(ctx context.Context, arena string, page, pageSize int) ([]*model.Battle, int64, error) {
	var battles []*model.Battle
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Battle{})
	if arena != "" {
		query = query.Where("arena = ?", arena)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&battles).Error

	return battles, total, err
}

// ListUnfinalized 已开战但尚未结算或取消的对战，按开战顺序
func (r *BattleRepository) ListUnfinalized(ctx context.Context, limit int) ([]*model.Battle, error) {
	var battles []*model.Battle
	err := r.db.WithContext(ctx).
		Where("status = ?", model.BattleStatusResolved).
		Order("id ASC").
		Limit(limit).
		Find(&battles).Error
	return battles, err
}

func (r *BattleRepository) DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	result := r.conn(tx).WithContext(ctx).Where("1 = 1").Delete(&model.Battle{})
	return result.RowsAffected, result.Error
}
