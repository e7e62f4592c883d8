package repository

import (
	"context"
	"errors"

	"arenasettle/internal/model"

	"gorm.io/gorm"
)

var ErrQueueEntryExists = errors.New("queue entry already exists")

type QueueRepository struct {
	db *gorm.DB
}

func NewQueueRepository(db *gorm.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

func (r *QueueRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *QueueRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.QueueEntry) error {
	exists, err := r.Exists(ctx, tx, entry.Player, entry.Arena)
	if err != nil {
		return err
	}
	if exists {
		return ErrQueueEntryExists
	}
	return r.conn(tx).WithContext(ctx).Create(entry).Error
}

func (r *QueueRepository) Exists(ctx context.Context, tx *gorm.DB, player, arena string) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&model.QueueEntry{}).
		Where("player = ? AND arena = ?", player, arena).
		Count(&count).Error
	return count > 0, err
}

// CountByArena 当前该竞技场所有玩家的排队数
func (r *QueueRepository) CountByArena(ctx context.Context, tx *gorm.DB, arena string) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&model.QueueEntry{}).
		Where("arena = ?", arena).
		Count(&count).Error
	return count, err
}

// ListByArena 按报名先后排序
func (r *QueueRepository) ListByArena(ctx context.Context, tx *gorm.DB, arena string) ([]*model.QueueEntry, error) {
	var entries []*model.QueueEntry
	err := r.conn(tx).WithContext(ctx).
		Where("arena = ?", arena).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *QueueRepository) ListByPlayer(ctx context.Context, player string) ([]*model.QueueEntry, error) {
	var entries []*model.QueueEntry
	err := r.db.WithContext(ctx).
		Where("player = ?", player).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// DeleteByArena 只删除该竞技场的报名，其他竞技场不受影响
func (r *QueueRepository) DeleteByArena(ctx context.Context, tx *gorm.DB, arena string) (int64, error) {
	result := r.conn(tx).WithContext(ctx).Where("arena = ?", arena).Delete(&model.QueueEntry{})
	return result.RowsAffected, result.Error
}

// ReferencesWeapon player 自己的报名是否用到了该武器；前任持有者留下的报名开战时会作废，不算
func (r *QueueRepository) ReferencesWeapon(ctx context.Context, tx *gorm.DB, player string, assetID uint64) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).Model(&model.QueueEntry{}).
		Where("player = ? AND weapon_id = ?", player, assetID).Count(&count).Error
	return count > 0, err
}

func (r *QueueRepository) ReferencesCrew(ctx context.Context, tx *gorm.DB, player string, assetID uint64) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).Model(&model.QueueEntry{}).
		Where("player = ? AND crew_id = ?", player, assetID).Count(&count).Error
	return count > 0, err
}

func (r *QueueRepository) DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	result := r.conn(tx).WithContext(ctx).Where("1 = 1").Delete(&model.QueueEntry{})
	return result.RowsAffected, result.Error
}
