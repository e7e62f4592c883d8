package repository

import (
	"context"
	"errors"

	"arenasettle/internal/model"

	"gorm.io/gorm"
)

var ErrWorkItemNotFound = errors.New("work item not found")

// WorkRepository 后续工作单元队列
type WorkRepository struct {
	db *gorm.DB
}

func NewWorkRepository(db *gorm.DB) *WorkRepository {
	return &WorkRepository{db: db}
}

func (r *WorkRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *WorkRepository) Create(ctx context.Context, tx *gorm.DB, item *model.WorkItem) error {
	return r.conn(tx).WithContext(ctx).Create(item).Error
}

func (r *WorkRepository) Get(ctx context.Context, tx *gorm.DB, id int64) (*model.WorkItem, error) {
	var item model.WorkItem
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ListDue 到期的待执行工作，按到期时间、创建顺序
func (r *WorkRepository) ListDue(ctx context.Context, nowMillis int64, limit int) ([]*model.WorkItem, error) {
	var items []*model.WorkItem
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_at <= ?", model.WorkStatusPending, nowMillis).
		Order("due_at ASC, id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *WorkRepository) ListByStatus(ctx context.Context, kind, status string, limit int) ([]*model.WorkItem, error) {
	var items []*model.WorkItem
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status = ?", kind, status).
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *WorkRepository) HasPendingResolve(ctx context.Context, tx *gorm.DB, arena string) (bool, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&model.WorkItem{}).
		Where("kind = ? AND arena = ? AND status = ?", model.WorkKindResolve, arena, model.WorkStatusPending).
		Count(&count).Error
	return count > 0, err
}

// MarkDone 只有 PENDING 的工作才能完成，防止重复执行
func (r *WorkRepository) MarkDone(ctx context.Context, tx *gorm.DB, id int64) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.WorkItem{}).
		Where("id = ? AND status = ?", id, model.WorkStatusPending).
		Updates(map[string]interface{}{
			"status":   model.WorkStatusDone,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWorkItemNotFound
	}
	return nil
}

func (r *WorkRepository) MarkFailed(ctx context.Context, tx *gorm.DB, id int64, reason string) error {
	if len(reason) > 500 {
		reason = reason[:500]
	}
	return r.conn(tx).WithContext(ctx).
		Model(&model.WorkItem{}).
		Where("id = ? AND status = ?", id, model.WorkStatusPending).
		Updates(map[string]interface{}{
			"status":     model.WorkStatusFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
}

// CancelFinalize 取消某场对战尚未执行或已失败的结算工作
func (r *WorkRepository) CancelFinalize(ctx context.Context, tx *gorm.DB, battleID uint64) (int64, error) {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.WorkItem{}).
		Where("kind = ? AND battle_id = ? AND status IN ?", model.WorkKindFinalize, battleID,
			[]string{model.WorkStatusPending, model.WorkStatusFailed}).
		Update("status", model.WorkStatusCancelled)
	return result.RowsAffected, result.Error
}

// CancelAllPending 管理员重置时使用
func (r *WorkRepository) CancelAllPending(ctx context.Context, tx *gorm.DB) (int64, error) {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.WorkItem{}).
		Where("status = ?", model.WorkStatusPending).
		Update("status", model.WorkStatusCancelled)
	return result.RowsAffected, result.Error
}
