package repository

import (
	"context"

	"arenasettle/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.AccountTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) ListByPlayer(ctx context.Context, player string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	var transactions []*model.AccountTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.AccountTransaction{}).Where("player = ?", player)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

func (r *TransactionRepository) ListByRef(ctx context.Context, tx *gorm.DB, ref string) ([]*model.AccountTransaction, error) {
	if tx == nil {
		tx = r.db
	}
	var transactions []*model.AccountTransaction
	err := tx.WithContext(ctx).
		Where("ref = ?", ref).
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}
