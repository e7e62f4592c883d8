package repository

import (
	"context"
	"errors"

	"arenasettle/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrTreasuryUnderflow = errors.New("treasury held balance would go negative")

type TreasuryRepository struct {
	db *gorm.DB
}

func NewTreasuryRepository(db *gorm.DB) *TreasuryRepository {
	return &TreasuryRepository{db: db}
}

// GetOrCreate 单行表，第一次访问时创建
func (r *TreasuryRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, symbol string) (*model.Treasury, error) {
	if tx == nil {
		tx = r.db
	}

	row := &model.Treasury{ID: model.TreasuryRowID, Symbol: symbol}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}

	var treasury model.Treasury
	if err := tx.WithContext(ctx).First(&treasury, model.TreasuryRowID).Error; err != nil {
		return nil, err
	}
	return &treasury, nil
}

// Adjust 调整实际持有量，delta 可为负
func (r *TreasuryRepository) Adjust(ctx context.Context, tx *gorm.DB, symbol string, delta int64) error {
	if tx == nil {
		tx = r.db
	}

	treasury, err := r.GetOrCreate(ctx, tx, symbol)
	if err != nil {
		return err
	}
	if treasury.Held+delta < 0 {
		return ErrTreasuryUnderflow
	}

	return tx.WithContext(ctx).
		Model(&model.Treasury{}).
		Where("id = ?", model.TreasuryRowID).
		UpdateColumn("held", gorm.Expr("held + ?", delta)).Error
}
