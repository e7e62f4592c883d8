package repository

import (
	"context"
	"errors"

	"arenasettle/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountExists    = errors.New("account already exists")
	ErrBalanceNotEnough = errors.New("balance not enough")
	ErrOptimisticLock   = errors.New("optimistic lock conflict")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	_, err := r.GetByPlayer(ctx, tx, account.Player)
	if err == nil {
		return ErrAccountExists
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return err
	}
	return r.conn(tx).WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByPlayer(ctx context.Context, tx *gorm.DB, player string) (*model.Account, error) {
	var account model.Account
	err := r.conn(tx).WithContext(ctx).Where("player = ?", player).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Deduct 扣减余额，带余额和版本号条件
func (r *AccountRepository) Deduct(ctx context.Context, tx *gorm.DB, player string, amount int64, version int) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("player = ? AND balance >= ? AND version = ?", player, amount, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		account, err := r.GetByPlayer(ctx, tx, player)
		if err != nil {
			return err
		}
		if account.Balance < amount {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}

func (r *AccountRepository) Increase(ctx context.Context, tx *gorm.DB, player string, amount int64) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("player = ?", player).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

func (r *AccountRepository) IncrementBattleCount(ctx context.Context, tx *gorm.DB, player string) error {
	return r.increment(ctx, tx, player, "battle_count")
}

func (r *AccountRepository) IncrementWinCount(ctx context.Context, tx *gorm.DB, player string) error {
	return r.increment(ctx, tx, player, "win_count")
}

func (r *AccountRepository) increment(ctx context.Context, tx *gorm.DB, player, column string) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("player = ?", player).
		UpdateColumn(column, gorm.Expr(column+" + 1"))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SumBalances 所有账户余额之和，用于守恒校验
func (r *AccountRepository) SumBalances(ctx context.Context, tx *gorm.DB) (int64, error) {
	var total int64
	err := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&total).Error
	return total, err
}
