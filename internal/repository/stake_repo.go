package repository

import (
	"context"
	"errors"

	"arenasettle/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrStakeNotFound = errors.New("asset is not staked")

// StakeRepository 质押登记，两张平行表
type StakeRepository struct {
	db *gorm.DB
}

func NewStakeRepository(db *gorm.DB) *StakeRepository {
	return &StakeRepository{db: db}
}

func (r *StakeRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// UpsertWeapon 返回覆盖前的 owner（首次质押为空）
func (r *StakeRepository) UpsertWeapon(ctx context.Context, tx *gorm.DB, rec *model.StakedWeapon) (string, error) {
	prev, err := r.GetWeapon(ctx, tx, rec.AssetID)
	if err != nil && !errors.Is(err, ErrStakeNotFound) {
		return "", err
	}

	err = r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner", "template_id", "updated_at"}),
		}).
		Create(rec).Error
	if err != nil {
		return "", err
	}

	if prev == nil {
		return "", nil
	}
	return prev.Owner, nil
}

func (r *StakeRepository) UpsertCrew(ctx context.Context, tx *gorm.DB, rec *model.StakedCrew) (string, error) {
	prev, err := r.GetCrew(ctx, tx, rec.AssetID)
	if err != nil && !errors.Is(err, ErrStakeNotFound) {
		return "", err
	}

	err = r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner", "template_id", "updated_at"}),
		}).
		Create(rec).Error
	if err != nil {
		return "", err
	}

	if prev == nil {
		return "", nil
	}
	return prev.Owner, nil
}

func (r *StakeRepository) GetWeapon(ctx context.Context, tx *gorm.DB, assetID uint64) (*model.StakedWeapon, error) {
	var rec model.StakedWeapon
	err := r.conn(tx).WithContext(ctx).Where("asset_id = ?", assetID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStakeNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *StakeRepository) GetCrew(ctx context.Context, tx *gorm.DB, assetID uint64) (*model.StakedCrew, error) {
	var rec model.StakedCrew
	err := r.conn(tx).WithContext(ctx).Where("asset_id = ?", assetID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStakeNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *StakeRepository) DeleteWeapon(ctx context.Context, tx *gorm.DB, assetID uint64) error {
	return r.conn(tx).WithContext(ctx).Where("asset_id = ?", assetID).Delete(&model.StakedWeapon{}).Error
}

func (r *StakeRepository) DeleteCrew(ctx context.Context, tx *gorm.DB, assetID uint64) error {
	return r.conn(tx).WithContext(ctx).Where("asset_id = ?", assetID).Delete(&model.StakedCrew{}).Error
}

func (r *StakeRepository) ListWeaponsByOwner(ctx context.Context, owner string) ([]*model.StakedWeapon, error) {
	var list []*model.StakedWeapon
	err := r.db.WithContext(ctx).Where("owner = ?", owner).Order("asset_id ASC").Find(&list).Error
	return list, err
}

func (r *StakeRepository) ListCrewsByOwner(ctx context.Context, owner string) ([]*model.StakedCrew, error) {
	var list []*model.StakedCrew
	err := r.db.WithContext(ctx).Where("owner = ?", owner).Order("asset_id ASC").Find(&list).Error
	return list, err
}
