package repository

import (
	"context"
	"errors"

	"arenasettle/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrArenaNotFound    = errors.New("arena not found")
	ErrTemplateNotFound = errors.New("template not found")
)

// ArenaRepository 竞技场配置
type ArenaRepository struct {
	db *gorm.DB
}

func NewArenaRepository(db *gorm.DB) *ArenaRepository {
	return &ArenaRepository{db: db}
}

func (r *ArenaRepository) Upsert(ctx context.Context, tx *gorm.DB, arena *model.Arena) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"cost_amount", "cost_symbol", "cost_contract", "fee", "updated_at"}),
		}).
		Create(arena).Error
}

func (r *ArenaRepository) Get(ctx context.Context, tx *gorm.DB, name string) (*model.Arena, error) {
	if tx == nil {
		tx = r.db
	}
	var arena model.Arena
	err := tx.WithContext(ctx).Where("name = ?", name).First(&arena).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArenaNotFound
		}
		return nil, err
	}
	return &arena, nil
}

func (r *ArenaRepository) Delete(ctx context.Context, tx *gorm.DB, name string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("name = ?", name).Delete(&model.Arena{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrArenaNotFound
	}
	return nil
}

func (r *ArenaRepository) List(ctx context.Context) ([]*model.Arena, error) {
	var arenas []*model.Arena
	err := r.db.WithContext(ctx).Order("name ASC").Find(&arenas).Error
	return arenas, err
}

// TemplateRepository 武器 / 船员模板配置
type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) UpsertWeapon(ctx context.Context, tx *gorm.DB, t *model.WeaponTemplate) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "template_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"class", "attack", "defense"}),
		}).
		Create(t).Error
}

func (r *TemplateRepository) UpsertCrew(ctx context.Context, tx *gorm.DB, t *model.CrewTemplate) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "template_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"race", "element", "attack", "defense"}),
		}).
		Create(t).Error
}

func (r *TemplateRepository) GetWeapon(ctx context.Context, tx *gorm.DB, templateID uint64) (*model.WeaponTemplate, error) {
	if tx == nil {
		tx = r.db
	}
	var t model.WeaponTemplate
	err := tx.WithContext(ctx).Where("template_id = ?", templateID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) GetCrew(ctx context.Context, tx *gorm.DB, templateID uint64) (*model.CrewTemplate, error) {
	if tx == nil {
		tx = r.db
	}
	var t model.CrewTemplate
	err := tx.WithContext(ctx).Where("template_id = ?", templateID).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepository) DeleteWeapon(ctx context.Context, tx *gorm.DB, templateID uint64) error {
	return r.delete(ctx, tx, &model.WeaponTemplate{}, templateID)
}

func (r *TemplateRepository) DeleteCrew(ctx context.Context, tx *gorm.DB, templateID uint64) error {
	return r.delete(ctx, tx, &model.CrewTemplate{}, templateID)
}

func (r *TemplateRepository) delete(ctx context.Context, tx *gorm.DB, value interface{}, templateID uint64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("template_id = ?", templateID).Delete(value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *TemplateRepository) ListWeapons(ctx context.Context) ([]*model.WeaponTemplate, error) {
	var list []*model.WeaponTemplate
	err := r.db.WithContext(ctx).Order("template_id ASC").Find(&list).Error
	return list, err
}

func (r *TemplateRepository) ListCrews(ctx context.Context) ([]*model.CrewTemplate, error) {
	var list []*model.CrewTemplate
	err := r.db.WithContext(ctx).Order("template_id ASC").Find(&list).Error
	return list, err
}
