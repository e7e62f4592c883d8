package model

import (
	"time"
)

// StakedWeapon 玩家质押的武器
// 同一资产被另一玩家重新质押时直接覆盖 Owner
type StakedWeapon struct {
	AssetID    uint64    `gorm:"primaryKey;autoIncrement:false" json:"asset_id"`
	Owner      string    `gorm:"type:varchar(32);index;not null" json:"owner"`
	TemplateID uint64    `gorm:"not null" json:"template_id"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StakedWeapon) TableName() string {
	return "staked_weapon"
}

// StakedCrew 玩家质押的船员
type StakedCrew struct {
	AssetID    uint64    `gorm:"primaryKey;autoIncrement:false" json:"asset_id"`
	Owner      string    `gorm:"type:varchar(32);index;not null" json:"owner"`
	TemplateID uint64    `gorm:"not null" json:"template_id"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StakedCrew) TableName() string {
	return "staked_crew"
}
