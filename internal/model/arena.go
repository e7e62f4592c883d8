package model

import (
	"time"
)

// Arena 竞技场配置：报名费和平台抽成比例
type Arena struct {
	Name         string    `gorm:"type:varchar(32);primaryKey" json:"name"`
	CostAmount   int64     `gorm:"not null" json:"cost_amount"`
	CostSymbol   string    `gorm:"type:varchar(8);not null" json:"cost_symbol"`
	CostContract string    `gorm:"type:varchar(32);not null" json:"cost_contract"` // 发行代币的合约/服务
	Fee          uint8     `gorm:"not null" json:"fee"`                            // 0-100
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Arena) TableName() string {
	return "arena"
}

func (a *Arena) Cost() Asset {
	return Asset{Amount: a.CostAmount, Symbol: a.CostSymbol}
}

// WeaponTemplate 武器模板属性
type WeaponTemplate struct {
	TemplateID uint64 `gorm:"primaryKey;autoIncrement:false" json:"template_id"`
	Class      string `gorm:"type:varchar(32);not null" json:"weapon_class"`
	Attack     uint8  `gorm:"not null" json:"attack"`
	Defense    uint8  `gorm:"not null" json:"defense"`
}

func (WeaponTemplate) TableName() string {
	return "weapon_template"
}

// CrewTemplate 船员模板属性
type CrewTemplate struct {
	TemplateID uint64 `gorm:"primaryKey;autoIncrement:false" json:"template_id"`
	Race       string `gorm:"type:varchar(32);not null" json:"race"`
	Element    string `gorm:"type:varchar(32);not null" json:"element"`
	Attack     uint8  `gorm:"not null" json:"attack"`
	Defense    uint8  `gorm:"not null" json:"defense"`
}

func (CrewTemplate) TableName() string {
	return "crew_template"
}
