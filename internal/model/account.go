package model

import (
	"time"
)

// Account 玩家账户表
// 引擎代玩家托管的资金都记在这里，是余额的唯一真实来源
type Account struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Player      string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"player"`
	Balance     int64     `gorm:"not null;default:0" json:"balance"` // 最小单位（精度 4 位）
	Symbol      string    `gorm:"type:varchar(8);not null" json:"symbol"`
	BattleCount uint64    `gorm:"not null;default:0" json:"battle_count"`
	WinCount    uint64    `gorm:"not null;default:0" json:"win_count"`
	Version     int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// Treasury 引擎实际持有的结算代币
// 单行表：充值入账时增加，提现/奖金转出时减少
type Treasury struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"type:varchar(8);not null" json:"symbol"`
	Held      int64     `gorm:"not null;default:0" json:"held"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const TreasuryRowID = 1

func (Treasury) TableName() string {
	return "treasury"
}
