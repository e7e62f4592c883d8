package model

import (
	"time"
)

const (
	BattleStatusResolved  = "RESOLVED"
	BattleStatusFinalized = "FINALIZED"
	BattleStatusCancelled = "CANCELLED"
)

var ValidBattleTransitions = map[string][]string{
	BattleStatusResolved: {BattleStatusFinalized, BattleStatusCancelled},
}

func CanBattleTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidBattleTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Contender 入围前三的参赛者及其得分
type Contender struct {
	Player string `json:"player"`
	Score  string `json:"score"`
}

// Battle 对战记录
// Players 是开战时队列里的全部报名者（过滤前），作为审计依据，奖金按它的人数计算
type Battle struct {
	ID          uint64      `gorm:"primaryKey;autoIncrement" json:"battle_id"`
	Arena       string      `gorm:"type:varchar(32);index;not null" json:"arena_name"`
	Players     []string    `gorm:"type:text;serializer:json" json:"players"`
	Survivors   []string    `gorm:"type:text;serializer:json" json:"survivors"`
	Contenders  []Contender `gorm:"type:text;serializer:json" json:"contenders"`
	Winner      string      `gorm:"type:varchar(32);not null;default:''" json:"winner"`
	Status      string      `gorm:"type:varchar(20);not null" json:"status"`
	// EntryAmount 开战时的报名费快照，只用于 CancelBattle 退款；奖金按结算时竞技场的当前配置计算，不读快照
	EntryAmount int64       `gorm:"not null" json:"entry_amount"`
	EntrySymbol string      `gorm:"type:varchar(8);not null" json:"entry_symbol"`
	Fee         uint8       `gorm:"not null" json:"fee"`
	Prize       int64       `gorm:"not null;default:0" json:"prize"`
	ResolvedAt  time.Time   `gorm:"not null" json:"resolved_at"`
	FinalizedAt *time.Time  `json:"finalized_at"`
}

func (Battle) TableName() string {
	return "battle"
}

func (b *Battle) IsContender(player string) bool {
	for _, c := range b.Contenders {
		if c.Player == player {
			return true
		}
	}
	return false
}
