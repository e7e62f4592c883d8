package model

import (
	"time"
)

// QueueEntry 玩家在某个竞技场的待开战报名
// (player, arena) 唯一；竞技场开战时被整体消费
type QueueEntry struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Player    string    `gorm:"type:varchar(32);uniqueIndex:idx_queue_player_arena;not null" json:"player"`
	Arena     string    `gorm:"type:varchar(32);uniqueIndex:idx_queue_player_arena;not null" json:"arena"`
	CrewID    uint64    `gorm:"not null" json:"crew_id"`
	WeaponID  uint64    `gorm:"not null" json:"weapon_id"`
	EnteredAt time.Time `gorm:"not null" json:"entered_at"`
}

func (QueueEntry) TableName() string {
	return "queue_entry"
}
