package model

import (
	"time"
)

const (
	WorkKindResolve  = "RESOLVE"
	WorkKindFinalize = "FINALIZE"
)

const (
	WorkStatusPending   = "PENDING"
	WorkStatusDone      = "DONE"
	WorkStatusFailed    = "FAILED"
	WorkStatusCancelled = "CANCELLED"
)

// WorkItem 后续工作单元的描述，和触发它的操作同事务写入
// WorkDispatcher 到期后把它作为独立的工作单元执行
type WorkItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind      string    `gorm:"type:varchar(16);not null" json:"kind"`
	Arena     string    `gorm:"type:varchar(32);not null;default:''" json:"arena"`
	BattleID  uint64    `gorm:"not null;default:0" json:"battle_id"`
	Winner    string    `gorm:"type:varchar(32);not null;default:''" json:"winner"`
	DueAt     int64     `gorm:"index;not null" json:"due_at"` // unix 毫秒
	Status    string    `gorm:"type:varchar(16);index;not null" json:"status"`
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	LastError string    `gorm:"type:varchar(512);not null;default:''" json:"last_error"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WorkItem) TableName() string {
	return "work_item"
}
