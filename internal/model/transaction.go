package model

import (
	"time"
)

const (
	TransactionTypeDeposit  = "DEPOSIT"  // 充值
	TransactionTypeWithdraw = "WITHDRAW" // 提现
	TransactionTypeEntry    = "ENTRY"    // 报名扣费
	TransactionTypePrize    = "PRIZE"    // 奖金
	TransactionTypeRefund   = "REFUND"   // 取消对战退款
)

// AccountTransaction 账户流水表
// 只追加，不修改，不删除；记录交易前后余额，便于对账
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	Player        string    `gorm:"type:varchar(32);index;not null" json:"player"`
	Ref           string    `gorm:"type:varchar(64);not null" json:"ref"` // 关联的竞技场 / 对战 / 转账
	Amount        int64     `gorm:"not null" json:"amount"`               // 正数入账，负数出账
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
