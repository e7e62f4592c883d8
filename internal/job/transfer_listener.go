package job

import (
	"context"
	"encoding/json"
	"log"

	"arenasettle/internal/model"
	"arenasettle/internal/service"
)

// Depositor 处理入账通知，service.LedgerService 实现
type Depositor interface {
	Deposit(ctx context.Context, n model.TransferNotification) (bool, error)
}

// TransferListener 消费代币转账服务推送的转账通知
type TransferListener struct {
	ledger Depositor
}

func NewTransferListener(ledger Depositor) *TransferListener {
	return &TransferListener{ledger: ledger}
}

// HandleMessage 作为 mq.MessageHandler 使用
// 返回 error 时消息不会被确认，消费组会重新投递；业务上被拒绝的通知只记录日志
func (l *TransferListener) HandleMessage(ctx context.Context, key, value []byte) error {
	var n model.TransferNotification
	if err := json.Unmarshal(value, &n); err != nil {
		log.Printf("[ALERT] [TransferListener] 无法解析的转账通知: key=%s, err=%v, value=%s", key, err, value)
		return nil
	}
	if n.ID == "" {
		n.ID = string(key)
	}

	applied, err := l.ledger.Deposit(ctx, n)
	if err != nil {
		if service.KindOf(err) != "" {
			log.Printf("[ALERT] [TransferListener] 转账通知被拒绝: from=%s, quantity=%s, memo=%q, err=%v", n.From, n.Quantity, n.Memo, err)
			return nil
		}
		log.Printf("[TransferListener] 处理转账通知失败，等待重投: from=%s, err=%v", n.From, err)
		return err
	}

	if applied {
		log.Printf("[TransferListener] 充值已入账: from=%s, quantity=%s", n.From, n.Quantity)
	}
	return nil
}
