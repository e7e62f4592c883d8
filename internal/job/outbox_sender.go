package job

import (
	"context"
	"log"
	"time"

	"arenasettle/internal/config"
	"arenasettle/internal/model"
	"arenasettle/internal/repository"

	"gorm.io/gorm"
)

// Publisher 消息投递，mq.Producer 实现
type Publisher interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender 把出账转账请求投递给代币转账服务
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending 投递一批待发送消息，返回成功条数
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询消息失败: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.MarkSent(ctx, msg.ID); updateErr != nil {
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
			return false
		}
		log.Printf("[OutboxSender] 消息发送成功: id=%d, topic=%s, key=%s", msg.ID, msg.Topic, msg.MessageKey)
		return true
	}

	log.Printf("[OutboxSender] 消息发送失败: id=%d, err=%v", msg.ID, err)

	exhausted, recordErr := s.outboxRepo.RecordFailure(ctx, msg.ID, s.cfg.Business.MaxRetryCount)
	if recordErr != nil {
		log.Printf("[OutboxSender] 记录失败次数失败: id=%d, err=%v", msg.ID, recordErr)
		return false
	}
	if exhausted {
		// 资金已经从账本扣除，需要人工补发
		log.Printf("[ALERT] [OutboxSender] 转账请求超过最大重试次数，标记为失败: id=%d, key=%s, payload=%s",
			msg.ID, msg.MessageKey, msg.Payload)
	}
	return false
}
