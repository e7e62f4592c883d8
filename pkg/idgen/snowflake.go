package idgen

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// 流水号和退款批次号的生成器
// 64 位：符号位 | 41 位毫秒时间戳 | 10 位机器 ID | 12 位序列号

const (
	epoch          = int64(1704067200000) // 起始时间戳（2024-01-01 00:00:00 UTC）
	workerIDBits   = 10                   // 机器ID位数
	sequenceBits   = 12                   // 序列号位数
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake 雪花算法ID生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init 初始化默认ID生成器
func Init(workerID int64) {
	once.Do(func() {
		if workerID < 0 || workerID > maxWorkerID {
			log.Fatalf("workerID 必须在 0-%d 之间", maxWorkerID)
		}
		defaultGenerator = &Snowflake{
			workerID:  workerID,
			timestamp: 0,
			sequence:  0,
		}
	})
}

// NextID 生成下一个ID
func NextID() int64 {
	Init(1) // 未初始化时使用 workerID = 1
	return defaultGenerator.Generate()
}

// Generate 生成ID
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		// 同一毫秒内，序列号递增
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 序列号用完，等待下一毫秒
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		// 不同毫秒，序列号重置
		s.sequence = 0
	}

	s.timestamp = now

	// 组装ID
	id := ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence

	return id
}

const (
	journalPrefix = "AJ" // arena journal
	cancelPrefix  = "AC" // arena cancel
)

// 前缀 + UTC 日期 + "-" + 完整的雪花 ID，不截断
func number(prefix string) string {
	return fmt.Sprintf("%s%s-%d", prefix, time.Now().UTC().Format("20060102"), NextID())
}

// GenerateTransactionNo 账本流水号，例如 AJ20240115-1234567890123456
func GenerateTransactionNo() string {
	return number(journalPrefix)
}

// GenerateRefundNo 取消对战时一批退款共用的批次号，例如 AC20240115-1234567890123456
func GenerateRefundNo() string {
	return number(cancelPrefix)
}
