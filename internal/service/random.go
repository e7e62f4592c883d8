package service

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"arenasettle/internal/model"
)

// RandomSource 从工作单元的标识字节派生 [0, upper) 内的下标
type RandomSource interface {
	Index(seed []byte, upper uint64) uint64
}

// TxHashRandom 取 sha256(seed) 的前 8 字节（大端）对 upper 取模
//
// 注意：seed 来自工作单元自身，在执行前对排序/调度这些工作的一方是可见的，
// 因此结果对它而言是可预测的。奖金数额较大时不应依赖这个随机源。
type TxHashRandom struct{}

func (TxHashRandom) Index(seed []byte, upper uint64) uint64 {
	if upper == 0 {
		return 0
	}
	sum := sha256.Sum256(seed)
	return binary.BigEndian.Uint64(sum[:8]) % upper
}

// ManualSeed 手动开战请求的标识字节
func ManualSeed(arena, requestID string) []byte {
	return []byte(fmt.Sprintf("manual:%s:%s", arena, requestID))
}

// WorkSeed 工作单元的标识字节
func WorkSeed(item *model.WorkItem) []byte {
	return []byte(fmt.Sprintf("work:%d:%s:%s:%d:%d:%d",
		item.ID, item.Kind, item.Arena, item.BattleID, item.CreatedAt.UnixNano(), item.DueAt))
}
