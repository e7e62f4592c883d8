package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 引擎锁
// ============================================================================
//
// 引擎要求所有工作单元严格串行执行。单实例部署用进程内互斥锁即可；
// 多副本部署时用 Redis 锁保证同一时刻只有一个副本在执行工作单元。
//
// 加锁：SET key value NX EX timeout
// 释放：Lua 脚本校验 value 后再 DEL，防止误删别人的锁
//
// ============================================================================

var ErrLockFailed = errors.New("acquire engine lock failed")

// Locker 获取锁，返回释放函数
type Locker interface {
	Acquire(ctx context.Context) (func(), error)
}

// LocalLock 进程内串行化
type LocalLock struct {
	mu sync.Mutex
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	return l.mu.Unlock, nil
}

// DistributedLock 分布式锁
type DistributedLock struct {
	client        *redis.Client
	key           string        // 锁的 key
	expiration    time.Duration // 锁的过期时间
	retryInterval time.Duration
	maxRetries    int
}

func NewDistributedLock(client *redis.Client, key string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:        client,
		key:           key,
		expiration:    expiration,
		retryInterval: 50 * time.Millisecond,
		maxRetries:    200,
	}
}

// NewEngineLock 所有副本共用一把锁
func NewEngineLock(client *redis.Client, self string) *DistributedLock {
	return NewDistributedLock(client, fmt.Sprintf("arena:lock:engine:%s", self), 30*time.Second)
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context, value string) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Acquire 阻塞式获取锁（带重试）
func (l *DistributedLock) Acquire(ctx context.Context) (func(), error) {
	value := uuid.NewString()
	for i := 0; i < l.maxRetries; i++ {
		success, err := l.TryLock(ctx, value)
		if err != nil {
			return nil, err
		}
		if success {
			return func() {
				// 用独立的 context 释放，调用方 ctx 可能已取消
				unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = l.unlock(unlockCtx, value)
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
	return nil, ErrLockFailed
}

func (l *DistributedLock) unlock(ctx context.Context, value string) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, value).Result()
	return err
}
