package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"arenasettle/internal/config"
	"arenasettle/internal/infrastructure/lock"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// Notifier 工作单元提交后，用来唤醒后续工作的执行者
type Notifier interface {
	Notify()
}

// Check 提交前对整个工作单元做的校验，失败则整体回滚
type Check func(ctx context.Context, tx *gorm.DB) error

// Unit 一次工作单元的上下文
type Unit struct {
	Tx  *gorm.DB
	Now time.Time

	dispatch bool
}

// RequestDispatch 提交成功后唤醒 Notifier
func (u *Unit) RequestDispatch() {
	u.dispatch = true
}

// Engine 串行执行工作单元：加锁 -> 事务 -> 校验 -> 提交 -> 唤醒
// 同一时刻只有一个工作单元在修改状态
type Engine struct {
	db       *gorm.DB
	locker   lock.Locker
	clock    clockwork.Clock
	cfg      *config.EngineConfig
	notifier Notifier
	checks   []Check
}

func NewEngine(db *gorm.DB, locker lock.Locker, clock clockwork.Clock, cfg *config.EngineConfig) *Engine {
	if locker == nil {
		locker = lock.NewLocalLock()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		db:     db,
		locker: locker,
		clock:  clock,
		cfg:    cfg,
	}
}

func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

func (e *Engine) AddCheck(c Check) {
	e.checks = append(e.checks, c)
}

func (e *Engine) Clock() clockwork.Clock {
	return e.clock
}

func (e *Engine) Config() *config.EngineConfig {
	return e.cfg
}

func (e *Engine) DB() *gorm.DB {
	return e.db
}

// Run 执行一个工作单元，fn 返回错误时所有写入回滚
func (e *Engine) Run(ctx context.Context, name string, fn func(u *Unit) error) error {
	unlock, err := e.locker.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%s: 获取引擎锁失败: %w", name, err)
	}

	u := &Unit{Now: e.clock.Now().UTC()}
	err = func() error {
		defer unlock()
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			u.Tx = tx
			if err := fn(u); err != nil {
				return err
			}
			for _, check := range e.checks {
				if err := check(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		})
	}()

	if err != nil {
		if IsKind(err, KindInvariant) {
			log.Printf("[ALERT] %s 违反账本约束，已回滚: %v", name, err)
		}
		return err
	}

	if u.dispatch && e.notifier != nil {
		e.notifier.Notify()
	}
	return nil
}
