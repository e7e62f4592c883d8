package job

import (
	"context"
	"log"
	"sync"
	"time"

	"arenasettle/internal/config"
	"arenasettle/internal/model"
	"arenasettle/internal/repository"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// WorkExecutor 执行单个工作项，service.BattleService 实现
type WorkExecutor interface {
	ExecuteWork(ctx context.Context, item *model.WorkItem) error
	MarkWorkFailed(ctx context.Context, item *model.WorkItem, cause error) error
}

// 一次 RunDue 最多扫描的轮数；执行中新产生的到期工作会在下一轮被取到
const maxDispatchRounds = 16

// WorkDispatcher 到期工作项的执行者：定时轮询，或在提交后被 Notify 唤醒
type WorkDispatcher struct {
	workRepo  *repository.WorkRepository
	executor  WorkExecutor
	clock     clockwork.Clock
	interval  time.Duration
	batchSize int
	kick      chan struct{}
	stopCh    chan struct{}
	mu        sync.Mutex
}

func NewWorkDispatcher(db *gorm.DB, executor WorkExecutor, cfg *config.Config, clock clockwork.Clock) *WorkDispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := time.Duration(cfg.Engine.PollIntervalMillis) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &WorkDispatcher{
		workRepo:  repository.NewWorkRepository(db),
		executor:  executor,
		clock:     clock,
		interval:  interval,
		batchSize: 50,
		kick:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Notify 非阻塞；已有一次未处理的唤醒时直接丢弃
func (d *WorkDispatcher) Notify() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *WorkDispatcher) Start(ctx context.Context) {
	log.Println("[WorkDispatcher] 工作调度任务启动")

	sched, err := gocron.NewScheduler(gocron.WithClock(d.clock))
	if err != nil {
		log.Printf("[WorkDispatcher] 创建调度器失败: %v", err)
		return
	}
	_, err = sched.NewJob(
		gocron.DurationJob(d.interval),
		gocron.NewTask(func() {
			d.RunDue(ctx)
		}),
		gocron.WithName("work-dispatcher"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("[WorkDispatcher] 注册任务失败: %v", err)
		return
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Printf("[WorkDispatcher] 关闭调度器失败: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Println("[WorkDispatcher] 收到停止信号，任务退出")
			return
		case <-d.stopCh:
			log.Println("[WorkDispatcher] 任务停止")
			return
		case <-d.kick:
			d.RunDue(ctx)
		}
	}
}

func (d *WorkDispatcher) Stop() {
	close(d.stopCh)
}

// RunDue 执行所有已到期的工作项，返回处理的条数
func (d *WorkDispatcher) RunDue(ctx context.Context) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	processed := 0
	for round := 0; round < maxDispatchRounds; round++ {
		items, err := d.workRepo.ListDue(ctx, d.clock.Now().UnixMilli(), d.batchSize)
		if err != nil {
			log.Printf("[WorkDispatcher] 查询到期工作失败: %v", err)
			return processed
		}
		if len(items) == 0 {
			return processed
		}

		for _, item := range items {
			if ctx.Err() != nil {
				return processed
			}
			d.run(ctx, item)
			processed++
		}
	}
	return processed
}

func (d *WorkDispatcher) run(ctx context.Context, item *model.WorkItem) {
	err := d.executor.ExecuteWork(ctx, item)
	if err == nil {
		log.Printf("[WorkDispatcher] 工作完成: id=%d, kind=%s, arena=%s, battle=%d", item.ID, item.Kind, item.Arena, item.BattleID)
		return
	}

	if item.Kind == model.WorkKindFinalize {
		log.Printf("[ALERT] [WorkDispatcher] 对战结算失败: id=%d, battle=%d, winner=%s, err=%v", item.ID, item.BattleID, item.Winner, err)
	} else {
		log.Printf("[WorkDispatcher] 工作执行失败: id=%d, kind=%s, arena=%s, err=%v", item.ID, item.Kind, item.Arena, err)
	}

	if markErr := d.executor.MarkWorkFailed(ctx, item, err); markErr != nil {
		log.Printf("[WorkDispatcher] 标记工作失败状态失败: id=%d, err=%v", item.ID, markErr)
	}
}
