package job

import (
	"context"
	"log"
	"time"

	"arenasettle/internal/config"
	"arenasettle/internal/model"
	"arenasettle/internal/repository"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// StuckBattle 开战后长时间未结算的对战
type StuckBattle struct {
	BattleID   uint64    `json:"battle_id"`
	Arena      string    `json:"arena"`
	ResolvedAt time.Time `json:"resolved_at"`
	LastError  string    `json:"last_error"`
}

// StuckBattleJob 发现结算失败或超时未结算的对战并告警
// 不自动补偿：需要管理员确认后调用 CancelBattle 退款
type StuckBattleJob struct {
	battleRepo *repository.BattleRepository
	workRepo   *repository.WorkRepository
	cfg        *config.Config
	clock      clockwork.Clock
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewStuckBattleJob(db *gorm.DB, cfg *config.Config, clock clockwork.Clock) *StuckBattleJob {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StuckBattleJob{
		battleRepo: repository.NewBattleRepository(db),
		workRepo:   repository.NewWorkRepository(db),
		cfg:        cfg,
		clock:      clock,
		stopCh:     make(chan struct{}),
		interval:   30 * time.Second,
		batchSize:  100,
	}
}

func (j *StuckBattleJob) Start(ctx context.Context) {
	log.Println("[StuckBattleJob] 对战巡检任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[StuckBattleJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[StuckBattleJob] 任务停止")
			return
		case <-ticker.C:
			for _, b := range j.Scan(ctx) {
				log.Printf("[ALERT] [StuckBattleJob] 对战未结算: battle=%d, arena=%s, resolvedAt=%s, lastError=%s",
					b.BattleID, b.Arena, b.ResolvedAt.Format(time.RFC3339), b.LastError)
			}
		}
	}
}

func (j *StuckBattleJob) Stop() {
	close(j.stopCh)
}

// Scan 结算工作已失败的对战，以及开战超过阈值仍未结算的对战
func (j *StuckBattleJob) Scan(ctx context.Context) []StuckBattle {
	failed, err := j.workRepo.ListByStatus(ctx, model.WorkKindFinalize, model.WorkStatusFailed, j.batchSize)
	if err != nil {
		log.Printf("[StuckBattleJob] 查询失败的结算工作失败: %v", err)
		return nil
	}
	lastErrors := make(map[uint64]string, len(failed))
	for _, item := range failed {
		lastErrors[item.BattleID] = item.LastError
	}

	battles, err := j.battleRepo.ListUnfinalized(ctx, j.batchSize)
	if err != nil {
		log.Printf("[StuckBattleJob] 查询未结算对战失败: %v", err)
		return nil
	}

	threshold := time.Duration(j.cfg.Business.StuckBattleMinutes) * time.Minute
	now := j.clock.Now()

	var stuck []StuckBattle
	for _, b := range battles {
		lastError, failed := lastErrors[b.ID]
		if !failed && now.Sub(b.ResolvedAt) < threshold {
			continue
		}
		stuck = append(stuck, StuckBattle{
			BattleID:   b.ID,
			Arena:      b.Arena,
			ResolvedAt: b.ResolvedAt,
			LastError:  lastError,
		})
	}
	return stuck
}
