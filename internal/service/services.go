package service

import (
	"arenasettle/internal/config"
)

// Services 一个引擎上的全部业务服务
type Services struct {
	Engine  *Engine
	Ledger  *LedgerService
	Staking *StakingService
	Queue   *QueueService
	Battle  *BattleService
	Admin   *AdminService
}

func NewServices(engine *Engine, cfg *config.Config, custody CustodyOracle, random RandomSource) *Services {
	ledger := NewLedgerService(engine, cfg)
	return &Services{
		Engine:  engine,
		Ledger:  ledger,
		Staking: NewStakingService(engine, custody),
		Queue:   NewQueueService(engine, ledger),
		Battle:  NewBattleService(engine, cfg, ledger, custody, random),
		Admin:   NewAdminService(engine, cfg, ledger),
	}
}
