package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"arenasettle/internal/config"
	"arenasettle/internal/model"
	"arenasettle/internal/repository"
	"arenasettle/pkg/idgen"
)

// AdminService 竞技场/模板配置以及人工补偿操作，仅限引擎自身调用
type AdminService struct {
	engine       *Engine
	cfg          *config.Config
	ledger       *LedgerService
	arenaRepo    *repository.ArenaRepository
	templateRepo *repository.TemplateRepository
	queueRepo    *repository.QueueRepository
	battleRepo   *repository.BattleRepository
	workRepo     *repository.WorkRepository
}

func NewAdminService(engine *Engine, cfg *config.Config, ledger *LedgerService) *AdminService {
	db := engine.DB()
	return &AdminService{
		engine:       engine,
		cfg:          cfg,
		ledger:       ledger,
		arenaRepo:    repository.NewArenaRepository(db),
		templateRepo: repository.NewTemplateRepository(db),
		queueRepo:    repository.NewQueueRepository(db),
		battleRepo:   repository.NewBattleRepository(db),
		workRepo:     repository.NewWorkRepository(db),
	}
}

type SetArenaRequest struct {
	Name     string `json:"name" binding:"required"`
	Cost     string `json:"cost" binding:"required"` // "10.0000 TLM"
	Contract string `json:"contract"`
	Fee      int    `json:"fee"`
}

type ResetResponse struct {
	QueueEntries int64 `json:"queue_entries"`
	Battles      int64 `json:"battles"`
	WorkItems    int64 `json:"work_items"`
}

type CancelBattleResponse struct {
	BattleID uint64   `json:"battle_id"`
	Refunded []string `json:"refunded"`
	Amount   string   `json:"amount"`
}

func (s *AdminService) SetArena(ctx context.Context, caller string, req *SetArenaRequest) (*model.Arena, error) {
	if err := requireAuth(caller, s.cfg.Engine.Self); err != nil {
		return nil, err
	}
	if req.Name == "" || len(req.Name) > 32 {
		return nil, Validation("invalid arena name")
	}
	cost, err := model.ParseAsset(req.Cost)
	if err != nil {
		return nil, Validation("invalid quantity")
	}
	if cost.Amount <= 0 {
		return nil, Validation("cost must be positive")
	}
	if cost.Symbol != s.cfg.Engine.Symbol {
		return nil, Validation("invalid symbol")
	}
	if req.Fee < 0 || req.Fee > 100 {
		return nil, Validation("fee must be between 0 and 100")
	}
	contract := req.Contract
	if contract == "" {
		contract = s.cfg.Engine.TokenContract
	}

	arena := &model.Arena{
		Name:         req.Name,
		CostAmount:   cost.Amount,
		CostSymbol:   cost.Symbol,
		CostContract: contract,
		Fee:          uint8(req.Fee),
	}
	err = s.engine.Run(ctx, "set_arena", func(u *Unit) error {
		return s.arenaRepo.Upsert(ctx, u.Tx, arena)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("竞技场配置更新: name=%s, cost=%s, fee=%d", arena.Name, cost, arena.Fee)
	return arena, nil
}

func (s *AdminService) RemoveArena(ctx context.Context, caller, name string) error {
	if err := requireAuth(caller, s.cfg.Engine.Self); err != nil {
		return err
	}
	return s.engine.Run(ctx, "remove_arena", func(u *Unit) error {
		if err := s.arenaRepo.Delete(ctx, u.Tx, name); err != nil {
			if errors.Is(err, repository.ErrArenaNotFound) {
				return NotFound("arena not found")
			}
			return err
		}
		log.Printf("竞技场已删除: name=%s", name)
		return nil
	})
}

func (s *AdminService) ListArenas(ctx context.Context) ([]*model.Arena, error) {
	return s.arenaRepo.List(ctx)
}

func (s *AdminService) SetWeaponTemplate(ctx context.Context, caller string, t *model.WeaponTemplate) error {
	if err := requireAuth(caller, s.cfg.Engine.Self); err != nil {
		return err
	}
	if t.TemplateID == 0 || t.Class == "" {
		return Validation("invalid weapon template")
	}
	return s.engine.Run(ctx, "set_weapon_template", func(u *Unit) error {
		return s.templateRepo.UpsertWeapon(ctx, u.Tx, t)
	})
}

func (s *AdminService) SetCrewTemplate(ctx context.Context, caller string, t *model.CrewTemplate) error {
	if err := requireAuth(caller, s.cfg.Engine.Self); err != nil {
		return err
	}
	if t.TemplateID == 0 || t.Element == "" {
		return Validation("invalid crew template")
	}
	return s.engine.Run(ctx, "set_crew_template", func(u *Unit) error {
		return s.templateRepo.UpsertCrew(ctx, u.Tx, t)
	})
}

func (s *AdminService) RemoveWeaponTemplate(ctx context.Context, caller string, templateID uint64) error {
	if err := requireAuth(caller, s.cfg.Engine.Self); err != nil {
		return err
	}
	return s.engine.Run(ctx, "remove_weapon_template", func(u *Unit) error {
		if err := s.templateRepo.DeleteWeapon(ctx, u.Tx, templateID); err != nil {
			if errors.Is(err, repository.ErrTemplateNotFound) {
				return NotFound("weapon template %d not found", templateID)
			}
			return err
		}
		return nil
	})
}

func (s *AdminService) RemoveCrewTemplate(ctx context.Context, caller string, templateID uint64) error {
	if err := requireAuth(caller, s.cfg.Engine.Self); err != nil {
		return err
	}
	return s.engine.Run(ctx, "remove_crew_template", func(u *Unit) error {
		if err := s.templateRepo.DeleteCrew(ctx, u.Tx, templateID); err != nil {
			if errors.Is(err, repository.ErrTemplateNotFound) {
				return NotFound("crew template %d not found", templateID)
			}
			return err
		}
		return nil
	})
}

func (s *AdminService) ListTemplates(ctx context.Context) ([]*model.WeaponTemplate, []*model.CrewTemplate, error) {
	weapons, err := s.templateRepo.ListWeapons(ctx)
	if err != nil {
		return nil, nil, err
	}
	crews, err := s.templateRepo.ListCrews(ctx)
	if err != nil {
		return nil, nil, err
	}
	return weapons, crews, nil
}

// Reset 清空队列、对战记录和待执行工作。已扣的报名费不退
func (s *AdminService) Reset(ctx context.Context, caller string) (*ResetResponse, error) {
	if err := requireAuth(caller, s.cfg.Engine.Self); err != nil {
		return nil, err
	}

	resp := &ResetResponse{}
	err := s.engine.Run(ctx, "reset", func(u *Unit) error {
		var err error
		if resp.QueueEntries, err = s.queueRepo.DeleteAll(ctx, u.Tx); err != nil {
			return err
		}
		if resp.Battles, err = s.battleRepo.DeleteAll(ctx, u.Tx); err != nil {
			return err
		}
		if resp.WorkItems, err = s.workRepo.CancelAllPending(ctx, u.Tx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("已重置: queue=%d, battles=%d, work=%d", resp.QueueEntries, resp.Battles, resp.WorkItems)
	return resp, nil
}

// CancelBattle 未结算对战的补偿：按开战时的报名费退给每个合格参赛者，作废的报名不退
func (s *AdminService) CancelBattle(ctx context.Context, caller string, battleID uint64) (*CancelBattleResponse, error) {
	if err := requireAuth(caller, s.cfg.Engine.Self); err != nil {
		return nil, err
	}

	resp := &CancelBattleResponse{BattleID: battleID}
	err := s.engine.Run(ctx, "cancel_battle", func(u *Unit) error {
		battle, err := s.battleRepo.Get(ctx, u.Tx, battleID)
		if err != nil {
			if errors.Is(err, repository.ErrBattleNotFound) {
				return NotFound("battle not found")
			}
			return err
		}
		switch battle.Status {
		case model.BattleStatusFinalized:
			return Validation("battle %d already finalized", battleID)
		case model.BattleStatusCancelled:
			return Validation("battle %d was cancelled", battleID)
		}

		refundNo := idgen.GenerateRefundNo()
		ref := fmt.Sprintf("battle:%d", battle.ID)
		for _, player := range battle.Survivors {
			if _, err := s.ledger.Credit(ctx, u.Tx, player, battle.EntryAmount, model.TransactionTypeRefund, ref, "取消对战退款-"+refundNo); err != nil {
				return err
			}
		}

		err = s.battleRepo.UpdateStatus(ctx, u.Tx, battle.ID, model.BattleStatusResolved, model.BattleStatusCancelled, map[string]interface{}{
			"finalized_at": u.Now,
		})
		if err != nil {
			return fmt.Errorf("更新对战状态失败: %w", err)
		}
		if _, err := s.workRepo.CancelFinalize(ctx, u.Tx, battle.ID); err != nil {
			return err
		}

		resp.Refunded = battle.Survivors
		resp.Amount = model.NewAsset(battle.EntryAmount, battle.EntrySymbol).String()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("对战已取消: battle=%d, refunded=%d, amount=%s", battleID, len(resp.Refunded), resp.Amount)
	return resp, nil
}
