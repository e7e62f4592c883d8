package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"arenasettle/internal/model"
	"arenasettle/internal/repository"

	"gorm.io/gorm"
)

// QueueService 竞技场报名队列
type QueueService struct {
	engine       *Engine
	ledger       *LedgerService
	accountRepo  *repository.AccountRepository
	arenaRepo    *repository.ArenaRepository
	templateRepo *repository.TemplateRepository
	stakeRepo    *repository.StakeRepository
	queueRepo    *repository.QueueRepository
	workRepo     *repository.WorkRepository
}

func NewQueueService(engine *Engine, ledger *LedgerService) *QueueService {
	db := engine.DB()
	return &QueueService{
		engine:       engine,
		ledger:       ledger,
		accountRepo:  repository.NewAccountRepository(db),
		arenaRepo:    repository.NewArenaRepository(db),
		templateRepo: repository.NewTemplateRepository(db),
		stakeRepo:    repository.NewStakeRepository(db),
		queueRepo:    repository.NewQueueRepository(db),
		workRepo:     repository.NewWorkRepository(db),
	}
}

type EnterRequest struct {
	Player   string `json:"player" binding:"required"`
	Arena    string `json:"arena" binding:"required"`
	CrewID   uint64 `json:"crew_id" binding:"required"`
	WeaponID uint64 `json:"weapon_id" binding:"required"`
}

type EnterResponse struct {
	EntryID          int64  `json:"entry_id"`
	Arena            string `json:"arena"`
	Cost             string `json:"cost"`
	Depth            int64  `json:"depth"`
	ResolveRequested bool   `json:"resolve_requested"`
}

// Enter 报名：扣报名费并加入队列；队列满员时在同一事务里写入开战请求
func (s *QueueService) Enter(ctx context.Context, caller string, req *EnterRequest) (*EnterResponse, error) {
	if err := requireAuth(caller, req.Player); err != nil {
		return nil, err
	}

	resp := &EnterResponse{Arena: req.Arena}
	err := s.engine.Run(ctx, "enter", func(u *Unit) error {
		account, err := s.accountRepo.GetByPlayer(ctx, u.Tx, req.Player)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return NotFound("user is not registered")
			}
			return err
		}

		arena, err := s.arenaRepo.Get(ctx, u.Tx, req.Arena)
		if err != nil {
			if errors.Is(err, repository.ErrArenaNotFound) {
				return NotFound("invalid arena")
			}
			return err
		}
		if arena.CostSymbol != account.Symbol || account.Balance < arena.CostAmount {
			return Validation("insufficient balance to enter this arena")
		}

		if err := s.checkCrew(ctx, u.Tx, req.Player, req.CrewID); err != nil {
			return err
		}
		if err := s.checkWeapon(ctx, u.Tx, req.Player, req.WeaponID); err != nil {
			return err
		}

		entry := &model.QueueEntry{
			Player:    req.Player,
			Arena:     arena.Name,
			CrewID:    req.CrewID,
			WeaponID:  req.WeaponID,
			EnteredAt: u.Now,
		}
		if err := s.queueRepo.Create(ctx, u.Tx, entry); err != nil {
			if errors.Is(err, repository.ErrQueueEntryExists) {
				return Validation("user has already entered this arena")
			}
			return fmt.Errorf("写入报名失败: %w", err)
		}

		if _, err := s.ledger.Debit(ctx, u.Tx, account, arena.CostAmount, model.TransactionTypeEntry, "arena:"+arena.Name, "报名费"); err != nil {
			return err
		}
		if err := s.accountRepo.IncrementBattleCount(ctx, u.Tx, req.Player); err != nil {
			return fmt.Errorf("更新参战次数失败: %w", err)
		}

		depth, err := s.queueRepo.CountByArena(ctx, u.Tx, arena.Name)
		if err != nil {
			return err
		}

		resp.EntryID = entry.ID
		resp.Cost = arena.Cost().String()
		resp.Depth = depth

		if depth < int64(s.engine.Config().QueueCapacity) {
			return nil
		}
		pending, err := s.workRepo.HasPendingResolve(ctx, u.Tx, arena.Name)
		if err != nil {
			return err
		}
		if pending {
			return nil
		}

		item := &model.WorkItem{
			Kind:      model.WorkKindResolve,
			Arena:     arena.Name,
			DueAt:     u.Now.UnixMilli(),
			Status:    model.WorkStatusPending,
			CreatedAt: u.Now,
		}
		if err := s.workRepo.Create(ctx, u.Tx, item); err != nil {
			return fmt.Errorf("写入开战请求失败: %w", err)
		}
		resp.ResolveRequested = true
		u.RequestDispatch()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("报名成功: player=%s, arena=%s, depth=%d", req.Player, req.Arena, resp.Depth)
	if resp.ResolveRequested {
		log.Printf("竞技场满员，已请求开战: arena=%s", req.Arena)
	}
	return resp, nil
}

func (s *QueueService) ListQueue(ctx context.Context, player string) ([]*model.QueueEntry, error) {
	return s.queueRepo.ListByPlayer(ctx, player)
}

func (s *QueueService) checkCrew(ctx context.Context, tx *gorm.DB, player string, assetID uint64) error {
	rec, err := s.stakeRepo.GetCrew(ctx, tx, assetID)
	if err != nil {
		if errors.Is(err, repository.ErrStakeNotFound) {
			return NotFound("crew is not staked")
		}
		return err
	}
	if rec.Owner != player {
		return Validation("user does not own asset %d", assetID)
	}
	if _, err := s.templateRepo.GetCrew(ctx, tx, rec.TemplateID); err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return Validation("crew template %d is not configured", rec.TemplateID)
		}
		return err
	}
	return nil
}

func (s *QueueService) checkWeapon(ctx context.Context, tx *gorm.DB, player string, assetID uint64) error {
	rec, err := s.stakeRepo.GetWeapon(ctx, tx, assetID)
	if err != nil {
		if errors.Is(err, repository.ErrStakeNotFound) {
			return NotFound("weapon is not staked")
		}
		return err
	}
	if rec.Owner != player {
		return Validation("user does not own asset %d", assetID)
	}
	if _, err := s.templateRepo.GetWeapon(ctx, tx, rec.TemplateID); err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return Validation("weapon template %d is not configured", rec.TemplateID)
		}
		return err
	}
	return nil
}
