package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"arenasettle/internal/model"
	"arenasettle/internal/repository"
)

// CustodyOracle 查询外部资产托管：owner 当前是否持有 assetID，以及它的模板
type CustodyOracle interface {
	Lookup(ctx context.Context, owner string, assetID uint64) (templateID uint64, found bool, err error)
}

// StakingService 武器 / 船员的质押登记
type StakingService struct {
	engine       *Engine
	custody      CustodyOracle
	stakeRepo    *repository.StakeRepository
	templateRepo *repository.TemplateRepository
	queueRepo    *repository.QueueRepository
}

func NewStakingService(engine *Engine, custody CustodyOracle) *StakingService {
	db := engine.DB()
	return &StakingService{
		engine:       engine,
		custody:      custody,
		stakeRepo:    repository.NewStakeRepository(db),
		templateRepo: repository.NewTemplateRepository(db),
		queueRepo:    repository.NewQueueRepository(db),
	}
}

type StakeView struct {
	Weapons []*model.StakedWeapon `json:"weapons"`
	Crews   []*model.StakedCrew   `json:"crews"`
}

// StakeWeapons 整批成功或整批失败
func (s *StakingService) StakeWeapons(ctx context.Context, caller, owner string, assetIDs []uint64) error {
	if err := requireAuth(caller, owner); err != nil {
		return err
	}
	if len(assetIDs) == 0 {
		return Validation("no assets given")
	}

	return s.engine.Run(ctx, "stake_weapons", func(u *Unit) error {
		for _, id := range assetIDs {
			templateID, err := s.lookup(ctx, owner, id)
			if err != nil {
				return err
			}
			if _, err := s.templateRepo.GetWeapon(ctx, u.Tx, templateID); err != nil {
				if errors.Is(err, repository.ErrTemplateNotFound) {
					return Validation("weapon template %d is not configured", templateID)
				}
				return err
			}

			prev, err := s.stakeRepo.UpsertWeapon(ctx, u.Tx, &model.StakedWeapon{
				AssetID:    id,
				Owner:      owner,
				TemplateID: templateID,
			})
			if err != nil {
				return fmt.Errorf("登记武器失败: %w", err)
			}
			if prev != "" && prev != owner {
				log.Printf("武器质押易主: asset=%d, %s -> %s", id, prev, owner)
			}
		}
		return nil
	})
}

func (s *StakingService) StakeCrews(ctx context.Context, caller, owner string, assetIDs []uint64) error {
	if err := requireAuth(caller, owner); err != nil {
		return err
	}
	if len(assetIDs) == 0 {
		return Validation("no assets given")
	}

	return s.engine.Run(ctx, "stake_crews", func(u *Unit) error {
		for _, id := range assetIDs {
			templateID, err := s.lookup(ctx, owner, id)
			if err != nil {
				return err
			}
			if _, err := s.templateRepo.GetCrew(ctx, u.Tx, templateID); err != nil {
				if errors.Is(err, repository.ErrTemplateNotFound) {
					return Validation("crew template %d is not configured", templateID)
				}
				return err
			}

			prev, err := s.stakeRepo.UpsertCrew(ctx, u.Tx, &model.StakedCrew{
				AssetID:    id,
				Owner:      owner,
				TemplateID: templateID,
			})
			if err != nil {
				return fmt.Errorf("登记船员失败: %w", err)
			}
			if prev != "" && prev != owner {
				log.Printf("船员质押易主: asset=%d, %s -> %s", id, prev, owner)
			}
		}
		return nil
	})
}

// UnstakeWeapons 自己已报名、尚未开战的资产不能撤回
func (s *StakingService) UnstakeWeapons(ctx context.Context, caller, owner string, assetIDs []uint64) error {
	if err := requireAuth(caller, owner); err != nil {
		return err
	}

	return s.engine.Run(ctx, "unstake_weapons", func(u *Unit) error {
		for _, id := range assetIDs {
			rec, err := s.stakeRepo.GetWeapon(ctx, u.Tx, id)
			if err != nil {
				if errors.Is(err, repository.ErrStakeNotFound) {
					return NotFound("weapon %d is not staked", id)
				}
				return err
			}
			if rec.Owner != owner {
				return Validation("user does not own asset %d", id)
			}
			inQueue, err := s.queueRepo.ReferencesWeapon(ctx, u.Tx, owner, id)
			if err != nil {
				return err
			}
			if inQueue {
				return Validation("asset %d is entered in an arena", id)
			}
			if err := s.stakeRepo.DeleteWeapon(ctx, u.Tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *StakingService) UnstakeCrews(ctx context.Context, caller, owner string, assetIDs []uint64) error {
	if err := requireAuth(caller, owner); err != nil {
		return err
	}

	return s.engine.Run(ctx, "unstake_crews", func(u *Unit) error {
		for _, id := range assetIDs {
			rec, err := s.stakeRepo.GetCrew(ctx, u.Tx, id)
			if err != nil {
				if errors.Is(err, repository.ErrStakeNotFound) {
					return NotFound("crew %d is not staked", id)
				}
				return err
			}
			if rec.Owner != owner {
				return Validation("user does not own asset %d", id)
			}
			inQueue, err := s.queueRepo.ReferencesCrew(ctx, u.Tx, owner, id)
			if err != nil {
				return err
			}
			if inQueue {
				return Validation("asset %d is entered in an arena", id)
			}
			if err := s.stakeRepo.DeleteCrew(ctx, u.Tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *StakingService) ListStakes(ctx context.Context, owner string) (*StakeView, error) {
	weapons, err := s.stakeRepo.ListWeaponsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	crews, err := s.stakeRepo.ListCrewsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &StakeView{Weapons: weapons, Crews: crews}, nil
}

func (s *StakingService) lookup(ctx context.Context, owner string, assetID uint64) (uint64, error) {
	templateID, found, err := s.custody.Lookup(ctx, owner, assetID)
	if err != nil {
		return 0, fmt.Errorf("查询资产托管失败: asset=%d: %w", assetID, err)
	}
	if !found {
		return 0, NotFound("user does not own asset %d", assetID)
	}
	return templateID, nil
}
