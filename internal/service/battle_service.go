package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"arenasettle/internal/config"
	"arenasettle/internal/model"
	"arenasettle/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	matchedMultiplier   = decimal.NewFromInt(1)
	unmatchedMultiplier = decimal.NewFromFloat(0.5)
)

// BattleService 开战（resolve）与结算（finalize）
type BattleService struct {
	engine       *Engine
	cfg          *config.Config
	ledger       *LedgerService
	custody      CustodyOracle
	random       RandomSource
	arenaRepo    *repository.ArenaRepository
	templateRepo *repository.TemplateRepository
	queueRepo    *repository.QueueRepository
	battleRepo   *repository.BattleRepository
	workRepo     *repository.WorkRepository
	accountRepo  *repository.AccountRepository
	treasuryRepo *repository.TreasuryRepository
	outboxRepo   *repository.OutboxRepository
}

func NewBattleService(engine *Engine, cfg *config.Config, ledger *LedgerService, custody CustodyOracle, random RandomSource) *BattleService {
	if random == nil {
		random = TxHashRandom{}
	}
	db := engine.DB()
	return &BattleService{
		engine:       engine,
		cfg:          cfg,
		ledger:       ledger,
		custody:      custody,
		random:       random,
		arenaRepo:    repository.NewArenaRepository(db),
		templateRepo: repository.NewTemplateRepository(db),
		queueRepo:    repository.NewQueueRepository(db),
		battleRepo:   repository.NewBattleRepository(db),
		workRepo:     repository.NewWorkRepository(db),
		accountRepo:  repository.NewAccountRepository(db),
		treasuryRepo: repository.NewTreasuryRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
}

type ResolveResult struct {
	BattleID      uint64            `json:"battle_id"`
	Arena         string            `json:"arena"`
	Players       []string          `json:"players"`
	Forfeited     []string          `json:"forfeited"`
	Contenders    []model.Contender `json:"contenders"`
	Winner        string            `json:"winner"`
	WinnerIndex   uint64            `json:"winner_index"`
	FinalizeDueAt time.Time         `json:"finalize_due_at"`
}

type FinalizeResult struct {
	BattleID uint64 `json:"battle_id"`
	Winner   string `json:"winner"`
	Prize    string `json:"prize"`
	Payout   string `json:"payout"`
}

// Resolve 手动开战。种子由本次请求号生成，调用方不能指定
func (s *BattleService) Resolve(ctx context.Context, caller, arena string) (*ResolveResult, error) {
	if err := requireAuth(caller, s.cfg.Engine.Self); err != nil {
		return nil, err
	}
	seed := ManualSeed(arena, uuid.NewString())

	var result *ResolveResult
	err := s.engine.Run(ctx, "resolve", func(u *Unit) error {
		var err error
		result, err = s.resolve(ctx, u, arena, seed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Finalize 结算对战：记录胜者并发放奖金
func (s *BattleService) Finalize(ctx context.Context, caller string, battleID uint64, winner string) (*FinalizeResult, error) {
	if err := requireAuth(caller, s.cfg.Engine.Self); err != nil {
		return nil, err
	}

	var result *FinalizeResult
	err := s.engine.Run(ctx, "finalize", func(u *Unit) error {
		var err error
		result, err = s.finalize(ctx, u, battleID, winner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteWork 把到期的工作项作为独立工作单元执行，成功时在同一事务里标记完成
func (s *BattleService) ExecuteWork(ctx context.Context, item *model.WorkItem) error {
	return s.engine.Run(ctx, "work:"+item.Kind, func(u *Unit) error {
		current, err := s.workRepo.Get(ctx, u.Tx, item.ID)
		if err != nil {
			return err
		}
		if current.Status != model.WorkStatusPending {
			return nil
		}

		switch current.Kind {
		case model.WorkKindResolve:
			if _, err := s.resolve(ctx, u, current.Arena, WorkSeed(current)); err != nil {
				return err
			}
		case model.WorkKindFinalize:
			if _, err := s.finalize(ctx, u, current.BattleID, current.Winner); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown work kind %q", current.Kind)
		}

		return s.workRepo.MarkDone(ctx, u.Tx, current.ID)
	})
}

// MarkWorkFailed 单独的工作单元，记录失败原因；不会自动重试
func (s *BattleService) MarkWorkFailed(ctx context.Context, item *model.WorkItem, cause error) error {
	return s.engine.Run(ctx, "work_failed", func(u *Unit) error {
		return s.workRepo.MarkFailed(ctx, u.Tx, item.ID, cause.Error())
	})
}

func (s *BattleService) GetBattle(ctx context.Context, battleID uint64) (*model.Battle, error) {
	battle, err := s.battleRepo.Get(ctx, nil, battleID)
	if err != nil {
		if errors.Is(err, repository.ErrBattleNotFound) {
			return nil, NotFound("battle not found")
		}
		return nil, err
	}
	return battle, nil
}

func (s *BattleService) ListBattles(ctx context.Context, arena string, page, pageSize int) ([]*model.Battle, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.battleRepo.ListByArena(ctx, arena, page, pageSize)
}

type scoredEntry struct {
	player string
	score  decimal.Decimal
}

func (s *BattleService) resolve(ctx context.Context, u *Unit, arenaName string, seed []byte) (*ResolveResult, error) {
	arena, err := s.arenaRepo.Get(ctx, u.Tx, arenaName)
	if err != nil {
		if errors.Is(err, repository.ErrArenaNotFound) {
			return nil, NotFound("arena not found")
		}
		return nil, err
	}

	entries, err := s.queueRepo.ListByArena(ctx, u.Tx, arena.Name)
	if err != nil {
		return nil, err
	}
	if _, err := s.queueRepo.DeleteByArena(ctx, u.Tx, arena.Name); err != nil {
		return nil, fmt.Errorf("清理报名队列失败: %w", err)
	}

	players := make([]string, 0, len(entries))
	survivors := make([]scoredEntry, 0, len(entries))
	var forfeited []string
	for _, entry := range entries {
		players = append(players, entry.Player)

		score, reason, err := s.score(ctx, u.Tx, entry)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			// 报名费不退
			forfeited = append(forfeited, entry.Player)
			log.Printf("[Resolve] 报名作废: arena=%s, player=%s, reason=%s", arena.Name, entry.Player, reason)
			continue
		}
		survivors = append(survivors, scoredEntry{player: entry.Player, score: score})
	}

	need := s.cfg.Engine.Contenders
	if len(survivors) < need {
		return nil, Validation("not enough qualifying entrants: %d of %d required", len(survivors), need)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		if c := survivors[i].score.Cmp(survivors[j].score); c != 0 {
			return c > 0
		}
		return survivors[i].player < survivors[j].player
	})

	survivorNames := make([]string, len(survivors))
	for i, e := range survivors {
		survivorNames[i] = e.player
	}
	contenders := make([]model.Contender, need)
	for i := 0; i < need; i++ {
		contenders[i] = model.Contender{Player: survivors[i].player, Score: survivors[i].score.StringFixed(1)}
	}

	battle := &model.Battle{
		Arena:       arena.Name,
		Players:     players,
		Survivors:   survivorNames,
		Contenders:  contenders,
		Status:      model.BattleStatusResolved,
		EntryAmount: arena.CostAmount,
		EntrySymbol: arena.CostSymbol,
		Fee:         arena.Fee,
		ResolvedAt:  u.Now,
	}
	if err := s.battleRepo.Create(ctx, u.Tx, battle); err != nil {
		return nil, fmt.Errorf("写入对战失败: %w", err)
	}

	index := s.random.Index(seed, uint64(len(contenders)))
	winner := contenders[index].Player

	due := u.Now
	if s.cfg.Engine.DispatchMode == config.DispatchDelayed {
		due = due.Add(time.Duration(s.cfg.Engine.FinalizeDelaySeconds) * time.Second)
	}
	item := &model.WorkItem{
		Kind:      model.WorkKindFinalize,
		Arena:     arena.Name,
		BattleID:  battle.ID,
		Winner:    winner,
		DueAt:     due.UnixMilli(),
		Status:    model.WorkStatusPending,
		CreatedAt: u.Now,
	}
	if err := s.workRepo.Create(ctx, u.Tx, item); err != nil {
		return nil, fmt.Errorf("写入结算请求失败: %w", err)
	}
	if s.cfg.Engine.DispatchMode == config.DispatchImmediate {
		u.RequestDispatch()
	}

	log.Printf("[Resolve] 开战完成: arena=%s, battle=%d, players=%d, survivors=%d, winner=%s",
		arena.Name, battle.ID, len(players), len(survivors), winner)

	return &ResolveResult{
		BattleID:      battle.ID,
		Arena:         arena.Name,
		Players:       players,
		Forfeited:     forfeited,
		Contenders:    contenders,
		Winner:        winner,
		WinnerIndex:   index,
		FinalizeDueAt: due,
	}, nil
}

// score 返回得分；报名不合格时返回非空的 reason
func (s *BattleService) score(ctx context.Context, tx *gorm.DB, entry *model.QueueEntry) (decimal.Decimal, string, error) {
	crewTemplateID, found, err := s.custody.Lookup(ctx, entry.Player, entry.CrewID)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("查询资产托管失败: asset=%d: %w", entry.CrewID, err)
	}
	if !found {
		return decimal.Zero, fmt.Sprintf("crew %d no longer owned", entry.CrewID), nil
	}
	weaponTemplateID, found, err := s.custody.Lookup(ctx, entry.Player, entry.WeaponID)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("查询资产托管失败: asset=%d: %w", entry.WeaponID, err)
	}
	if !found {
		return decimal.Zero, fmt.Sprintf("weapon %d no longer owned", entry.WeaponID), nil
	}

	crew, err := s.templateRepo.GetCrew(ctx, tx, crewTemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return decimal.Zero, fmt.Sprintf("crew template %d not configured", crewTemplateID), nil
		}
		return decimal.Zero, "", err
	}
	weapon, err := s.templateRepo.GetWeapon(ctx, tx, weaponTemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return decimal.Zero, fmt.Sprintf("weapon template %d not configured", weaponTemplateID), nil
		}
		return decimal.Zero, "", err
	}

	return Score(crew, weapon), "", nil
}

// Score 船员元素与武器类别一致时全额，否则减半
func Score(crew *model.CrewTemplate, weapon *model.WeaponTemplate) decimal.Decimal {
	base := decimal.NewFromInt(int64(crew.Attack) + int64(crew.Defense) + int64(weapon.Attack) + int64(weapon.Defense))
	if crew.Element == weapon.Class {
		return base.Mul(matchedMultiplier)
	}
	return base.Mul(unmatchedMultiplier)
}

// ComputePrize floor(cost * participants * (100 - fee) / 100)
func ComputePrize(cost int64, participants int, fee uint8) (int64, error) {
	if fee > 100 {
		return 0, Validation("fee must be between 0 and 100")
	}
	prize := decimal.NewFromInt(cost).
		Mul(decimal.NewFromInt(int64(participants))).
		Mul(decimal.NewFromInt(int64(100 - int(fee)))).
		Div(decimal.NewFromInt(100)).
		Floor()
	if prize.GreaterThan(decimal.NewFromInt(model.MaxAssetAmount)) {
		return 0, Invariant("prize overflows asset range")
	}
	return prize.IntPart(), nil
}

func (s *BattleService) finalize(ctx context.Context, u *Unit, battleID uint64, winner string) (*FinalizeResult, error) {
	battle, err := s.battleRepo.Get(ctx, u.Tx, battleID)
	if err != nil {
		if errors.Is(err, repository.ErrBattleNotFound) {
			return nil, NotFound("battle not found")
		}
		return nil, err
	}
	switch battle.Status {
	case model.BattleStatusFinalized:
		return nil, Validation("battle %d already finalized", battleID)
	case model.BattleStatusCancelled:
		return nil, Validation("battle %d was cancelled", battleID)
	}

	arena, err := s.arenaRepo.Get(ctx, u.Tx, battle.Arena)
	if err != nil {
		if errors.Is(err, repository.ErrArenaNotFound) {
			return nil, NotFound("arena not found")
		}
		return nil, err
	}
	if !battle.IsContender(winner) {
		return nil, Validation("%s is not a contender of battle %d", winner, battleID)
	}

	// 按竞技场当前的报名费和抽成计算，不用 battle.EntryAmount 快照
	prizeAmount, err := ComputePrize(arena.CostAmount, len(battle.Players), arena.Fee)
	if err != nil {
		return nil, err
	}
	prize := model.NewAsset(prizeAmount, arena.CostSymbol)

	err = s.battleRepo.UpdateStatus(ctx, u.Tx, battle.ID, model.BattleStatusResolved, model.BattleStatusFinalized, map[string]interface{}{
		"winner":       winner,
		"prize":        prizeAmount,
		"finalized_at": u.Now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrBattleStatusInvalid) {
			return nil, Validation("battle %d already finalized", battleID)
		}
		return nil, fmt.Errorf("更新对战状态失败: %w", err)
	}

	ref := fmt.Sprintf("battle:%d", battle.ID)
	switch s.cfg.Engine.PrizePayout {
	case config.PayoutTransfer:
		req := model.TransferRequest{
			To:       winner,
			Quantity: prize.String(),
			Memo:     s.cfg.Engine.Self + " prize",
		}
		if err := s.outboxRepo.CreateTransfer(ctx, u.Tx, s.cfg.Kafka.Topic.TransferRequest, ref, req); err != nil {
			return nil, fmt.Errorf("写入消息失败: %w", err)
		}
		if err := s.treasuryRepo.Adjust(ctx, u.Tx, s.cfg.Engine.Symbol, -prizeAmount); err != nil {
			if errors.Is(err, repository.ErrTreasuryUnderflow) {
				return nil, Invariant("prize %s exceeds held funds", prize)
			}
			return nil, err
		}
	default:
		if _, err := s.ledger.Credit(ctx, u.Tx, winner, prizeAmount, model.TransactionTypePrize, ref, "对战奖金"); err != nil {
			return nil, err
		}
	}

	if err := s.accountRepo.IncrementWinCount(ctx, u.Tx, winner); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, NotFound("user is not registered")
		}
		return nil, err
	}

	log.Printf("[Finalize] 对战结算完成: battle=%d, winner=%s, prize=%s, payout=%s",
		battle.ID, winner, prize, s.cfg.Engine.PrizePayout)

	return &FinalizeResult{
		BattleID: battle.ID,
		Winner:   winner,
		Prize:    prize.String(),
		Payout:   s.cfg.Engine.PrizePayout,
	}, nil
}
