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

	"gorm.io/gorm"
)

// LedgerService 玩家内部账本：注册、充值入账、提现，以及供其它服务使用的记账原语
type LedgerService struct {
	engine          *Engine
	cfg             *config.Config
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	treasuryRepo    *repository.TreasuryRepository
	outboxRepo      *repository.OutboxRepository
}

func NewLedgerService(engine *Engine, cfg *config.Config) *LedgerService {
	db := engine.DB()
	s := &LedgerService{
		engine:          engine,
		cfg:             cfg,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		treasuryRepo:    repository.NewTreasuryRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
	engine.AddCheck(s.CheckConservation)
	return s
}

func (s *LedgerService) Register(ctx context.Context, caller, player string) (*model.Account, error) {
	if err := requireAuth(caller, player); err != nil {
		return nil, err
	}
	if player == "" || len(player) > 32 {
		return nil, Validation("invalid player name")
	}

	account := &model.Account{
		Player: player,
		Symbol: s.cfg.Engine.Symbol,
	}
	err := s.engine.Run(ctx, "register", func(u *Unit) error {
		if err := s.accountRepo.Create(ctx, u.Tx, account); err != nil {
			if errors.Is(err, repository.ErrAccountExists) {
				return Validation("user is already registered")
			}
			return fmt.Errorf("创建账户失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("账户注册成功: player=%s", player)
	return account, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, player string) (*model.Account, error) {
	account, err := s.accountRepo.GetByPlayer(ctx, nil, player)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, NotFound("user is not registered")
		}
		return nil, err
	}
	return account, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, player string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.transactionRepo.ListByPlayer(ctx, player, page, pageSize)
}

func (s *LedgerService) Treasury(ctx context.Context) (*model.Treasury, error) {
	return s.treasuryRepo.GetOrCreate(ctx, nil, s.cfg.Engine.Symbol)
}

// Deposit 处理转入通知。不是转给自己的、自己转出的、memo 不是充值的、重复的通知直接忽略，返回 false
func (s *LedgerService) Deposit(ctx context.Context, n model.TransferNotification) (bool, error) {
	self := s.cfg.Engine.Self
	if n.To != self || n.From == self {
		return false, nil
	}
	if n.Memo != s.cfg.Engine.DepositMemo {
		log.Printf("忽略非充值转账: from=%s, quantity=%s, memo=%q", n.From, n.Quantity, n.Memo)
		return false, nil
	}

	quantity, err := s.parseQuantity(n.Quantity)
	if err != nil {
		return false, err
	}

	ref := "transfer:" + n.From
	if n.ID != "" {
		ref = "transfer:" + n.ID
	}

	duplicate := false
	err = s.engine.Run(ctx, "deposit", func(u *Unit) error {
		if n.ID != "" {
			existing, err := s.transactionRepo.ListByRef(ctx, u.Tx, ref)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				duplicate = true
				return nil
			}
		}
		if _, err := s.Credit(ctx, u.Tx, n.From, quantity.Amount, model.TransactionTypeDeposit, ref, "充值"); err != nil {
			return err
		}
		return s.treasuryRepo.Adjust(ctx, u.Tx, s.cfg.Engine.Symbol, quantity.Amount)
	})
	if err != nil {
		return false, err
	}
	if duplicate {
		log.Printf("重复的充值通知，已忽略: id=%s, player=%s", n.ID, n.From)
		return false, nil
	}

	log.Printf("充值入账: player=%s, quantity=%s", n.From, quantity)
	return true, nil
}

// Withdraw 从内部余额扣款，并在同一事务写入出账转账请求
func (s *LedgerService) Withdraw(ctx context.Context, caller, player, quantityStr string) (*model.AccountTransaction, error) {
	if err := requireAuth(caller, player); err != nil {
		return nil, err
	}
	quantity, err := s.parseQuantity(quantityStr)
	if err != nil {
		return nil, err
	}

	var trans *model.AccountTransaction
	err = s.engine.Run(ctx, "withdraw", func(u *Unit) error {
		account, err := s.accountRepo.GetByPlayer(ctx, u.Tx, player)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return NotFound("user is not registered")
			}
			return err
		}
		if account.Balance < quantity.Amount {
			return Validation("overdrawn balance")
		}

		trans, err = s.Debit(ctx, u.Tx, account, quantity.Amount, model.TransactionTypeWithdraw, "withdraw", "提现")
		if err != nil {
			return err
		}
		if err := s.treasuryRepo.Adjust(ctx, u.Tx, s.cfg.Engine.Symbol, -quantity.Amount); err != nil {
			return fmt.Errorf("调整托管余额失败: %w", err)
		}

		req := model.TransferRequest{
			To:       player,
			Quantity: quantity.String(),
			Memo:     s.cfg.Engine.Self + " withdraw",
		}
		if err := s.outboxRepo.CreateTransfer(ctx, u.Tx, s.cfg.Kafka.Topic.TransferRequest, trans.TransactionNo, req); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("提现成功: player=%s, quantity=%s", player, quantity)
	return trans, nil
}

// Credit 入账并记流水，必须在工作单元内调用
func (s *LedgerService) Credit(ctx context.Context, tx *gorm.DB, player string, amount int64, txType, ref, remark string) (*model.AccountTransaction, error) {
	account, err := s.accountRepo.GetByPlayer(ctx, tx, player)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, NotFound("user is not registered")
		}
		return nil, err
	}
	if account.Balance+amount > model.MaxAssetAmount {
		return nil, Invariant("balance of %s would overflow", player)
	}

	if err := s.accountRepo.Increase(ctx, tx, player, amount); err != nil {
		return nil, fmt.Errorf("入账失败: %w", err)
	}
	return s.journal(ctx, tx, account, amount, txType, ref, remark)
}

// Debit 扣款并记流水，必须在工作单元内调用
func (s *LedgerService) Debit(ctx context.Context, tx *gorm.DB, account *model.Account, amount int64, txType, ref, remark string) (*model.AccountTransaction, error) {
	if err := s.accountRepo.Deduct(ctx, tx, account.Player, amount, account.Version); err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			return nil, Validation("overdrawn balance")
		}
		return nil, fmt.Errorf("扣款失败: %w", err)
	}
	return s.journal(ctx, tx, account, -amount, txType, ref, remark)
}

func (s *LedgerService) journal(ctx context.Context, tx *gorm.DB, account *model.Account, amount int64, txType, ref, remark string) (*model.AccountTransaction, error) {
	trans := &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		Player:        account.Player,
		Ref:           ref,
		Amount:        amount,
		Type:          txType,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance + amount,
		Remark:        remark,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}
	return trans, nil
}

// CheckConservation 所有内部余额之和不能超过实际持有量
func (s *LedgerService) CheckConservation(ctx context.Context, tx *gorm.DB) error {
	total, err := s.accountRepo.SumBalances(ctx, tx)
	if err != nil {
		return fmt.Errorf("汇总余额失败: %w", err)
	}
	treasury, err := s.treasuryRepo.GetOrCreate(ctx, tx, s.cfg.Engine.Symbol)
	if err != nil {
		return fmt.Errorf("读取托管余额失败: %w", err)
	}
	if total > treasury.Held {
		return Invariant("sum of balances %d exceeds held %d", total, treasury.Held)
	}
	return nil
}

func (s *LedgerService) parseQuantity(str string) (model.Asset, error) {
	quantity, err := model.ParseAsset(str)
	if err != nil {
		return model.Asset{}, Validation("invalid quantity")
	}
	if quantity.Symbol != s.cfg.Engine.Symbol {
		return model.Asset{}, Validation("invalid symbol")
	}
	if quantity.Amount <= 0 {
		return model.Asset{}, Validation("quantity must be positive")
	}
	return quantity, nil
}
