package handler

import (
	"context"
	"strconv"

	"arenasettle/internal/job"
	"arenasettle/internal/model"
	"arenasettle/internal/service"
	"arenasettle/pkg/response"

	"github.com/gin-gonic/gin"
)

// StuckScanner 巡检未结算的对战，job.StuckBattleJob 实现
type StuckScanner interface {
	Scan(ctx context.Context) []job.StuckBattle
}

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	ledger  *service.LedgerService
	staking *service.StakingService
	queue   *service.QueueService
	battle  *service.BattleService
	admin   *service.AdminService
	stuck   StuckScanner
}

// NewHandler 创建处理器实例
func NewHandler(svc *service.Services, stuck StuckScanner) *Handler {
	return &Handler{
		ledger:  svc.Ledger,
		staking: svc.Staking,
		queue:   svc.Queue,
		battle:  svc.Battle,
		admin:   svc.Admin,
		stuck:   stuck,
	}
}

// fail 按错误类别返回对应的错误码
func fail(c *gin.Context, err error) {
	switch service.KindOf(err) {
	case service.KindAuthorization:
		response.Forbidden(c, err.Error())
	case service.KindNotFound:
		response.NotFound(c, err.Error())
	case service.KindValidation:
		response.ParamError(c, err.Error())
	case service.KindInvariant:
		response.BusinessError(c, response.CodeInvariantViolation, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// ============================================================
// 账户相关接口
// ============================================================

type RegisterRequest struct {
	Player string `json:"player" binding:"required"`
}

// Register 注册账户
// POST /api/v1/account/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.ledger.Register(c.Request.Context(), principal(c), req.Player)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, account)
}

// GetAccount 查询账户
// GET /api/v1/account/detail?player=xxx
func (h *Handler) GetAccount(c *gin.Context) {
	player := c.Query("player")
	if player == "" {
		response.ParamError(c, "player 参数不能为空")
		return
	}

	account, err := h.ledger.GetAccount(c.Request.Context(), player)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"player":       account.Player,
		"balance":      model.NewAsset(account.Balance, account.Symbol).String(),
		"battle_count": account.BattleCount,
		"win_count":    account.WinCount,
	})
}

// ListTransactions 查询账户流水
// GET /api/v1/account/transactions?player=xxx&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	player := c.Query("player")
	if player == "" {
		response.ParamError(c, "player 参数不能为空")
		return
	}
	page, pageSize := pageParams(c)

	list, total, err := h.ledger.ListTransactions(c.Request.Context(), player, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type WithdrawRequest struct {
	Player   string `json:"player" binding:"required"`
	Quantity string `json:"quantity" binding:"required"` // "10.0000 TLM"
}

// Withdraw 提现
// POST /api/v1/account/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	trans, err := h.ledger.Withdraw(c.Request.Context(), principal(c), req.Player, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, trans)
}

// ============================================================
// 质押相关接口
// ============================================================

type StakeRequest struct {
	Owner    string   `json:"owner" binding:"required"`
	AssetIDs []uint64 `json:"asset_ids" binding:"required,min=1"`
}

// StakeWeapons POST /api/v1/stake/weapons
func (h *Handler) StakeWeapons(c *gin.Context) {
	h.stake(c, h.staking.StakeWeapons)
}

// StakeCrews POST /api/v1/stake/crews
func (h *Handler) StakeCrews(c *gin.Context) {
	h.stake(c, h.staking.StakeCrews)
}

// UnstakeWeapons POST /api/v1/unstake/weapons
func (h *Handler) UnstakeWeapons(c *gin.Context) {
	h.stake(c, h.staking.UnstakeWeapons)
}

// UnstakeCrews POST /api/v1/unstake/crews
func (h *Handler) UnstakeCrews(c *gin.Context) {
	h.stake(c, h.staking.UnstakeCrews)
}

func (h *Handler) stake(c *gin.Context, fn func(ctx context.Context, caller, owner string, ids []uint64) error) {
	var req StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := fn(c.Request.Context(), principal(c), req.Owner, req.AssetIDs); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"owner":     req.Owner,
		"asset_ids": req.AssetIDs,
	})
}

// ListStakes GET /api/v1/stake/list?owner=xxx
func (h *Handler) ListStakes(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		response.ParamError(c, "owner 参数不能为空")
		return
	}

	view, err := h.staking.ListStakes(c.Request.Context(), owner)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, view)
}

// ============================================================
// 报名与对战接口
// ============================================================

// Enter 报名竞技场
// POST /api/v1/queue/enter
func (h *Handler) Enter(c *gin.Context) {
	var req service.EnterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.queue.Enter(c.Request.Context(), principal(c), &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// ListQueue GET /api/v1/queue/list?player=xxx
func (h *Handler) ListQueue(c *gin.Context) {
	player := c.Query("player")
	if player == "" {
		response.ParamError(c, "player 参数不能为空")
		return
	}

	entries, err := h.queue.ListQueue(c.Request.Context(), player)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, entries)
}

// GetBattle GET /api/v1/battle/detail?battle_id=1
func (h *Handler) GetBattle(c *gin.Context) {
	battleID, err := strconv.ParseUint(c.Query("battle_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "battle_id 参数错误")
		return
	}

	battle, err := h.battle.GetBattle(c.Request.Context(), battleID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, battle)
}

// ListBattles GET /api/v1/battle/list?arena=xxx&page=1&page_size=20
func (h *Handler) ListBattles(c *gin.Context) {
	page, pageSize := pageParams(c)

	list, total, err := h.battle.ListBattles(c.Request.Context(), c.Query("arena"), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListArenas GET /api/v1/arena/list
func (h *Handler) ListArenas(c *gin.Context) {
	arenas, err := h.admin.ListArenas(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, arenas)
}

// ListTemplates GET /api/v1/template/list
func (h *Handler) ListTemplates(c *gin.Context) {
	weapons, crews, err := h.admin.ListTemplates(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"weapons": weapons,
		"crews":   crews,
	})
}
