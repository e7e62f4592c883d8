package handler

import (
	"arenasettle/internal/model"
	"arenasettle/internal/service"
	"arenasettle/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 管理接口：调用方必须是引擎自身（X-Admin-Token）
// ============================================================

// SetArena POST /api/v1/admin/arena/set
func (h *Handler) SetArena(c *gin.Context) {
	var req service.SetArenaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	arena, err := h.admin.SetArena(c.Request.Context(), principal(c), &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, arena)
}

// RemoveArena POST /api/v1/admin/arena/remove
func (h *Handler) RemoveArena(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.admin.RemoveArena(c.Request.Context(), principal(c), req.Name); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"name": req.Name})
}

// SetWeaponTemplate POST /api/v1/admin/template/weapon/set
func (h *Handler) SetWeaponTemplate(c *gin.Context) {
	var req model.WeaponTemplate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.admin.SetWeaponTemplate(c.Request.Context(), principal(c), &req); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, req)
}

// SetCrewTemplate POST /api/v1/admin/template/crew/set
func (h *Handler) SetCrewTemplate(c *gin.Context) {
	var req model.CrewTemplate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.admin.SetCrewTemplate(c.Request.Context(), principal(c), &req); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, req)
}

type templateIDRequest struct {
	TemplateID uint64 `json:"template_id" binding:"required"`
}

// RemoveWeaponTemplate POST /api/v1/admin/template/weapon/remove
func (h *Handler) RemoveWeaponTemplate(c *gin.Context) {
	var req templateIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.admin.RemoveWeaponTemplate(c.Request.Context(), principal(c), req.TemplateID); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, req)
}

// RemoveCrewTemplate POST /api/v1/admin/template/crew/remove
func (h *Handler) RemoveCrewTemplate(c *gin.Context) {
	var req templateIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.admin.RemoveCrewTemplate(c.Request.Context(), principal(c), req.TemplateID); err != nil {
		fail(c, err)
		return
	}

	response.Success(c, req)
}

// Reset POST /api/v1/admin/reset
func (h *Handler) Reset(c *gin.Context) {
	result, err := h.admin.Reset(c.Request.Context(), principal(c))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

type ResolveRequest struct {
	Arena string `json:"arena" binding:"required"`
}

// ResolveBattle 手动开战
// POST /api/v1/admin/battle/resolve
func (h *Handler) ResolveBattle(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.battle.Resolve(c.Request.Context(), principal(c), req.Arena)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

type FinalizeRequest struct {
	BattleID uint64 `json:"battle_id" binding:"required"`
	Winner   string `json:"winner" binding:"required"`
}

// FinalizeBattle 手动结算
// POST /api/v1/admin/battle/finalize
func (h *Handler) FinalizeBattle(c *gin.Context) {
	var req FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.battle.Finalize(c.Request.Context(), principal(c), req.BattleID, req.Winner)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBattle 取消未结算的对战并退还报名费
// POST /api/v1/admin/battle/cancel
func (h *Handler) CancelBattle(c *gin.Context) {
	var req struct {
		BattleID uint64 `json:"battle_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.admin.CancelBattle(c.Request.Context(), principal(c), req.BattleID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, result)
}

// StuckBattles GET /api/v1/admin/battle/stuck
func (h *Handler) StuckBattles(c *gin.Context) {
	if !isEngine(c) {
		response.Forbidden(c, "missing admin authority")
		return
	}
	if h.stuck == nil {
		response.Success(c, []interface{}{})
		return
	}

	response.Success(c, h.stuck.Scan(c.Request.Context()))
}

// Treasury GET /api/v1/admin/treasury
func (h *Handler) Treasury(c *gin.Context) {
	if !isEngine(c) {
		response.Forbidden(c, "missing admin authority")
		return
	}

	treasury, err := h.ledger.Treasury(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"held":    model.NewAsset(treasury.Held, treasury.Symbol).String(),
		"updated": treasury.UpdatedAt,
	})
}

// TransferNotify 代币转账服务的入账回调，与 Kafka 通知等价
// POST /api/v1/admin/transfer/notify
func (h *Handler) TransferNotify(c *gin.Context) {
	if !isEngine(c) {
		response.Forbidden(c, "missing admin authority")
		return
	}

	var req model.TransferNotification
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	applied, err := h.ledger.Deposit(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"applied": applied})
}
