package handler

import (
	"arenasettle/internal/config"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())
	r.Use(PrincipalMiddleware(&cfg.Engine))

	api := r.Group("/api/v1")
	{
		account := api.Group("/account")
		{
			account.POST("/register", h.Register)
			account.GET("/detail", h.GetAccount)
			account.GET("/transactions", h.ListTransactions)
			account.POST("/withdraw", h.Withdraw)
		}

		stake := api.Group("/stake")
		{
			stake.POST("/weapons", h.StakeWeapons)
			stake.POST("/crews", h.StakeCrews)
			stake.GET("/list", h.ListStakes)
		}

		unstake := api.Group("/unstake")
		{
			unstake.POST("/weapons", h.UnstakeWeapons)
			unstake.POST("/crews", h.UnstakeCrews)
		}

		queue := api.Group("/queue")
		{
			queue.POST("/enter", h.Enter)
			queue.GET("/list", h.ListQueue)
		}

		battle := api.Group("/battle")
		{
			battle.GET("/detail", h.GetBattle)
			battle.GET("/list", h.ListBattles)
		}

		api.GET("/arena/list", h.ListArenas)
		api.GET("/template/list", h.ListTemplates)

		admin := api.Group("/admin")
		{
			admin.POST("/arena/set", h.SetArena)
			admin.POST("/arena/remove", h.RemoveArena)
			admin.POST("/template/weapon/set", h.SetWeaponTemplate)
			admin.POST("/template/weapon/remove", h.RemoveWeaponTemplate)
			admin.POST("/template/crew/set", h.SetCrewTemplate)
			admin.POST("/template/crew/remove", h.RemoveCrewTemplate)
			admin.POST("/reset", h.Reset)
			admin.POST("/battle/resolve", h.ResolveBattle)
			admin.POST("/battle/finalize", h.FinalizeBattle)
			admin.POST("/battle/cancel", h.CancelBattle)
			admin.GET("/battle/stuck", h.StuckBattles)
			admin.GET("/treasury", h.Treasury)
			admin.POST("/transfer/notify", h.TransferNotify)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
