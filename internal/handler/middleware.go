package handler

import (
	"crypto/subtle"
	"log"
	"time"

	"arenasettle/internal/config"

	"github.com/gin-gonic/gin"
)

const (
	HeaderPrincipal  = "X-Principal"
	HeaderAdminToken = "X-Admin-Token"

	principalKey = "principal"
	engineKey    = "is_engine"
)

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		// 记录日志
		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID, X-Principal, X-Admin-Token")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// PrincipalMiddleware 识别调用方
// 管理令牌正确时调用方就是引擎自身，否则取 X-Principal（由前置网关完成签名校验）
func PrincipalMiddleware(cfg *config.EngineConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(HeaderAdminToken)
		if cfg.AdminToken != "" && token != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AdminToken)) == 1 {
			c.Set(principalKey, cfg.Self)
			c.Set(engineKey, true)
		} else if p := c.GetHeader(HeaderPrincipal); p != "" && p != cfg.Self {
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

func principal(c *gin.Context) string {
	return c.GetString(principalKey)
}

func isEngine(c *gin.Context) bool {
	return c.GetBool(engineKey)
}
