package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"arenasettle/internal/config"

	"github.com/go-redis/redis/v8"
)

// InitRedis 未启用时返回 nil，引擎退化为进程内锁
func InitRedis(cfg *config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		log.Println("Redis 未启用，使用进程内引擎锁")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("连接 Redis 失败: %v", err)
	}

	log.Println("Redis 连接成功")
	return client
}
