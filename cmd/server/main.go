package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arenasettle/internal/config"
	"arenasettle/internal/custody"
	"arenasettle/internal/handler"
	"arenasettle/internal/infrastructure/cache"
	"arenasettle/internal/infrastructure/database"
	"arenasettle/internal/infrastructure/lock"
	"arenasettle/internal/infrastructure/mq"
	"arenasettle/internal/job"
	"arenasettle/internal/service"
	"arenasettle/pkg/idgen"

	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm/logger"
)

func runServer(_ context.Context, cmd *cli.Command) error {
	// 加载配置
	cfg := config.LoadConfig(cmd.String("config"))

	// 初始化 ID 生成器
	idgen.Init(cmd.Int("worker-id"))

	// 初始化数据库
	db := database.InitDatabase(&cfg.Database)

	// 初始化 Redis；启用时多个实例共用一把引擎锁
	redisClient := cache.InitRedis(&cfg.Redis)
	var locker lock.Locker = lock.NewLocalLock()
	if redisClient != nil {
		locker = lock.NewEngineLock(redisClient, cfg.Engine.Self)
	}

	clock := clockwork.NewRealClock()
	engine := service.NewEngine(db, locker, clock, &cfg.Engine)
	custodyClient := custody.NewClient(&cfg.Custody, nil)
	svc := service.NewServices(engine, cfg, custodyClient, service.TxHashRandom{})

	dispatcher := job.NewWorkDispatcher(db, svc.Battle, cfg, clock)
	engine.SetNotifier(dispatcher)

	// 初始化 Kafka
	producer := mq.InitKafka(&cfg.Kafka)
	defer producer.Close()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	go dispatcher.Start(ctx)

	outboxSender := job.NewOutboxSender(db, producer, cfg)
	go outboxSender.Start(ctx)

	stuckJob := job.NewStuckBattleJob(db, cfg, clock)
	go stuckJob.Start(ctx)

	listener := job.NewTransferListener(svc.Ledger)
	consumer, err := mq.NewConsumer(&cfg.Kafka, []string{cfg.Kafka.Topic.TransferNotify}, listener.HandleMessage)
	if err != nil {
		return fmt.Errorf("创建 Kafka 消费者失败: %w", err)
	}
	consumer.Run(ctx)
	defer consumer.Close()

	// 设置路由
	router := handler.SetupRouter(handler.NewHandler(svc, stuckJob), cfg)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
	return nil
}

func runMigrate(_ context.Context, cmd *cli.Command) error {
	cfg := config.LoadConfig(cmd.String("config"))

	db, err := database.Open(&cfg.Database, logger.Info)
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("迁移失败: %w", err)
	}

	log.Println("表结构迁移完成")
	return nil
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Value:   "config/config.yaml",
		Sources: cli.EnvVars("ARENA_CONFIG"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "arenasettle",
		Usage: "arena matchmaking and settlement engine",
		Commands: []*cli.Command{
			{
				Name: "server",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:    "worker-id",
						Value:   1,
						Sources: cli.EnvVars("ARENA_WORKER_ID"),
					},
				},
				Action: runServer,
			},
			{
				Name:   "migrate",
				Flags:  []cli.Flag{configFlag()},
				Action: runMigrate,
			},
		},
		DefaultCommand: "server",
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
