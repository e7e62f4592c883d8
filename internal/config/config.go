package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Custody  CustodyConfig  `mapstructure:"custody"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig driver 取值 mysql 或 sqlite
type DatabaseConfig struct {
	Driver string       `mapstructure:"driver"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	GroupID string           `mapstructure:"group_id"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	TransferRequest string `mapstructure:"transfer_request"`
	TransferNotify  string `mapstructure:"transfer_notify"`
}

type CustodyConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Collection     string `mapstructure:"collection"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

const (
	DispatchImmediate = "immediate"
	DispatchDelayed   = "delayed"

	PayoutLedger   = "ledger"
	PayoutTransfer = "transfer"
)

// EngineConfig 对战结算引擎参数
type EngineConfig struct {
	Self                 string `mapstructure:"self"`
	AdminToken           string `mapstructure:"admin_token"`
	Symbol               string `mapstructure:"symbol"`
	TokenContract        string `mapstructure:"token_contract"`
	DepositMemo          string `mapstructure:"deposit_memo"`
	QueueCapacity        int    `mapstructure:"queue_capacity"`
	Contenders           int    `mapstructure:"contenders"`
	DispatchMode         string `mapstructure:"dispatch_mode"`
	FinalizeDelaySeconds int    `mapstructure:"finalize_delay_seconds"`
	PollIntervalMillis   int    `mapstructure:"poll_interval_millis"`
	PrizePayout          string `mapstructure:"prize_payout"`
}

type BusinessConfig struct {
	MaxRetryCount      int `mapstructure:"max_retry_count"`
	StuckBattleMinutes int `mapstructure:"stuck_battle_minutes"`
}

// Default 返回带默认值的配置，测试和未配置项都以此为基础
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: "mysql",
			MySQL: MySQLConfig{
				Host:         "127.0.0.1",
				Port:         3306,
				User:         "root",
				Database:     "arenasettle",
				MaxOpenConns: 20,
				MaxIdleConns: 5,
			},
			SQLite: SQLiteConfig{Path: "data/arenasettle.db"},
		},
		Redis: RedisConfig{Host: "127.0.0.1", Port: 6379},
		Kafka: KafkaConfig{
			Brokers: []string{"127.0.0.1:9092"},
			GroupID: "arenasettle",
			Topic: KafkaTopicConfig{
				TransferRequest: "token_transfer_request",
				TransferNotify:  "token_transfer_notify",
			},
		},
		Custody: CustodyConfig{Collection: "alien.worlds", TimeoutSeconds: 10},
		Engine: EngineConfig{
			Self:                 "alienrumblex",
			Symbol:               "TLM",
			TokenContract:        "alien.worlds",
			DepositMemo:          "deposit",
			QueueCapacity:        8,
			Contenders:           3,
			DispatchMode:         DispatchDelayed,
			FinalizeDelaySeconds: 60,
			PollIntervalMillis:   500,
			PrizePayout:          PayoutLedger,
		},
		Business: BusinessConfig{MaxRetryCount: 5, StuckBattleMinutes: 10},
	}
}

// Validate 检查引擎参数是否自洽
func (c *Config) Validate() error {
	e := c.Engine
	if e.Self == "" {
		return fmt.Errorf("engine.self must not be empty")
	}
	if e.Contenders <= 0 || e.QueueCapacity < e.Contenders {
		return fmt.Errorf("engine.queue_capacity (%d) must be >= engine.contenders (%d) > 0", e.QueueCapacity, e.Contenders)
	}
	if e.DispatchMode != DispatchImmediate && e.DispatchMode != DispatchDelayed {
		return fmt.Errorf("unknown engine.dispatch_mode %q", e.DispatchMode)
	}
	if e.PrizePayout != PayoutLedger && e.PrizePayout != PayoutTransfer {
		return fmt.Errorf("unknown engine.prize_payout %q", e.PrizePayout)
	}
	if c.Database.Driver != "mysql" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	return nil
}

// LoadConfig 加载配置文件
// 优先级：环境变量（ARENA_ 前缀） > 配置文件 > 默认值
func LoadConfig(configPath string) *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，直接读取环境变量")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := Default()
	if err := v.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	if err := config.Validate(); err != nil {
		log.Fatalf("配置校验失败: %v", err)
	}

	return config
}
