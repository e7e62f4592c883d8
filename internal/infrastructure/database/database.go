package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"arenasettle/internal/config"
	"arenasettle/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 按配置的 driver 建立连接，不做迁移
func Open(cfg *config.DatabaseConfig, logLevel logger.LogLevel) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(cfg.SQLite.Path, gormCfg)
	case "mysql":
		return openMySQL(&cfg.MySQL, gormCfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openMySQL(cfg *config.MySQLConfig, gormCfg *gorm.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// OpenSQLite 单文件数据库，本地开发和测试使用
// 只保留一个连接：引擎本身就是单写者，也避免 SQLITE_BUSY
func OpenSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// Migrate 自动迁移表结构
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Account{},
		&model.Treasury{},
		&model.AccountTransaction{},
		&model.Arena{},
		&model.WeaponTemplate{},
		&model.CrewTemplate{},
		&model.StakedWeapon{},
		&model.StakedCrew{},
		&model.QueueEntry{},
		&model.Battle{},
		&model.WorkItem{},
		&model.OutboxMessage{},
	)
}

// InitDatabase 初始化数据库连接并迁移，失败直接退出
func InitDatabase(cfg *config.DatabaseConfig) *gorm.DB {
	db, err := Open(cfg, logger.Warn)
	if err != nil {
		log.Fatalf("连接数据库失败: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("自动迁移表结构失败: %v", err)
	}

	log.Printf("数据库连接成功: driver=%s", cfg.Driver)
	return db
}
