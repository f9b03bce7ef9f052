package repository

import (
	"fmt"
	"time"

	"github.com/blues/ideafund/internal/config"
	"github.com/blues/ideafund/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Init 连接 postgres，配置连接池并迁移 idea / investment 表
func Init(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig(cfg.LogLevel, time.Duration(cfg.SlowThreshold)*time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func gormConfig(logLevel string, slow time.Duration) *gorm.Config {
	return &gorm.Config{
		Logger: newGormLogger(logLevel, slow),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true, // 禁用复数表名
		},
		// 唯一键冲突转换为 gorm.ErrDuplicatedKey
		TranslateError: true,
	}
}

// Migrate 迁移 idea / investment 表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.IdeaModel{}, &model.InvestmentModel{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
