// Package storage 提供 database/sql 连接的最小封装
//
// 调用方必须确保所配置的 Driver 已通过空导入注册（例如
// `_ "modernc.org/sqlite"`），本层只负责连接池配置和可用性检查。
package storage

import (
	"context"
	"database/sql"
	"time"

	"taskmq/errors"
)

// DBConfig 数据库连接配置
type DBConfig struct {
	// Driver 驱动名（默认："sqlite"）
	Driver string

	// DSN 数据源名称
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// PingTimeout 启动可用性检查超时（默认：3s）
	PingTimeout time.Duration
}

// Open 建立数据库连接并验证可用性
func Open(cfg DBConfig) (*sql.DB, error) {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 3 * time.Second
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "open database")
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "ping database")
	}
	return db, nil
}
