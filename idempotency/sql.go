package idempotency

import (
	"context"
	"database/sql"
	"time"

	"taskmq/errors"
)

// SQLStore 基于关系数据库的幂等性存储
//
// 处理记录持久化到 processed_requests 表，进程重启后仍然有效。
// Mark 使用 INSERT ... ON CONFLICT DO NOTHING，重复标记不报错。
// 过期记录由 Purge 删除，调用方可按保留窗口定期执行。
type SQLStore struct {
	db    *sql.DB
	table string
}

// SQLConfig SQL 存储配置
type SQLConfig struct {
	DB *sql.DB

	// Table 表名（默认："processed_requests"）
	Table string
}

// NewSQLStore 创建 SQL 幂等性存储
func NewSQLStore(cfg SQLConfig) *SQLStore {
	if cfg.Table == "" {
		cfg.Table = "processed_requests"
	}
	return &SQLStore{db: cfg.DB, table: cfg.Table}
}

// EnsureTable 创建记录表（不存在时）
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			request_id   TEXT PRIMARY KEY,
			processed_at TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "create idempotency table failed")
	}
	return nil
}

// Seen 检查请求是否已处理
func (s *SQLStore) Seen(ctx context.Context, requestID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM `+s.table+` WHERE request_id = ?`, requestID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "idempotency check failed")
	}
	return true, nil
}

// Mark 标记请求已处理
func (s *SQLStore) Mark(ctx context.Context, requestID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (request_id, processed_at) VALUES (?, ?)
		 ON CONFLICT (request_id) DO NOTHING`,
		requestID, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "idempotency mark failed")
	}
	return nil
}

// Purge 删除早于指定时刻的记录，返回删除条数
func (s *SQLStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM `+s.table+` WHERE processed_at < ?`, before.UTC())
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "idempotency purge failed")
	}
	return res.RowsAffected()
}

var _ Store = (*SQLStore)(nil)
