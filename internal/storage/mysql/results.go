package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"AutoAgent/internal/storage"
	"AutoAgent/pkg/logger"
)

// Config 描述 MySQL 连接池参数。
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ResultStore 把已完成任务列表保存在 task_results 表中，position 记录顺序。
type ResultStore struct {
	db  *sql.DB
	log *slog.Logger
}

var _ storage.Store = (*ResultStore)(nil)

// Open 建立连接池并把 task_results 升级到嵌入的最新结构版本。
func Open(ctx context.Context, cfg Config) (*ResultStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := &ResultStore{db: db, log: logger.Named("storage.mysql")}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

const (
	selectResultsSQL = `SELECT task, result FROM task_results ORDER BY position ASC`
	deleteResultsSQL = `DELETE FROM task_results`
	insertResultSQL  = `INSERT INTO task_results (position, task, result) VALUES (?, ?, ?)`
)

// Load 按顺序读取完整历史。
func (s *ResultStore) Load(ctx context.Context) ([]storage.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectResultsSQL)
	if err != nil {
		return nil, fmt.Errorf("查询任务结果失败: %w", err)
	}
	defer rows.Close()

	var records []storage.Record
	for rows.Next() {
		var record storage.Record
		if err := rows.Scan(&record.Task, &record.Result); err != nil {
			return nil, fmt.Errorf("解析任务结果失败: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历任务结果失败: %w", err)
	}
	return records, nil
}

// Save 在一个事务内清空并按顺序重新写入完整列表。
func (s *ResultStore) Save(ctx context.Context, records []storage.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}

	if _, err := tx.ExecContext(ctx, deleteResultsSQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("清空任务结果失败: %w", err)
	}
	for idx, record := range records {
		if _, err := tx.ExecContext(ctx, insertResultSQL, int64(idx), record.Task, record.Result); err != nil {
			tx.Rollback()
			return fmt.Errorf("写入第 %d 条任务结果失败: %w", idx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// Close 关闭底层数据库连接。
func (s *ResultStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
