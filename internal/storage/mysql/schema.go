package mysql

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"AutoAgent/deploy/migrations"
	"AutoAgent/pkg/logger"
)

const (
	createSchemaVersionSQL = `CREATE TABLE IF NOT EXISTS task_results_schema (version INT NOT NULL PRIMARY KEY, applied_at BIGINT NOT NULL)`
	currentVersionSQL      = `SELECT COALESCE(MAX(version), 0) FROM task_results_schema`
	recordVersionSQL       = `INSERT INTO task_results_schema (version, applied_at) VALUES (?, ?)`
)

// schemaStep 是 task_results 表的一次结构变更，每个文件只含一条 DDL。
type schemaStep struct {
	version int
	file    string
	ddl     string
}

// ensureSchema 把 task_results 升级到嵌入的最新版本，已应用的步骤会被跳过。
func (s *ResultStore) ensureSchema(ctx context.Context) error {
	steps, err := schemaSteps(migrations.Files)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, createSchemaVersionSQL); err != nil {
		return fmt.Errorf("创建结果表版本记录失败: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, currentVersionSQL).Scan(&current); err != nil {
		return fmt.Errorf("读取结果表版本失败: %w", err)
	}

	for _, step := range steps {
		if step.version <= current {
			continue
		}
		if err := s.applyStep(ctx, step); err != nil {
			return err
		}
		s.logger().Info("结果表已升级", slog.Int("version", step.version), slog.String("file", step.file))
	}
	return nil
}

// applyStep 在同一事务中执行 DDL 并记录版本。
func (s *ResultStore) applyStep(ctx context.Context, step schemaStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启结果表升级事务失败: %w", err)
	}
	if _, err := tx.ExecContext(ctx, step.ddl); err != nil {
		tx.Rollback()
		return fmt.Errorf("升级结果表到版本 %d 失败: %w", step.version, err)
	}
	if _, err := tx.ExecContext(ctx, recordVersionSQL, step.version, time.Now().Unix()); err != nil {
		tx.Rollback()
		return fmt.Errorf("记录结果表版本 %d 失败: %w", step.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交结果表升级失败: %w", err)
	}
	return nil
}

func (s *ResultStore) logger() *slog.Logger {
	if s.log == nil {
		return logger.Discard()
	}
	return s.log
}

// schemaSteps 读取 NNNN_name.sql 文件并按版本升序返回。
func schemaSteps(files fs.FS) ([]schemaStep, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("列出结果表 DDL 失败: %w", err)
	}

	steps := make([]schemaStep, 0, len(names))
	for _, name := range names {
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("DDL 文件名缺少版本前缀: %s", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("DDL 文件版本无效: %s", name)
		}
		content, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, fmt.Errorf("读取 DDL 文件 %s 失败: %w", name, err)
		}
		ddl := strings.TrimSuffix(strings.TrimSpace(string(content)), ";")
		if ddl == "" {
			return nil, fmt.Errorf("DDL 文件为空: %s", name)
		}
		steps = append(steps, schemaStep{version: version, file: name, ddl: ddl})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}
