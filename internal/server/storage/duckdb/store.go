package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/marcboeker/go-duckdb"

	"tunnelwatch/internal/server/storage"
	"tunnelwatch/pkg/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Store struct {
	db   *sql.DB
	ins  *sql.Stmt
	path string
}

func NewStore(path string) (*Store, error) {
	// DuckDB 单文件嵌入，适合在本地长期保存请求记录做事后分析。
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("打开 DuckDB 失败：%w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	ddl := `
CREATE TABLE IF NOT EXISTS request_logs (
	id        VARCHAR,
	subdomain VARCHAR,
	method    VARCHAR,
	path      VARCHAR,
	status    INTEGER,
	headers   VARCHAR,
	body      VARCHAR,
	timestamp TIMESTAMP
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("建表失败：%w", err)
	}

	stmt, err := s.db.Prepare(`
INSERT INTO request_logs (
	id, subdomain, method, path, status, headers, body, timestamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return fmt.Errorf("准备插入语句失败：%w", err)
	}
	s.ins = stmt
	return nil
}

func (s *Store) Insert(ctx context.Context, e *model.LogEntry) error {
	if e == nil {
		return fmt.Errorf("logEntry 为空")
	}
	headers, err := json.Marshal(e.Headers)
	if err != nil {
		return fmt.Errorf("序列化 headers 失败：%w", err)
	}
	_, err = s.ins.ExecContext(ctx,
		e.ID,
		e.Subdomain,
		e.Method,
		e.Path,
		e.Status,
		string(headers),
		e.Body,
		e.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("插入失败：%w", err)
	}
	return nil
}

const selectColumns = `id, subdomain, method, path, status, headers, body, timestamp`

func (s *Store) Recent(ctx context.Context, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = storage.DefaultLimit
	}

	// 子查询取最近 limit 条，外层按时间正序返回。
	rows, err := s.db.QueryContext(ctx, `
SELECT `+selectColumns+` FROM (
	SELECT `+selectColumns+`
	FROM request_logs
	ORDER BY timestamp DESC
	LIMIT ?
) ORDER BY timestamp ASC;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询失败：%w", err)
	}
	defer rows.Close()

	out := make([]model.LogEntry, 0, 64)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历结果失败：%w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (model.LogEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM request_logs WHERE id = ? LIMIT 1;`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LogEntry{}, storage.ErrNotFound
	}
	return e, err
}

// PurgeBefore 删除时间早于 cutoffMS（毫秒级 epoch）的记录。
func (s *Store) PurgeBefore(ctx context.Context, cutoffMS int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM request_logs WHERE timestamp < ?;`, time.UnixMilli(cutoffMS).UTC())
	if err != nil {
		return 0, fmt.Errorf("清理过期记录失败：%w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (model.LogEntry, error) {
	var (
		e       model.LogEntry
		headers sql.NullString
	)
	if err := sc.Scan(&e.ID, &e.Subdomain, &e.Method, &e.Path, &e.Status, &headers, &e.Body, &e.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("读取行失败：%w", err)
	}
	if headers.Valid && headers.String != "" && headers.String != "null" {
		if err := json.Unmarshal([]byte(headers.String), &e.Headers); err != nil {
			return e, fmt.Errorf("解析 headers 失败：%w", err)
		}
	}
	return e, nil
}

func (s *Store) Close() error {
	var firstErr error
	if s.ins != nil {
		if err := s.ins.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Purger = (*Store)(nil)
)
