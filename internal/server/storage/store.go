package storage

import (
	"context"
	"errors"

	"tunnelwatch/pkg/model"
)

// ErrNotFound 表示按 id 查询的记录不存在。
var ErrNotFound = errors.New("记录不存在")

// DefaultLimit 和 MaxLimit 限制一次历史查询返回的条数。
const (
	DefaultLimit = 1000
	MaxLimit     = 5000
)

type Store interface {
	Insert(ctx context.Context, e *model.LogEntry) error
	// Recent 返回最近的 limit 条记录，顺序为从旧到新。
	Recent(ctx context.Context, limit int) ([]model.LogEntry, error)
	Get(ctx context.Context, id string) (model.LogEntry, error)
	Close() error
}

// Purger 由支持按时间清理的后端实现。
type Purger interface {
	PurgeBefore(ctx context.Context, cutoffMS int64) (int64, error)
}
