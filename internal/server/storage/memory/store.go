package memory

import (
	"context"
	"fmt"
	"sync"

	"tunnelwatch/internal/server/storage"
	"tunnelwatch/pkg/model"
)

const DefaultCapacity = 1000

// Store 是固定容量的内存环形缓冲，写满后覆盖最旧的记录。
type Store struct {
	mu    sync.RWMutex
	buf   []model.LogEntry
	head  int
	count int
	byID  map[string]int
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		buf:  make([]model.LogEntry, capacity),
		byID: make(map[string]int, capacity),
	}
}

func (s *Store) Insert(ctx context.Context, e *model.LogEntry) error {
	if e == nil {
		return fmt.Errorf("logEntry 为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == len(s.buf) {
		delete(s.byID, s.buf[s.head].ID)
	} else {
		s.count++
	}
	s.buf[s.head] = *e
	if e.ID != "" {
		s.byID[e.ID] = s.head
	}
	s.head = (s.head + 1) % len(s.buf)
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]model.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.LogEntry, n)
	start := s.head - n
	if start < 0 {
		start += len(s.buf)
	}
	for i := 0; i < n; i++ {
		out[i] = s.buf[(start+i)%len(s.buf)]
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (model.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.byID[id]; ok {
		return s.buf[i], nil
	}
	return model.LogEntry{}, storage.ErrNotFound
}

func (s *Store) Close() error { return nil }

var _ storage.Store = (*Store)(nil)
