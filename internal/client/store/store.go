package store

import "tunnelwatch/pkg/model"

// DefaultCapacity 是视图内存中最多保留的记录条数。
const DefaultCapacity = 1000

// Item 是带有到达序号的记录。序号在插入时分配、单调递增，是记录在视图中的唯一身份。
type Item struct {
	Seq   uint64
	Entry model.LogEntry
}

// Store 按到达顺序保存记录（最新在前），容量固定，超出时从尾部淘汰最旧的一条。
// 不做去重：内容相同的两条记录仍是两条。
// Store 只在事件循环里被访问，因此没有锁。
type Store struct {
	// 环形缓冲：buf[head] 是最旧的记录，逻辑顺序反转后即为最新在前。
	buf     []Item
	head    int
	count   int
	nextSeq uint64
}

func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{buf: make([]Item, capacity), nextSeq: 1}
}

// Insert 把记录放到最前面，返回被淘汰的记录（至多一条）。
func (s *Store) Insert(e model.LogEntry) (Item, []Item) {
	it := Item{Seq: s.nextSeq, Entry: e}
	s.nextSeq++

	if s.count < len(s.buf) {
		s.buf[(s.head+s.count)%len(s.buf)] = it
		s.count++
		return it, nil
	}
	evicted := s.buf[s.head]
	s.buf[s.head] = it
	s.head = (s.head + 1) % len(s.buf)
	return it, []Item{evicted}
}

// InsertBatch 按给定顺序（从旧到新）逐条插入，一次调用内完成。
func (s *Store) InsertBatch(entries []model.LogEntry) []Item {
	var evicted []Item
	for _, e := range entries {
		_, ev := s.Insert(e)
		evicted = append(evicted, ev...)
	}
	return evicted
}

// Snapshot 返回当前记录的副本，最新在前。
func (s *Store) Snapshot() []Item {
	out := make([]Item, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.at(i)
	}
	return out
}

// Each 按最新在前的顺序遍历，fn 返回 false 时停止。
func (s *Store) Each(fn func(Item) bool) {
	for i := 0; i < s.count; i++ {
		if !fn(s.at(i)) {
			return
		}
	}
}

func (s *Store) at(i int) Item {
	// i 是逻辑位置（0 为最新），映射回环形缓冲中的物理下标。
	return s.buf[(s.head+s.count-1-i)%len(s.buf)]
}

func (s *Store) Len() int { return s.count }

