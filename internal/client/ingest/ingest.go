package ingest

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"tunnelwatch/internal/client/store"
	"tunnelwatch/pkg/model"
)

// Listener 接收写入结果，通常由视图层实现。所有回调都在事件循环中执行。
type Listener interface {
	EntriesChanged(added, evicted []store.Item)
	Notice(msg string)
}

// Ingestor 把历史快照和实时推送合并写入 Store。
//
// 历史记录作为一个整体一次性写入；在它到达之前收到的实时记录先暂存，
// 待历史写入完成后再按到达顺序写入，因此实时记录不会插入到历史记录中间。
// 所有方法只能在事件循环中调用。
type Ingestor struct {
	store    *store.Store
	listener Listener

	bootstrapped bool
	pending      []model.LogEntry
	dropped      uint64
}

func New(st *store.Store, l Listener) *Ingestor {
	return &Ingestor{store: st, listener: l}
}

// Push 解码并写入一条实时消息。无法解码的消息直接丢弃，返回 false。
func (in *Ingestor) Push(raw []byte) bool {
	e, err := model.DecodeEntry(raw)
	if err != nil {
		in.dropped++
		log.Debugf("[ingest] 丢弃无法解析的推送消息（累计 %d）：%v", in.dropped, err)
		return false
	}
	in.PushEntry(e)
	return true
}

func (in *Ingestor) PushEntry(e model.LogEntry) {
	if !in.bootstrapped {
		in.pending = append(in.pending, e)
		return
	}
	it, evicted := in.store.Insert(e)
	in.listener.EntriesChanged([]store.Item{it}, evicted)
}

// Bootstrap 写入历史记录（按从旧到新给出），随后写入暂存的实时记录。
// 重复调用时后续的历史批次被忽略。
func (in *Ingestor) Bootstrap(history []model.LogEntry) {
	if in.bootstrapped {
		log.Warnf("[ingest] 忽略重复的历史记录批次（%d 条）", len(history))
		return
	}
	in.bootstrapped = true

	batch := make([]model.LogEntry, 0, len(history)+len(in.pending))
	batch = append(batch, history...)
	batch = append(batch, in.pending...)
	in.pending = nil

	added := make([]store.Item, 0, len(batch))
	var evicted []store.Item
	for _, e := range batch {
		it, ev := in.store.Insert(e)
		added = append(added, it)
		evicted = append(evicted, ev...)
	}
	if len(evicted) > 0 {
		// 批次超过容量时，批内较早的记录会被同一批次挤掉。
		gone := make(map[uint64]bool, len(evicted))
		for _, it := range evicted {
			gone[it.Seq] = true
		}
		kept := added[:0]
		for _, it := range added {
			if !gone[it.Seq] {
				kept = append(kept, it)
			}
		}
		added = kept
	}
	log.Infof("[ingest] 已载入历史记录 %d 条，暂存实时记录 %d 条", len(history), len(batch)-len(history))
	in.listener.EntriesChanged(added, evicted)
}

// BootstrapFailed 在历史接口失败时调用：提示用户，并放行暂存的实时记录。
func (in *Ingestor) BootstrapFailed(err error) {
	in.listener.Notice(fmt.Sprintf("历史记录加载失败：%v", err))
	in.Bootstrap(nil)
}

func (in *Ingestor) Bootstrapped() bool { return in.bootstrapped }

func (in *Ingestor) Dropped() uint64 { return in.dropped }

func (in *Ingestor) Pending() int { return len(in.pending) }
