package hub

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"tunnelwatch/pkg/model"
)

const subscriberBuffer = 256

// Hub 把新写入的记录广播给所有实时订阅者。
// 订阅者消费过慢时丢弃该订阅者的消息，不阻塞写入方。
type Hub struct {
	mu      sync.RWMutex
	subs    map[chan model.LogEntry]struct{}
	dropped int64
	closed  bool
}

func New() *Hub {
	return &Hub{subs: make(map[chan model.LogEntry]struct{})}
}

// Subscribe 返回接收通道和取消函数；取消后通道被关闭。
func (h *Hub) Subscribe() (<-chan model.LogEntry, func()) {
	ch := make(chan model.LogEntry, subscriberBuffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Publish(e model.LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.dropped++
			log.Warnf("[hub] 订阅者消费过慢，丢弃一条记录（累计 %d）", h.dropped)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Close 关闭所有订阅通道，之后的订阅立即得到已关闭的通道。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		close(ch)
	}
	h.subs = make(map[chan model.LogEntry]struct{})
	h.closed = true
}
