package eventloop

import (
	"context"
	"sync"
)

// Dispatcher 把处理函数投递到事件循环里执行。
type Dispatcher interface {
	Dispatch(fn func())
}

// Loop 是无界面模式下的单协程事件循环：所有处理函数按投递顺序逐个执行，互不重叠。
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Dispatch 不会阻塞调用方；循环退出后投递的函数被丢弃。
func (l *Loop) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run 在当前协程上执行处理函数，直到 ctx 结束。
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
	}()
	for {
		for {
			fn := l.next()
			if fn == nil {
				break
			}
			fn()
			if ctx.Err() != nil {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

// Func 让普通函数满足 Dispatcher，例如 tview 的 QueueUpdateDraw。
type Func func(fn func())

func (f Func) Dispatch(fn func()) { f(fn) }
