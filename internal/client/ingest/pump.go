package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"tunnelwatch/internal/client/eventloop"
	"tunnelwatch/pkg/model"
)

// Source 是日志数据的来源，通常是 feed.Client。
type Source interface {
	History(ctx context.Context) ([]model.LogEntry, error)
	// Live 持续读取推送消息，直到 ctx 结束（返回 nil）或连接出错。
	Live(ctx context.Context, onMessage func([]byte)) error
}

// Pump 在后台协程中做网络 I/O，把结果投递到事件循环交给 Ingestor 处理。
// 网络协程从不直接访问 Store。
type Pump struct {
	src      Source
	in       *Ingestor
	dispatch eventloop.Dispatcher

	mu   sync.Mutex
	live bool
	wg   sync.WaitGroup
}

func NewPump(src Source, in *Ingestor, d eventloop.Dispatcher) *Pump {
	return &Pump{src: src, in: in, dispatch: d}
}

// Start 同时发起历史拉取和实时订阅。
func (p *Pump) Start(ctx context.Context) {
	p.startLive(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		history, err := p.src.History(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Errorf("[ingest] 拉取历史记录失败：%v", err)
			p.dispatch.Dispatch(func() { p.in.BootstrapFailed(err) })
			return
		}
		p.dispatch.Dispatch(func() { p.in.Bootstrap(history) })
	}()
}

// Reconnect 在实时连接断开后手动重连；连接仍在时什么也不做。
func (p *Pump) Reconnect(ctx context.Context) bool {
	return p.startLive(ctx)
}

// Live 报告实时连接是否在运行。
func (p *Pump) Live() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Wait 等待所有后台协程退出。
func (p *Pump) Wait() {
	p.wg.Wait()
}

func (p *Pump) startLive(ctx context.Context) bool {
	p.mu.Lock()
	if p.live {
		p.mu.Unlock()
		return false
	}
	p.live = true
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := p.src.Live(ctx, func(raw []byte) {
			p.dispatch.Dispatch(func() { p.in.Push(raw) })
		})

		if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
			p.setLive(false)
			return
		}
		// 不自动重连，只提示用户。
		log.Warnf("[ingest] 实时连接断开：%v", err)
		msg := fmt.Sprintf("实时连接断开：%v", err)
		// 提示送达之后才允许重连，否则重连时清掉的提示会被这条旧提示盖回去。
		p.dispatch.Dispatch(func() {
			p.in.listener.Notice(msg)
			p.setLive(false)
		})
	}()
	return true
}

func (p *Pump) setLive(v bool) {
	p.mu.Lock()
	p.live = v
	p.mu.Unlock()
}
