package status

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"tunnelwatch/internal/client/eventloop"
)

const DefaultInterval = 5 * time.Second

// Fetcher 返回当前活跃的隧道列表，通常是 feed.Client。
type Fetcher interface {
	Tunnels(ctx context.Context) ([]string, error)
}

// Poller 按固定间隔拉取隧道状态，只保留最近一次结果。
type Poller struct {
	fetch    Fetcher
	interval time.Duration
	dispatch eventloop.Dispatcher
	onUpdate func(label string)
}

func NewPoller(f Fetcher, interval time.Duration, d eventloop.Dispatcher, onUpdate func(label string)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{fetch: f, interval: interval, dispatch: d, onUpdate: onUpdate}
}

// Run 立即拉取一次，之后每个间隔拉取一次，直到 ctx 结束。
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()
	names, err := p.fetch.Tunnels(reqCtx)
	if ctx.Err() != nil {
		return
	}
	var label string
	if err != nil {
		log.Warnf("[status] 拉取隧道列表失败：%v", err)
		label = "unavailable"
	} else {
		label = Label(names)
	}
	p.dispatch.Dispatch(func() { p.onUpdate(label) })
}

// Label 把隧道列表拼成一行显示文本。
func Label(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
