package app

import (
	"context"
	"errors"
	"time"

	"tunnelwatch/internal/client/eventloop"
	"tunnelwatch/internal/client/feed"
	"tunnelwatch/internal/client/ingest"
	"tunnelwatch/internal/client/status"
	"tunnelwatch/internal/client/store"
	"tunnelwatch/internal/client/view"
	"tunnelwatch/pkg/model"
)

// Session 持有一次运行中的全部状态，启动时构造一次，由各模式共享。
// 除 Pump 和 Poller 的后台协程外，所有字段只在事件循环中访问。
type Session struct {
	Store  *store.Store
	View   *view.Controller
	Ingest *ingest.Ingestor
	Feed   *feed.Client
	Pump   *ingest.Pump
	Status *status.Poller
}

// Hooks 是 Session 把变化通知给界面层的方式。
type Hooks struct {
	// Changed 在记录写入后调用，frame 已经重新计算。
	Changed func(frame view.Frame, added []store.Item)
	// Updated 在提示信息或隧道状态变化后调用。
	Updated func(frame view.Frame)
}

func NewSession(cfg Config, d eventloop.Dispatcher, hooks Hooks) (*Session, error) {
	cfg.applyDefaults()
	fc, err := feed.NewClient(cfg.Server, cfg.Token, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	s := &Session{
		Store: store.New(store.DefaultCapacity),
		Feed:  fc,
	}
	s.View = view.NewController(s.Store, view.Config{
		FilterText: cfg.Filter,
		Theme:      view.ParseTheme(cfg.Theme),
	})
	s.Ingest = ingest.New(s.Store, &listener{s: s, hooks: hooks})
	s.Pump = ingest.NewPump(guardedSource{Client: fc, onUnauthorized: cfg.OnUnauthorized}, s.Ingest, d)

	interval := cfg.StatusInterval
	if interval <= 0 {
		interval = status.DefaultInterval
	}
	s.Status = status.NewPoller(fc, interval, d, func(label string) {
		f := s.View.SetTunnels(label)
		if hooks.Updated != nil {
			hooks.Updated(f)
		}
	})
	return s, nil
}

type listener struct {
	s     *Session
	hooks Hooks
}

func (l *listener) EntriesChanged(added, evicted []store.Item) {
	f := l.s.View.EntriesChanged(evicted)
	if l.hooks.Changed != nil {
		l.hooks.Changed(f, added)
	}
}

func (l *listener) Notice(msg string) {
	f := l.s.View.SetNotice(time.Now().Format("15:04:05") + " " + msg)
	if l.hooks.Updated != nil {
		l.hooks.Updated(f)
	}
}

// guardedSource 在 token 被拒绝时通知调用方，其余行为与 feed.Client 相同。
type guardedSource struct {
	*feed.Client
	onUnauthorized func()
}

func (g guardedSource) History(ctx context.Context) ([]model.LogEntry, error) {
	rows, err := g.Client.History(ctx)
	g.check(err)
	return rows, err
}

func (g guardedSource) Live(ctx context.Context, onMessage func([]byte)) error {
	err := g.Client.Live(ctx, onMessage)
	g.check(err)
	return err
}

func (g guardedSource) check(err error) {
	if g.onUnauthorized != nil && errors.Is(err, feed.ErrUnauthorized) {
		g.onUnauthorized()
	}
}
