package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"tunnelwatch/internal/client/store"
	"tunnelwatch/internal/client/tui"
	"tunnelwatch/internal/client/view"
)

// RunWatch 启动交互式终端界面，直到用户退出或 ctx 结束。
func RunWatch(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		sess *Session
		dash *tui.Dashboard
	)
	render := func(f view.Frame) {
		dash.SetLive(sess.Pump.Live())
		dash.Render(f)
	}

	dash = tui.New(tui.Actions{
		SetFilter:   func(text string) { render(sess.View.SetFilter(text)) },
		ShowMore:    func() { render(sess.View.ShowMore()) },
		ToggleTheme: func() { render(sess.View.ToggleTheme()) },
		Toggle:      func(seq uint64) { render(sess.View.Toggle(seq)) },
		Reconnect: func() {
			if sess.Pump.Reconnect(ctx) {
				log.Info("[watch] 手动重连实时连接")
				render(sess.View.SetNotice(""))
			}
		},
		Quit: func() {
			cancel()
			dash.Stop()
		},
	}, cfg.Filter, cfg.Mouse)

	var err error
	sess, err = NewSession(cfg, dash.Dispatcher(), Hooks{
		Changed: func(f view.Frame, _ []store.Item) { render(f) },
		Updated: render,
	})
	if err != nil {
		return err
	}
	render(sess.View.Frame())

	go func() {
		<-ctx.Done()
		dash.Stop()
	}()

	sess.Pump.Start(ctx)
	go sess.Status.Run(ctx)

	log.Infof("[watch] 连接 %s", cfg.Server)
	return dash.Run()
}
