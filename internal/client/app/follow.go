package app

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"

	"tunnelwatch/internal/client/eventloop"
	"tunnelwatch/internal/client/store"
	"tunnelwatch/internal/client/view"
	"tunnelwatch/pkg/model"
)

var (
	styleTime      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleSubdomain = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleMethod    = lipgloss.NewStyle().Bold(true)
	styleOK        = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleRedirect  = lipgloss.NewStyle().Foreground(lipgloss.Color("37"))
	styleClientErr = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleServerErr = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleNotice    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// RunFollow 无界面模式：按到达顺序逐行输出命中过滤条件的新记录，直到 ctx 结束。
func RunFollow(ctx context.Context, cfg Config, w io.Writer) error {
	loop := eventloop.New()
	needle := view.NormalizeFilter(cfg.Filter)
	// 提示和隧道状态都只在变化时输出一次。
	var lastNotice, lastTunnels string

	sess, err := NewSession(cfg, loop, Hooks{
		Changed: func(_ view.Frame, added []store.Item) {
			for _, it := range added {
				if view.Matches(it.Entry, needle) {
					fmt.Fprintln(w, FormatLine(it.Entry))
				}
			}
		},
		Updated: func(f view.Frame) {
			if f.Notice != "" && f.Notice != lastNotice {
				fmt.Fprintln(w, styleNotice.Render("! "+f.Notice))
			}
			lastNotice = f.Notice
			if f.Tunnels != "" && f.Tunnels != lastTunnels {
				fmt.Fprintln(w, styleTime.Render("# tunnels: "+f.Tunnels))
			}
			lastTunnels = f.Tunnels
		},
	})
	if err != nil {
		return err
	}

	sess.Pump.Start(ctx)
	go sess.Status.Run(ctx)

	log.Infof("[follow] 连接 %s", cfg.Server)
	loop.Run(ctx)
	sess.Pump.Wait()
	return nil
}

// FormatLine 把一条记录格式化为单行文本。
func FormatLine(e model.LogEntry) string {
	ts := "--:--:--"
	if !e.Timestamp.IsZero() {
		ts = e.Timestamp.Local().Format("15:04:05")
	}
	return fmt.Sprintf("%s %s %s %s %s",
		styleTime.Render(ts),
		styleSubdomain.Render(e.Subdomain),
		styleMethod.Render(fmt.Sprintf("%-6s", e.Method)),
		statusStyle(e.Status).Render(fmt.Sprintf("%3d", e.Status)),
		e.Path,
	)
}

func statusStyle(code int) lipgloss.Style {
	switch {
	case code >= 500:
		return styleServerErr
	case code >= 400:
		return styleClientErr
	case code >= 300:
		return styleRedirect
	default:
		return styleOK
	}
}
