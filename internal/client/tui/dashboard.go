package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"tunnelwatch/internal/client/eventloop"
	"tunnelwatch/internal/client/view"
)

// Actions 是界面上的用户操作，全部在 UI 协程中调用。
type Actions struct {
	SetFilter   func(text string)
	ShowMore    func()
	ToggleTheme func()
	Toggle      func(seq uint64)
	Reconnect   func()
	Quit        func()
}

// Dashboard 是交互式终端界面。tview 的 UI 协程就是事件循环。
type Dashboard struct {
	app    *tview.Application
	root   *tview.Flex
	header *tview.TextView
	filter *tview.InputField
	table  *logTable
	footer *tview.TextView

	actions Actions
	theme   view.Theme
	live    bool
}

func New(actions Actions, initialFilter string, mouse bool) *Dashboard {
	d := &Dashboard{
		app:     tview.NewApplication().EnableMouse(mouse),
		actions: actions,
		live:    true,
	}

	d.header = tview.NewTextView().SetDynamicColors(true)
	d.footer = tview.NewTextView().SetDynamicColors(true)
	d.filter = tview.NewInputField().SetLabel("Filter path: ").SetText(initialFilter)
	d.filter.SetChangedFunc(func(text string) {
		if d.actions.SetFilter != nil {
			d.actions.SetFilter(text)
		}
	})
	d.filter.SetDoneFunc(func(key tcell.Key) {
		d.app.SetFocus(d.table)
	})

	d.table = newLogTable(darkPalette)
	d.table.onToggle = func(seq uint64) {
		if d.actions.Toggle != nil {
			d.actions.Toggle(seq)
		}
	}
	d.table.onMore = func() {
		if d.actions.ShowMore != nil {
			d.actions.ShowMore()
		}
	}

	d.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.header, 1, 0, false).
		AddItem(d.filter, 1, 0, false).
		AddItem(d.table, 0, 1, true).
		AddItem(d.footer, 1, 0, false)

	d.app.SetInputCapture(d.handleKey)
	d.app.SetRoot(d.root, true).SetFocus(d.table)
	d.applyTheme(view.ThemeDark)
	return d
}

// Dispatcher 把处理函数投递到 UI 协程执行，并在执行后重绘。
func (d *Dashboard) Dispatcher() eventloop.Dispatcher {
	return eventloop.Func(func(fn func()) {
		d.app.QueueUpdateDraw(fn)
	})
}

// SetScreen 用于测试时注入模拟屏幕。
func (d *Dashboard) SetScreen(s tcell.Screen) {
	d.app.SetScreen(s)
}

// SetLive 记录实时连接状态，用于在底栏提示重连。
func (d *Dashboard) SetLive(live bool) {
	d.live = live
}

// Render 把一帧视图结果画到界面上。必须在 UI 协程中调用。
func (d *Dashboard) Render(f view.Frame) {
	if f.Theme != d.theme {
		d.applyTheme(f.Theme)
	}
	tunnels := f.Tunnels
	if tunnels == "" {
		tunnels = "…"
	}
	d.header.SetText(fmt.Sprintf(" [::b]tunnels:[::-] %s   [::b]showing[::-] %d of %d matching, %d buffered   [::b]theme[::-] %s",
		tview.Escape(tunnels), len(f.Rows), f.Matched, f.Total, f.Theme))

	footer := " / filter  enter toggle  m more  t theme  r reconnect  q quit"
	if f.Notice != "" {
		footer = " [red]" + tview.Escape(f.Notice) + "[-]"
		if !d.live {
			footer += "  (r: reconnect)"
		}
	}
	d.footer.SetText(footer)
	d.table.setFrame(f)
}

func (d *Dashboard) Run() error {
	return d.app.Run()
}

func (d *Dashboard) Stop() {
	d.app.Stop()
}

func (d *Dashboard) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if d.filter.HasFocus() {
		if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyTab {
			d.app.SetFocus(d.table)
			return nil
		}
		return event
	}
	if event.Key() == tcell.KeyCtrlC {
		d.quit()
		return nil
	}
	if event.Key() != tcell.KeyRune {
		return event
	}
	switch event.Rune() {
	case '/':
		d.app.SetFocus(d.filter)
		return nil
	case 'm':
		if d.actions.ShowMore != nil {
			d.actions.ShowMore()
		}
		return nil
	case 't':
		if d.actions.ToggleTheme != nil {
			d.actions.ToggleTheme()
		}
		return nil
	case 'r':
		if d.actions.Reconnect != nil {
			d.actions.Reconnect()
		}
		return nil
	case 'q':
		d.quit()
		return nil
	}
	return event
}

func (d *Dashboard) quit() {
	if d.actions.Quit != nil {
		d.actions.Quit()
		return
	}
	d.app.Stop()
}

func (d *Dashboard) applyTheme(t view.Theme) {
	d.theme = t
	pal := paletteFor(t)
	d.header.SetBackgroundColor(pal.bg)
	d.header.SetTextColor(pal.fg)
	d.footer.SetBackgroundColor(pal.bg)
	d.footer.SetTextColor(pal.fg)
	d.filter.SetBackgroundColor(pal.bg)
	d.filter.SetLabelColor(pal.accent)
	d.filter.SetFieldBackgroundColor(pal.border)
	d.filter.SetFieldTextColor(pal.fg)
	d.root.SetBackgroundColor(pal.bg)
	d.table.applyPalette(pal)
}
