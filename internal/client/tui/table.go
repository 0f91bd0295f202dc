package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"tunnelwatch/internal/client/view"
)

type lineKind int

const (
	lineSummary lineKind = iota
	lineDetail
	lineMore
)

type line struct {
	kind  lineKind
	seq   uint64
	text  string
	style tcell.Style
}

func (l line) selectable() bool { return l.kind != lineDetail }

// logTable 自绘的日志列表：每条记录一行汇总，展开时在其下方追加详情行。
// 只在 UI 协程中访问。
type logTable struct {
	*tview.Box

	lines    []line
	selected int
	offset   int
	// selectedSeq 让新记录插到顶部时光标仍停在同一条记录上。
	selectedSeq uint64

	pal      palette
	onToggle func(seq uint64)
	onMore   func()
}

func newLogTable(pal palette) *logTable {
	t := &logTable{Box: tview.NewBox().SetBorder(true), pal: pal}
	t.SetTitle(" Requests ")
	t.applyPalette(pal)
	return t
}

func (t *logTable) applyPalette(pal palette) {
	t.pal = pal
	t.SetBackgroundColor(pal.bg)
	t.SetBorderColor(pal.border)
	t.SetTitleColor(pal.accent)
}

// setFrame 按视图结果重建行列表。行文本来自已缓存的 Row，这里只做排版。
func (t *logTable) setFrame(f view.Frame) {
	lines := make([]line, 0, len(f.Rows)+1)
	for _, r := range f.Rows {
		lines = append(lines, line{
			kind:  lineSummary,
			seq:   r.Seq,
			text:  summaryText(r),
			style: t.pal.statusStyle(r.Summary.StatusCode),
		})
		if !r.Expanded {
			continue
		}
		for _, d := range strings.Split(r.Detail, "\n") {
			lines = append(lines, line{kind: lineDetail, seq: r.Seq, text: "    " + d, style: t.pal.detail})
		}
	}
	if f.HasMore {
		lines = append(lines, line{
			kind:  lineMore,
			text:  fmt.Sprintf("  … %d more matching (m: show more)", f.Matched-len(f.Rows)),
			style: t.pal.muted,
		})
	}
	t.lines = lines
	t.restoreSelection()
}

func (t *logTable) restoreSelection() {
	if len(t.lines) == 0 {
		t.selected = 0
		return
	}
	if t.selectedSeq != 0 {
		for i, l := range t.lines {
			if l.kind == lineSummary && l.seq == t.selectedSeq {
				t.selected = i
				return
			}
		}
	}
	if t.selected >= len(t.lines) {
		t.selected = len(t.lines) - 1
	}
	for t.selected > 0 && !t.lines[t.selected].selectable() {
		t.selected--
	}
	t.selectedSeq = t.lines[t.selected].seq
}

func (t *logTable) move(delta int) {
	if len(t.lines) == 0 {
		return
	}
	i := t.selected
	step := 1
	if delta < 0 {
		step = -1
		delta = -delta
	}
	for delta > 0 {
		next := i + step
		for next >= 0 && next < len(t.lines) && !t.lines[next].selectable() {
			next += step
		}
		if next < 0 || next >= len(t.lines) {
			break
		}
		i = next
		delta--
	}
	t.selected = i
	t.selectedSeq = t.lines[i].seq
}

func (t *logTable) activate() {
	if t.selected < 0 || t.selected >= len(t.lines) {
		return
	}
	l := t.lines[t.selected]
	switch l.kind {
	case lineSummary:
		if t.onToggle != nil {
			t.onToggle(l.seq)
		}
	case lineMore:
		if t.onMore != nil {
			t.onMore()
		}
	}
}

func (t *logTable) Draw(screen tcell.Screen) {
	t.Box.DrawForSubclass(screen, t)
	x, y, width, height := t.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}
	if t.selected < t.offset {
		t.offset = t.selected
	}
	if t.selected >= t.offset+height {
		t.offset = t.selected - height + 1
	}
	if t.offset < 0 {
		t.offset = 0
	}
	for row := 0; row < height; row++ {
		i := t.offset + row
		if i >= len(t.lines) {
			break
		}
		l := t.lines[i]
		style := l.style.Background(t.pal.bg)
		if i == t.selected && t.HasFocus() {
			style = style.Reverse(true)
		}
		drawLine(screen, x, y+row, width, l.text, style)
	}
}

func (t *logTable) InputHandler() func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
	return t.WrapInputHandler(func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
		_, _, _, height := t.GetInnerRect()
		page := height - 1
		if page < 1 {
			page = 1
		}
		switch event.Key() {
		case tcell.KeyUp:
			t.move(-1)
		case tcell.KeyDown:
			t.move(1)
		case tcell.KeyPgUp:
			t.move(-page)
		case tcell.KeyPgDn:
			t.move(page)
		case tcell.KeyHome:
			t.move(-len(t.lines))
		case tcell.KeyEnd:
			t.move(len(t.lines))
		case tcell.KeyEnter:
			t.activate()
		case tcell.KeyRune:
			switch event.Rune() {
			case 'k':
				t.move(-1)
			case 'j':
				t.move(1)
			case ' ':
				t.activate()
			}
		}
	})
}

func (t *logTable) MouseHandler() func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (bool, tview.Primitive) {
	return t.WrapMouseHandler(func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (bool, tview.Primitive) {
		mx, my := event.Position()
		if !t.InRect(mx, my) {
			return false, nil
		}
		switch action {
		case tview.MouseLeftClick:
			setFocus(t)
			_, y, _, _ := t.GetInnerRect()
			i := t.offset + my - y
			if i < 0 || i >= len(t.lines) || !t.lines[i].selectable() {
				return true, nil
			}
			t.selected = i
			t.selectedSeq = t.lines[i].seq
			t.activate()
			return true, nil
		case tview.MouseScrollUp:
			t.move(-1)
			return true, nil
		case tview.MouseScrollDown:
			t.move(1)
			return true, nil
		}
		return false, nil
	})
}

func summaryText(r view.Row) string {
	s := r.Summary
	return fmt.Sprintf("%s %-8s  %s %-7s %3s  %s", r.Indicator(), s.Time, runewidth.FillRight(clip(s.Subdomain, 14), 14), s.Method, s.Status, s.Path)
}

// clip 按显示宽度截断，宽字符占两列。
func clip(s string, n int) string {
	return runewidth.Truncate(s, n, "…")
}

// drawLine 按显示宽度推进列，宽字符（如中文）占两列，放不下的宽字符不画。
func drawLine(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	col := 0
	for _, r := range text {
		if r == '\t' || r == '\r' {
			r = ' '
		}
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col+w > width {
			break
		}
		// 先填后半格，再画主字符，避免残留上一帧的内容。
		for off := w - 1; off > 0; off-- {
			screen.SetContent(x+col+off, y, ' ', nil, style)
		}
		screen.SetContent(x+col, y, r, nil, style)
		col += w
	}
	for ; col < width; col++ {
		screen.SetContent(x+col, y, ' ', nil, style)
	}
}
