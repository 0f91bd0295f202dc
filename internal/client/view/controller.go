package view

import (
	"strings"

	"tunnelwatch/internal/client/store"
)

type Theme int

const (
	ThemeDark Theme = iota
	ThemeLight
)

func (t Theme) String() string {
	if t == ThemeLight {
		return "light"
	}
	return "dark"
}

// ParseTheme 解析配置中的主题名，未知值按 dark 处理。
func ParseTheme(s string) Theme {
	if strings.EqualFold(strings.TrimSpace(s), "light") {
		return ThemeLight
	}
	return ThemeDark
}

// Config 是视图参数，只由 Controller 修改。
type Config struct {
	FilterText  string
	RevealCount int
	Theme       Theme
}

// Frame 是一次重新计算后的完整显示内容。
type Frame struct {
	Rows        []Row
	Matched     int
	Total       int
	HasMore     bool
	FilterText  string
	RevealCount int
	Theme       Theme
	Notice      string
	Tunnels     string
}

// Controller 把用户输入和新数据转换为过滤分页的重新计算。
// 只在事件循环中调用，没有锁。
type Controller struct {
	store *store.Store
	rows  *Presenter
	cfg   Config

	notice  string
	tunnels string
	last    Frame
}

func NewController(st *store.Store, cfg Config) *Controller {
	cfg.FilterText = NormalizeFilter(cfg.FilterText)
	if cfg.RevealCount <= 0 {
		cfg.RevealCount = DefaultRevealCount
	}
	c := &Controller{store: st, rows: NewPresenter(), cfg: cfg}
	c.refresh()
	return c
}

func (c *Controller) Frame() Frame { return c.last }

func (c *Controller) Presenter() *Presenter { return c.rows }

// SetFilter 修改过滤文本并立即重新计算。
func (c *Controller) SetFilter(text string) Frame {
	c.cfg.FilterText = NormalizeFilter(text)
	return c.refresh()
}

// ShowMore 把 reveal 窗口扩大 RevealStep；没有被隐藏的命中记录时不做任何事。
func (c *Controller) ShowMore() Frame {
	if !c.last.HasMore {
		return c.last
	}
	c.cfg.RevealCount += RevealStep
	return c.refresh()
}

func (c *Controller) ToggleTheme() Frame {
	if c.cfg.Theme == ThemeDark {
		c.cfg.Theme = ThemeLight
	} else {
		c.cfg.Theme = ThemeDark
	}
	c.last.Theme = c.cfg.Theme
	return c.last
}

// Toggle 切换某一行的展开状态。
func (c *Controller) Toggle(seq uint64) Frame {
	if _, ok := c.rows.Toggle(seq); !ok {
		return c.last
	}
	return c.refresh()
}

// EntriesChanged 在新记录写入后调用：清理被淘汰记录的行状态并重新计算。
func (c *Controller) EntriesChanged(evicted []store.Item) Frame {
	for _, it := range evicted {
		c.rows.Forget(it.Seq)
	}
	return c.refresh()
}

func (c *Controller) SetNotice(msg string) Frame {
	c.notice = msg
	c.last.Notice = msg
	return c.last
}

func (c *Controller) SetTunnels(label string) Frame {
	c.tunnels = label
	c.last.Tunnels = label
	return c.last
}

func (c *Controller) refresh() Frame {
	page := Visible(c.store, c.cfg.FilterText, c.cfg.RevealCount)
	rows := make([]Row, len(page.Items))
	for i, it := range page.Items {
		rows[i] = c.rows.Materialize(it)
	}
	c.last = Frame{
		Rows:        rows,
		Matched:     page.Matched,
		Total:       c.store.Len(),
		HasMore:     page.HasMore,
		FilterText:  c.cfg.FilterText,
		RevealCount: c.cfg.RevealCount,
		Theme:       c.cfg.Theme,
		Notice:      c.notice,
		Tunnels:     c.tunnels,
	}
	return c.last
}
