package view

import (
	"strconv"

	"tunnelwatch/internal/client/store"
	"tunnelwatch/pkg/model"
)

const (
	GlyphCollapsed = "▸"
	GlyphExpanded  = "▾"
)

const timeLayout = "15:04:05"

// Summary 是汇总行各列的显示文本。
type Summary struct {
	Time       string
	Subdomain  string
	Method     string
	Path       string
	Status     string
	StatusCode int
}

// Row 是一条记录对应的两行显示单元。Detail 只在展开时非空。
type Row struct {
	Seq      uint64
	Summary  Summary
	Expanded bool
	Detail   string
}

func (r Row) Indicator() string {
	if r.Expanded {
		return GlyphExpanded
	}
	return GlyphCollapsed
}

type rowState struct {
	entry    model.LogEntry
	summary  Summary
	expanded bool
	// detail 在第一次展开时才生成，之后复用。
	detail      string
	detailBuilt bool
}

// Presenter 以记录序号为键维护每行的展开状态，与过滤、分页无关。
// 行状态在记录第一次显示时创建（默认收起），在记录被淘汰时删除。
type Presenter struct {
	rows map[uint64]*rowState
}

func NewPresenter() *Presenter {
	return &Presenter{rows: make(map[uint64]*rowState)}
}

// Materialize 返回记录对应的行；第一次调用时创建收起状态的行并缓存汇总文本。
func (p *Presenter) Materialize(it store.Item) Row {
	st, ok := p.rows[it.Seq]
	if !ok {
		st = &rowState{entry: it.Entry, summary: summarize(it.Entry)}
		p.rows[it.Seq] = st
	}
	return st.row(it.Seq)
}

// Toggle 切换展开/收起。未显示过的行返回 false。
func (p *Presenter) Toggle(seq uint64) (Row, bool) {
	st, ok := p.rows[seq]
	if !ok {
		return Row{}, false
	}
	st.expanded = !st.expanded
	if st.expanded && !st.detailBuilt {
		st.detail = FormatDetail(st.entry)
		st.detailBuilt = true
	}
	return st.row(seq), true
}

func (p *Presenter) Expanded(seq uint64) bool {
	st, ok := p.rows[seq]
	return ok && st.expanded
}

// Forget 删除被淘汰记录的行状态。
func (p *Presenter) Forget(seq uint64) {
	delete(p.rows, seq)
}

func (p *Presenter) Len() int { return len(p.rows) }

func (st *rowState) row(seq uint64) Row {
	r := Row{Seq: seq, Summary: st.summary, Expanded: st.expanded}
	if st.expanded {
		r.Detail = st.detail
	}
	return r
}

func summarize(e model.LogEntry) Summary {
	ts := ""
	if !e.Timestamp.IsZero() {
		ts = e.Timestamp.Local().Format(timeLayout)
	}
	return Summary{
		Time:       ts,
		Subdomain:  e.Subdomain,
		Method:     e.Method,
		Path:       e.Path,
		Status:     strconv.Itoa(e.Status),
		StatusCode: e.Status,
	}
}
