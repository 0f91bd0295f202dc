package view

import (
	"strings"

	"tunnelwatch/internal/client/store"
	"tunnelwatch/pkg/model"
)

const (
	DefaultRevealCount = 100
	RevealStep         = 100
)

// Source 是按最新在前顺序遍历记录的数据源，*store.Store 满足该接口。
type Source interface {
	Each(fn func(store.Item) bool)
}

// Page 是一次过滤分页的结果。
type Page struct {
	Items []store.Item
	// Matched 是全部命中过滤条件的条数（包括超出 reveal 窗口而隐藏的）。
	Matched int
	HasMore bool
}

// NormalizeFilter 把用户输入的过滤文本转换为匹配时使用的形式。
func NormalizeFilter(text string) string {
	return strings.ToLower(text)
}

// Matches 判断记录的 path 是否包含 needle（needle 需已经过 NormalizeFilter）。
func Matches(e model.LogEntry, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Path), needle)
}

// Visible 取出前 revealCount 条命中的记录，顺序与 src 一致。
// 纯函数：不修改 src，也不依赖任何视图状态。
func Visible(src Source, filterText string, revealCount int) Page {
	if revealCount <= 0 {
		revealCount = DefaultRevealCount
	}
	needle := NormalizeFilter(filterText)
	var p Page
	src.Each(func(it store.Item) bool {
		if !Matches(it.Entry, needle) {
			return true
		}
		p.Matched++
		if len(p.Items) < revealCount {
			p.Items = append(p.Items, it)
		}
		return true
	})
	p.HasMore = p.Matched > len(p.Items)
	return p
}
