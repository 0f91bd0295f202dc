package view

import (
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"

	"tunnelwatch/pkg/model"
)

// bodyJSON 保留数字的原始文本，避免大整数经过 float64 后失真；也不转义 HTML 字符。
var bodyJSON = jsoniter.Config{
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()

// PrettyBody 尝试把 body 当作 JSON 格式化输出；解析失败时原样返回，ok=false。
// 无副作用，失败不会影响任何其它状态。
func PrettyBody(body string) (string, bool) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return body, false
	}
	var v interface{}
	if err := bodyJSON.UnmarshalFromString(trimmed, &v); err != nil {
		return body, false
	}
	out, err := bodyJSON.MarshalIndent(v, "", "  ")
	if err != nil {
		return body, false
	}
	return string(out), true
}

// FormatDetail 生成展开行的内容：按名称排序的 headers，然后是 body。
func FormatDetail(e model.LogEntry) string {
	var b strings.Builder
	b.WriteString("Headers:\n")
	if len(e.Headers) == 0 {
		b.WriteString("  (none)\n")
	} else {
		names := make([]string, 0, len(e.Headers))
		for k := range e.Headers {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			b.WriteString("  ")
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(e.Headers[k])
			b.WriteByte('\n')
		}
	}

	b.WriteString("Body (")
	b.WriteString(humanize.Bytes(uint64(len(e.Body))))
	b.WriteString("):\n")
	if e.Body == "" {
		b.WriteString("  (empty)")
		return b.String()
	}
	body, _ := PrettyBody(e.Body)
	b.WriteString(body)
	return b.String()
}
