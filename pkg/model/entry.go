package model

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LogEntry 是一条经由隧道代理的 HTTP 请求记录，接收后不再修改。
type LogEntry struct {
	ID        string            `json:"id,omitempty"`
	Subdomain string            `json:"subdomain"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// UnmarshalJSON 同时接受 RFC 3339 字符串和毫秒级 epoch 数字形式的 timestamp。
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	type plain LogEntry
	aux := struct {
		*plain
		Timestamp jsoniter.RawMessage `json:"timestamp"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ts, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = ts
	return nil
}

func parseTimestamp(raw []byte) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("timestamp 非法：%w", err)
		}
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp 非法：%w", err)
		}
		return t, nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("timestamp 非法：%w", err)
	}
	return time.UnixMilli(ms), nil
}

// Validate 做最基本的字段校验，服务端写入前调用。
func (e *LogEntry) Validate() error {
	if strings.TrimSpace(e.Method) == "" || e.Path == "" {
		return fmt.Errorf("method/path 不能为空")
	}
	if e.Status < 100 || e.Status > 599 {
		return fmt.Errorf("status 非法：%d", e.Status)
	}
	return nil
}

// DecodeEntry 解析一条推送消息。非 JSON 对象一律视为无法解码。
func DecodeEntry(data []byte) (LogEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return LogEntry{}, fmt.Errorf("消息不是 JSON 对象")
	}
	var e LogEntry
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return LogEntry{}, fmt.Errorf("解析消息失败：%w", err)
	}
	return e, nil
}

// DecodeEntries 解析历史接口返回的数组（按时间从旧到新）。
func DecodeEntries(data []byte) ([]LogEntry, error) {
	var out []LogEntry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("解析历史记录失败：%w", err)
	}
	return out, nil
}

// Encode 序列化单条记录，实时推送的每条消息就是它的输出。
func Encode(e LogEntry) ([]byte, error) {
	return json.Marshal(e)
}
