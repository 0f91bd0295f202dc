package httpmatcher

import (
	"bytes"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"tunnelwatch/pkg/model"
)

// DefaultMaxBody 是单条记录保留的请求体上限。
const DefaultMaxBody = 64 << 10

type PacketMeta struct {
	Timestamp time.Time
	SrcIP     string
	DstIP     string
	SrcPort   int
	DstPort   int
	Payload   []byte
}

type requestState struct {
	ts        time.Time
	method    string
	path      string
	subdomain string
	headers   map[string]string
	body      string
}

// Matcher 按 TCP 4 元组把请求和响应配对，生成 LogEntry。
type Matcher struct {
	mu         sync.Mutex
	requests   map[string]requestState
	timeout    time.Duration
	baseDomain string
	maxBody    int
}

func NewMatcher(timeout time.Duration, baseDomain string) *Matcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Matcher{
		requests:   make(map[string]requestState, 1024),
		timeout:    timeout,
		baseDomain: strings.ToLower(strings.Trim(baseDomain, ".")),
		maxBody:    DefaultMaxBody,
	}
}

func (m *Matcher) ObserveRequest(p PacketMeta) bool {
	req, ok := parseRequest(p.Payload, m.maxBody)
	if !ok {
		return false
	}
	req.ts = p.Timestamp
	req.subdomain = Subdomain(req.headers["Host"], m.baseDomain)

	// 不做 TCP 流重组：只看单个包里的请求头和已到达的那部分请求体。
	key := flowKey(p.SrcIP, p.SrcPort, p.DstIP, p.DstPort)

	m.mu.Lock()
	m.requests[key] = req
	m.mu.Unlock()
	return true
}

func (m *Matcher) ObserveResponse(p PacketMeta) (*model.LogEntry, bool) {
	status, ok := parseHTTPResponseStatus(p.Payload)
	if !ok {
		return nil, false
	}

	// 响应方向与请求相反，交换 src/dst 后才能命中。
	key := flowKey(p.DstIP, p.DstPort, p.SrcIP, p.SrcPort)

	m.mu.Lock()
	req, found := m.requests[key]
	if found {
		delete(m.requests, key)
	}
	m.mu.Unlock()

	if !found {
		return nil, false
	}

	return &model.LogEntry{
		Subdomain: req.subdomain,
		Method:    req.method,
		Path:      req.path,
		Status:    status,
		Headers:   req.headers,
		Body:      req.body,
		Timestamp: req.ts,
	}, true
}

// Cleanup 丢弃超时仍未等到响应的请求，返回丢弃条数。
func (m *Matcher) Cleanup(now time.Time) int {
	deadline := now.Add(-m.timeout)
	n := 0
	m.mu.Lock()
	for k, v := range m.requests {
		if v.ts.Before(deadline) {
			delete(m.requests, k)
			n++
		}
	}
	m.mu.Unlock()
	return n
}

func (m *Matcher) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Subdomain 把 Host 头映射成隧道子域名：去掉端口和 baseDomain 后缀。
// baseDomain 为空时取第一个标签。
func Subdomain(host, baseDomain string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return ""
	}
	if baseDomain == "" {
		if net.ParseIP(host) != nil {
			return ""
		}
		if i := strings.IndexByte(host, '.'); i > 0 {
			return host[:i]
		}
		return host
	}
	if host == baseDomain {
		return ""
	}
	if sub, ok := strings.CutSuffix(host, "."+baseDomain); ok {
		return sub
	}
	return host
}

func flowKey(clientIP string, clientPort int, serverIP string, serverPort int) string {
	return fmt.Sprintf("%s:%d-%s:%d", clientIP, clientPort, serverIP, serverPort)
}

var requestMethods = [][]byte{
	[]byte("GET "), []byte("POST "), []byte("PUT "), []byte("DELETE "),
	[]byte("HEAD "), []byte("OPTIONS "), []byte("PATCH "),
}

func parseRequest(payload []byte, maxBody int) (requestState, bool) {
	line, rest := nextLine(payload)
	if len(line) == 0 || !hasMethodPrefix(line) {
		return requestState{}, false
	}
	parts := strings.Fields(string(line))
	if len(parts) < 2 {
		return requestState{}, false
	}
	req := requestState{method: parts[0], path: parts[1]}

	for len(rest) > 0 {
		var h []byte
		h, rest = nextLine(rest)
		if len(h) == 0 {
			break
		}
		k, v, ok := bytes.Cut(h, []byte(":"))
		if !ok {
			continue
		}
		if req.headers == nil {
			req.headers = make(map[string]string, 8)
		}
		req.headers[textproto.CanonicalMIMEHeaderKey(string(bytes.TrimSpace(k)))] = string(bytes.TrimSpace(v))
	}
	if len(rest) > maxBody {
		rest = rest[:maxBody]
	}
	req.body = string(rest)
	return req, true
}

func hasMethodPrefix(line []byte) bool {
	// 先做前缀判断，避免在大量非 HTTP payload 上调用 strings.Fields。
	for _, m := range requestMethods {
		if bytes.HasPrefix(line, m) {
			return true
		}
	}
	return false
}

func parseHTTPResponseStatus(payload []byte) (status int, ok bool) {
	line, _ := nextLine(payload)
	if len(line) == 0 || !bytes.HasPrefix(line, []byte("HTTP/1.")) {
		return 0, false
	}
	parts := strings.Fields(string(line))
	if len(parts) < 2 {
		return 0, false
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return code, true
}

// nextLine 兼容 \r\n 和仅 \n 的行尾。
func nextLine(payload []byte) (line, rest []byte) {
	if i := bytes.IndexByte(payload, '\n'); i >= 0 {
		return bytes.TrimRight(payload[:i], "\r"), payload[i+1:]
	}
	return payload, nil
}
