package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"tunnelwatch/pkg/model"
)

// ErrUnauthorized 表示服务端拒绝了当前 token（401/403）。
var ErrUnauthorized = errors.New("token 无效或权限不足")

const (
	pathRequests = "/api/requests"
	pathTunnels  = "/api/tunnels"
	pathLive     = "/api/ws"
)

// Client 访问日志服务端的三个接口。token 作为不透明字符串附加在每个请求的 query 上。
type Client struct {
	base   *url.URL
	token  string
	client *http.Client
	dialer *websocket.Dialer
}

func NewClient(server, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("server 参数非法：%w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server 参数非法：不支持的协议 %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server 参数非法：缺少主机名")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:   u,
		token:  token,
		client: &http.Client{Timeout: timeout},
		dialer: &websocket.Dialer{HandshakeTimeout: timeout},
	}, nil
}

// History 拉取历史记录，顺序为从旧到新。
func (c *Client) History(ctx context.Context) ([]model.LogEntry, error) {
	body, err := c.get(ctx, pathRequests)
	if err != nil {
		return nil, err
	}
	return model.DecodeEntries(body)
}

// Tunnels 拉取当前活跃的隧道（子域名）列表。
func (c *Client) Tunnels(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, pathTunnels)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := jsoniter.Unmarshal(body, &names); err != nil {
		return nil, fmt.Errorf("解析隧道列表失败：%w", err)
	}
	return names, nil
}

// Live 建立 websocket 连接并逐条回调收到的消息。
// ctx 结束时返回 nil；连接出错时返回错误，不自动重连。
func (c *Client) Live(ctx context.Context, onMessage func([]byte)) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint(pathLive, true), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return ErrUnauthorized
			}
			return fmt.Errorf("建立实时连接失败：status=%s", resp.Status)
		}
		return fmt.Errorf("建立实时连接失败：%w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("读取实时消息失败：%w", err)
		}
		onMessage(data)
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, false), nil)
	if err != nil {
		return nil, fmt.Errorf("构造 HTTP 请求失败：%w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("查询失败：status=%s body=%s", resp.Status, strings.TrimSpace(string(b)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败：%w", err)
	}
	return body, nil
}

func (c *Client) endpoint(path string, ws bool) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if ws {
		if u.Scheme == "https" {
			u.Scheme = "wss"
		} else {
			u.Scheme = "ws"
		}
	}
	q := u.Query()
	if c.token != "" {
		q.Set("token", c.token)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
