package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"tunnelwatch/pkg/model"
)

const uploadPath = "/api/v1/upload"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client 把抓到的请求记录上报给日志服务端。
type Client struct {
	url    string
	token  string
	client *http.Client
}

func NewClient(server, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("server 参数非法：%w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("server 参数非法：%s", server)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + uploadPath
	return &Client{
		url:   u.String(),
		token: token,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (c *Client) Upload(ctx context.Context, e *model.LogEntry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("序列化 JSON 失败：%w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("构造 HTTP 请求失败：%w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST 上报失败：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST 上报失败：status=%s body=%s", resp.Status, strings.TrimSpace(string(b)))
	}
	return nil
}
