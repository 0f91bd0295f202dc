package app

import "time"

type Config struct {
	Interface string
	// Server 是日志服务端地址，如 http://127.0.0.1:8080。
	Server string
	Token  string
	// Port 是被观测的 HTTP 服务端口（隧道服务端对外的 HTTP 端口）。
	Port            int
	BaseDomain      string
	RequestTimeout  time.Duration
	HTTPPostTimeout time.Duration
	QueueSize       int
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 80
	}
	if c.HTTPPostTimeout == 0 {
		c.HTTPPostTimeout = 5 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
}
