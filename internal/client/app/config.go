package app

import "time"

type Config struct {
	Server         string
	Token          string
	Filter         string
	Theme          string
	StatusInterval time.Duration
	RequestTimeout time.Duration
	// Limit 只用于 dump 模式，表示最多输出多少条命中的记录。
	Limit int
	Mouse bool
	// OnUnauthorized 在服务端拒绝 token 时调用（可能在后台协程中），用于清除已保存的 token。
	OnUnauthorized func()
}

func (c *Config) applyDefaults() {
	if c.Server == "" {
		c.Server = "http://127.0.0.1:8080"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.Limit <= 0 {
		c.Limit = 100
	}
}
