package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"tunnelwatch/internal/agent/app"
)

func main() {
	var (
		cfg      app.Config
		logLevel string
	)
	flag.StringVar(&cfg.Interface, "interface", "", "要监听的网卡名（如 eth0 / any），必填")
	flag.StringVar(&cfg.Server, "server", "", "日志服务端地址，如 http://127.0.0.1:8080，必填")
	flag.StringVar(&cfg.Token, "token", "", "上报使用的 admin token")
	flag.IntVar(&cfg.Port, "port", 80, "被观测的 HTTP 端口")
	flag.StringVar(&cfg.BaseDomain, "base-domain", "", "隧道根域名，用于从 Host 头提取子域名")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", 30*time.Second, "HTTP 匹配缓存超时时间")
	flag.StringVar(&logLevel, "log", "info", "日志级别：debug, info, warn, error")
	flag.Parse()

	if cfg.Interface == "" || cfg.Server == "" {
		flag.Usage()
		os.Exit(2)
	}
	if lvl, err := log.ParseLevel(logLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		log.Errorf("[agent] 退出：%v", err)
		os.Exit(1)
	}

	log.Info("[agent] 正常退出")
}
