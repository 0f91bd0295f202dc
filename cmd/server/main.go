package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tunnelwatch/internal/server/app"
)

func main() {
	var (
		configPath    string
		listenAddr    string
		dbDriver      string
		dbPath        string
		memCapacity   int
		adminTokens   string
		retentionDays int
		tunnelTTL     time.Duration
		logLevel      string
	)
	flag.StringVar(&configPath, "config", "", "TOML 配置文件路径（可选）")
	flag.StringVar(&listenAddr, "listen", "", "监听地址（默认 :8080）")
	flag.StringVar(&dbDriver, "db-driver", "", "存储类型：memory、sqlite 或 duckdb（默认 memory）")
	flag.StringVar(&dbPath, "db", "", "数据库文件路径")
	flag.IntVar(&memCapacity, "memory-capacity", 0, "memory 存储保留的条数（默认 1000）")
	flag.StringVar(&adminTokens, "admin-tokens", "", "逗号分隔的 admin token，留空则不鉴权")
	flag.IntVar(&retentionDays, "log-retention", 0, "保留天数，0 表示不清理")
	flag.DurationVar(&tunnelTTL, "tunnel-ttl", 0, "子域名多久没有流量后视为不活跃（默认 2m）")
	flag.StringVar(&logLevel, "log", "", "日志级别：debug, info, warn, error")
	flag.Parse()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}

	// 命令行参数覆盖配置文件。
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if dbDriver != "" {
		cfg.DBDriver = dbDriver
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if memCapacity > 0 {
		cfg.MemoryCapacity = memCapacity
	}
	if adminTokens != "" {
		cfg.AdminTokens = splitTokens(adminTokens)
	}
	if retentionDays > 0 {
		cfg.RetentionDays = retentionDays
	}
	if tunnelTTL > 0 {
		cfg.TunnelTTL = tunnelTTL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	switch cfg.LogLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := app.NewServer(cfg)
	if err != nil {
		log.Fatalf("[server] 初始化失败：%v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("[server] 关闭失败：%v", err)
		}
	}()

	log.Infof("[server] 监听：%s（存储：%s）", listenOrDefault(cfg.ListenAddr), driverOrDefault(cfg.DBDriver))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[server] 运行失败：%v", err)
	}
	<-done
}

func splitTokens(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func listenOrDefault(addr string) string {
	if addr == "" {
		return ":8080"
	}
	return addr
}

func driverOrDefault(d string) string {
	if d == "" {
		return "memory"
	}
	return d
}
