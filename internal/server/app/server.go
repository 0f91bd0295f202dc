package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tunnelwatch/internal/server/api"
	"tunnelwatch/internal/server/hub"
	"tunnelwatch/internal/server/registry"
	"tunnelwatch/internal/server/storage"
	"tunnelwatch/internal/server/storage/duckdb"
	"tunnelwatch/internal/server/storage/memory"
	"tunnelwatch/internal/server/storage/sqlite"
)

const purgeInterval = 12 * time.Hour

type Server struct {
	cfg        Config
	httpServer *http.Server
	store      storage.Store
	hub        *hub.Hub

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewServer(cfg Config) (*Server, error) {
	cfg.applyDefaults()

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	hb := hub.New()
	reg := registry.New(cfg.TunnelTTL)

	s := &Server{
		cfg:   cfg,
		store: store,
		hub:   hb,
		stop:  make(chan struct{}),
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           newRouter(api.NewHandlers(store, hb, reg), cfg.AdminTokens),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	if p, ok := store.(storage.Purger); ok && cfg.RetentionDays > 0 {
		s.wg.Add(1)
		go s.purgeLoop(p)
	}
	return s, nil
}

func newRouter(h *api.Handlers, tokens []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", h.Health)

	if len(tokens) == 0 {
		log.Warn("[server] 未配置 admin token，接口不做鉴权")
	}
	g := router.Group("/api", api.RequireAdmin(tokens))
	{
		g.POST("/v1/upload", h.Upload)
		g.GET("/requests", h.Requests)
		g.GET("/requests/:id", h.RequestByID)
		g.GET("/tunnels", h.Tunnels)
		g.GET("/ws", h.Live)
	}
	return router
}

func openStore(cfg Config) (storage.Store, error) {
	switch cfg.DBDriver {
	case "memory":
		return memory.NewStore(cfg.MemoryCapacity), nil
	case "sqlite":
		return sqlite.NewStore(cfg.DBPath)
	case "duckdb":
		path := cfg.DBPath
		if path == "" {
			path = "./requests.duckdb"
		}
		return duckdb.NewStore(path)
	default:
		return nil, fmt.Errorf("不支持的数据库类型：%s", cfg.DBDriver)
	}
}

func (s *Server) purgeLoop(p storage.Purger) {
	defer s.wg.Done()
	keep := time.Duration(s.cfg.RetentionDays) * 24 * time.Hour
	purge := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := p.PurgeBefore(ctx, time.Now().Add(-keep).UnixMilli())
		if err != nil {
			log.Errorf("[server] %v", err)
			return
		}
		if n > 0 {
			log.Infof("[server] 清理过期记录 %d 条", n)
		}
	}

	purge()
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			purge()
		}
	}
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stop)
	// 先关闭订阅通道，让 websocket 处理协程退出，Shutdown 才不会一直等待。
	s.hub.Close()
	_ = s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	return s.store.Close()
}
