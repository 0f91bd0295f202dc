package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"tunnelwatch/internal/server/hub"
	"tunnelwatch/internal/server/registry"
	"tunnelwatch/internal/server/storage"
	"tunnelwatch/pkg/model"
)

type Handlers struct {
	store    storage.Store
	hub      *hub.Hub
	registry *registry.Registry
	now      func() time.Time
}

func NewHandlers(store storage.Store, h *hub.Hub, reg *registry.Registry) *Handlers {
	return &Handlers{store: store, hub: h, registry: reg, now: time.Now}
}

// Upload 接收 agent 上报的一条请求记录，写入存储后广播给实时订阅者。
func (h *Handlers) Upload(c *gin.Context) {
	var e model.LogEntry
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON 解析失败：" + err.Error()})
		return
	}
	if err := e.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if e.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "生成 id 失败：" + err.Error()})
			return
		}
		e.ID = id.String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = h.now()
	}

	if err := h.store.Insert(c.Request.Context(), &e); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "写入数据库失败：" + err.Error()})
		return
	}
	h.registry.Touch(e.Subdomain)
	h.hub.Publish(e)

	c.JSON(http.StatusCreated, gin.H{"id": e.ID})
}

// Requests 返回历史记录，从旧到新。
func (h *Handlers) Requests(c *gin.Context) {
	limit := storage.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= storage.MaxLimit {
			limit = v
		}
	}

	rows, err := h.store.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败：" + err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handlers) RequestByID(c *gin.Context) {
	e, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败：" + err.Error()})
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handlers) Tunnels(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Active())
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": h.hub.Subscribers()})
}

func logAccessDenied(c *gin.Context) {
	log.Warnf("[api] 拒绝访问：%s %s from %s", c.Request.Method, c.Request.URL.Path, c.ClientIP())
}
