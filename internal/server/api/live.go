package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"tunnelwatch/pkg/model"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Live 升级为 websocket，每条新记录作为一个 JSON 文本消息推送。
func (h *Handlers) Live(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("[api] websocket 升级失败：%v", err)
		return
	}
	defer conn.Close()

	entries, cancel := h.hub.Subscribe()
	defer cancel()
	log.Infof("[api] 实时订阅者接入：%s", c.ClientIP())

	// 读协程只用于感知客户端断开。
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			log.Infof("[api] 实时订阅者断开：%s", c.ClientIP())
			return
		case e, ok := <-entries:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			}
			msg, err := model.Encode(e)
			if err != nil {
				log.Warnf("[api] 序列化推送记录失败：%v", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warnf("[api] websocket 写入失败：%v", err)
				return
			}
		}
	}
}
