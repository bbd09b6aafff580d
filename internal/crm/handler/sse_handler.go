package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/sse"
	"github.com/gin-gonic/gin"
)

const sseHeartbeat = 30 * time.Second

// SSEHandler 采购订单与图片库变更推送
type SSEHandler struct {
	hub *sse.Hub
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// Stream GET /api/v1/events?token=xxx&types=po_update,image_update
// types 为空时订阅 po_update 与 image_update 全部事件
func (h *SSEHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		InternalError(c, "event stream unavailable")
		return
	}
	types, err := sse.ParseEventTypes(c.Query("types"))
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID := GetUserID(c)
	client := &sse.Client{
		ID:     fmt.Sprintf("%s_%d", userID, time.Now().UnixNano()),
		UserID: userID,
		Types:  types,
		Events: make(chan sse.Event, 64),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	connected, _ := json.Marshal(gin.H{"client_id": client.ID, "types": subscribed(types)})
	writeSSE(c.Writer, "connected", string(connected))
	c.Writer.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			writeSSE(c.Writer, event.EventType, event.Data)
			c.Writer.Flush()
		case <-heartbeat.C:
			io.WriteString(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}

// subscribed 订阅类型列表，空订阅展开为全部类型
func subscribed(types map[string]bool) []string {
	if len(types) == 0 {
		return []string{sse.EventPOUpdate, sse.EventImageUpdate}
	}
	out := make([]string, 0, len(types))
	for t := range types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func writeSSE(w io.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
