package sse

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
)

// 事件类型
const (
	EventPOUpdate    = "po_update"
	EventImageUpdate = "image_update"
)

// ParseEventTypes 解析逗号分隔的订阅类型，空串表示全部
func ParseEventTypes(raw string) (map[string]bool, error) {
	types := map[string]bool{}
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		switch t {
		case "":
		case EventPOUpdate, EventImageUpdate:
			types[t] = true
		default:
			return nil, fmt.Errorf("unknown event type %q", t)
		}
	}
	return types, nil
}

// Event 一条SSE事件
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client 已连接的SSE客户端
type Client struct {
	ID     string
	UserID string
	Types  map[string]bool // 为空时接收全部事件
	Events chan Event
}

// Accepts 是否订阅了该类型
func (c *Client) Accepts(eventType string) bool {
	return len(c.Types) == 0 || c.Types[eventType]
}

// Hub 管理进程内全部SSE连接，nil Hub 的发布操作为空操作
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	log.Printf("[SSE] client registered: id=%s user=%s (total: %d)", client.ID, client.UserID, len(h.clients))
}

// Unregister 注销客户端并关闭其通道
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		log.Printf("[SSE] client unregistered: id=%s (total: %d)", clientID, len(h.clients))
	}
}

// Close 断开全部客户端，用于停机
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.Events)
		delete(h.clients, id)
	}
	log.Printf("[SSE] hub closed")
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast 广播事件，客户端缓冲满时丢弃
func (h *Hub) Broadcast(event Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !client.Accepts(event.EventType) {
			continue
		}
		select {
		case client.Events <- event:
		default:
			log.Printf("[SSE] client %s buffer full, skipping event", client.ID)
		}
	}
}

func (h *Hub) publish(eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[SSE] marshal %s failed: %v", eventType, err)
		return
	}
	h.Broadcast(Event{EventType: eventType, Data: string(data)})
}

// PublishPOUpdate 采购订单变更
func (h *Hub) PublishPOUpdate(purchaseOrderID int64, action string) {
	h.publish(EventPOUpdate, map[string]interface{}{
		"purchase_order_id": purchaseOrderID,
		"action":            action,
	})
}

// PublishImageUpdate 图片库变更
func (h *Hub) PublishImageUpdate(fkItemID int64, fkItemType string, imageID int64, action string) {
	h.publish(EventImageUpdate, map[string]interface{}{
		"fk_item_id":   fkItemID,
		"fk_item_type": fkItemType,
		"image_id":     imageID,
		"action":       action,
	})
}
