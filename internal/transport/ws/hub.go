package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub 维护活跃的 WebSocket 客户端并向其广播报警事件
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	logger     *zap.Logger
}

// NewHub 创建广播中心
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// Run 运行广播循环（在独立 goroutine 中调用），Stop 后退出
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("WebSocket client registered",
				zap.String("remote_addr", client.conn.RemoteAddr().String()),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 发送缓冲满视为客户端失联，移除
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// BroadcastAlert 向所有客户端广播一条报警事件
func (h *Hub) BroadcastAlert(event interface{}) {
	message, err := json.Marshal(map[string]interface{}{
		"type":    "alert",
		"payload": event,
	})
	if err != nil {
		h.logger.Error("Failed to marshal alert broadcast", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- message:
	default:
		// 广播队列满时丢弃，报警事件的权威通道是 Stream 和推送
		h.logger.Warn("Broadcast queue full, dropping alert message")
	}
}

// RegisterClient 注册新客户端
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// Stop 终止广播循环并断开所有客户端，可重复调用
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}
