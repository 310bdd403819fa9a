// Package notify pushes social notifications to connected users over WebSocket.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"Sonora/logger"

	"github.com/gorilla/websocket"
)

// EventType 通知类型
type EventType string

const (
	EventFollow     EventType = "follow"      // 有人关注了你
	EventSongLiked  EventType = "song_liked"  // 你的歌曲被点赞
	EventAlbumLiked EventType = "album_liked" // 你的专辑被点赞
)

// Event 推送给客户端的消息
type Event struct {
	Type      EventType `json:"type"`
	ActorID   int64     `json:"actor_id,omitempty"`
	ActorName string    `json:"actor_name,omitempty"`
	SubjectID int64     `json:"subject_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // 必须小于 pongWait
	maxMessageSize = 1024
	sendBuffer     = 32
)

// Client 一个 WebSocket 连接
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	UserID int64
}

type delivery struct {
	userID int64
	data   []byte
}

// Hub 按用户管理连接。一个用户可以同时有多个连接（多端登录）
type Hub struct {
	clients    map[int64]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	done       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex // 只保护 clients 的读取方（Online）
}

// NewHub creates a hub; call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.UserID] == nil {
				h.clients[c.UserID] = make(map[*Client]bool)
			}
			h.clients[c.UserID][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.remove(c)

		case d := <-h.deliver:
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.clients[d.userID]))
			for c := range h.clients[d.userID] {
				targets = append(targets, c)
			}
			h.mu.RUnlock()

			for _, c := range targets {
				select {
				case c.send <- d.data:
				default:
					// 客户端太慢，断开
					logger.Warn("Dropping slow notification client", logger.Int64("user", c.UserID))
					h.remove(c)
				}
			}

		case <-h.done:
			h.mu.Lock()
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[int64]map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.UserID]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
}

// Stop 停止 Hub 并关闭所有连接的发送通道
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Attach registers a new client for userID. conn may be nil in tests.
func (h *Hub) Attach(userID int64, conn *websocket.Conn) *Client {
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), UserID: userID}
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
	return c
}

// Detach unregisters c.
func (h *Hub) Detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Notify 异步推送事件给用户的所有连接，用户不在线时丢弃
func (h *Hub) Notify(userID int64, ev Event) {
	if h == nil {
		return
	}
	ev.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("Failed to marshal notification", logger.ErrorField(err))
		return
	}
	select {
	case h.deliver <- delivery{userID: userID, data: data}:
	case <-h.done:
	default:
		logger.Warn("Notification queue full, dropping event",
			logger.Int64("user", userID),
			logger.String("type", string(ev.Type)))
	}
}

// Online returns the number of open connections of userID.
func (h *Hub) Online(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Messages exposes the outgoing queue of the client.
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// ReadPump 读循环。客户端发来的内容被丢弃，只用来感知断开
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err), logger.Int64("user", c.UserID))
			}
			return
		}
	}
}

// WritePump 写循环，定时发送 ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
