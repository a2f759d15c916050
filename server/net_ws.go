package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"slaparena/room"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16
	joinAttempts   = 3
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws     *websocket.Conn
	send   chan Frame
	mu     sync.Mutex
	closed bool
}

func NewClientConn(ws *websocket.Conn, buffer int) *ClientConn {
	if buffer <= 0 {
		buffer = 64
	}
	return &ClientConn{
		ws:   ws,
		send: make(chan Frame, buffer),
	}
}

// Send 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Send(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- f:
	default:
		// 为了实时性，丢弃新消息（防止阻塞 Tick）
	}
}

// Close 关闭发送队列，写协程发出关闭帧后退出；可重复调用
func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case f, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			msgType := websocket.TextMessage
			if f.Binary {
				msgType = websocket.BinaryMessage
			}
			if err := c.ws.WriteMessage(msgType, f.Data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息，转换为 Input 注入房间
func (c *ClientConn) readPump(r *Room, sessionID string) {
	defer c.ws.Close()
	// 读泵退出时，通知房间在 Tick 线程中移除该玩家
	defer r.RequestLeave(sessionID)
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugw("ws read error", "room", r.ID, "session", sessionID, "error", err)
			}
			return
		}
		var im InputMessage
		if err := json.Unmarshal(payload, &im); err != nil || im.Type == "" {
			r.metrics.IncRejected(room.ErrorKind(room.ErrInvalidPayload))
			continue
		}
		r.OnInput(Input{SessionID: sessionID, Type: im.Type, Data: im.Data})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：/ws?room=room-1&variant=standard&options={"position":{"x":3,"z":4},"rotation":1.2}
// 会话 ID 由服务端分配，通过 welcome 帧告知客户端
func (m *RoomManager) HandleWS(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	roomID := q.Get("room")
	if roomID == "" {
		roomID = "room-1"
	}
	variant := q.Get("variant")
	var options json.RawMessage
	if raw := q.Get("options"); raw != "" {
		if !json.Valid([]byte(raw)) {
			http.Error(w, "options must be JSON", http.StatusBadRequest)
			return
		}
		options = json.RawMessage(raw)
	}

	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		Log.Warnw("upgrade error", "error", err)
		return
	}

	sessionID := uuid.NewString()
	client := NewClientConn(ws, m.cfg.SendBuffer)
	go client.writePump()

	r, err := m.join(roomID, variant, sessionID, options, client)
	if err != nil {
		Log.Infow("join failed", "room", roomID, "session", sessionID, "error", err)
		if f, encErr := EncodeEvent(FrameError, ErrorMsg{Msg: err.Error()}); encErr == nil {
			client.Send(f)
		}
		client.Close()
		return
	}

	go client.readPump(r, sessionID)
}

// join 房间可能在拿到引用后恰好被释放，此时换一个新实例重试
func (m *RoomManager) join(roomID, variant, sessionID string, options json.RawMessage, conn Sender) (*Room, error) {
	var lastErr error
	for i := 0; i < joinAttempts; i++ {
		r, err := m.GetOrCreateRoom(roomID, variant)
		if err != nil {
			return nil, err
		}
		err = r.Join(sessionID, options, conn)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, room.ErrRoomDisposed) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
