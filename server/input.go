package server

import "encoding/json"

// Input 某个会话发来的一条消息（意图），在房间协程中解释
type Input struct {
	SessionID string
	Type      string
	Data      json.RawMessage
}

// 入站消息的 JSON 结构（WebSocket 文本消息）
// 示例：{"type":"move","data":{"positionX":5,"positionZ":-2,"rotationY":0.5}}
type InputMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type commandKind int

const (
	cmdInput commandKind = iota
	cmdJoin
	cmdLeave
	cmdExec
)

// command 房间收件箱里的一项，按到达顺序处理
type command struct {
	kind      commandKind
	input     Input
	sessionID string
	options   json.RawMessage
	conn      Sender
	exec      func()
	reply     chan error
}
