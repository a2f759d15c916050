package server

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"slaparena/room"
)

// 服务端 -> 客户端 的帧类型（事件类型直接沿用消息名，如 startSlap / restart）
const (
	FrameState   = "state"
	FrameWelcome = "welcome"
	FrameError   = "error"
)

// Frame 待写出的一条 WebSocket 消息
type Frame struct {
	Binary bool
	Data   []byte
}

// Envelope 所有文本事件的外层结构
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// StateFrame 复制通道的一帧：Full 为 true 时是完整快照，否则是增量
type StateFrame struct {
	Type      string                 `json:"type" msgpack:"type"`
	Seq       uint64                 `json:"seq" msgpack:"seq"`
	Full      bool                   `json:"full" msgpack:"full"`
	FieldSize int                    `json:"fieldSize,omitempty" msgpack:"fieldSize,omitempty"`
	Players   map[string]room.Player `json:"players" msgpack:"players"`
	Removed   []string               `json:"removed,omitempty" msgpack:"removed,omitempty"`
}

// WelcomeMsg 加入成功后只发给本人
type WelcomeMsg struct {
	SessionID  string `json:"sessionId"`
	Room       string `json:"room"`
	Variant    string `json:"variant"`
	MaxClients int    `json:"maxClients"`
}

// ErrorMsg 加入失败时发回客户端
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// FullFrame 由快照构造完整帧
func FullFrame(s room.Snapshot) StateFrame {
	return StateFrame{Type: FrameState, Seq: s.Seq, Full: true, FieldSize: s.FieldSize, Players: s.Players}
}

// PatchFrame 由增量构造增量帧
func PatchFrame(p room.Patch) StateFrame {
	return StateFrame{Type: FrameState, Seq: p.Seq, Players: p.Changed, Removed: p.Removed}
}

// Codec 状态帧编码方式
type Codec interface {
	Name() string
	Encode(f StateFrame) (Frame, error)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(f StateFrame) (Frame, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Data: b}, nil
}

// msgpackCodec 二进制帧，体积更小
type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Encode(f StateFrame) (Frame, error) {
	b, err := msgpack.Marshal(f)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Binary: true, Data: b}, nil
}

// CodecByName json | msgpack
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return jsonCodec{}, nil
	case "msgpack":
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown state codec %q", name)
	}
}

// EncodeEvent 文本事件帧
func EncodeEvent(eventType string, payload any) (Frame, error) {
	b, err := json.Marshal(Envelope{Type: eventType, Data: payload})
	if err != nil {
		return Frame{}, err
	}
	return Frame{Data: b}, nil
}
