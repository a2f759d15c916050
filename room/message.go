package room

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// 客户端 -> 房间 的消息类型
const (
	MsgMove      = "move"
	MsgStartSlap = "startSlap" // 开始挥掌（手势开始）
	MsgSlapPunch = "slapPunch" // 掌击命中
	MsgRestart   = "restart"
)

// RestartMode 决定 restart 消息的载荷格式
type RestartMode int

const (
	// RestartByID 载荷是目标玩家 ID 字符串，重生到随机点
	RestartByID RestartMode = iota
	// RestartAtPosition 载荷带目标 ID 与新位置
	RestartAtPosition
)

type position struct {
	X *float64 `json:"x"`
	Z *float64 `json:"z"`
}

func (p *position) vector() (Vector2, bool) {
	if p == nil || p.X == nil || p.Z == nil {
		return Vector2{}, false
	}
	return Vector2{X: *p.X, Z: *p.Z}, true
}

// moveMessage {"positionX":5,"positionZ":-2,"rotationY":0.5}
type moveMessage struct {
	PositionX *float64 `json:"positionX"`
	PositionZ *float64 `json:"positionZ"`
	RotationY *float64 `json:"rotationY"`
}

// spawnMessage 加入选项与按位置重生共用：{"playerId":"p1","position":{"x":3,"z":4},"rotation":1.2}
type spawnMessage struct {
	PlayerID string    `json:"playerId"`
	Position *position `json:"position"`
	Rotation *float64  `json:"rotation"`
}

// Move 已校验的移动意图
type Move struct {
	Position  Vector2
	RotationY float64
}

// Restart 已校验的重生意图；Spawn 为 nil 表示随机点
type Restart struct {
	PlayerID string
	Spawn    *Spawn
}

func isAbsent(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// DecodeMove 三个字段缺一不可
func DecodeMove(raw json.RawMessage) (Move, error) {
	if isAbsent(raw) {
		return Move{}, fmt.Errorf("move: empty payload: %w", ErrInvalidPayload)
	}
	var m moveMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return Move{}, fmt.Errorf("move: %v: %w", err, ErrInvalidPayload)
	}
	if m.PositionX == nil || m.PositionZ == nil || m.RotationY == nil {
		return Move{}, fmt.Errorf("move: positionX, positionZ and rotationY are required: %w", ErrInvalidPayload)
	}
	return Move{
		Position:  Vector2{X: *m.PositionX, Z: *m.PositionZ},
		RotationY: *m.RotationY,
	}, nil
}

// DecodeJoin 解析加入选项。没有载荷时返回 nil（随机出生）；rotation 缺省为 0
func DecodeJoin(raw json.RawMessage) (*Spawn, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	var m spawnMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("join: %v: %w", err, ErrInvalidPayload)
	}
	pos, ok := m.Position.vector()
	if !ok {
		return nil, fmt.Errorf("join: position.x and position.z are required: %w", ErrInvalidPayload)
	}
	spawn := &Spawn{Position: pos}
	if m.Rotation != nil {
		spawn.Rotation = *m.Rotation
	}
	return spawn, nil
}

// DecodeRestart 按模式解析 restart 载荷
func DecodeRestart(mode RestartMode, raw json.RawMessage) (Restart, error) {
	if isAbsent(raw) {
		return Restart{}, fmt.Errorf("restart: empty payload: %w", ErrInvalidPayload)
	}
	switch mode {
	case RestartByID:
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return Restart{}, fmt.Errorf("restart: player id must be a string: %w", ErrInvalidPayload)
		}
		if id == "" {
			return Restart{}, fmt.Errorf("restart: empty player id: %w", ErrInvalidPayload)
		}
		return Restart{PlayerID: id}, nil
	case RestartAtPosition:
		var m spawnMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return Restart{}, fmt.Errorf("restart: %v: %w", err, ErrInvalidPayload)
		}
		if m.PlayerID == "" {
			return Restart{}, fmt.Errorf("restart: playerId is required: %w", ErrInvalidPayload)
		}
		pos, ok := m.Position.vector()
		if !ok {
			return Restart{}, fmt.Errorf("restart: position.x and position.z are required: %w", ErrInvalidPayload)
		}
		spawn := &Spawn{Position: pos}
		if m.Rotation != nil {
			spawn.Rotation = *m.Rotation
		}
		return Restart{PlayerID: m.PlayerID, Spawn: spawn}, nil
	default:
		return Restart{}, fmt.Errorf("restart: unknown mode %d: %w", mode, ErrInvalidPayload)
	}
}
