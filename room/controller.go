package room

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
)

// Status 房间生命周期：Created -> Active -> Disposing -> Disposed
type Status int

const (
	StatusCreated Status = iota
	StatusActive
	StatusDisposing
	StatusDisposed
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusActive:
		return "active"
	case StatusDisposing:
		return "disposing"
	case StatusDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Event 一次性事件广播，不进入复制状态，没有回放
// Except 非空时该会话不会收到
type Event struct {
	Type    string
	Payload any
	Except  string
}

// Broadcaster 由宿主实现：把事件交给所有（或排除一个）已连接客户端，不得阻塞
type Broadcaster interface {
	Broadcast(ev Event)
}

// Controller 一个房间的控制器：持有唯一的 State，把消息绑定到状态修改并触发广播
// 所有方法必须在房间所属的单个协程中调用
type Controller struct {
	variant Variant
	state   *State
	status  Status
	out     Broadcaster
	log     *zap.SugaredLogger
	rng     *rand.Rand
}

// Option 控制器可选项
type Option func(*Controller)

// WithLogger 设置日志，默认不输出
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRand 指定随机源（测试用）
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

// NewController 按房间配置创建控制器
func NewController(v Variant, out Broadcaster, opts ...Option) *Controller {
	c := &Controller{
		variant: v,
		out:     out,
		log:     zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(c)
	}
	c.state = NewState(v.FieldSize, c.rng)
	return c
}

// Variant 房间配置
func (c *Controller) Variant() Variant { return c.variant }

// Status 当前生命周期状态
func (c *Controller) Status() Status { return c.status }

// PlayerCount 当前玩家数；释放后为 0
func (c *Controller) PlayerCount() int {
	if c.state == nil {
		return 0
	}
	return c.state.Len()
}

// Player 读取玩家副本
func (c *Controller) Player(sessionID string) (Player, bool) {
	if c.state == nil {
		return Player{}, false
	}
	return c.state.Player(sessionID)
}

// Version 状态修改序号，宿主据此判断是否需要复制
func (c *Controller) Version() uint64 {
	if c.state == nil {
		return 0
	}
	return c.state.Version()
}

// Snapshot 复制通道读取的状态快照
func (c *Controller) Snapshot() Snapshot {
	if c.state == nil {
		return Snapshot{FieldSize: c.variant.FieldSize, Players: map[string]Player{}}
	}
	return c.state.Snapshot()
}

func (c *Controller) alive() error {
	if c.status == StatusDisposing || c.status == StatusDisposed {
		return ErrRoomDisposed
	}
	return nil
}

// OnJoin 客户端加入。容量由宿主在调用前检查
func (c *Controller) OnJoin(sessionID string, payload json.RawMessage) error {
	if err := c.alive(); err != nil {
		return fmt.Errorf("join %q: %w", sessionID, err)
	}
	var spawn *Spawn
	if c.variant.AcceptsJoinPayload {
		s, err := DecodeJoin(payload)
		if err != nil {
			return err
		}
		spawn = s
	}
	if err := c.state.CreatePlayer(sessionID, spawn); err != nil {
		return err
	}
	if c.status == StatusCreated {
		c.status = StatusActive
	}
	p, _ := c.state.Player(sessionID)
	c.log.Infow("player joined", "variant", c.variant.Name, "session", sessionID,
		"x", p.Position.X, "z", p.Position.Z, "players", c.state.Len())
	return nil
}

// OnLeave 客户端离开，幂等
func (c *Controller) OnLeave(sessionID string) {
	if c.alive() != nil {
		return
	}
	if c.state.RemovePlayer(sessionID) {
		c.log.Infow("player left", "variant", c.variant.Name, "session", sessionID, "players", c.state.Len())
	}
}

// OnMessage 按消息类型分发。返回错误时状态未改变且没有任何广播
func (c *Controller) OnMessage(sessionID, msgType string, payload json.RawMessage) error {
	if err := c.alive(); err != nil {
		return fmt.Errorf("%s from %q: %w", msgType, sessionID, err)
	}
	if !c.variant.Supports(msgType) {
		return fmt.Errorf("%s in %s room: %w", msgType, c.variant.Name, ErrUnsupportedMessage)
	}
	switch msgType {
	case MsgMove:
		return c.handleMove(sessionID, payload)
	case MsgStartSlap, MsgSlapPunch:
		return c.relay(sessionID, msgType, payload)
	case MsgRestart:
		return c.handleRestart(sessionID, payload)
	default:
		return fmt.Errorf("%s: %w", msgType, ErrUnsupportedMessage)
	}
}

// handleMove 不回复发送者，变化通过下一次状态复制被所有人看到
func (c *Controller) handleMove(sessionID string, payload json.RawMessage) error {
	m, err := DecodeMove(payload)
	if err != nil {
		return err
	}
	return c.state.MovePlayer(sessionID, m.Position, m.RotationY)
}

// relay 手势消息原样转发给除发送者外的所有人，不修改状态
func (c *Controller) relay(sessionID, msgType string, payload json.RawMessage) error {
	if !c.state.Has(sessionID) {
		return fmt.Errorf("%s from %q: %w", msgType, sessionID, ErrUnknownSession)
	}
	if isAbsent(payload) {
		payload = json.RawMessage("null")
	}
	c.log.Debugw("relay gesture", "variant", c.variant.Name, "type", msgType, "session", sessionID)
	c.out.Broadcast(Event{Type: msgType, Payload: payload, Except: sessionID})
	return nil
}

// handleRestart 重生目标玩家并向所有人（包括发送者）广播 RestartInfo
func (c *Controller) handleRestart(sessionID string, payload json.RawMessage) error {
	r, err := DecodeRestart(c.variant.RestartMode, payload)
	if err != nil {
		return err
	}
	info, err := c.state.RespawnPlayer(r.PlayerID, r.Spawn)
	if err != nil {
		return err
	}
	c.log.Infow("player restarted", "variant", c.variant.Name, "by", sessionID, "player", r.PlayerID,
		"x", info.Player.Position.X, "z", info.Player.Position.Z)
	c.out.Broadcast(Event{Type: MsgRestart, Payload: info})
	return nil
}

// Dispose 释放状态。之后所有回调都返回 ErrRoomDisposed
func (c *Controller) Dispose() {
	if c.status == StatusDisposed {
		return
	}
	c.status = StatusDisposing
	c.log.Infow("room disposing", "variant", c.variant.Name, "players", c.PlayerCount())
	c.state = nil
	c.status = StatusDisposed
}
