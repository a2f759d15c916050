package server

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"slaparena/room"
)

// Sender 客户端发送端；只会在房间协程中被调用，实现不得阻塞
type Sender interface {
	Send(f Frame)
	Close()
}

// RoomOptions 创建房间的运行参数
type RoomOptions struct {
	Codec            Codec
	TickInterval     time.Duration
	MaxInputsPerTick int // <= 0 表示不限
	InputBuffer      int
	AutoDispose      bool // 有人加入过且再次变空时自动释放
	Rand             *rand.Rand
	OnDispose        func(*Room)
}

// Room 房间宿主：持有一个 room.Controller，所有回调、广播都在单个 Tick 协程中执行
type Room struct {
	ID string

	variant room.Variant
	ctrl    *room.Controller
	codec   Codec
	log     *zap.SugaredLogger

	clients map[string]Sender
	fresh   map[string]bool // 已加入但还没收到完整快照的会话
	last    room.Snapshot   // 上一次复制出去的状态

	inbox chan command
	stop  chan struct{}
	done  chan struct{}

	tickInterval     time.Duration
	maxInputsPerTick int
	inputsThisTick   map[string]int
	autoDispose      bool
	onDispose        func(*Room)

	tickSeq     atomic.Uint64
	playerCount atomic.Int32
	status      atomic.Int32
	metrics     *RoomMetrics

	tickerStarted atomic.Bool
	stopped       atomic.Bool
}

// NewRoom 创建房间，初始化数据结构（不启动 Tick）
func NewRoom(id string, v room.Variant, opts RoomOptions) *Room {
	if opts.Codec == nil {
		opts.Codec = jsonCodec{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = tickInterval
	}
	if opts.InputBuffer <= 0 {
		opts.InputBuffer = 256 // 足够缓冲，避免网络读阻塞影响 Tick
	}
	log := Log.With("room", id)
	r := &Room{
		ID:               id,
		variant:          v,
		codec:            opts.Codec,
		log:              log,
		clients:          make(map[string]Sender),
		fresh:            make(map[string]bool),
		inbox:            make(chan command, opts.InputBuffer),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
		tickInterval:     opts.TickInterval,
		maxInputsPerTick: opts.MaxInputsPerTick,
		inputsThisTick:   make(map[string]int),
		autoDispose:      opts.AutoDispose,
		onDispose:        opts.OnDispose,
		metrics:          &RoomMetrics{},
	}
	ctrlOpts := []room.Option{room.WithLogger(log)}
	if opts.Rand != nil {
		ctrlOpts = append(ctrlOpts, room.WithRand(opts.Rand))
	}
	// Room 自身实现 room.Broadcaster
	r.ctrl = room.NewController(v, r, ctrlOpts...)
	return r
}

// Variant 房间配置
func (r *Room) Variant() room.Variant { return r.variant }

// Metrics 运行指标
func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// TickSeq 已执行的 Tick 数
func (r *Room) TickSeq() uint64 { return r.tickSeq.Load() }

// PlayerCount 最近一次 Tick 结束时的玩家数（可在任意协程读取）
func (r *Room) PlayerCount() int { return int(r.playerCount.Load()) }

// Status 最近一次 Tick 结束时的生命周期状态（可在任意协程读取）
func (r *Room) Status() room.Status { return room.Status(r.status.Load()) }

// Done 房间释放后关闭
func (r *Room) Done() <-chan struct{} { return r.done }

// Join 请求加入房间，阻塞到下一次 Tick 处理完成
// 容量在这里检查，超出时返回 ErrCapacityExceeded，不会到达控制器
func (r *Room) Join(sessionID string, options json.RawMessage, conn Sender) error {
	reply := make(chan error, 1)
	cmd := command{kind: cmdJoin, sessionID: sessionID, options: options, conn: conn, reply: reply}
	select {
	case r.inbox <- cmd:
	case <-r.done:
		return fmt.Errorf("join %q: %w", sessionID, room.ErrRoomDisposed)
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		// 释放前已处理完的加入以结果为准
		select {
		case err := <-reply:
			return err
		default:
		}
		return fmt.Errorf("join %q: %w", sessionID, room.ErrRoomDisposed)
	}
}

// OnInput 入站消息（不立即应用），等下一次 Tick 处理；收件箱满时丢弃
func (r *Room) OnInput(in Input) {
	select {
	case r.inbox <- command{kind: cmdInput, input: in}:
	default:
		// 丢弃：为了实时性，避免背压影响世界推进
		r.metrics.IncChanFullDiscarded()
	}
}

// RequestLeave 请求在 Tick 线程中移除玩家，避免并发改动房间状态
func (r *Room) RequestLeave(sessionID string) {
	// 离开必须生效，阻塞写入；房间已释放时直接返回
	select {
	case r.inbox <- command{kind: cmdLeave, sessionID: sessionID}:
	case <-r.done:
	}
}

// Do 在房间协程中执行 fn 并等待完成（管理接口用）
func (r *Room) Do(fn func()) error {
	reply := make(chan error, 1)
	select {
	case r.inbox <- command{kind: cmdExec, exec: fn, reply: reply}:
	case <-r.done:
		return room.ErrRoomDisposed
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return room.ErrRoomDisposed
	}
}

// Broadcast 实现 room.Broadcaster：事件编码一次，发给除 Except 外的所有客户端
func (r *Room) Broadcast(ev room.Event) {
	f, err := EncodeEvent(ev.Type, ev.Payload)
	if err != nil {
		r.log.Errorw("encode event", "type", ev.Type, "error", err)
		return
	}
	for id, c := range r.clients {
		if id == ev.Except {
			continue
		}
		c.Send(f)
	}
	r.metrics.IncEvents()
}

// BeginTick 重置帧内状态（同帧输入计数）
func (r *Room) BeginTick() {
	r.tickSeq.Add(1)
	clear(r.inputsThisTick)
}

// ProcessInputs 按到达顺序处理收件箱中的所有命令（非阻塞 drain）
func (r *Room) ProcessInputs() {
	for {
		select {
		case cmd := <-r.inbox:
			r.apply(cmd)
		default:
			return
		}
	}
}

// apply 单条命令出错（包括 panic）只影响这一条
func (r *Room) apply(cmd command) {
	defer func() {
		if p := recover(); p != nil {
			r.metrics.IncPanics()
			r.log.Errorw("recovered panic in room handler", "panic", p, "kind", cmd.kind)
			if cmd.reply != nil {
				cmd.reply <- fmt.Errorf("internal error: %v", p)
			}
		}
	}()

	switch cmd.kind {
	case cmdJoin:
		cmd.reply <- r.handleJoin(cmd.sessionID, cmd.options, cmd.conn)
	case cmdLeave:
		r.handleLeave(cmd.sessionID)
	case cmdInput:
		r.handleInput(cmd.input)
	case cmdExec:
		cmd.exec()
		cmd.reply <- nil
	}
}

func (r *Room) handleJoin(sessionID string, options json.RawMessage, conn Sender) error {
	if len(r.clients) >= r.variant.MaxClients {
		r.metrics.IncRejected(room.ErrorKind(room.ErrCapacityExceeded))
		return fmt.Errorf("join %q: %w", sessionID, room.ErrCapacityExceeded)
	}
	if err := r.ctrl.OnJoin(sessionID, options); err != nil {
		r.metrics.IncRejected(room.ErrorKind(err))
		r.log.Warnw("join rejected", "session", sessionID, "error", err)
		return err
	}
	r.clients[sessionID] = conn
	r.fresh[sessionID] = true
	r.metrics.IncJoins()

	welcome, err := EncodeEvent(FrameWelcome, WelcomeMsg{
		SessionID:  sessionID,
		Room:       r.ID,
		Variant:    r.variant.Name,
		MaxClients: r.variant.MaxClients,
	})
	if err == nil {
		conn.Send(welcome)
	}
	return nil
}

func (r *Room) handleLeave(sessionID string) {
	r.ctrl.OnLeave(sessionID)
	if c, ok := r.clients[sessionID]; ok {
		c.Close()
		delete(r.clients, sessionID)
		delete(r.fresh, sessionID)
		r.metrics.IncLeaves()
	}
}

func (r *Room) handleInput(in Input) {
	if r.maxInputsPerTick > 0 {
		r.inputsThisTick[in.SessionID]++
		if r.inputsThisTick[in.SessionID] > r.maxInputsPerTick {
			r.metrics.IncRateLimited()
			return
		}
	}
	if err := r.ctrl.OnMessage(in.SessionID, in.Type, in.Data); err != nil {
		// 局部错误：丢弃这条消息，连接保持
		r.metrics.IncRejected(room.ErrorKind(err))
		r.log.Debugw("message dropped", "session", in.SessionID, "type", in.Type, "error", err)
		return
	}
	r.metrics.IncAccepted()
}

// BroadcastDelta 状态有变化时给已有基线的客户端发增量，新加入的客户端发完整快照
// 两者的 Seq 都取当前 Version，因此每个客户端看到的序号单调递增
func (r *Room) BroadcastDelta() {
	if len(r.clients) == 0 {
		return
	}
	next := r.ctrl.Snapshot()
	sent := 0

	if next.Seq != r.last.Seq {
		patch := room.Diff(r.last, next)
		if !patch.Empty() {
			f, err := r.codec.Encode(PatchFrame(patch))
			if err != nil {
				r.log.Errorw("encode state patch", "error", err)
			} else {
				for id, c := range r.clients {
					if r.fresh[id] {
						continue
					}
					c.Send(f)
					sent++
				}
			}
		}
		r.last = next
	}

	if len(r.fresh) > 0 {
		f, err := r.codec.Encode(FullFrame(next))
		if err != nil {
			r.log.Errorw("encode state snapshot", "error", err)
		} else {
			for id := range r.fresh {
				if c, ok := r.clients[id]; ok {
					c.Send(f)
					sent++
				}
			}
			clear(r.fresh)
		}
	}
	r.metrics.AddStateFrames(sent)
}

// shouldDispose 有人加入过而现在空了
func (r *Room) shouldDispose() bool {
	return r.autoDispose && r.ctrl.Status() == room.StatusActive && r.ctrl.PlayerCount() == 0
}

func (r *Room) publish() {
	r.playerCount.Store(int32(r.ctrl.PlayerCount()))
	r.status.Store(int32(r.ctrl.Status()))
}

// dispose 释放控制器、断开剩余客户端，只在 Tick 协程中调用
func (r *Room) dispose() {
	r.ctrl.Dispose()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
	clear(r.fresh)
	r.publish()
	if r.onDispose != nil {
		r.onDispose(r)
	}
	r.log.Infow("room disposed", "ticks", r.tickSeq.Load())
}
