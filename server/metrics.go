package server

import (
	"sync"
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	InputsAccepted    int64 // 成功应用的消息数
	RateLimited       int64 // 因同帧限流被拒绝的输入数
	ChanFullDiscarded int64 // 因收件箱满被丢弃的输入数
	EventsBroadcast   int64 // 事件广播次数（手势、重生）
	StateFrames       int64 // 发出的状态帧数（按客户端计）
	Joins             int64
	Leaves            int64
	PanicsRecovered   int64
	TotalTickNs       int64 // Tick 累计耗时（纳秒）

	mu       sync.Mutex
	rejected map[string]int64 // 按错误分类统计被丢弃的消息
}

func (m *RoomMetrics) IncAccepted()          { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *RoomMetrics) IncRateLimited()       { atomic.AddInt64(&m.RateLimited, 1) }
func (m *RoomMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *RoomMetrics) IncEvents()            { atomic.AddInt64(&m.EventsBroadcast, 1) }
func (m *RoomMetrics) AddStateFrames(n int)  { atomic.AddInt64(&m.StateFrames, int64(n)) }
func (m *RoomMetrics) IncJoins()             { atomic.AddInt64(&m.Joins, 1) }
func (m *RoomMetrics) IncLeaves()            { atomic.AddInt64(&m.Leaves, 1) }
func (m *RoomMetrics) IncPanics()            { atomic.AddInt64(&m.PanicsRecovered, 1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// IncRejected 按错误分类计数
func (m *RoomMetrics) IncRejected(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejected == nil {
		m.rejected = make(map[string]int64)
	}
	m.rejected[kind]++
}

// Rejected 某分类被丢弃的消息数
func (m *RoomMetrics) Rejected(kind string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected[kind]
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	m.mu.Lock()
	rejected := make(map[string]int64, len(m.rejected))
	for k, v := range m.rejected {
		rejected[k] = v
	}
	m.mu.Unlock()
	return map[string]any{
		"tick_count":          tick,
		"inputs_accepted":     atomic.LoadInt64(&m.InputsAccepted),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"events_broadcast":    atomic.LoadInt64(&m.EventsBroadcast),
		"state_frames":        atomic.LoadInt64(&m.StateFrames),
		"joins":               atomic.LoadInt64(&m.Joins),
		"leaves":              atomic.LoadInt64(&m.Leaves),
		"panics_recovered":    atomic.LoadInt64(&m.PanicsRecovered),
		"rejected":            rejected,
		"avg_tick_ms":         avgMs,
	}
}
