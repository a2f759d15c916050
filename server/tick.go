package server

import "time"

const (
	// TicksPerSecond 默认复制频率（20 TPS）
	TicksPerSecond = 20
)

var tickInterval = time.Duration(1000/TicksPerSecond) * time.Millisecond // 50ms

// StartTicker 启动房间的 Tick 循环（单线程推进房间）
func (r *Room) StartTicker() {
	if !r.tickerStarted.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				r.dispose()
				return
			case <-ticker.C:
				if !r.step() {
					r.dispose()
					return
				}
			}
		}
	}()
}

// step 核心循环：处理输入 → 复制状态；返回 false 表示房间应当释放
func (r *Room) step() bool {
	start := time.Now()
	r.BeginTick() // 同一 Tick 时间线：重置输入计数等帧内状态
	r.ProcessInputs()
	r.BroadcastDelta()
	r.publish()
	r.metrics.AddTick(time.Since(start).Nanoseconds())
	return !r.shouldDispose()
}

// Stop 请求释放房间并等待 Tick 协程退出；未启动 Tick 的房间直接释放
func (r *Room) Stop() {
	if !r.stopped.CompareAndSwap(false, true) {
		<-r.done
		return
	}
	if !r.tickerStarted.Load() {
		r.dispose()
		close(r.done)
		return
	}
	close(r.stop)
	<-r.done
}
