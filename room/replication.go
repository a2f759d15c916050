package room

import "sort"

// Snapshot 某一时刻房间状态的值拷贝，可以安全地交给其他协程编码
type Snapshot struct {
	Seq       uint64
	FieldSize int
	Players   map[string]Player
}

// Patch 两个快照之间的增量
type Patch struct {
	Seq     uint64
	Changed map[string]Player
	Removed []string
}

// Empty 增量中不包含任何变化
func (p Patch) Empty() bool {
	return len(p.Changed) == 0 && len(p.Removed) == 0
}

// Snapshot 拷贝当前状态，Seq 取当前 Version
func (s *State) Snapshot() Snapshot {
	players := make(map[string]Player, len(s.players))
	for id, p := range s.players {
		players[id] = *p
	}
	return Snapshot{Seq: s.version, FieldSize: s.FieldSize, Players: players}
}

// Diff 计算 prev -> next 的增量：新增或变化的玩家放入 Changed，消失的放入 Removed（排序）
func Diff(prev, next Snapshot) Patch {
	patch := Patch{Seq: next.Seq, Changed: make(map[string]Player)}
	for id, p := range next.Players {
		if old, ok := prev.Players[id]; !ok || old != p {
			patch.Changed[id] = p
		}
	}
	for id := range prev.Players {
		if _, ok := next.Players[id]; !ok {
			patch.Removed = append(patch.Removed, id)
		}
	}
	sort.Strings(patch.Removed)
	return patch
}
