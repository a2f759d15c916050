package room

import (
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// DefaultFieldSize 默认场地边长，出生区域为 [-FieldSize/2, FieldSize/2)
const DefaultFieldSize = 15

// State 房间的权威状态：会话 ID -> Player
// 只在房间所属的单个协程内访问，因此不加锁
type State struct {
	FieldSize int

	players map[string]*Player
	rng     *rand.Rand
	version uint64 // 每次成功修改递增，复制时作为序列号
}

// NewState 创建房间状态；fieldSize <= 0 时使用默认值，rng 为 nil 时按时间播种
func NewState(fieldSize int, rng *rand.Rand) *State {
	if fieldSize <= 0 {
		fieldSize = DefaultFieldSize
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &State{
		FieldSize: fieldSize,
		players:   make(map[string]*Player),
		rng:       rng,
	}
}

// CreatePlayer 为会话创建玩家。spawn 为 nil 时在场地内随机取点，朝向为 0
// 会话已存在时返回 ErrDuplicateSession，原有玩家保持不变
func (s *State) CreatePlayer(sessionID string, spawn *Spawn) error {
	if _, ok := s.players[sessionID]; ok {
		return fmt.Errorf("create player %q: %w", sessionID, ErrDuplicateSession)
	}
	p := &Player{}
	if spawn != nil {
		p.Position = spawn.Position
		p.RotationY = spawn.Rotation
	} else {
		p.Position = s.RandomFieldPoint()
	}
	s.players[sessionID] = p
	s.version++
	return nil
}

// RemovePlayer 移除玩家；不存在时什么都不做（离开可能与其他清理竞争）
func (s *State) RemovePlayer(sessionID string) bool {
	if _, ok := s.players[sessionID]; !ok {
		return false
	}
	delete(s.players, sessionID)
	s.version++
	return true
}

// MovePlayer 覆盖位置与朝向，不校验位移（客户端可信）
func (s *State) MovePlayer(sessionID string, pos Vector2, rotationY float64) error {
	p, ok := s.players[sessionID]
	if !ok {
		return fmt.Errorf("move player %q: %w", sessionID, ErrUnknownSession)
	}
	p.Position = pos
	p.RotationY = rotationY
	s.version++
	return nil
}

// RespawnPlayer 将玩家放到新的出生点并返回重生广播载荷
// spawn 为 nil 时随机取点，朝向归零
func (s *State) RespawnPlayer(playerID string, spawn *Spawn) (RestartInfo, error) {
	p, ok := s.players[playerID]
	if !ok {
		return RestartInfo{}, fmt.Errorf("respawn player %q: %w", playerID, ErrUnknownPlayer)
	}
	if spawn != nil {
		p.Position = spawn.Position
		p.RotationY = spawn.Rotation
	} else {
		p.Position = s.RandomFieldPoint()
		p.RotationY = 0
	}
	s.version++
	return RestartInfo{PlayerID: playerID, Player: *p}, nil
}

// RandomFieldPoint 在场地整数格点上均匀取点
func (s *State) RandomFieldPoint() Vector2 {
	half := s.FieldSize / 2
	return Vector2{
		X: float64(s.rng.Intn(s.FieldSize) - half),
		Z: float64(s.rng.Intn(s.FieldSize) - half),
	}
}

// Player 返回玩家的副本
func (s *State) Player(sessionID string) (Player, bool) {
	p, ok := s.players[sessionID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Has 会话是否已在房间内
func (s *State) Has(sessionID string) bool {
	_, ok := s.players[sessionID]
	return ok
}

// Len 当前玩家数
func (s *State) Len() int { return len(s.players) }

// Version 已应用的修改次数
func (s *State) Version() uint64 { return s.version }

// SessionIDs 按字典序返回所有会话 ID
func (s *State) SessionIDs() []string {
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
