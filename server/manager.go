package server

import (
	"fmt"
	"sort"
	"sync"

	"slaparena/room"
)

// RoomInfo 房间列表项
type RoomInfo struct {
	ID         string `json:"id"`
	Variant    string `json:"variant"`
	Status     string `json:"status"`
	Players    int    `json:"players"`
	MaxClients int    `json:"maxClients"`
	Tick       uint64 `json:"tick"`
}

// RoomManager 管理多个房间的生命周期；房间之间没有共享状态
type RoomManager struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	presets map[string]string // roomID -> 预设的房间类型
	cfg     RoomConfig
	codec   Codec
	closed  bool
}

// NewRoomManager 按房间配置创建管理器
func NewRoomManager(cfg RoomConfig) (*RoomManager, error) {
	codec, err := CodecByName(cfg.StateCodec)
	if err != nil {
		return nil, err
	}
	if cfg.DefaultVariant == "" {
		cfg.DefaultVariant = "solo"
	}
	if _, err := room.VariantByName(cfg.DefaultVariant); err != nil {
		return nil, err
	}
	return &RoomManager{
		rooms:   make(map[string]*Room),
		presets: make(map[string]string),
		cfg:     cfg,
		codec:   codec,
	}, nil
}

// Preset 固定某个房间 ID 的类型，之后按该 ID 创建时使用
func (m *RoomManager) Preset(id, variant string) error {
	if _, err := room.VariantByName(variant); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presets[id] = variant
	return nil
}

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick
// variant 为空时使用预设或默认类型；已存在的房间忽略 variant
func (m *RoomManager) GetOrCreateRoom(id, variant string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("room manager is shut down")
	}
	if r, ok := m.rooms[id]; ok {
		return r, nil
	}
	if variant == "" {
		variant = m.presets[id]
	}
	if variant == "" {
		variant = m.cfg.DefaultVariant
	}
	v, err := room.VariantByName(variant)
	if err != nil {
		return nil, err
	}
	r := NewRoom(id, v, RoomOptions{
		Codec:            m.codec,
		TickInterval:     m.cfg.TickInterval(),
		MaxInputsPerTick: m.cfg.MaxInputsPerTick,
		InputBuffer:      m.cfg.InputBuffer,
		AutoDispose:      m.cfg.AutoDispose,
		OnDispose:        m.remove,
	})
	m.rooms[id] = r
	r.StartTicker()
	Log.Infow("room created", "room", id, "variant", v.Name, "max_clients", v.MaxClients)
	return r, nil
}

// GetRoom 查找房间
func (m *RoomManager) GetRoom(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// remove 房间释放回调；只删除同一个实例
func (m *RoomManager) remove(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[r.ID]; ok && cur == r {
		delete(m.rooms, r.ID)
	}
}

// Rooms 按 ID 排序的房间列表
func (m *RoomManager) Rooms() []RoomInfo {
	m.mu.RLock()
	list := make([]RoomInfo, 0, len(m.rooms))
	for _, r := range m.rooms {
		v := r.Variant()
		list = append(list, RoomInfo{
			ID:         r.ID,
			Variant:    v.Name,
			Status:     r.Status().String(),
			Players:    r.PlayerCount(),
			MaxClients: v.MaxClients,
			Tick:       r.TickSeq(),
		})
	}
	m.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Shutdown 释放所有房间并拒绝新建
func (m *RoomManager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range rooms {
		wg.Add(1)
		go func(r *Room) {
			defer wg.Done()
			r.Stop()
		}(r)
	}
	wg.Wait()
}
