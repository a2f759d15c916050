package room

import (
	"fmt"
	"sort"
)

// Variant 房间配置：容量、是否接受加入选项、支持的消息集合
// 三种房间只在这些参数上不同，共用同一个 Controller
type Variant struct {
	Name               string
	MaxClients         int
	FieldSize          int
	AcceptsJoinPayload bool
	RestartMode        RestartMode
	Messages           map[string]bool
}

// Supports 该房间是否处理此消息类型
func (v Variant) Supports(msgType string) bool {
	return v.Messages[msgType]
}

func messageSet(types ...string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

// SoloPractice 练习房：最多 4 人，随机出生，restart 载荷为玩家 ID
func SoloPractice() Variant {
	return Variant{
		Name:        "solo",
		MaxClients:  4,
		FieldSize:   DefaultFieldSize,
		RestartMode: RestartByID,
		Messages:    messageSet(MsgMove, MsgStartSlap, MsgSlapPunch, MsgRestart),
	}
}

// Standard 标准对局房：最多 10 人，按客户端给定位置出生与重生
func Standard() Variant {
	return Variant{
		Name:               "standard",
		MaxClients:         10,
		FieldSize:          DefaultFieldSize,
		AcceptsJoinPayload: true,
		RestartMode:        RestartAtPosition,
		Messages:           messageSet(MsgMove, MsgStartSlap, MsgSlapPunch, MsgRestart),
	}
}

// Lobby 大厅：最多 10 人，只处理移动
func Lobby() Variant {
	return Variant{
		Name:               "lobby",
		MaxClients:         10,
		FieldSize:          DefaultFieldSize,
		AcceptsJoinPayload: true,
		Messages:           messageSet(MsgMove),
	}
}

var builtin = map[string]func() Variant{
	"solo":     SoloPractice,
	"standard": Standard,
	"lobby":    Lobby,
}

// VariantByName 按名称取内置房间配置，每次返回新的副本
func VariantByName(name string) (Variant, error) {
	f, ok := builtin[name]
	if !ok {
		return Variant{}, fmt.Errorf("unknown room variant %q", name)
	}
	return f(), nil
}

// VariantNames 内置房间名称（排序）
func VariantNames() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
