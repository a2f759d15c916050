package room

// Player 房间内一个已加入会话的权威状态（会被复制给所有客户端）
type Player struct {
	Position  Vector2 `json:"position" msgpack:"position"`
	RotationY float64 `json:"rotationY" msgpack:"rotationY"`
	// Speed 目前没有任何消息会修改，仅为协议兼容保留
	Speed float64 `json:"speed" msgpack:"speed"`
}

// RestartInfo 重生广播的载荷，仅用于序列化，不存储
type RestartInfo struct {
	PlayerID string `json:"playerId" msgpack:"playerId"`
	Player   Player `json:"player" msgpack:"player"`
}

// Spawn 出生点：位置加朝向
type Spawn struct {
	Position Vector2
	Rotation float64
}
