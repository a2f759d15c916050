package room

// Vector2 地面坐标（x, z），值类型
type Vector2 struct {
	X float64 `json:"x" msgpack:"x"`
	Z float64 `json:"z" msgpack:"z"`
}

// Vector3 三维坐标，当前房间未使用，保留给垂直方向的移动
type Vector3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Ground 投影到地面
func (v Vector3) Ground() Vector2 {
	return Vector2{X: v.X, Z: v.Z}
}
