package server

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (m *RoomManager) lookup(w http.ResponseWriter, req *http.Request) (*Room, bool) {
	roomID := req.URL.Query().Get("room")
	if roomID == "" {
		roomID = "room-1"
	}
	r, ok := m.GetRoom(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return nil, false
	}
	return r, true
}

// HandleAdminConfig 提供房间运行参数的读取与更新（热更新）
// GET /admin/config?room=room-1  返回当前配置
// POST /admin/config?room=room-1 以 JSON 载荷更新部分字段
func (m *RoomManager) HandleAdminConfig(w http.ResponseWriter, req *http.Request) {
	r, ok := m.lookup(w, req)
	if !ok {
		return
	}

	type cfg struct {
		MaxInputsPerTick *int `json:"maxInputsPerTick,omitempty"`
	}

	switch req.Method {
	case http.MethodGet:
		var cur cfg
		// 在房间协程里读取，避免与 Tick 竞争
		if err := r.Do(func() {
			n := r.maxInputsPerTick
			cur.MaxInputsPerTick = &n
		}); err != nil {
			http.Error(w, err.Error(), http.StatusGone)
			return
		}
		writeJSON(w, http.StatusOK, cur)
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := r.Do(func() {
			if body.MaxInputsPerTick != nil {
				r.maxInputsPerTick = *body.MaxInputsPerTick
			}
		}); err != nil {
			http.Error(w, err.Error(), http.StatusGone)
			return
		}
		Log.Infow("config updated", "room", r.ID, "max_inputs_per_tick", body.MaxInputsPerTick)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=room-1
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, req *http.Request) {
	r, ok := m.lookup(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":    r.ID,
		"variant": r.Variant().Name,
		"status":  r.Status().String(),
		"players": r.PlayerCount(),
		"tick":    r.TickSeq(),
		"metrics": r.Metrics().Snapshot(),
	})
}

// HandleRooms 列出当前所有房间
// GET /rooms
func (m *RoomManager) HandleRooms(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, m.Rooms())
}

// SetupRoutes 注册 WebSocket、管理与监控接口；webDir 非空时挂载静态资源
func SetupRoutes(m *RoomManager, webDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.HandleWS)
	if webDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(webDir)))
	}
	mux.HandleFunc("/admin/config", m.HandleAdminConfig)
	mux.HandleFunc("/metrics", m.HandleMetrics)
	mux.HandleFunc("/rooms", m.HandleRooms)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
