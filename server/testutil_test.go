package server

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"slaparena/room"
)

// fakeSender 记录发给某个客户端的帧
type fakeSender struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (f *fakeSender) Send(fr Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.frames = append(f.frames, fr)
}

func (f *fakeSender) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// testFrame 同时覆盖事件帧与 JSON 状态帧
type testFrame struct {
	Type    string                 `json:"type"`
	Data    json.RawMessage        `json:"data"`
	Seq     uint64                 `json:"seq"`
	Full    bool                   `json:"full"`
	Players map[string]room.Player `json:"players"`
	Removed []string               `json:"removed"`
}

func (f *fakeSender) decoded(t *testing.T) []testFrame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]testFrame, 0, len(f.frames))
	for _, fr := range f.frames {
		require.False(t, fr.Binary, "json codec must produce text frames")
		var tf testFrame
		require.NoError(t, json.Unmarshal(fr.Data, &tf))
		out = append(out, tf)
	}
	return out
}

func (f *fakeSender) ofType(t *testing.T, typ string) []testFrame {
	t.Helper()
	var out []testFrame
	for _, tf := range f.decoded(t) {
		if tf.Type == typ {
			out = append(out, tf)
		}
	}
	return out
}

func newTestRoom(t *testing.T, variant string, opts RoomOptions) *Room {
	t.Helper()
	v, err := room.VariantByName(variant)
	require.NoError(t, err)
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	return NewRoom("test-"+variant, v, opts)
}

// joinNow 直接在当前协程处理加入（不启动 Tick）
func joinNow(r *Room, sessionID, options string, conn Sender) error {
	reply := make(chan error, 1)
	var raw json.RawMessage
	if options != "" {
		raw = json.RawMessage(options)
	}
	r.apply(command{kind: cmdJoin, sessionID: sessionID, options: raw, conn: conn, reply: reply})
	return <-reply
}

func send(r *Room, sessionID, msgType, data string) {
	r.OnInput(Input{SessionID: sessionID, Type: msgType, Data: json.RawMessage(data)})
}
