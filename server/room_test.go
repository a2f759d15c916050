package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slaparena/room"
)

func TestRoom_JoinSendsWelcomeThenSnapshot(t *testing.T) {
	r := newTestRoom(t, "solo", RoomOptions{})
	p1 := &fakeSender{}

	require.NoError(t, joinNow(r, "p1", "", p1))
	r.step()

	frames := p1.decoded(t)
	require.Len(t, frames, 2)
	assert.Equal(t, FrameWelcome, frames[0].Type)
	var welcome WelcomeMsg
	require.NoError(t, json.Unmarshal(frames[0].Data, &welcome))
	assert.Equal(t, "p1", welcome.SessionID)
	assert.Equal(t, "solo", welcome.Variant)
	assert.Equal(t, 4, welcome.MaxClients)

	assert.Equal(t, FrameState, frames[1].Type)
	assert.True(t, frames[1].Full)
	assert.Contains(t, frames[1].Players, "p1")
	assert.Equal(t, room.StatusActive, r.Status())
	assert.Equal(t, 1, r.PlayerCount())
}

func TestRoom_CapacityEnforcedAtBoundary(t *testing.T) {
	r := newTestRoom(t, "solo", RoomOptions{})
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, joinNow(r, id, "", &fakeSender{}))
	}

	err := joinNow(r, "e", "", &fakeSender{})
	assert.ErrorIs(t, err, room.ErrCapacityExceeded)
	assert.Equal(t, 4, r.ctrl.PlayerCount())
	assert.Equal(t, int64(1), r.metrics.Rejected("capacity_exceeded"))
}

func TestRoom_InvalidJoinPayload(t *testing.T) {
	r := newTestRoom(t, "standard", RoomOptions{})
	conn := &fakeSender{}

	err := joinNow(r, "p1", `{"rotation":1}`, conn)
	assert.ErrorIs(t, err, room.ErrInvalidPayload)
	assert.Empty(t, conn.decoded(t), "rejected join gets no frames from the room")
	assert.Equal(t, 0, r.ctrl.PlayerCount())
}

func TestRoom_MoveReplicatedAsPatch(t *testing.T) {
	r := newTestRoom(t, "standard", RoomOptions{})
	p1, p2 := &fakeSender{}, &fakeSender{}
	require.NoError(t, joinNow(r, "p1", `{"position":{"x":0,"z":0}}`, p1))
	require.NoError(t, joinNow(r, "p2", `{"position":{"x":3,"z":4},"rotation":1.2}`, p2))
	r.step()

	full := p2.ofType(t, FrameState)
	require.Len(t, full, 1)
	assert.Equal(t, room.Player{Position: room.Vector2{X: 3, Z: 4}, RotationY: 1.2}, full[0].Players["p2"])

	send(r, "p1", room.MsgMove, `{"positionX":5,"positionZ":-2,"rotationY":0.5}`)
	r.step()

	states := p2.ofType(t, FrameState)
	require.Len(t, states, 2)
	patch := states[1]
	assert.False(t, patch.Full)
	assert.Greater(t, patch.Seq, full[0].Seq)
	require.Len(t, patch.Players, 1)
	assert.Equal(t, room.Player{Position: room.Vector2{X: 5, Z: -2}, RotationY: 0.5}, patch.Players["p1"])

	// 没有变化时不发状态帧
	r.step()
	assert.Len(t, p2.ofType(t, FrameState), 2)
	assert.Empty(t, p1.ofType(t, room.MsgMove), "move is never acknowledged")
}

func TestRoom_StateSequenceMonotonic(t *testing.T) {
	r := newTestRoom(t, "solo", RoomOptions{})
	p1 := &fakeSender{}
	require.NoError(t, joinNow(r, "p1", "", p1))
	r.step()

	for i := 0; i < 5; i++ {
		send(r, "p1", room.MsgMove, `{"positionX":1,"positionZ":1,"rotationY":0}`)
		require.NoError(t, joinNow(r, "late"+string(rune('a'+i)), "", &fakeSender{}))
		r.step()
		r.apply(command{kind: cmdLeave, sessionID: "late" + string(rune('a'+i))})
		r.step()
	}

	var last uint64
	for _, f := range p1.ofType(t, FrameState) {
		assert.Greater(t, f.Seq, last)
		last = f.Seq
	}
}

func TestRoom_GestureExcludesSender(t *testing.T) {
	r := newTestRoom(t, "solo", RoomOptions{})
	senders := map[string]*fakeSender{"p1": {}, "p2": {}, "p3": {}}
	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, joinNow(r, id, "", senders[id]))
	}
	r.step()

	send(r, "p1", room.MsgStartSlap, `{"dir":1}`)
	send(r, "p2", room.MsgSlapPunch, `{"target":"p3"}`)
	r.step()

	assert.Empty(t, senders["p1"].ofType(t, room.MsgStartSlap))
	assert.Len(t, senders["p2"].ofType(t, room.MsgStartSlap), 1)
	assert.Len(t, senders["p3"].ofType(t, room.MsgStartSlap), 1)
	assert.JSONEq(t, `{"dir":1}`, string(senders["p3"].ofType(t, room.MsgStartSlap)[0].Data))

	assert.Empty(t, senders["p2"].ofType(t, room.MsgSlapPunch))
	assert.Len(t, senders["p1"].ofType(t, room.MsgSlapPunch), 1)
	assert.Len(t, senders["p3"].ofType(t, room.MsgSlapPunch), 1)
	assert.Equal(t, int64(2), r.metrics.EventsBroadcast)
}

func TestRoom_RestartBroadcastToEveryone(t *testing.T) {
	r := newTestRoom(t, "solo", RoomOptions{})
	p1, p2 := &fakeSender{}, &fakeSender{}
	require.NoError(t, joinNow(r, "p1", "", p1))
	require.NoError(t, joinNow(r, "p2", "", p2))
	r.step()

	send(r, "p1", room.MsgRestart, `"p1"`)
	r.step()

	for _, s := range []*fakeSender{p1, p2} {
		events := s.ofType(t, room.MsgRestart)
		require.Len(t, events, 1)
		var info room.RestartInfo
		require.NoError(t, json.Unmarshal(events[0].Data, &info))
		assert.Equal(t, "p1", info.PlayerID)
		p, _ := r.ctrl.Player("p1")
		assert.Equal(t, p, info.Player)
	}
}

func TestRoom_LeaveThenMoveIsDropped(t *testing.T) {
	r := newTestRoom(t, "solo", RoomOptions{})
	p1, p2 := &fakeSender{}, &fakeSender{}
	require.NoError(t, joinNow(r, "p1", "", p1))
	require.NoError(t, joinNow(r, "p2", "", p2))
	r.step()

	r.RequestLeave("p2")
	r.step()
	assert.True(t, p2.isClosed())
	states := p1.ofType(t, FrameState)
	assert.Equal(t, []string{"p2"}, states[len(states)-1].Removed)

	framesBefore := len(p1.decoded(t))
	send(r, "p2", room.MsgMove, `{"positionX":1,"positionZ":1,"rotationY":0}`)
	r.step()
	assert.Len(t, p1.decoded(t), framesBefore, "rejected move produces no broadcast")
	assert.Equal(t, int64(1), r.metrics.Rejected("unknown_session"))
}

func TestRoom_RateLimitPerTick(t *testing.T) {
	r := newTestRoom(t, "solo", RoomOptions{MaxInputsPerTick: 2})
	require.NoError(t, joinNow(r, "p1", "", &fakeSender{}))

	for i := 0; i < 5; i++ {
		send(r, "p1", room.MsgMove, `{"positionX":1,"positionZ":1,"rotationY":0}`)
	}
	r.step()
	assert.Equal(t, int64(2), r.metrics.InputsAccepted)
	assert.Equal(t, int64(3), r.metrics.RateLimited)

	send(r, "p1", room.MsgMove, `{"positionX":2,"positionZ":2,"rotationY":0}`)
	r.step()
	assert.Equal(t, int64(3), r.metrics.InputsAccepted, "counter resets every tick")
}

func TestRoom_InboxFullDiscards(t *testing.T) {
	r := newTestRoom(t, "solo", RoomOptions{InputBuffer: 2})
	for i := 0; i < 5; i++ {
		send(r, "p1", room.MsgMove, `{}`)
	}
	assert.Equal(t, int64(3), r.metrics.ChanFullDiscarded)
}

func TestRoom_PanicInHandlerIsRecovered(t *testing.T) {
	r := newTestRoom(t, "solo", RoomOptions{})
	reply := make(chan error, 1)
	r.apply(command{kind: cmdExec, exec: func() { panic("boom") }, reply: reply})

	err := <-reply
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int64(1), r.metrics.PanicsRecovered)

	require.NoError(t, joinNow(r, "p1", "", &fakeSender{}), "room keeps working after a panic")
}

func TestRoom_TickerLifecycle(t *testing.T) {
	disposed := make(chan *Room, 1)
	r := newTestRoom(t, "solo", RoomOptions{
		TickInterval: 2 * time.Millisecond,
		AutoDispose:  true,
		OnDispose:    func(r *Room) { disposed <- r },
	})
	r.StartTicker()
	r.StartTicker()

	p1 := &fakeSender{}
	require.NoError(t, r.Join("p1", nil, p1))
	require.Eventually(t, func() bool { return len(p1.ofType(t, FrameState)) == 1 }, time.Second, 2*time.Millisecond)

	var n int
	require.NoError(t, r.Do(func() { n = r.ctrl.PlayerCount() }))
	assert.Equal(t, 1, n)

	r.RequestLeave("p1")
	select {
	case got := <-disposed:
		assert.Same(t, r, got)
	case <-time.After(time.Second):
		t.Fatal("empty room was not disposed")
	}
	<-r.Done()
	assert.Equal(t, room.StatusDisposed, r.Status())

	assert.ErrorIs(t, r.Join("p2", nil, &fakeSender{}), room.ErrRoomDisposed)
	assert.ErrorIs(t, r.Do(func() {}), room.ErrRoomDisposed)
	r.RequestLeave("p2")
	r.Stop()
}

func TestRoom_StopClosesClients(t *testing.T) {
	r := newTestRoom(t, "lobby", RoomOptions{TickInterval: 2 * time.Millisecond})
	r.StartTicker()
	p1 := &fakeSender{}
	require.NoError(t, r.Join("p1", json.RawMessage(`{"position":{"x":1,"z":2}}`), p1))

	r.Stop()
	r.Stop()
	assert.True(t, p1.isClosed())
	assert.Equal(t, room.StatusDisposed, r.Status())
}

func TestRoom_StopWithoutTicker(t *testing.T) {
	r := newTestRoom(t, "solo", RoomOptions{})
	require.NoError(t, joinNow(r, "p1", "", &fakeSender{}))
	r.Stop()
	<-r.Done()
	assert.Equal(t, room.StatusDisposed, r.Status())
}
