package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"macroprox/game"
	"macroprox/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

func (f *fakeConn) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("fake send failure")
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

// drain 解码并清空已记录的帧
func (f *fakeConn) drain(t *testing.T) []protocol.Message {
	t.Helper()
	f.mu.Lock()
	frames := f.frames
	f.frames = nil
	f.mu.Unlock()

	out := make([]protocol.Message, 0, len(frames))
	for _, b := range frames {
		m, err := protocol.Decode(b)
		if err != nil {
			t.Fatalf("decode sent frame: %v", err)
		}
		out = append(out, m)
	}
	return out
}

var spawn = game.Position{X: 400, Y: 300}

func newTestHost(t *testing.T) *Host {
	t.Helper()
	st := game.NewState(spawn)
	if err := (game.DefaultMap{}).Load(st, game.Player{ID: 0, Name: "host", Colour: game.White}); err != nil {
		t.Fatalf("load map: %v", err)
	}
	return NewHost(st, Options{})
}

func join(h *Host, conn Conn) uuid.UUID {
	sid := uuid.New()
	h.handle(event{kind: evJoined, sid: sid, conn: conn})
	return sid
}

func deliver(t *testing.T, h *Host, sid uuid.UUID, m protocol.Message) {
	t.Helper()
	b, err := protocol.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	h.handle(event{kind: evReceived, sid: sid, frame: b})
}

func register(t *testing.T, h *Host, name string) (uuid.UUID, *fakeConn, uint8) {
	t.Helper()
	fc := &fakeConn{}
	sid := join(h, fc)
	deliver(t, h, sid, protocol.RegisterPlayer{Name: name, Colour: game.White})
	msgs := fc.drain(t)
	for _, m := range msgs {
		if info, ok := m.(protocol.SendPlayerInfo); ok {
			return sid, fc, info.YourID
		}
	}
	t.Fatalf("no SendPlayerInfo for %s, got %v", name, msgs)
	return sid, fc, 0
}

func TestRegistrationAssignsSequentialIDs(t *testing.T) {
	h := newTestHost(t)
	for want := uint8(1); want <= 3; want++ {
		_, _, id := register(t, h, "p")
		if id != want {
			t.Fatalf("id = %d, want %d", id, want)
		}
		if _, ok := h.st.Player(id); !ok {
			t.Fatalf("player %d not inserted", id)
		}
	}
}

func TestRegistrationSendOrder(t *testing.T) {
	h := newTestHost(t)
	_, first, _ := register(t, h, "first")

	fc := &fakeConn{}
	sid := join(h, fc)
	deliver(t, h, sid, protocol.RegisterPlayer{Name: "second", Colour: game.White})

	msgs := fc.drain(t)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %v", len(msgs), msgs)
	}
	sm, ok := msgs[0].(protocol.SendMap)
	if !ok || len(sm.Buildings) != len(game.DefaultMap{}.Buildings()) {
		t.Fatalf("first message = %#v, want SendMap with buildings", msgs[0])
	}
	info, ok := msgs[1].(protocol.SendPlayerInfo)
	if !ok || info.YourID != 2 {
		t.Fatalf("second message = %#v, want SendPlayerInfo for id 2", msgs[1])
	}
	if len(info.Players) != 3 || info.Players[0].ID != 0 || info.Players[2].ID != 2 {
		t.Fatalf("player list = %+v", info.Players)
	}
	if info.Players[2].Position != spawn {
		t.Fatalf("new player at %v, want spawn", info.Players[2].Position)
	}
	if ready, ok := msgs[2].(protocol.AllowClientReady); !ok || ready.ID != 2 {
		t.Fatalf("third message = %#v, want AllowClientReady{2}", msgs[2])
	}

	others := first.drain(t)
	if len(others) != 1 {
		t.Fatalf("existing session got %d messages, want 1", len(others))
	}
	add, ok := others[0].(protocol.AddPlayer)
	if !ok || add.Player.ID != 2 || add.Player.Name != "second" {
		t.Fatalf("existing session got %#v, want AddPlayer{2}", others[0])
	}

	s, _ := h.reg.Get(sid)
	if s.State != Active {
		t.Fatalf("session state = %s, want active", s.State)
	}
}

func TestRegisterTwiceIgnored(t *testing.T) {
	h := newTestHost(t)
	sid, fc, id := register(t, h, "a")
	deliver(t, h, sid, protocol.RegisterPlayer{Name: "again"})

	if msgs := fc.drain(t); len(msgs) != 0 {
		t.Fatalf("second registration produced %v", msgs)
	}
	if p, _ := h.st.Player(id); p.Name != "a" {
		t.Fatalf("player renamed to %q", p.Name)
	}
	if len(h.st.Players()) != 2 {
		t.Fatalf("players = %d, want 2", len(h.st.Players()))
	}
}

func TestMoveLastWriteWins(t *testing.T) {
	h := newTestHost(t)
	sid, _, id := register(t, h, "a")

	deliver(t, h, sid, protocol.Move{Position: game.Position{X: 1, Y: 2}})
	deliver(t, h, sid, protocol.Move{Position: game.Position{X: 3, Y: 4}})

	p, _ := h.st.Player(id)
	if p.Position != (game.Position{X: 3, Y: 4}) {
		t.Fatalf("position = %v, want last move", p.Position)
	}
	if got := h.metrics.MovesApplied.Load(); got != 2 {
		t.Fatalf("moves applied = %d", got)
	}
}

func TestMoveBeforeRegisterIgnored(t *testing.T) {
	h := newTestHost(t)
	sid := join(h, &fakeConn{})
	deliver(t, h, sid, protocol.Move{Position: game.Position{X: 9, Y: 9}})

	if len(h.st.Players()) != 1 {
		t.Fatalf("unregistered move created a player")
	}
	if got := h.metrics.IgnoredFrames.Load(); got != 1 {
		t.Fatalf("ignored = %d, want 1", got)
	}
}

func TestStaleMoveIsNoop(t *testing.T) {
	h := newTestHost(t)
	sid, _, id := register(t, h, "a")
	h.st.RemovePlayer(id)

	deliver(t, h, sid, protocol.Move{Position: game.Position{X: 5, Y: 5}})

	if _, ok := h.st.Player(id); ok {
		t.Fatalf("stale move resurrected player %d", id)
	}
	if got := h.metrics.StaleMoves.Load(); got != 1 {
		t.Fatalf("stale moves = %d, want 1", got)
	}
}

func TestDisconnectRemovesPlayer(t *testing.T) {
	h := newTestHost(t)
	sidA, fcA, idA := register(t, h, "a")
	_, fcB, _ := register(t, h, "b")
	fcA.drain(t)

	h.handle(event{kind: evLeft, sid: sidA})

	if _, ok := h.st.Player(idA); ok {
		t.Fatalf("player %d still present", idA)
	}
	if _, ok := h.reg.Get(sidA); ok {
		t.Fatalf("session still registered")
	}
	if !fcA.isClosed() {
		t.Fatalf("connection not closed")
	}
	msgs := fcB.drain(t)
	if len(msgs) != 1 {
		t.Fatalf("remaining session got %v", msgs)
	}
	if rm, ok := msgs[0].(protocol.RemovePlayer); !ok || rm.ID != idA {
		t.Fatalf("got %#v, want RemovePlayer{%d}", msgs[0], idA)
	}

	// 重复断开与断开后的帧均无副作用
	h.handle(event{kind: evLeft, sid: sidA})
	deliver(t, h, sidA, protocol.Move{Position: game.Position{X: 1, Y: 1}})
	if msgs := fcB.drain(t); len(msgs) != 0 {
		t.Fatalf("second disconnect produced %v", msgs)
	}
	if _, ok := h.st.Player(idA); ok {
		t.Fatalf("move after disconnect re-added player")
	}
	if got := h.metrics.Disconnects.Load(); got != 1 {
		t.Fatalf("disconnects = %d, want 1", got)
	}
}

func TestDisconnectBeforeRegisterSendsNothing(t *testing.T) {
	h := newTestHost(t)
	_, fcA, _ := register(t, h, "a")
	sid := join(h, &fakeConn{})
	h.handle(event{kind: evLeft, sid: sid})

	if msgs := fcA.drain(t); len(msgs) != 0 {
		t.Fatalf("unregistered disconnect broadcast %v", msgs)
	}
	if _, ok := h.st.Player(0); !ok {
		t.Fatalf("host player removed")
	}
}

func TestMalformedFrameKeepsSession(t *testing.T) {
	h := newTestHost(t)
	sid, fc, id := register(t, h, "a")

	h.handle(event{kind: evReceived, sid: sid, frame: []byte{0xc1, 0xff, 0x00}})
	h.handle(event{kind: evReceived, sid: sid, frame: nil})

	if fc.isClosed() {
		t.Fatalf("malformed frame closed the session")
	}
	if got := h.metrics.DecodeFaults.Load(); got != 2 {
		t.Fatalf("decode faults = %d, want 2", got)
	}
	deliver(t, h, sid, protocol.Move{Position: game.Position{X: 7, Y: 7}})
	if p, _ := h.st.Player(id); p.Position != (game.Position{X: 7, Y: 7}) {
		t.Fatalf("session unusable after malformed frame")
	}
}

func TestServerBoundVariantsIgnored(t *testing.T) {
	h := newTestHost(t)
	sid, fc, id := register(t, h, "a")
	before := h.st.Snapshot()

	variants := []protocol.Message{
		protocol.SendMap{Buildings: []game.Building{{Width: 1, Height: 1}}},
		protocol.SendPlayerInfo{Players: []game.Player{{ID: 9}}, YourID: 9},
		protocol.AllowClientReady{ID: 9},
		protocol.MovedPlayers{Players: []protocol.PlayerPosition{{ID: id, Position: game.Position{X: -1}}}},
		protocol.AddPlayer{Player: game.Player{ID: 9}},
		protocol.RemovePlayer{ID: id},
	}
	for _, m := range variants {
		deliver(t, h, sid, m)
	}

	after := h.st.Snapshot()
	if len(after.Players) != len(before.Players) || len(after.Buildings) != len(before.Buildings) {
		t.Fatalf("server-bound variants changed state")
	}
	if p := after.Players[id]; p != before.Players[id] {
		t.Fatalf("player changed: %+v", p)
	}
	if msgs := fc.drain(t); len(msgs) != 0 {
		t.Fatalf("no-op variants produced %v", msgs)
	}
	if got := h.metrics.IgnoredFrames.Load(); got != int64(len(variants)) {
		t.Fatalf("ignored = %d, want %d", got, len(variants))
	}
}

func TestTickBroadcastsOnlyChanges(t *testing.T) {
	h := newTestHost(t)
	sidA, fcA, idA := register(t, h, "a")
	_, fcB, _ := register(t, h, "b")
	fcA.drain(t)

	h.tick()
	first := fcB.drain(t)
	if len(first) != 1 {
		t.Fatalf("first tick sent %d messages", len(first))
	}
	batch := first[0].(protocol.MovedPlayers).Players
	if len(batch) != 3 || batch[0].ID != 0 || batch[1].ID != 1 || batch[2].ID != 2 {
		t.Fatalf("first batch = %+v, want ids 0,1,2", batch)
	}
	fcA.drain(t)

	h.tick()
	if msgs := fcB.drain(t); len(msgs) != 0 {
		t.Fatalf("unchanged tick sent %v", msgs)
	}

	deliver(t, h, sidA, protocol.Move{Position: game.Position{X: 1, Y: 1}})
	h.tick()
	for _, fc := range []*fakeConn{fcA, fcB} {
		msgs := fc.drain(t)
		if len(msgs) != 1 {
			t.Fatalf("changed tick sent %d messages", len(msgs))
		}
		got := msgs[0].(protocol.MovedPlayers).Players
		want := protocol.PlayerPosition{ID: idA, Position: game.Position{X: 1, Y: 1}}
		if len(got) != 1 || got[0] != want {
			t.Fatalf("batch = %+v, want [%+v]", got, want)
		}
	}
	if got := h.metrics.BatchesSent.Load(); got != 2 {
		t.Fatalf("batches = %d, want 2", got)
	}
}

func TestFailedSendDisconnects(t *testing.T) {
	h := newTestHost(t)
	_, fcA, _ := register(t, h, "a")
	sidB, fcB, idB := register(t, h, "b")
	fcA.drain(t)

	fcB.setFail(true)
	h.tick()

	if _, ok := h.reg.Get(sidB); ok {
		t.Fatalf("failing session not removed")
	}
	if _, ok := h.st.Player(idB); ok {
		t.Fatalf("failing session's player not removed")
	}
	var removed bool
	for _, m := range fcA.drain(t) {
		if rm, ok := m.(protocol.RemovePlayer); ok && rm.ID == idB {
			removed = true
		}
	}
	if !removed {
		t.Fatalf("remaining session not told about removal")
	}
}

func TestIDExhaustionRefuses(t *testing.T) {
	h := newTestHost(t)
	h.reg.nextID = MaxPlayerID
	if _, _, id := register(t, h, "last"); id != MaxPlayerID {
		t.Fatalf("id = %d, want %d", id, MaxPlayerID)
	}

	fc := &fakeConn{}
	sid := join(h, fc)
	deliver(t, h, sid, protocol.RegisterPlayer{Name: "overflow"})

	if !fc.isClosed() {
		t.Fatalf("refused session not closed")
	}
	if msgs := fc.drain(t); len(msgs) != 0 {
		t.Fatalf("refused session got %v", msgs)
	}
	if got := h.metrics.Refused.Load(); got != 1 {
		t.Fatalf("refused = %d", got)
	}
}

func TestRunBroadcastsOnTimer(t *testing.T) {
	st := game.NewState(spawn)
	if err := (game.DefaultMap{}).Load(st, game.Player{ID: 0, Name: "host"}); err != nil {
		t.Fatalf("load map: %v", err)
	}
	h := NewHost(st, Options{BroadcastDelay: 5 * time.Millisecond, BroadcastInterval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	fc := &fakeConn{}
	sid := uuid.New()
	h.Join(sid, fc)
	b, _ := protocol.Encode(protocol.RegisterPlayer{Name: "a"})
	h.Receive(sid, b)

	deadline := time.After(2 * time.Second)
	var seen []protocol.Message
	for {
		seen = append(seen, fc.drain(t)...)
		var moved bool
		for _, m := range seen {
			if _, ok := m.(protocol.MovedPlayers); ok {
				moved = true
			}
		}
		if moved {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("no MovedPlayers broadcast, got %v", seen)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if _, ok := seen[0].(protocol.SendMap); !ok {
		t.Fatalf("first message = %#v, want SendMap", seen[0])
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if !fc.isClosed() {
		t.Fatalf("shutdown did not close sessions")
	}
	// 循环退出后投递不阻塞
	h.Leave(sid)
}
