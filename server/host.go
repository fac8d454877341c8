package server

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"macroprox/game"
	"macroprox/logger"
	"macroprox/protocol"
)

// Options Host 运行参数
type Options struct {
	BroadcastDelay    time.Duration
	BroadcastInterval time.Duration
	InboxSize         int // 收件箱容量，避免网络读阻塞事件循环
	SendBuffer        int // 每个连接的发送队列容量
}

// DefaultOptions 默认运行参数
func DefaultOptions() Options {
	return Options{
		BroadcastDelay:    DefaultBroadcastDelay,
		BroadcastInterval: DefaultBroadcastInterval,
		InboxSize:         256,
		SendBuffer:        64,
	}
}

// Host 权威服务端：单个事件循环独占会话表，并通过 State 的锁修改世界
type Host struct {
	st      *game.State
	opts    Options
	reg     *Registry
	differ  *Differ
	metrics *Metrics

	inbox    chan event
	done     chan struct{}
	interval atomic.Int64

	// 本轮处理中发送失败的会话，处理结束后统一断开
	failed []uuid.UUID
}

// NewHost 创建 Host；st 由调用方构造并与渲染端共享
func NewHost(st *game.State, opts Options) *Host {
	def := DefaultOptions()
	if opts.BroadcastDelay <= 0 {
		opts.BroadcastDelay = def.BroadcastDelay
	}
	if opts.BroadcastInterval <= 0 {
		opts.BroadcastInterval = def.BroadcastInterval
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = def.InboxSize
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	h := &Host{
		st:      st,
		opts:    opts,
		reg:     NewRegistry(),
		differ:  NewDiffer(),
		metrics: &Metrics{},
		inbox:   make(chan event, opts.InboxSize),
		done:    make(chan struct{}),
	}
	h.interval.Store(int64(opts.BroadcastInterval))
	return h
}

// Metrics 运行指标
func (h *Host) Metrics() *Metrics { return h.metrics }

// State 共享状态句柄
func (h *Host) State() *game.State { return h.st }

// Run 事件循环：处理收件箱事件与广播定时器，直到 ctx 取消
func (h *Host) Run(ctx context.Context) {
	defer close(h.done)
	timer := time.NewTimer(h.opts.BroadcastDelay)
	defer timer.Stop()

	logger.Log.Infof("host loop started: delay=%s interval=%s", h.opts.BroadcastDelay, h.Interval())
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			logger.Log.Info("host loop stopped")
			return
		case ev := <-h.inbox:
			h.handle(ev)
		case <-timer.C:
			h.tick()
			// 空批次也重置；间隔从处理结束时算起
			timer.Reset(h.Interval())
		}
	}
}

// Join 传输层接入新连接
func (h *Host) Join(sid uuid.UUID, conn Conn) {
	h.post(event{kind: evJoined, sid: sid, conn: conn})
}

// Receive 传输层收到一帧
func (h *Host) Receive(sid uuid.UUID, frame []byte) {
	h.post(event{kind: evReceived, sid: sid, frame: frame})
}

// Leave 传输层连接断开
func (h *Host) Leave(sid uuid.UUID) {
	h.post(event{kind: evLeft, sid: sid})
}

// post 投递事件；循环已退出时直接丢弃，避免读协程永久阻塞
func (h *Host) post(ev event) {
	select {
	case h.inbox <- ev:
	case <-h.done:
	}
}

func (h *Host) handle(ev event) {
	switch ev.kind {
	case evJoined:
		h.accept(ev.sid, ev.conn)
	case evReceived:
		h.receive(ev.sid, ev.frame)
	case evLeft:
		h.disconnect(ev.sid, "connection closed")
	}
	h.reap()
}

func (h *Host) accept(sid uuid.UUID, conn Conn) {
	if _, ok := h.reg.Get(sid); ok {
		logger.Log.Warnf("duplicate session %s ignored", sid)
		return
	}
	h.reg.Add(&Session{ID: sid, Conn: conn, State: Accepted, JoinedAt: time.Now()})
	h.metrics.ActiveSessions.Store(int64(h.reg.Len()))
	logger.Log.Infof("session %s accepted", sid)
}

func (h *Host) receive(sid uuid.UUID, frame []byte) {
	s, ok := h.reg.Get(sid)
	if !ok {
		logger.Log.Debugf("frame from unknown session %s dropped", sid)
		return
	}
	msg, err := protocol.Decode(frame)
	if err != nil {
		h.metrics.DecodeFaults.Add(1)
		logger.Log.Warnf("session %s: decode: %v", sid, err)
		return
	}

	switch m := msg.(type) {
	case protocol.RegisterPlayer:
		h.register(s, m)
	case protocol.Move:
		h.move(s, m)
	default:
		// 服务端→客户端方向的消息，收到即忽略
		h.metrics.IgnoredFrames.Add(1)
		logger.Log.Debugf("session %s: ignoring server-bound %s", sid, msg.Kind())
	}
}

func (h *Host) register(s *Session, m protocol.RegisterPlayer) {
	if s.State != Accepted {
		h.metrics.IgnoredFrames.Add(1)
		logger.Log.Warnf("session %s: RegisterPlayer in state %s ignored", s.ID, s.State)
		return
	}
	id, ok := h.reg.NextID()
	if !ok {
		h.metrics.Refused.Add(1)
		logger.Log.Warnf("session %s: player ids exhausted, refusing %q", s.ID, m.Name)
		h.disconnect(s.ID, "player ids exhausted")
		return
	}

	p := game.Player{ID: id, Name: m.Name, Position: h.st.Spawn(), Colour: m.Colour}
	h.st.AddPlayer(p)
	s.PlayerID = id
	s.Name = m.Name
	s.State = Registered
	h.metrics.Registrations.Add(1)
	logger.Log.Infof("session %s registered as player %d (%s)", s.ID, id, m.Name)

	players := h.st.Players()
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })

	// 顺序固定：地图 → 玩家列表 → 允许就绪
	h.send(s, protocol.SendMap{Buildings: h.st.Buildings()})
	h.send(s, protocol.SendPlayerInfo{Players: players, YourID: id})
	h.send(s, protocol.AllowClientReady{ID: id})

	h.broadcast(protocol.AddPlayer{Player: p}, s.ID)
	s.State = Active
}

func (h *Host) move(s *Session, m protocol.Move) {
	if s.State != Active {
		h.metrics.IgnoredFrames.Add(1)
		logger.Log.Debugf("session %s: Move in state %s ignored", s.ID, s.State)
		return
	}
	if !h.st.SetPosition(s.PlayerID, m.Position) {
		h.metrics.StaleMoves.Add(1)
		logger.Log.Debugf("session %s: Move for absent player %d dropped", s.ID, s.PlayerID)
		return
	}
	h.metrics.MovesApplied.Add(1)
}

// disconnect 删除会话与玩家并通知其余会话；重复调用无副作用
func (h *Host) disconnect(sid uuid.UUID, reason string) {
	s, ok := h.reg.Get(sid)
	if !ok {
		return
	}
	hadPlayer := s.HasPlayer()
	s.State = Disconnected
	h.reg.Remove(sid)
	h.metrics.ActiveSessions.Store(int64(h.reg.Len()))
	h.metrics.Disconnects.Add(1)
	_ = s.Conn.Close()

	if !hadPlayer {
		logger.Log.Infof("session %s disconnected before registering: %s", sid, reason)
		return
	}
	h.st.RemovePlayer(s.PlayerID)
	logger.Log.Infof("session %s (player %d) disconnected: %s", sid, s.PlayerID, reason)
	h.broadcast(protocol.RemovePlayer{ID: s.PlayerID}, sid)
}

// broadcast 编码一次，发给除 except 以外所有已绑定玩家的会话
func (h *Host) broadcast(m protocol.Message, except uuid.UUID) {
	frame, err := protocol.Encode(m)
	if err != nil {
		logger.Log.Errorf("encode %s: %v", m.Kind(), err)
		return
	}
	for _, s := range h.reg.Sessions() {
		if s.ID == except || !s.HasPlayer() {
			continue
		}
		h.sendFrame(s, frame)
	}
}

func (h *Host) send(s *Session, m protocol.Message) {
	frame, err := protocol.Encode(m)
	if err != nil {
		logger.Log.Errorf("encode %s: %v", m.Kind(), err)
		return
	}
	h.sendFrame(s, frame)
}

// sendFrame 发送失败的会话记入 failed，等本轮结束后断开
func (h *Host) sendFrame(s *Session, frame []byte) {
	if err := s.Conn.Send(frame); err != nil {
		h.metrics.SendFailures.Add(1)
		logger.Log.Warnf("session %s: send: %v", s.ID, err)
		h.failed = append(h.failed, s.ID)
	}
}

// reap 断开本轮发送失败的会话；断开时的广播可能产生新的失败，循环到清空
func (h *Host) reap() {
	for len(h.failed) > 0 {
		sid := h.failed[0]
		h.failed = h.failed[1:]
		h.disconnect(sid, "send failed")
	}
}

func (h *Host) shutdown() {
	for _, s := range h.reg.Sessions() {
		_ = s.Conn.Close()
	}
}
