package game

import (
	"errors"
	"sync/atomic"

	"github.com/sasha-s/go-deadlock"
)

var (
	ErrBuildingsLoaded = errors.New("buildings already loaded")
	ErrOwnPlayerAbsent = errors.New("own player not present")
)

// State 权威/复制状态容器：网络上下文与渲染上下文共享同一个句柄。
// 所有读写都在 mu 内完成，临界区只做拷贝，不跨越网络发送或渲染。
type State struct {
	mu        deadlock.Mutex
	spawn     Position
	own       uint8
	readiness Readiness
	players   map[uint8]Player
	buildings []Building
	loaded    bool

	// fault 由锁故障回调写入，不经过 mu
	fault atomic.Pointer[string]
}

// World 快照：Snapshot 拷贝出来的独立副本，用于一帧的模拟/渲染
type World struct {
	Readiness Readiness
	Own       uint8
	Spawn     Position
	Players   map[uint8]Player
	Buildings []Building // 只写一次，切片只读共享
}

// OwnPlayer 返回本地玩家
func (w World) OwnPlayer() (Player, bool) {
	p, ok := w.Players[w.Own]
	return p, ok
}

// NewState 创建状态容器，初始为 Loading
func NewState(spawn Position) *State {
	return &State{
		spawn:     spawn,
		readiness: Readiness{Kind: Loading},
		players:   make(map[uint8]Player),
	}
}

// Fail 标记锁不可用等致命故障；不加锁，可在死锁回调中调用
func (s *State) Fail(msg string) {
	s.fault.CompareAndSwap(nil, &msg)
}

func (s *State) faulted() (Readiness, bool) {
	if msg := s.fault.Load(); msg != nil {
		return Readiness{Kind: Failed, Message: *msg}, true
	}
	return Readiness{}, false
}

// Readiness 当前加载状态
func (s *State) Readiness() Readiness {
	if r, ok := s.faulted(); ok {
		return r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readiness
}

// SetError 进入错误终态；已处于错误时保留第一条信息
func (s *State) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readiness.Kind == Failed {
		return
	}
	s.readiness = Readiness{Kind: Failed, Message: msg}
}

// MarkReady 切换到 Ready；要求本地玩家已存在，错误状态不可恢复
func (s *State) MarkReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readiness.Kind == Failed {
		return errors.New(s.readiness.Message)
	}
	if _, ok := s.players[s.own]; !ok {
		return ErrOwnPlayerAbsent
	}
	s.readiness = Readiness{Kind: Ready}
	return nil
}

// Spawn 出生点
func (s *State) Spawn() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawn
}

// Own 本地玩家 ID
func (s *State) Own() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.own
}

// SetOwn 设置本地玩家 ID（客户端收到 SendPlayerInfo 时）
func (s *State) SetOwn(id uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.own = id
}

// SetBuildings 写入地图建筑，只允许一次
func (s *State) SetBuildings(bs []Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return ErrBuildingsLoaded
	}
	s.buildings = append([]Building(nil), bs...)
	s.loaded = true
	return nil
}

// Buildings 建筑列表（只读）
func (s *State) Buildings() []Building {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildings
}

// Snapshot 拷贝出全部玩家与建筑；锁故障后只返回错误状态，不再等待锁
func (s *State) Snapshot() World {
	if r, ok := s.faulted(); ok {
		return World{Readiness: r}
	}
	s.mu.Lock()
	w := World{
		Readiness: s.readiness,
		Own:       s.own,
		Spawn:     s.spawn,
		Players:   make(map[uint8]Player, len(s.players)),
		Buildings: s.buildings,
	}
	for id, p := range s.players {
		w.Players[id] = p
	}
	s.mu.Unlock()

	if r, ok := s.faulted(); ok {
		w.Readiness = r
	}
	return w
}

// Players 玩家列表副本，按 ID 无序
func (s *State) Players() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	return out
}

// Player 按 ID 查询
func (s *State) Player(id uint8) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	return p, ok
}

// Positions 只拷贝位置，供广播比对
func (s *State) Positions() map[uint8]Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint8]Position, len(s.players))
	for id, p := range s.players {
		out[id] = p.Position
	}
	return out
}

// AddPlayer 插入或覆盖玩家
func (s *State) AddPlayer(p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = p
}

// RemovePlayer 删除玩家，返回是否存在
func (s *State) RemovePlayer(id uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.players[id]
	delete(s.players, id)
	return ok
}

// ReplacePlayers 用服务器下发的完整列表替换本地玩家
func (s *State) ReplacePlayers(ps []Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = make(map[uint8]Player, len(ps))
	for _, p := range ps {
		s.players[p.ID] = p
	}
}

// SetPosition 只改写一个玩家的位置；ID 不存在时返回 false
func (s *State) SetPosition(id uint8, pos Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return false
	}
	p.Position = pos
	s.players[id] = p
	return true
}

// MergeRemote 合并权威位置，但不覆盖本地玩家尚未确认的预测位置
func (s *State) MergeRemote(id uint8, pos Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.own {
		return false
	}
	p, ok := s.players[id]
	if !ok {
		return false
	}
	p.Position = pos
	s.players[id] = p
	return true
}

// MergeOwn 只写回本地玩家自己的记录
func (s *State) MergeOwn(p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.own
	s.players[s.own] = p
}
