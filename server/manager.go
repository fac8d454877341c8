package server

import (
	"github.com/google/uuid"
)

// MaxPlayerID 单字节 ID 的上限；0 保留给主机本地玩家
const MaxPlayerID = 255

// Registry 会话表，只由 Host 事件循环读写
type Registry struct {
	sessions map[uuid.UUID]*Session
	order    []uuid.UUID // 接入顺序，广播时按此遍历
	nextID   int
}

// NewRegistry 创建空会话表，玩家 ID 从 1 开始分配
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		nextID:   1,
	}
}

// Add 登记新会话
func (r *Registry) Add(s *Session) {
	if _, ok := r.sessions[s.ID]; !ok {
		r.order = append(r.order, s.ID)
	}
	r.sessions[s.ID] = s
}

// Get 按会话 ID 查找
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Remove 删除会话，返回是否存在
func (r *Registry) Remove(id uuid.UUID) bool {
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// NextID 分配下一个玩家 ID；ID 单调递增，本次运行内不复用
func (r *Registry) NextID() (uint8, bool) {
	if r.nextID > MaxPlayerID {
		return 0, false
	}
	id := uint8(r.nextID)
	r.nextID++
	return id, true
}

// Len 会话数
func (r *Registry) Len() int { return len(r.sessions) }

// Sessions 按接入顺序返回会话
func (r *Registry) Sessions() []*Session {
	out := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id])
	}
	return out
}
