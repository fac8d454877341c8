package server

import (
	"time"

	"github.com/google/uuid"
)

// Conn 会话的发送端；Send 不得阻塞事件循环
type Conn interface {
	Send(b []byte) error
	Close() error
}

// SessionState 会话状态机
type SessionState int

const (
	Accepted SessionState = iota
	Registered
	Active
	Disconnected // 终态
)

func (s SessionState) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Registered:
		return "registered"
	case Active:
		return "active"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session 一个网络连接，注册后绑定一个玩家 ID
type Session struct {
	ID       uuid.UUID
	Conn     Conn
	State    SessionState
	PlayerID uint8 // 仅在 Registered / Active 下有效
	Name     string
	JoinedAt time.Time
}

// HasPlayer 会话是否已绑定玩家
func (s *Session) HasPlayer() bool {
	return s.State == Registered || s.State == Active
}
