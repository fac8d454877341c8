package server

import "github.com/google/uuid"

type eventKind int

const (
	evJoined eventKind = iota
	evReceived
	evLeft
)

func (k eventKind) String() string {
	switch k {
	case evJoined:
		return "joined"
	case evReceived:
		return "received"
	case evLeft:
		return "left"
	default:
		return "unknown"
	}
}

// event 传输层投递到 Host 收件箱的事件；同一连接的事件按到达顺序处理
type event struct {
	kind  eventKind
	sid   uuid.UUID
	conn  Conn   // 仅 joined
	frame []byte // 仅 received
}
