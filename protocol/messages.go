package protocol // 客户端与服务端之间的二进制消息

import "macroprox/game"

// Kind 消息类型标签（线上为单字节）
type Kind uint8

const (
	// Client -> Server
	KindRegisterPlayer Kind = iota + 1
	KindMove

	// Server -> Client
	KindMovedPlayers
	KindSendMap
	KindSendPlayerInfo
	KindAddPlayer
	KindRemovePlayer
	KindAllowClientReady
)

func (k Kind) String() string {
	switch k {
	case KindRegisterPlayer:
		return "RegisterPlayer"
	case KindMove:
		return "Move"
	case KindMovedPlayers:
		return "MovedPlayers"
	case KindSendMap:
		return "SendMap"
	case KindSendPlayerInfo:
		return "SendPlayerInfo"
	case KindAddPlayer:
		return "AddPlayer"
	case KindRemovePlayer:
		return "RemovePlayer"
	case KindAllowClientReady:
		return "AllowClientReady"
	default:
		return "Unknown"
	}
}

// Message 封闭的消息集合，只有本包内的类型能实现
type Message interface {
	Kind() Kind
	isMessage()
}

// RegisterPlayer 客户端注册
type RegisterPlayer struct {
	Name   string      `msgpack:"name"`
	Colour game.Colour `msgpack:"colour"`
}

// Move 客户端上报自己的位置（服务端直接信任）
type Move struct {
	Position game.Position `msgpack:"pos"`
}

// PlayerPosition 玩家 ID 与位置
type PlayerPosition struct {
	ID       uint8         `msgpack:"id"`
	Position game.Position `msgpack:"pos"`
}

// MovedPlayers 本次广播中位置有变化的玩家
type MovedPlayers struct {
	Players []PlayerPosition `msgpack:"players"`
}

// SendMap 完整建筑列表
type SendMap struct {
	Buildings []game.Building `msgpack:"buildings"`
}

// SendPlayerInfo 完整玩家列表与分配给接收方的 ID
type SendPlayerInfo struct {
	Players []game.Player `msgpack:"players"`
	YourID  uint8         `msgpack:"your_id"`
}

// AddPlayer 新玩家加入
type AddPlayer struct {
	Player game.Player `msgpack:"player"`
}

// RemovePlayer 玩家离开
type RemovePlayer struct {
	ID uint8 `msgpack:"id"`
}

// AllowClientReady 注册流程的最后一条，客户端据此结束加载
type AllowClientReady struct {
	ID uint8 `msgpack:"id"`
}

func (RegisterPlayer) Kind() Kind   { return KindRegisterPlayer }
func (Move) Kind() Kind             { return KindMove }
func (MovedPlayers) Kind() Kind     { return KindMovedPlayers }
func (SendMap) Kind() Kind          { return KindSendMap }
func (SendPlayerInfo) Kind() Kind   { return KindSendPlayerInfo }
func (AddPlayer) Kind() Kind        { return KindAddPlayer }
func (RemovePlayer) Kind() Kind     { return KindRemovePlayer }
func (AllowClientReady) Kind() Kind { return KindAllowClientReady }

func (RegisterPlayer) isMessage()   {}
func (Move) isMessage()             {}
func (MovedPlayers) isMessage()     {}
func (SendMap) isMessage()          {}
func (SendPlayerInfo) isMessage()   {}
func (AddPlayer) isMessage()        {}
func (RemovePlayer) isMessage()     {}
func (AllowClientReady) isMessage() {}
