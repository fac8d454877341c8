package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrEmptyFrame  = errors.New("empty frame")
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownKind = errors.New("unknown message kind")
)

// Envelope 一帧 = 一条消息：类型标签 + msgpack 负载
type Envelope struct {
	K Kind               `msgpack:"k"`
	P msgpack.RawMessage `msgpack:"p"`
}

// Encode 序列化一条消息
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("trying to encode nil message")
	}
	pb, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", m.Kind(), err)
	}
	return msgpack.Marshal(Envelope{K: m.Kind(), P: pb})
}

// Decode 反序列化一帧；错误包装 ErrEmptyFrame / ErrMalformed / ErrUnknownKind
func Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, ErrEmptyFrame
	}
	var env Envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}

	switch env.K {
	case KindRegisterPlayer:
		return decodePayload[RegisterPlayer](env)
	case KindMove:
		return decodePayload[Move](env)
	case KindMovedPlayers:
		return decodePayload[MovedPlayers](env)
	case KindSendMap:
		return decodePayload[SendMap](env)
	case KindSendPlayerInfo:
		return decodePayload[SendPlayerInfo](env)
	case KindAddPlayer:
		return decodePayload[AddPlayer](env)
	case KindRemovePlayer:
		return decodePayload[RemovePlayer](env)
	case KindAllowClientReady:
		return decodePayload[AllowClientReady](env)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, env.K)
	}
}

func decodePayload[T Message](env Envelope) (Message, error) {
	var out T
	// 0xc0 为 msgpack nil
	if len(env.P) == 0 || (len(env.P) == 1 && env.P[0] == 0xc0) {
		return nil, fmt.Errorf("%w: empty payload for %s", ErrMalformed, env.K)
	}
	if err := msgpack.Unmarshal(env.P, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.K, err)
	}
	return out, nil
}
