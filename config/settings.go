package config

import (
	"net"
	"strconv"

	"macroprox/game"
)

// Mode 启动方式
type Mode int

const (
	ModeHost  Mode = iota // 本地游玩并提供服务
	ModeJoin              // 连接到其他主机
	ModeServe             // 无界面的专用服务端
)

func (m Mode) String() string {
	switch m {
	case ModeHost:
		return "host"
	case ModeJoin:
		return "join"
	case ModeServe:
		return "serve"
	default:
		return "unknown"
	}
}

// Settings 一次运行的玩家设置，由命令行生成
type Settings struct {
	Name   string
	Colour game.Colour
	Port   int
	Host   string // 为空表示主机模式
	Mode   Mode
}

// NewSettings 从配置生成默认设置，命令行参数随后覆盖
func NewSettings(cfg Config, mode Mode) (Settings, error) {
	col, err := ParseColour(cfg.Colour)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Name:   cfg.Name,
		Colour: col,
		Port:   cfg.Port,
		Mode:   mode,
	}, nil
}

// IsHost 是否由本进程提供服务
func (s Settings) IsHost() bool { return s.Host == "" }

// JoinAddr 客户端要连接的 host:port
func (s Settings) JoinAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
