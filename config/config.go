package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lucasb-eyer/go-colorful"

	"macroprox/game"
)

const DefaultPort = 5508

// Config 进程级配置：先读 .env，再读 MACROPROX_* 环境变量
type Config struct {
	ListenHost        string
	Port              int
	BroadcastDelay    time.Duration
	BroadcastInterval time.Duration
	Spawn             game.Position
	BaseSpeed         float64
	Name              string
	Colour            string
	LogFile           string
	LogLevel          string
	LockTimeout       time.Duration // 锁等待超过该时长视为潜在死锁
}

// Load 读取配置；.env 文件不存在不算错误
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := Config{
		ListenHost:        getEnv("MACROPROX_LISTEN_HOST", "0.0.0.0"),
		Port:              parseInt(getEnv("MACROPROX_PORT", ""), DefaultPort),
		BroadcastDelay:    parseDuration(getEnv("MACROPROX_BROADCAST_DELAY", "500ms"), 500*time.Millisecond),
		BroadcastInterval: parseDuration(getEnv("MACROPROX_BROADCAST_INTERVAL", "15ms"), 15*time.Millisecond),
		Spawn: game.Position{
			X: parseFloat(getEnv("MACROPROX_SPAWN_X", ""), 400),
			Y: parseFloat(getEnv("MACROPROX_SPAWN_Y", ""), 300),
		},
		BaseSpeed:   parseFloat(getEnv("MACROPROX_BASE_SPEED", ""), game.BaseSpeed),
		Name:        getEnv("MACROPROX_NAME", defaultName()),
		Colour:      getEnv("MACROPROX_COLOUR", "white"),
		LogFile:     getEnv("MACROPROX_LOG_FILE", "macroprox.log"),
		LogLevel:    getEnv("MACROPROX_LOG_LEVEL", "info"),
		LockTimeout: parseDuration(getEnv("MACROPROX_LOCK_TIMEOUT", "30s"), 30*time.Second),
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("port %d out of range", cfg.Port)
	}
	if cfg.BroadcastInterval <= 0 {
		return Config{}, fmt.Errorf("broadcast interval must be positive, got %s", cfg.BroadcastInterval)
	}
	return cfg, nil
}

// ListenAddr 服务端在 port 上的监听地址；命令行可覆盖配置中的端口
func (c Config) ListenAddr(port int) string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(port))
}

func defaultName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "player"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return f
}

var namedColours = map[string]game.Colour{
	"white":  game.White,
	"red":    {R: 0.9, G: 0.16, B: 0.22, A: 1},
	"green":  {R: 0, G: 0.89, B: 0.19, A: 1},
	"blue":   {R: 0, G: 0.47, B: 0.95, A: 1},
	"yellow": {R: 0.99, G: 0.98, B: 0, A: 1},
	"orange": {R: 1, G: 0.63, B: 0, A: 1},
	"purple": {R: 0.78, G: 0.48, B: 1, A: 1},
	"pink":   {R: 1, G: 0.43, B: 0.76, A: 1},
}

// ParseColour 支持颜色名或 #rrggbb
func ParseColour(s string) (game.Colour, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColours[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return game.Colour{}, fmt.Errorf("parse colour %q: %w", s, err)
	}
	return game.Colour{R: c.R, G: c.G, B: c.B, A: 1}, nil
}
