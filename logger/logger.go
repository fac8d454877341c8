package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 是进程内唯一的 SugaredLogger；Init 之前为 Nop，测试中无需初始化
var Log = zap.NewNop().Sugar()

// Options 日志初始化参数
type Options struct {
	FilePath string // 日志文件路径，如 "macroprox.log"
	Level    string // debug / info / warn / error
	Console  bool   // 同时输出到 stderr（无界面的 serve 模式使用）
}

// Init 初始化 zap 日志到本地文件（支持滚动）
func Init(opts Options) error {
	level := zapcore.DebugLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return err
		}
	}

	encoder := zapcore.NewConsoleEncoder(encoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(rollingFile(opts.FilePath)), level)
	if opts.Console {
		// 终端界面占用 stdout，只有 serve 模式才写 stderr
		console := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
		core = zapcore.NewTee(core, console)
	}

	Log = zap.New(core, zap.AddCaller()).Sugar()
	return nil
}

// rollingFile 10MB 每文件，保留3个备份，保留7天
func rollingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{Filename: path, MaxSize: 10, MaxBackups: 3, MaxAge: 7}
}

// encoderConfig 单行可读格式：ISO8601 时间、大写级别、短调用位置
func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

// Writer 把第三方库写出的文本按行转为 warn 日志
func Writer() io.Writer { return lineWriter{} }

type lineWriter struct{}

func (lineWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			Log.Warn(line)
		}
	}
	return len(p), nil
}

// Sync 清理和同步缓冲
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
