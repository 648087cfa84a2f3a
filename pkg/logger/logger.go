package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOption 日志初始化参数，对应配置文件中的 logger 段
type LogOption struct {
	Format   string // 日志格式，支持 "console" 或 "json"
	LogDir   string // 日志目录，为空时只输出到 stdout
	Level    string // 日志级别：debug / info / warn / error
	Compress bool   // 是否压缩旧日志文件
}

const (
	logFileName   = "indexer.log"
	maxFileSizeMB = 256
	maxBackups    = 20
	maxAgeDays    = 7
)

var (
	mu     sync.RWMutex
	sugar  = newDefaultLogger()
	closer func() error
)

// newDefaultLogger 未调用 Init 时使用的 logger：console 格式写 stdout，级别 info
func newDefaultLogger() *zap.SugaredLogger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(newEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		zapcore.InfoLevel,
	)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

func newEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// Init 按配置初始化全局 logger，可重复调用（后一次覆盖前一次）
func Init(opt LogOption) error {
	level := zapcore.InfoLevel
	if opt.Level != "" {
		l, err := zapcore.ParseLevel(opt.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opt.Level, err)
		}
		level = l
	}

	var encoder zapcore.Encoder
	switch opt.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(newEncoderConfig())
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(newEncoderConfig())
	default:
		return fmt.Errorf("invalid log format %q", opt.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	}

	var rotate *lumberjack.Logger
	if opt.LogDir != "" {
		if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log dir %s: %w", opt.LogDir, err)
		}
		// 文件日志按大小切割，保留最近 maxAgeDays 天
		rotate = &lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, logFileName),
			MaxSize:    maxFileSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   opt.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotate), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()

	mu.Lock()
	prevCloser := closer
	sugar = l
	closer = nil
	if rotate != nil {
		closer = rotate.Close
	}
	mu.Unlock()

	if prevCloser != nil {
		_ = prevCloser()
	}
	return nil
}

// Sync 刷新缓冲并关闭日志文件，程序退出前调用
func Sync() error {
	mu.RLock()
	l, c := sugar, closer
	mu.RUnlock()

	_ = l.Sync()
	if c != nil {
		return c()
	}
	return nil
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// With 返回带固定字段的 logger，用于组件级日志
func With(keysAndValues ...any) *zap.SugaredLogger {
	return current().Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().With(keysAndValues...)
}

func Debugf(template string, args ...any) {
	current().Debugf(template, args...)
}

func Infof(template string, args ...any) {
	current().Infof(template, args...)
}

func Warnf(template string, args ...any) {
	current().Warnf(template, args...)
}

func Errorf(template string, args ...any) {
	current().Errorf(template, args...)
}
