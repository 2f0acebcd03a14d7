package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"okx-stoch-sentry/pkg/types"
)

// Init 初始化全局zap日志：控制台输出 + 可选的按大小切割日志文件
// 返回的函数应在退出前调用以刷新缓冲
func Init(cfg types.LogConfig) (func(), error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stdout), level),
	}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(cfg.FilePath, 0o755); err != nil {
			return nil, err
		}
		writer := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.FilePath, "sentry.log"),
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(writer), level))
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	restore := zap.ReplaceGlobals(log)

	return func() {
		_ = log.Sync()
		restore()
	}, nil
}
