package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var L *zap.Logger

func init() {
	var err error
	L, err = build(zapcore.InfoLevel)
	if err != nil {
		panic(err)
	}
}

func build(level zapcore.Level) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(level)
	return config.Build(zap.AddCallerSkip(1))
}

// SetLevel 調整全域 logger 等級（LOG_LEVEL），無法解析時維持 info
func SetLevel(level string) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		L.Warn("invalid log level, keep info", zap.String("level", level))
		return
	}
	built, err := build(lvl)
	if err != nil {
		L.Warn("rebuild logger failed", zap.Error(err))
		return
	}
	L = built
}

// WithComponent 回傳帶有 component 欄位的 logger，供 MQ、handler、service 等使用
func WithComponent(component string) *zap.Logger {
	return L.With(zap.String("component", component))
}
