// Package logging builds the zap logger used by the optimizer tools.
package logging

import (
	"os"

	"github.com/daniel-perry/shapeworks/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to stderr.
func New(cfg config.LogConfig) *zap.Logger {
	return NewWithWriter(cfg, zapcore.Lock(os.Stderr))
}

// NewWithWriter returns a logger writing to w.  An unknown level falls back
// to info.
func NewWithWriter(cfg config.LogConfig, w zapcore.WriteSyncer) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, w, level)
	return zap.New(core, zap.AddStacktrace(zap.ErrorLevel)).Named("shapeworks")
}
