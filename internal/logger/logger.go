// Package logger builds the driver's zap logger.
package logger

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file written under LogDir.
const FileName = "anchorgen.log"

type LogOption struct {
	Format   string
	LogDir   string
	Level    string
	Compress bool
}

// New returns a logger writing to stderr and, with a LogDir, to a rotated
// file. The returned closer flushes and releases the file.
func New(opt LogOption) (*zap.Logger, func() error, error) {
	level := zapcore.InfoLevel
	if opt.Level != "" {
		if err := level.UnmarshalText([]byte(opt.Level)); err != nil {
			return nil, nil, errors.Wrapf(err, "log level %q", opt.Level)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if opt.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)}
	var rotated *lumberjack.Logger
	if opt.LogDir != "" {
		if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
			return nil, nil, errors.Wrapf(err, "create log dir %s", opt.LogDir)
		}
		rotated = &lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, FileName),
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   opt.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotated), level))
	}

	log := zap.New(zapcore.NewTee(cores...))
	closer := func() error {
		_ = log.Sync()
		if rotated != nil {
			return rotated.Close()
		}
		return nil
	}
	return log, closer, nil
}

// Nop is a logger that discards everything.
func Nop() *zap.Logger { return zap.NewNop() }
