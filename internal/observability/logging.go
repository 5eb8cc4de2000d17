// Package observability provides the process-wide structured logger.
//
// CLI commands log operational events through CLILogger; the copy step's
// human-readable progress goes to the build console writer instead, so
// the two streams never interleave.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger. It defaults to info-level console
// output on stderr and is reconfigured by Init once flags are parsed.
var CLILogger = newLogger(zapcore.InfoLevel)

// Init reconfigures CLILogger for the given level string. Unknown levels
// fall back to info.
func Init(level string) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	CLILogger = newLogger(lvl)
}

// Sync flushes buffered log entries. Called on process exit.
func Sync() {
	_ = CLILogger.Sync()
}

func newLogger(lvl zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// Config is static; Build only fails on invalid settings.
		panic(err)
	}
	return logger
}
