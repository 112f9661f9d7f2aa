package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger writes human-readable logs to stderr so stdout stays
// parseable for artifact records, debug level gated by the global flag
func newLogger() *zap.Logger {
	console := zapcore.Lock(os.Stderr)
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return debug || lvl != zapcore.DebugLevel })
	return zap.New(zapcore.NewCore(encoder, console, enabler))
}
