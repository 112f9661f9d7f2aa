package testcases

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Logger installs a per-test logger as the zap global, returning the restore
func Logger(t *testing.T) func() {
	logger := zaptest.NewLogger(t)
	undo := zap.ReplaceGlobals(logger)
	return func() {
		logger.Sync()
		undo()
	}
}
