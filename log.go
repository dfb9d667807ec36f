package fastagi

import "go.uber.org/zap"

// nopLogger is the default logger every Server and Connection carries
// when none is supplied: zap's no-op core, per ezdev128-agi's
// "logger is never nil" convention (the teacher's own *log.Logger
// field was nil-checked at every call site; this module instead
// defaults it once, here).
func nopLogger() *zap.Logger {
	return zap.NewNop()
}
