package wire

import "go.uber.org/zap"

// nopLogger is shared by every Connection constructed without an
// explicit logger, so call sites never need a nil check.
var nopLogger = zap.NewNop()

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return nopLogger
	}
	return l
}
