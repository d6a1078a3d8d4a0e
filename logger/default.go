package logger

import "sync/atomic"

type holder struct{ l Logger }

var defLogger atomic.Pointer[holder]

func init() {
	defLogger.Store(&holder{l: NewSlog(InfoLevel, false)})
}

// GetLogger returns the process-wide default logger. Components capture it
// when they are constructed, so SetDefault must run before they are built.
func GetLogger() Logger {
	return defLogger.Load().l
}

// SetDefault replaces the process-wide default logger. A nil l is ignored.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defLogger.Store(&holder{l: l})
}

// SetLevel changes the level of the default logger.
func SetLevel(level LogLevel) {
	GetLogger().SetLevel(level)
}

// Instrument returns l scoped to one instrument link. A nil l scopes the
// default logger.
func Instrument(l Logger, instrumentID string) Logger {
	if l == nil {
		l = GetLogger()
	}

	return l.With("instrument", instrumentID)
}
