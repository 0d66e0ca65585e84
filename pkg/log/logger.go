package log

import (
	"fmt"
	"os"
)

// SetupLogger installs a zerolog provider writing JSON lines to stdout at the
// given level ("debug", "info", "warn" or "error").
func SetupLogger(loglevel string) {
	SetProvider(NewZerologProvider(os.Stdout, ToLogLevel(loglevel)))
}

func ToLogLevel(level string) Level {
	switch level {
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}
