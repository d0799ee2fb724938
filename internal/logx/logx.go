// Package logx is the loader's leveled logger: timestamped lines with the
// caller's file and line, filtered by a level picked up from the MINIDL_LOG
// environment variable (debug, info, warn, error). The default level is warn
// so library users only hear about relocation and lookup anomalies.
package logx

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/xyproto/env/v2"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu      sync.Mutex
	current = levelFromEnv()
)

func levelFromEnv() Level {
	switch strings.ToLower(env.Str("MINIDL_LOG", "warn")) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "error":
		return LevelError
	default:
		return LevelWarn
	}
}

// SetLevel overrides the level picked up from the environment.
func SetLevel(l Level) {
	mu.Lock()
	current = l
	mu.Unlock()
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

func output(l Level, format string, args ...any) {
	mu.Lock()
	enabled := l >= current
	mu.Unlock()
	if !enabled {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file, line = "???", 0
	}
	fmt.Fprintf(os.Stderr, "[%s] [%s] %s:%d: %s\n",
		time.Now().Format("15:04:05.000"), l, filepath.Base(file), line,
		fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) { output(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { output(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { output(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { output(LevelError, format, args...) }
