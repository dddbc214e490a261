package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu       sync.Mutex
	level    = zerolog.InfoLevel
	logDir   = "logs"
	fileSink io.Writer
)

// SetLevel changes the level applied to loggers created after the call.
func SetLevel(l string) {
	mu.Lock()
	defer mu.Unlock()
	parsed, err := zerolog.ParseLevel(strings.ToLower(l))
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	level = parsed
}

// SetLogDir sets the directory the rotating log file is written to.
func SetLogDir(dir string) {
	mu.Lock()
	defer mu.Unlock()
	logDir = dir
	fileSink = nil
}

func GetLogPath() string {
	return filepath.Join(logDir, "reeldav.log")
}

func getFileSink() io.Writer {
	if fileSink == nil {
		fileSink = &lumberjack.Logger{
			Filename:   GetLogPath(),
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	return fileSink
}

// New returns a logger tagged with a component name, writing to the console
// and the shared rotating log file.
func New(component string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	multi := zerolog.MultiLevelWriter(console, getFileSink())
	return zerolog.New(multi).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func Default() zerolog.Logger {
	return New("reeldav")
}
