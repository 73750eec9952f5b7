// Package logger is the leveled console logger shared by the server and the worker binaries.
// Every line carries a component tag so request, database and security events can be grepped apart.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

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

// ParseLevel maps LOG_LEVEL values; unknown values mean INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

var levelColors = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgCyan),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed, color.Bold),
}

type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
	now   func() time.Time
}

// NewLogger writes to stdout at the level named by LOG_LEVEL.
func NewLogger() *Logger {
	return New(os.Stdout, ParseLevel(os.Getenv("LOG_LEVEL")))
}

func New(out io.Writer, level Level) *Logger {
	return &Logger{out: out, level: level, now: time.Now}
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *Logger {
	return New(io.Discard, LevelError+1)
}

func (l *Logger) write(level Level, component, msg string) {
	if l == nil || level < l.level {
		return
	}
	tag := levelColors[level].Sprintf("%-5s", level)
	line := fmt.Sprintf("%s %s [%s] %s\n", l.now().UTC().Format(time.RFC3339), tag, component, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, line)
}

func (l *Logger) Debug(component, msg string) { l.write(LevelDebug, component, msg) }
func (l *Logger) Info(component, msg string)  { l.write(LevelInfo, component, msg) }
func (l *Logger) Warn(component, msg string)  { l.write(LevelWarn, component, msg) }
func (l *Logger) Error(component, msg string) { l.write(LevelError, component, msg) }

// Fatal logs and exits the process.
func (l *Logger) Fatal(component, msg string) {
	l.write(LevelError, component, msg)
	os.Exit(1)
}

func (l *Logger) LogProcess(component, msg string) {
	l.Info(component, color.GreenString("▶ ")+msg)
}

func (l *Logger) LogDatabase(op, db, msg string) {
	l.Debug("DATABASE", fmt.Sprintf("%s %s: %s", db, op, msg))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogSecurity(event, msg string) {
	l.Warn("SECURITY", fmt.Sprintf("%s: %s", event, msg))
}

func (l *Logger) LogKafka(op, topic, msg string) {
	l.Debug("KAFKA", fmt.Sprintf("%s %s: %s", op, topic, msg))
}

func (l *Logger) Close() error {
	if f, ok := l.out.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}
