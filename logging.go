package sysviz

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type DefaultLogger struct {
	mu     sync.Mutex
	debug  bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return newLogger(prefix, debug, os.Stdout, os.Stderr)
}

// NewSessionLogger tags every line with a per-run id so logs of concurrent
// screensaver instances can be told apart.
func NewSessionLogger(debug bool) *DefaultLogger {
	return NewDefaultLogger("sysviz "+SessionID(), debug)
}

var (
	sessionOnce sync.Once
	sessionID   string
)

// SessionID is the short run id, stable for the life of the process.
func SessionID() string {
	sessionOnce.Do(func() {
		sessionID = uuid.NewString()[:8]
	})
	return sessionID
}

func newLogger(prefix string, debug bool, out, errOut io.Writer) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(out, "", flags),
		err:    log.New(errOut, "", flags),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) prefixf(level string, format string, args ...any) string {
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s: %s", l.prefix, level, fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf("%s: %s", level, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.out.Print(l.prefixf("DEBUG", format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.prefixf("INFO", format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.prefixf("WARN", format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.prefixf("ERROR", format, args...))
}

// LogMessage is one captured BufferLogger entry.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures messages for test assertions.
type BufferLogger struct {
	mu       sync.Mutex
	debug    bool
	Messages []LogMessage
}

func NewBufferLogger() *BufferLogger { return &BufferLogger{debug: true} }

func (b *BufferLogger) add(level, format string, args ...any) {
	b.mu.Lock()
	b.Messages = append(b.Messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
	b.mu.Unlock()
}

func (b *BufferLogger) DebugEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.debug
}

func (b *BufferLogger) SetDebug(enabled bool) {
	b.mu.Lock()
	b.debug = enabled
	b.mu.Unlock()
}

func (b *BufferLogger) Debugf(format string, args ...any) {
	if b.DebugEnabled() {
		b.add("DEBUG", format, args...)
	}
}
func (b *BufferLogger) Infof(format string, args ...any)  { b.add("INFO", format, args...) }
func (b *BufferLogger) Warnf(format string, args ...any)  { b.add("WARN", format, args...) }
func (b *BufferLogger) Errorf(format string, args ...any) { b.add("ERROR", format, args...) }

// Level returns the captured messages at one level.
func (b *BufferLogger) Level(level string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.Messages {
		if m.Level == level {
			out = append(out, m.Message)
		}
	}
	return out
}

type nopLogger struct{}

func NewNopLogger() Logger { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}
