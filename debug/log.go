package debug

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	file    *os.File
	enabled bool
	sink    = &switchWriter{w: io.Discard}
	root    = newRoot(charmlog.DebugLevel)
)

// switchWriter lets Enable/Disable redirect loggers that were already handed out.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func newRoot(level charmlog.Level) *charmlog.Logger {
	return charmlog.NewWithOptions(sink, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
}

// DefaultPath returns ~/.config/go-epg/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-epg", "debug.log")
}

// Enable starts debug logging to path (DefaultPath when empty) at the given level.
// Loggers obtained before Enable keep their level but follow the new output.
func Enable(path, level string) error {
	mu.Lock()
	defer mu.Unlock()

	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	lvl := charmlog.DebugLevel
	if level != "" {
		if parsed, err := charmlog.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}

	if file != nil {
		file.Close()
	}
	file = f
	enabled = true
	sink.set(f)
	root = newRoot(lvl)
	root.WithPrefix("debug").Info("=== debug logging started ===")
	return nil
}

// EnableWriter sends log output to w; used by tests and miditest -v.
func EnableWriter(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()

	lvl := charmlog.DebugLevel
	if parsed, err := charmlog.ParseLevel(level); err == nil {
		lvl = parsed
	}
	enabled = true
	sink.set(w)
	root = newRoot(lvl)
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	sink.set(io.Discard)
	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Enabled reports whether log output currently goes anywhere.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Logger returns a structured logger tagged with prefix.
func Logger(prefix string) *charmlog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return root.WithPrefix(prefix)
}

// Log writes a printf-style debug message under category.
func Log(category, format string, args ...any) {
	mu.Lock()
	on := enabled
	l := root
	mu.Unlock()

	if !on {
		return
	}
	l.WithPrefix(category).Debugf(format, args...)
}

// LogEvery logs only every N calls (use for high-frequency events)
var (
	countersMu sync.Mutex
	counters   = make(map[string]int)
)

func LogEvery(n int, category, format string, args ...any) {
	countersMu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	countersMu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

// Since is a small helper for timing hot paths in debug output.
func Since(t time.Time) time.Duration {
	return time.Since(t).Round(time.Microsecond)
}
