// package shared defines shared helpers
package shared

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// ApplyLogLevel parses a level name ("debug", "info", ...) and applies it.
// Unknown names leave the logger untouched.
func ApplyLogLevel(l *log.Logger, name string) {
	if name == "" {
		return
	}
	lvl, err := log.ParseLevel(strings.ToLower(name))
	if err != nil {
		l.Warn("unknown log level", "level", name)
		return
	}
	SetLogLevel(l, lvl)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// Clock returns the current time. Components hold one so tests can pin "now".
type Clock func() time.Time

// Unix returns c() in unix seconds, falling back to [time.Now] for a nil clock.
func (c Clock) Unix() int64 {
	if c == nil {
		return time.Now().Unix()
	}
	return c().Unix()
}

// MarshalJSON encodes v, indenting with two spaces when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
