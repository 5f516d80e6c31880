// Package obs provides the leveled logging wrapper used across the
// mapper. It intentionally stays on the standard library's log package,
// matching how the rest of this codebase's lineage does logging.
package obs

import (
	"log"
	"os"
)

// Logger is a leveled wrapper around *log.Logger. The zero value is not
// usable; construct with New.
type Logger struct {
	std *log.Logger
}

// New returns a Logger that writes to os.Stderr with the given prefix.
func New(prefix string) *Logger {
	return &Logger{std: log.New(os.Stderr, prefix, log.LstdFlags)}
}

func (l *Logger) Infof(format string, args ...any) {
	l.std.Printf("INFO  "+format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.std.Printf("WARN  "+format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.std.Printf("ERROR "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.std.Printf("DEBUG "+format, args...)
}

// Named returns a Logger with the given component name appended to the
// prefix, so log lines read e.g. "[pitchgrid] midiio: ...".
func (l *Logger) Named(component string) *Logger {
	return &Logger{std: log.New(l.std.Writer(), l.std.Prefix()+component+": ", log.LstdFlags)}
}
