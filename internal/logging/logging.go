// Package logging configures the process-wide slog logger and the request
// scoped helpers used by handlers and middleware.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdobak/go-xerrors"
)

// stackFrame represents a single frame in a stack trace
type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

// Initialize sets up the global slog with a JSON handler on stdout.
// The level comes from LOGGING_LEVEL (debug, info, warn, error; default info).
func Initialize() {
	InitializeWriter(os.Stdout)
}

// InitializeWriter is Initialize with an explicit destination. Command line
// tools log to stderr so stdout stays machine readable.
func InitializeWriter(w io.Writer) {
	slog.SetDefault(NewLogger(w, ParseLevel(os.Getenv("LOGGING_LEVEL"))))
}

// NewLogger builds the JSON logger used throughout the service. Error
// attributes are rendered with their stack trace.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}))
}

// ParseLevel maps a level name to slog.Level. "warning" is accepted as an
// alias of "warn"; anything unrecognized is info.
func ParseLevel(s string) slog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	if err, ok := a.Value.Any().(error); ok {
		a.Value = fmtErr(err)
	}
	return a
}

func marshalStack(err error) []stackFrame {
	trace := xerrors.StackTrace(err)
	if len(trace) == 0 {
		return nil
	}

	frames := trace.Frames()
	s := make([]stackFrame, len(frames))
	for i, v := range frames {
		s[i] = stackFrame{
			Source: filepath.Join(filepath.Base(filepath.Dir(v.File)), filepath.Base(v.File)),
			Func:   filepath.Base(v.Function),
			Line:   v.Line,
		}
	}
	return s
}

// fmtErr returns a group with keys `msg` and, when available, `trace`.
func fmtErr(err error) slog.Value {
	attrs := []slog.Attr{slog.String("msg", err.Error())}
	if frames := marshalStack(err); frames != nil {
		attrs = append(attrs, slog.Any("trace", frames))
	}
	return slog.GroupValue(attrs...)
}

// WrapError prefixes err with msg and records the caller's stack.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return xerrors.Newf("%s: %v", msg, xerrors.WithStackTrace(err, 1))
}
