// Package logging builds the slog loggers used by xdpstats, with
// per-component levels selected by a spec string.
package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level is a log level. Debug through error match the slog constants;
// trace sits below debug and carries per-packet-path detail such as
// individual map lookups.
type Level int

const (
	LevelTrace Level = -8
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// QuietLevel is the base level applied by --quiet.
const QuietLevel = LevelError

var levelNames = []struct {
	level Level
	name  string
}{
	{LevelTrace, "trace"},
	{LevelDebug, "debug"},
	{LevelInfo, "info"},
	{LevelWarn, "warn"},
	{LevelError, "error"},
}

var levelAliases = map[string]Level{
	"warning": LevelWarn,
	"err":     LevelError,
	"quiet":   QuietLevel,
}

// LevelNames returns the accepted level names, most verbose first.
func LevelNames() []string {
	names := make([]string, len(levelNames))
	for i, ln := range levelNames {
		names[i] = ln.name
	}
	return names
}

// ParseLevel parses a level name case-insensitively. "quiet" is an
// alias for QuietLevel.
func ParseLevel(s string) (Level, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, ln := range levelNames {
		if ln.name == key {
			return ln.level, nil
		}
	}
	if l, ok := levelAliases[key]; ok {
		return l, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %q (want one of %s)", s, strings.Join(LevelNames(), ", "))
}

// AtLeast returns the less verbose of l and min.
func (l Level) AtLeast(min Level) Level {
	if l < min {
		return min
	}
	return l
}

// ToSlog converts l to a slog.Level.
func (l Level) ToSlog() slog.Level {
	return slog.Level(l)
}

func (l Level) String() string {
	for _, ln := range levelNames {
		if ln.level == l {
			return ln.name
		}
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// replaceLevel renders the trace level as TRACE rather than slog's
// DEBUG-4.
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace.ToSlog() {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
