// Package debug gates diagnostic logging by category and level.
//
// KIROGATE_DEBUG selects WHAT to log: a comma-separated category list
// (upstream, framing, streaming, auth, transport, storage, config) or
// "all". KIROGATE_LOG_LEVEL selects HOW MUCH: ERROR through TRACE,
// where TRACE additionally emits full frame payloads and translated
// events through the wire observer.
//
//	debug.Log("framing", "frame decoded", "bytes", n)
//	if debug.Enabled("framing") { /* expensive formatting */ }
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below slog.LevelDebug. Payload dumps only appear at
// this level.
const LevelTrace = slog.LevelDebug - 4

// categories is write-once at Init; lookups need no locking.
var categories map[string]bool

func init() {
	categories = parseCategories(os.Getenv("KIROGATE_DEBUG"))
}

// Init applies debug settings at startup. Environment variables win
// over the config-file values passed in.
func Init(configCategories, configLevel string) {
	cats := os.Getenv("KIROGATE_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv("KIROGATE_LOG_LEVEL")
	if level == "" {
		level = configLevel
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// Enabled reports whether a category is active.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug-level message when the category is active.
func Log(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message when the category is active and the
// logger runs at TRACE.
func Trace(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether Trace output for the category would be
// emitted.
func TraceIsEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(nil, LevelTrace)
}

// Raw writes text to stderr with no slog framing, for hex dumps and SSE
// bodies that should paste cleanly. Active only at TRACE for an enabled
// category.
func Raw(category, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// ParseLevel maps a level name to its slog.Level, defaulting to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories lists the active categories, for status reporting.
func Categories() []string {
	var active []string
	for cat := range categories {
		active = append(active, cat)
	}
	return active
}

// Truncate shortens s to at most maxLen characters, marking the cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		if cat = strings.TrimSpace(strings.ToLower(cat)); cat != "" {
			m[cat] = true
		}
	}
	return m
}
